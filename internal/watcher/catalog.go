package watcher

import (
	"context"
	"time"

	"github.com/conneroisu/folio/internal/logging"
)

// DefaultCatalogDebounce is the quiet period before a catalog reload.
const DefaultCatalogDebounce = 250 * time.Millisecond

// Reloader is implemented by anything that can rebuild itself from disk.
type Reloader interface {
	Reload() error
}

// WatchCatalogs reloads target whenever a catalog file in dir changes. The
// returned watcher is already started; stop it with Stop or by cancelling
// ctx.
func WatchCatalogs(
	ctx context.Context,
	dir string,
	target Reloader,
	logger logging.Logger,
	delay time.Duration,
) (*FileWatcher, error) {
	if delay <= 0 {
		delay = DefaultCatalogDebounce
	}

	fw, err := NewFileWatcher(delay, logger)
	if err != nil {
		return nil, err
	}

	fw.AddFilter(NoGitFilter)
	fw.AddFilter(NoEditorTempFilter)
	fw.AddFilter(CatalogFilter)
	fw.AddHandler(func(events []ChangeEvent) error {
		if err := target.Reload(); err != nil {
			return err
		}
		fw.logger.Info(ctx, "Message catalogs reloaded", "dir", dir, "changes", len(events))

		return nil
	})

	if err := fw.AddRecursive(dir); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	return fw, nil
}
