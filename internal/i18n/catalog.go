// Package i18n holds the UI message catalogs for every configured locale.
//
// Catalogs are TOML files named active.<code>.toml. A built-in set is
// embedded in the binary; files in an optional directory are loaded on top
// of it, so a deployment can override or extend single messages. Reload
// rebuilds the bundle and swaps it in atomically.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/locale"
)

//go:embed catalogs/*.toml
var builtin embed.FS

// Extension is the file extension of catalog files.
const Extension = ".toml"

// Options configures NewCatalog.
type Options struct {
	// Locales are the configured locales. The default locale's messages are
	// the fallback for every other locale.
	Locales *locale.Config
	// Dir is an optional directory of active.<code>.toml overrides.
	Dir string
}

type snapshot struct {
	bundle *goi18n.Bundle
	// ids lists the message ids defined for each language.
	ids map[string]map[string]struct{}
}

// Catalog localizes messages. It is safe for concurrent use.
type Catalog struct {
	opts    Options
	current atomic.Pointer[snapshot]
}

// NewCatalog loads the embedded catalogs and any overrides in opts.Dir.
func NewCatalog(opts Options) (*Catalog, error) {
	if opts.Locales == nil {
		opts.Locales = locale.DefaultConfig()
	}

	c := &Catalog{opts: opts}
	if err := c.Reload(); err != nil {
		return nil, err
	}

	return c, nil
}

// Dir returns the override directory, which may be empty.
func (c *Catalog) Dir() string {
	return c.opts.Dir
}

// Reload rebuilds the catalog from disk. On error the previous catalog stays
// in use.
func (c *Catalog) Reload() error {
	snap, err := c.load()
	if err != nil {
		return err
	}
	c.current.Store(snap)

	return nil
}

func (c *Catalog) load() (*snapshot, error) {
	bundle := goi18n.NewBundle(c.opts.Locales.Default().Tag())
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	snap := &snapshot{bundle: bundle, ids: make(map[string]map[string]struct{})}

	embedded, err := fs.Glob(builtin, "catalogs/*"+Extension)
	if err != nil {
		return nil, catalogError("catalogs", err)
	}
	for _, path := range embedded {
		mf, err := bundle.LoadMessageFileFS(builtin, path)
		if err != nil {
			return nil, catalogError(path, err)
		}
		snap.record(mf)
	}

	if c.opts.Dir == "" {
		return snap, nil
	}

	info, err := os.Stat(c.opts.Dir)
	if err != nil {
		return nil, catalogError(c.opts.Dir, err)
	}
	if !info.IsDir() {
		return nil, catalogError(c.opts.Dir, fmt.Errorf("not a directory"))
	}

	overrides, err := filepath.Glob(filepath.Join(c.opts.Dir, "*"+Extension))
	if err != nil {
		return nil, catalogError(c.opts.Dir, err)
	}
	sort.Strings(overrides)
	for _, path := range overrides {
		mf, err := bundle.LoadMessageFile(path)
		if err != nil {
			return nil, catalogError(path, err)
		}
		snap.record(mf)
	}

	return snap, nil
}

func (s *snapshot) record(mf *goi18n.MessageFile) {
	lang := mf.Tag.String()
	set, ok := s.ids[lang]
	if !ok {
		set = make(map[string]struct{}, len(mf.Messages))
		s.ids[lang] = set
	}
	for _, m := range mf.Messages {
		set[m.ID] = struct{}{}
	}
}

func catalogError(path string, err error) error {
	return errors.NewIOError(errors.ErrCodeCatalogLoad, "failed to load message catalog", err).
		WithContext("path", path).
		WithComponent("i18n")
}

// Localize returns message id in the given locale, falling back to the
// default locale and then to id itself.
func (c *Catalog) Localize(code locale.Code, id string, data map[string]interface{}) string {
	snap := c.current.Load()
	localizer := goi18n.NewLocalizer(snap.bundle, code.String())

	msg, err := localizer.Localize(&goi18n.LocalizeConfig{
		MessageID:    id,
		TemplateData: data,
	})
	if msg == "" && err != nil {
		return id
	}

	return msg
}

// Has reports whether id is defined for code itself, without fallback.
func (c *Catalog) Has(code locale.Code, id string) bool {
	_, ok := c.current.Load().ids[code.String()][id]
	return ok
}

// Missing returns, per configured locale, the ids defined for the default
// locale but absent from that locale. Locales with nothing missing are
// omitted.
func (c *Catalog) Missing() map[locale.Code][]string {
	snap := c.current.Load()
	def := c.opts.Locales.Default()
	reference := snap.ids[def.String()]

	out := make(map[locale.Code][]string)
	for _, code := range c.opts.Locales.Codes() {
		if code == def {
			continue
		}
		have := snap.ids[code.String()]
		var missing []string
		for id := range reference {
			if _, ok := have[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			out[code] = missing
		}
	}

	return out
}

// IsCatalogFile reports whether path names a catalog file.
func IsCatalogFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), Extension)
}
