package preference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/folio/internal/logging"
)

// Deferrable is implemented by stores whose slow half can finish after the
// response. Prepare must do everything that touches w; the returned commit
// runs in the background.
type Deferrable interface {
	Store
	Prepare(w http.ResponseWriter, r *http.Request, code string) (func(context.Context) error, error)
}

// Stats counts persistence outcomes since the Persister was created.
type Stats struct {
	Writes   int64 `json:"writes"`
	Failures int64 `json:"failures"`
}

// DefaultReadTimeout bounds a single store read during resolution.
const DefaultReadTimeout = 100 * time.Millisecond

// Persister reads a preference from, and writes it to, a list of stores.
// Every store is independent: a failure or panic in one is logged and
// counted, and the others still run.
type Persister struct {
	stores       []Store
	logger       logging.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration
	async        bool

	wg       sync.WaitGroup
	writes   atomic.Int64
	failures atomic.Int64
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithLogger sets the logger used for store failures.
func WithLogger(logger logging.Logger) PersisterOption {
	return func(p *Persister) {
		p.logger = logger
	}
}

// WithReadTimeout bounds each store read made by Load. A read still
// pending at the deadline counts as an absent preference.
func WithReadTimeout(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d > 0 {
			p.readTimeout = d
		}
	}
}

// WithWriteTimeout bounds each background write.
func WithWriteTimeout(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d > 0 {
			p.writeTimeout = d
		}
	}
}

// WithSynchronousWrites runs deferrable writes inline. Used by the CLI and
// by tests that assert on store contents.
func WithSynchronousWrites() PersisterOption {
	return func(p *Persister) {
		p.async = false
	}
}

// NewPersister creates a Persister over stores, consulted in order on Load.
func NewPersister(stores []Store, opts ...PersisterOption) *Persister {
	p := &Persister{
		stores:       stores,
		logger:       logging.Nop(),
		readTimeout:  DefaultReadTimeout,
		writeTimeout: 2 * time.Second,
		async:        true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("preference")

	return p
}

// Load returns the first value accepted by valid, reading stores in order.
// Read errors, reads slower than the read timeout and rejected values count
// as absent. valid may be nil.
func (p *Persister) Load(ctx context.Context, r *http.Request, valid func(string) bool) string {
	for _, store := range p.stores {
		value, err := p.load(ctx, store, r)
		if err != nil {
			p.logger.Debug(ctx, "Preference read failed", "store", store.Name(), "error", err.Error())
			continue
		}
		if value == "" {
			continue
		}
		if valid != nil && !valid(value) {
			continue
		}

		return value
	}

	return ""
}

func (p *Persister) load(ctx context.Context, store Store, r *http.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.readTimeout)
	defer cancel()

	return safeLoad(ctx, store, r)
}

// Persist writes code to every store. Synchronous failures are returned
// joined for callers that care; background failures are only logged. In
// both cases every store is attempted.
func (p *Persister) Persist(ctx context.Context, w http.ResponseWriter, r *http.Request, code string) error {
	var errs []error

	for _, store := range p.stores {
		if d, ok := store.(Deferrable); ok && p.async {
			commit, err := safePrepare(d, w, r, code)
			if err != nil {
				p.fail(ctx, store, err)
				errs = append(errs, err)
				continue
			}
			p.runDetached(ctx, store, commit)
			continue
		}

		if err := safeSave(ctx, store, w, r, code); err != nil {
			p.fail(ctx, store, err)
			errs = append(errs, err)
			continue
		}
		p.writes.Add(1)
	}

	return errors.Join(errs...)
}

// runDetached runs commit after the request: it outlives the request context
// but not the write timeout.
func (p *Persister) runDetached(ctx context.Context, store Store, commit func(context.Context) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.writeTimeout)
		defer cancel()

		if err := safeCommit(wctx, commit); err != nil {
			p.fail(wctx, store, err)
			return
		}
		p.writes.Add(1)
	}()
}

// Wait blocks until background writes finish.
func (p *Persister) Wait() {
	p.wg.Wait()
}

// Stats returns the write counters.
func (p *Persister) Stats() Stats {
	return Stats{Writes: p.writes.Load(), Failures: p.failures.Load()}
}

// Stores returns the configured stores in load order.
func (p *Persister) Stores() []Store {
	out := make([]Store, len(p.stores))
	copy(out, p.stores)

	return out
}

func (p *Persister) fail(ctx context.Context, store Store, err error) {
	p.failures.Add(1)
	p.logger.Warn(ctx, err, "Preference write failed", "store", store.Name())
}

func safeLoad(ctx context.Context, store Store, r *http.Request) (value string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s store panicked: %v", store.Name(), rec)
		}
	}()

	return store.Load(ctx, r)
}

func safeSave(ctx context.Context, store Store, w http.ResponseWriter, r *http.Request, code string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s store panicked: %v", store.Name(), rec)
		}
	}()

	return store.Save(ctx, w, r, code)
}

func safePrepare(d Deferrable, w http.ResponseWriter, r *http.Request, code string) (commit func(context.Context) error, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s store panicked: %v", d.Name(), rec)
		}
	}()

	return d.Prepare(w, r, code)
}

func safeCommit(ctx context.Context, commit func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("background write panicked: %v", rec)
		}
	}()

	return commit(ctx)
}
