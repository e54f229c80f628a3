package preference

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	ferrors "github.com/conneroisu/folio/internal/errors"
)

// DefaultVisitorCookieName is the cookie holding the anonymous visitor id.
const DefaultVisitorCookieName = "folio_vid"

// ErrNotFound is returned by a KV when a key has no value.
var ErrNotFound = errors.New("preference: key not found")

// KV is the backend of a DurableStore.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// DurableStoreOptions configures a DurableStore.
type DurableStoreOptions struct {
	VisitorCookie string
	KeyPrefix     string
	TTL           time.Duration
	Cookie        CookieOptions
}

// DurableStore keeps the preference server side, keyed by a random visitor
// id carried in an HttpOnly cookie. It survives the locale cookie being
// cleared by client scripts.
type DurableStore struct {
	kv   KV
	opts DurableStoreOptions
}

// NewDurableStore wraps kv.
func NewDurableStore(kv KV, opts DurableStoreOptions) *DurableStore {
	if opts.VisitorCookie == "" {
		opts.VisitorCookie = DefaultVisitorCookieName
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "folio:locale:"
	}
	if opts.TTL <= 0 {
		opts.TTL = OneYear
	}

	return &DurableStore{kv: kv, opts: opts}
}

// Name implements Store.
func (s *DurableStore) Name() string {
	return "durable"
}

// visitorID returns the visitor id carried by r, if it is a valid uuid.
func (s *DurableStore) visitorID(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(s.opts.VisitorCookie)
	if err != nil {
		return "", false
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return "", false
	}

	return id.String(), true
}

func (s *DurableStore) key(visitor string) string {
	return s.opts.KeyPrefix + visitor
}

// Load implements Store. Visitors without an id have no preference.
func (s *DurableStore) Load(ctx context.Context, r *http.Request) (string, error) {
	visitor, ok := s.visitorID(r)
	if !ok {
		return "", nil
	}

	value, err := s.kv.Get(ctx, s.key(visitor))
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", ferrors.NewStoreError(ferrors.ErrCodeStoreRead, "durable preference read failed", err).
			WithComponent("preference")
	}

	return value, nil
}

// Prepare issues a visitor id cookie when r has none and returns the KV
// write, which may run after the response has been sent.
func (s *DurableStore) Prepare(w http.ResponseWriter, r *http.Request, code string) (func(context.Context) error, error) {
	visitor, ok := s.visitorID(r)
	if !ok {
		if w == nil {
			return nil, errors.New("durable store: no response writer for visitor cookie")
		}
		visitor = uuid.NewString()
		http.SetCookie(w, s.opts.Cookie.cookie(s.opts.VisitorCookie, visitor, true))
	}

	key := s.key(visitor)
	ttl := s.opts.TTL

	return func(ctx context.Context) error {
		if err := s.kv.Set(ctx, key, code, ttl); err != nil {
			return ferrors.NewStoreError(ferrors.ErrCodeStoreWrite, "durable preference write failed", err).
				WithComponent("preference")
		}

		return nil
	}, nil
}

// Save implements Store by running Prepare and the write inline.
func (s *DurableStore) Save(ctx context.Context, w http.ResponseWriter, r *http.Request, code string) error {
	commit, err := s.Prepare(w, r, code)
	if err != nil {
		return err
	}

	return commit(ctx)
}

// Close releases the KV backend.
func (s *DurableStore) Close() error {
	return s.kv.Close()
}
