package preference

import (
	"context"
	"errors"
	"net/http"
)

// DefaultCookieName is the cookie holding the locale preference.
const DefaultCookieName = "folio_locale"

// CookieStore keeps the preference in a cookie readable by page scripts.
type CookieStore struct {
	name string
	opts CookieOptions
}

// NewCookieStore creates a cookie store. An empty name uses
// DefaultCookieName.
func NewCookieStore(name string, opts CookieOptions) *CookieStore {
	if name == "" {
		name = DefaultCookieName
	}

	return &CookieStore{name: name, opts: opts}
}

// Name implements Store.
func (s *CookieStore) Name() string {
	return "cookie"
}

// CookieName returns the name of the preference cookie.
func (s *CookieStore) CookieName() string {
	return s.name
}

// Load implements Store. A missing cookie is not an error.
func (s *CookieStore) Load(_ context.Context, r *http.Request) (string, error) {
	c, err := r.Cookie(s.name)
	if errors.Is(err, http.ErrNoCookie) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return c.Value, nil
}

// Save implements Store.
func (s *CookieStore) Save(_ context.Context, w http.ResponseWriter, _ *http.Request, code string) error {
	if w == nil {
		return errors.New("cookie store: no response writer")
	}
	http.SetCookie(w, s.opts.cookie(s.name, code, false))

	return nil
}
