// Package preference persists a visitor's resolved locale.
//
// Two independent stores hold the same value: a durable store keyed by an
// anonymous visitor id, and a plain cookie. Either may be missing, cleared or
// failing; reads degrade to "no preference" and writes never block or alter
// the resolution they record.
package preference

import (
	"context"
	"net/http"
	"time"
)

// Store reads and writes a locale preference for the client behind r.
type Store interface {
	// Name identifies the store in logs.
	Name() string
	// Load returns the stored code, or "" when there is none.
	Load(ctx context.Context, r *http.Request) (string, error)
	// Save records code. Implementations that need response headers must
	// write them before returning.
	Save(ctx context.Context, w http.ResponseWriter, r *http.Request, code string) error
}

// OneYear is the lifetime of preference cookies.
const OneYear = 365 * 24 * time.Hour

// CookieOptions are the attributes shared by every cookie folio sets.
type CookieOptions struct {
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
	Path     string
	Domain   string
}

// DefaultCookieOptions returns one-year, SameSite=Lax cookies. Secure is
// turned on for production.
func DefaultCookieOptions(production bool) CookieOptions {
	return CookieOptions{
		MaxAge:   OneYear,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	}
}

func (o CookieOptions) cookie(name, value string, httpOnly bool) *http.Cookie {
	maxAge := o.MaxAge
	if maxAge <= 0 {
		maxAge = OneYear
	}
	path := o.Path
	if path == "" {
		path = "/"
	}

	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   o.Domain,
		MaxAge:   int(maxAge / time.Second),
		Expires:  time.Now().Add(maxAge),
		Secure:   o.Secure,
		HttpOnly: httpOnly,
		SameSite: o.SameSite,
	}
}
