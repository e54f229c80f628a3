package middleware

import (
	"context"
	"net/http"

	"github.com/conneroisu/folio/internal/locale"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/preference"
)

// Info is the locale state made available to handlers.
type Info struct {
	Code      locale.Code
	Direction locale.Direction
	Source    locale.Source
}

type localeKey struct{}

// WithLocale returns a copy of ctx carrying info.
func WithLocale(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, localeKey{}, info)
}

// FromContext returns the locale set by the locale middleware.
func FromContext(ctx context.Context) (Info, bool) {
	info, ok := ctx.Value(localeKey{}).(Info)
	return info, ok
}

// LocaleOptions configures NewLocale.
type LocaleOptions struct {
	Config    *locale.Config
	Persister *preference.Persister
	// Bypass classifies non-page paths. Nil bypasses nothing.
	Bypass locale.Predicate
	Logger logging.Logger
	// OnResolve observes every non-bypassed result. Optional.
	OnResolve func(*http.Request, locale.Result)
}

// Locale adapts locale.Resolve to net/http.
type Locale struct {
	cfg       *locale.Config
	persister *preference.Persister
	bypass    locale.Predicate
	logger    logging.Logger
	onResolve func(*http.Request, locale.Result)
}

// NewLocale creates the locale adapter.
//
// Panics if opts.Config is nil.
func NewLocale(opts LocaleOptions) *Locale {
	if opts.Config == nil {
		panic("Locale: config cannot be nil")
	}
	if opts.Persister == nil {
		opts.Persister = preference.NewPersister(nil)
	}
	if opts.Bypass == nil {
		opts.Bypass = locale.Never
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	return &Locale{
		cfg:       opts.Config,
		persister: opts.Persister,
		bypass:    opts.Bypass,
		logger:    opts.Logger.WithComponent("locale"),
		onResolve: opts.OnResolve,
	}
}

// Request builds the resolver input for r.
func (l *Locale) Request(r *http.Request) locale.Request {
	stored := l.persister.Load(r.Context(), r, func(v string) bool {
		_, ok := l.cfg.Lookup(v)
		return ok
	})
	current, _ := l.cfg.Lookup(stored)
	path := r.URL.EscapedPath()

	return locale.Request{
		Path:             path,
		Query:            locale.ParseQuery(r.URL.RawQuery),
		Stored:           stored,
		BrowserLanguages: locale.ParseAcceptLanguage(r.Header.Get("Accept-Language")),
		Current:          current,
		Bypass:           l.bypass(path),
	}
}

// Handler resolves the locale of every request. Redirects end the request;
// otherwise next runs with the locale in the request context.
func (l *Locale) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := l.Request(r)
		res := locale.Resolve(l.cfg, req)

		if req.Bypass {
			next.ServeHTTP(w, r)
			return
		}
		if l.onResolve != nil {
			l.onResolve(r, res)
		}

		if res.Persist {
			// The result stands whatever the stores do.
			_ = l.persister.Persist(r.Context(), w, r, res.Active.String())
		}

		h := w.Header()
		h.Add("Vary", "Accept-Language")
		h.Add("Vary", "Cookie")

		if res.Action == locale.Redirect {
			l.logger.Debug(r.Context(), "Locale redirect",
				"from", r.URL.RequestURI(),
				"to", res.Target,
				"source", res.Source.String(),
			)
			http.Redirect(w, r, res.Target, res.StatusCode())
			return
		}

		h.Set("Content-Language", res.Active.String())

		ctx := WithLocale(r.Context(), Info{
			Code:      res.Active,
			Direction: l.cfg.DirectionOf(res.Active),
			Source:    res.Source,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CanonicalDefault permanently redirects /<default>/... to the unprefixed
// URL, keeping the query. The default locale is persisted first so an
// explicit switch to it is remembered. persister may be nil.
func CanonicalDefault(cfg *locale.Config, persister *preference.Persister) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rest, code, ok := cfg.StripLocale(r.URL.EscapedPath())
			if !ok || code != cfg.Default() {
				next.ServeHTTP(w, r)
				return
			}

			if persister != nil {
				_ = persister.Persist(r.Context(), w, r, code.String())
			}

			target := locale.BuildURL(rest, locale.ParseQuery(r.URL.RawQuery), "")
			// The redirect depends on the persisted preference, so it must not
			// be replayed from a cache.
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, target, http.StatusMovedPermanently)
		})
	}
}
