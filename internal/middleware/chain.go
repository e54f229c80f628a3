package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/locale"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/preference"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// MiddlewareChain manages the HTTP middleware stack following the Chain of Responsibility pattern.
//
// Middleware Execution Order:
// - Middlewares execute in the order they were added (first added is outermost)
// - Request flows: Outer -> Middle -> Inner -> Handler
// - Response flows: Handler -> Inner -> Middle -> Outer
//
// Standard Middleware Stack (outer to inner):
// 1. Request id
// 2. Logging
// 3. Panic recovery
// 4. Security headers
// 5. Canonical default-locale redirect (optional)
// 6. Locale resolution
type MiddlewareChain struct {
	deps        MiddlewareDependencies
	middlewares []Middleware
}

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// MiddlewareDependencies contains all dependencies needed for middleware construction
type MiddlewareDependencies struct {
	Locales   *locale.Config
	Persister *preference.Persister
	Bypass    locale.Predicate
	Logger    logging.Logger
	// CanonicalDefault enables the /<default>/... redirect.
	CanonicalDefault bool
	// Production enables HSTS.
	Production bool
	// OnResolve is passed to the locale middleware.
	OnResolve func(*http.Request, locale.Result)
}

// NewMiddlewareChain creates a middleware chain with the standard stack.
//
// Panics if deps.Locales is nil.
func NewMiddlewareChain(deps MiddlewareDependencies) *MiddlewareChain {
	if deps.Locales == nil {
		panic("MiddlewareChain: locales cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}

	chain := &MiddlewareChain{
		deps:        deps,
		middlewares: make([]Middleware, 0, 6),
	}
	chain.buildDefaultStack()

	return chain
}

func (mc *MiddlewareChain) buildDefaultStack() {
	mc.AddMiddleware(RequestID)
	mc.AddMiddleware(Logging(mc.deps.Logger))
	mc.AddMiddleware(Recovery(mc.deps.Logger))
	mc.AddMiddleware(SecurityHeaders(mc.deps.Production))

	if mc.deps.CanonicalDefault {
		mc.AddMiddleware(CanonicalDefault(mc.deps.Locales, mc.deps.Persister))
	}

	loc := NewLocale(LocaleOptions{
		Config:    mc.deps.Locales,
		Persister: mc.deps.Persister,
		Bypass:    mc.deps.Bypass,
		Logger:    mc.deps.Logger,
		OnResolve: mc.deps.OnResolve,
	})
	mc.AddMiddleware(loc.Handler)
}

// AddMiddleware appends a middleware inside the existing ones.
func (mc *MiddlewareChain) AddMiddleware(middleware Middleware) {
	mc.middlewares = append(mc.middlewares, middleware)
}

// AddMiddlewareAt inserts a middleware at a specific position in the chain.
// An out of range index appends.
func (mc *MiddlewareChain) AddMiddlewareAt(index int, middleware Middleware) {
	if index < 0 || index >= len(mc.middlewares) {
		mc.middlewares = append(mc.middlewares, middleware)
		return
	}

	mc.middlewares = append(mc.middlewares, nil)
	copy(mc.middlewares[index+1:], mc.middlewares[index:])
	mc.middlewares[index] = middleware
}

// Apply wraps handler with every middleware, first added outermost.
//
// Panics if handler or any middleware is nil.
func (mc *MiddlewareChain) Apply(handler http.Handler) http.Handler {
	if handler == nil {
		panic("MiddlewareChain.Apply: handler cannot be nil")
	}

	wrapped := handler
	for i := len(mc.middlewares) - 1; i >= 0; i-- {
		middleware := mc.middlewares[i]
		if middleware == nil {
			panic(fmt.Sprintf("MiddlewareChain.Apply: middleware at index %d is nil", i))
		}

		wrapped = middleware(wrapped)
		if wrapped == nil {
			panic(fmt.Sprintf("MiddlewareChain.Apply: middleware at index %d returned nil handler", i))
		}
	}

	return wrapped
}

// GetMiddlewareCount returns the number of middlewares in the chain
func (mc *MiddlewareChain) GetMiddlewareCount() int {
	return len(mc.middlewares)
}

// Clone creates a copy of the middleware chain
func (mc *MiddlewareChain) Clone() *MiddlewareChain {
	clone := &MiddlewareChain{
		deps:        mc.deps,
		middlewares: make([]Middleware, len(mc.middlewares)),
	}
	copy(clone.middlewares, mc.middlewares)

	return clone
}

// RequestID propagates X-Request-ID, generating one when absent, and stores
// it in the request context for the logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n

	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Logging logs one line per request; 5xx at error, 4xx at warn.
func Logging(logger logging.Logger) Middleware {
	logger = logger.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rec.bytes,
				"duration", time.Since(start),
			}
			if loc := w.Header().Get("Location"); loc != "" {
				fields = append(fields, "location", loc)
			}

			switch {
			case status >= 500:
				logger.Error(r.Context(), nil, "request", fields...)
			case status >= 400:
				logger.Warn(r.Context(), nil, "request", fields...)
			default:
				logger.Info(r.Context(), "request", fields...)
			}
		})
	}
}

// Recovery turns a handler panic into a 500.
func Recovery(logger logging.Logger) Middleware {
	logger = logger.WithComponent("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := errors.NewInternalError(
					errors.ErrCodeInternal,
					fmt.Sprintf("handler panic: %v", rec),
					nil,
				).WithContext("path", r.URL.Path)
				logger.Error(r.Context(), err, "Recovered from panic", "stack", string(debug.Stack()))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets the baseline response headers. HSTS is only sent in
// production, where the site is served over TLS.
func SecurityHeaders(production bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", "default-src 'self'; object-src 'none'; frame-ancestors 'none'")
			if production {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
