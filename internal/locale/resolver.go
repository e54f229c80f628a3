package locale

import (
	"net/http"
	"strings"
)

// Action tells the routing layer what to do with a request.
type Action int

const (
	// Continue renders the request in the resolved locale.
	Continue Action = iota
	// Redirect sends the client to Result.Target with a temporary redirect.
	Redirect
)

// String returns the string representation of the Action.
func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// MarshalText lets results render readably in JSON and YAML.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Source records which precedence tier produced the active locale.
type Source int

const (
	SourceBypass Source = iota
	SourcePath
	SourceStored
	SourceBrowser
	SourceDefault
)

// String returns the string representation of the Source.
func (s Source) String() string {
	switch s {
	case SourceBypass:
		return "bypass"
	case SourcePath:
		return "path"
	case SourceStored:
		return "stored"
	case SourceBrowser:
		return "browser"
	case SourceDefault:
		return "default"
	default:
		return "unknown"
	}
}

// MarshalText lets results render readably in JSON and YAML.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// RedirectStatus is the only status used for locale redirects. Redirect
// targets depend on per-client state, so intermediaries must never cache
// them as permanent.
const RedirectStatus = http.StatusFound

// Request carries everything Resolve needs for one navigation.
type Request struct {
	// Path is the escaped request path, as sent on the wire. It is copied
	// into redirect targets verbatim, so a decoded path would turn "%3F" or
	// "%23" into a query or fragment. An empty path is treated as "/".
	Path string
	// Query holds the query params in their original order.
	Query []QueryParam
	// Fragment is the escaped URL fragment without '#'. HTTP requests never
	// carry one; client-side callers may.
	Fragment string
	// Stored is the previously persisted preference, possibly stale.
	Stored string
	// BrowserLanguages lists client language tags, most preferred first.
	BrowserLanguages []string
	// Current is the locale the caller currently considers active, if any.
	Current Code
	// Bypass is set when the router classifies the path as a non-page route.
	Bypass bool
}

// Result is the outcome of Resolve.
type Result struct {
	Active  Code   `json:"active" yaml:"active"`
	Action  Action `json:"action" yaml:"action"`
	Target  string `json:"target,omitempty" yaml:"target,omitempty"`
	Persist bool   `json:"persist" yaml:"persist"`
	Source  Source `json:"source" yaml:"source"`
}

// StatusCode returns RedirectStatus for redirects and 0 otherwise.
func (r Result) StatusCode() int {
	if r.Action == Redirect {
		return RedirectStatus
	}

	return 0
}

// Resolve determines the active locale for req and whether the client must
// be redirected to a locale-prefixed URL.
//
// Precedence: bypassed paths are left untouched; a configured locale in the
// first path segment is authoritative; otherwise the stored preference, then
// the browser languages, then the default locale. A detected locale is always
// persisted. Only non-default locales are prefixed, so a detected default
// never redirects.
//
// Resolve never fails. Unknown stored codes and malformed language tags fall
// through to the next tier.
func Resolve(cfg *Config, req Request) Result {
	if req.Bypass {
		return Result{Active: req.Current, Action: Continue, Source: SourceBypass}
	}

	path := normalizePath(req.Path)

	if code, ok := cfg.PathLocale(path); ok {
		return Result{
			Active:  code,
			Action:  Continue,
			Persist: code != req.Current,
			Source:  SourcePath,
		}
	}

	target, source := cfg.Detect(req.Stored, req.BrowserLanguages)
	res := Result{Active: target, Action: Continue, Persist: true, Source: source}

	if target == cfg.Default() {
		return res
	}

	current := BuildURL(path, req.Query, req.Fragment)
	redirect := BuildURL(PrefixPath(target, path), req.Query, req.Fragment)
	if redirect == current {
		return res
	}

	res.Action = Redirect
	res.Target = redirect

	return res
}

// Detect picks a locale for a request whose path carries none: a valid
// stored preference, else the first browser language that matches, else the
// default.
func (c *Config) Detect(stored string, browser []string) (Code, Source) {
	if code, ok := c.Lookup(stored); ok {
		return code, SourceStored
	}

	if code, ok := c.MatchBrowser(browser); ok {
		return code, SourceBrowser
	}

	return c.def, SourceDefault
}

// MatchBrowser walks tags in order. Each tag is tried as an exact code and
// then by its primary subtag; the first hit wins.
func (c *Config) MatchBrowser(tags []string) (Code, bool) {
	for _, raw := range tags {
		tag := cleanTag(raw)
		if tag == "" {
			continue
		}

		if code, ok := c.Lookup(tag); ok {
			return code, true
		}

		if primary, _, found := strings.Cut(tag, "-"); found {
			if code, ok := c.Lookup(primary); ok {
				return code, true
			}
		}
	}

	return "", false
}

// cleanTag drops any ";q=" weight, whitespace and case, and accepts POSIX
// style underscores as subtag separators.
func cleanTag(raw string) string {
	tag, _, _ := strings.Cut(raw, ";")
	tag = strings.ToLower(strings.TrimSpace(tag))

	return strings.ReplaceAll(tag, "_", "-")
}
