package locale

import "strings"

// normalizePath guarantees a leading slash.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}

	return p
}

// FirstSegment returns the first path segment of p, or "" for the root.
func FirstSegment(p string) string {
	p = strings.TrimPrefix(normalizePath(p), "/")
	seg, _, _ := strings.Cut(p, "/")

	return seg
}

// PathLocale returns the configured locale carried in the first segment of
// p. Matching is exact: "/EN/about" is not treated as locale-prefixed.
func (c *Config) PathLocale(p string) (Code, bool) {
	seg := FirstSegment(p)
	if seg == "" {
		return "", false
	}

	code := Code(seg)
	if !c.Contains(code) {
		return "", false
	}

	return code, true
}

// PrefixPath prepends "/code" to p. The root path becomes "/code".
func PrefixPath(code Code, p string) string {
	p = normalizePath(p)
	if p == "/" {
		return "/" + code.String()
	}

	return "/" + code.String() + p
}

// StripLocale removes a configured locale prefix from p and returns the
// remaining path (always starting with '/').
func (c *Config) StripLocale(p string) (string, Code, bool) {
	p = normalizePath(p)

	code, ok := c.PathLocale(p)
	if !ok {
		return p, "", false
	}

	rest := strings.TrimPrefix(p, "/"+code.String())
	if rest == "" {
		rest = "/"
	}

	return rest, code, true
}

// LocalizedPath returns the canonical path of page p in locale code under
// the prefix-except-default strategy. Any locale prefix already on p is
// replaced.
func (c *Config) LocalizedPath(code Code, p string) string {
	rest, _, _ := c.StripLocale(p)
	if code == c.def || !c.Contains(code) {
		return rest
	}

	return PrefixPath(code, rest)
}
