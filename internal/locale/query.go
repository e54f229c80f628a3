package locale

import (
	"net/url"
	"strings"
)

// QueryParam is one key/value pair of a query string. Repeated keys are kept
// as separate params in their original order, which url.Values cannot do.
type QueryParam struct {
	Key   string
	Value string
	// Bare marks a key written without '=' (as in "?draft").
	Bare bool
}

// ParseQuery splits a raw query string (without the leading '?') into
// ordered params. Undecodable escapes are kept verbatim rather than dropped.
func ParseQuery(raw string) []QueryParam {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return nil
	}

	params := make([]QueryParam, 0, strings.Count(raw, "&")+1)
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}

		key, value, hasValue := strings.Cut(part, "=")
		params = append(params, QueryParam{
			Key:   unescapeQuery(key),
			Value: unescapeQuery(value),
			Bare:  !hasValue,
		})
	}

	return params
}

func unescapeQuery(s string) string {
	out, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}

	return out
}

// EncodeQuery is the inverse of ParseQuery.
func EncodeQuery(params []QueryParam) string {
	if len(params) == 0 {
		return ""
	}

	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		if p.Bare && p.Value == "" {
			continue
		}
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}

	return b.String()
}

// BuildURL joins a path, ordered query params and a fragment (without '#')
// into a relative URL.
func BuildURL(path string, query []QueryParam, fragment string) string {
	var b strings.Builder
	b.WriteString(path)

	if q := EncodeQuery(query); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}

	if fragment = strings.TrimPrefix(fragment, "#"); fragment != "" {
		b.WriteByte('#')
		b.WriteString(fragment)
	}

	return b.String()
}
