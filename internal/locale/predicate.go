package locale

import (
	"path"
	"strings"
)

// Predicate reports whether a path is a non-page route (API, asset, health
// check) that must bypass locale resolution.
type Predicate func(path string) bool

// Never is a Predicate that bypasses nothing.
func Never(string) bool { return false }

// PrefixPredicate matches paths equal to a prefix or nested below it, on
// segment boundaries: "/api" matches "/api" and "/api/v1", not "/apis".
func PrefixPredicate(prefixes ...string) Predicate {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimRight(normalizePath(strings.TrimSpace(p)), "/")
		if p == "" {
			continue
		}
		cleaned = append(cleaned, p)
	}

	return func(p string) bool {
		p = normalizePath(p)
		for _, prefix := range cleaned {
			if p == prefix || strings.HasPrefix(p, prefix+"/") {
				return true
			}
		}

		return false
	}
}

// ExtensionPredicate matches paths whose last segment has one of exts, e.g.
// ".ico" or "xml". Matching is case-insensitive.
func ExtensionPredicate(exts ...string) Predicate {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}

	return func(p string) bool {
		if len(set) == 0 {
			return false
		}
		_, ok := set[strings.ToLower(path.Ext(p))]

		return ok
	}
}

// AnyPredicate matches when any of preds matches. Nil predicates are skipped.
func AnyPredicate(preds ...Predicate) Predicate {
	return func(p string) bool {
		for _, pred := range preds {
			if pred != nil && pred(p) {
				return true
			}
		}

		return false
	}
}
