package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// maxAcceptLanguageLength bounds the header we are willing to parse.
const maxAcceptLanguageLength = 4096

// ParseAcceptLanguage turns an Accept-Language header into language tags
// ordered by preference. Tags with q=0 are dropped. A header that
// golang.org/x/text rejects is split by hand instead, so one bad entry never
// discards the whole list.
func ParseAcceptLanguage(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if len(header) > maxAcceptLanguageLength {
		header = header[:maxAcceptLanguageLength]
	}

	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return splitAcceptLanguage(header)
	}

	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag == language.Und {
			continue
		}
		out = append(out, tag.String())
	}

	return out
}

// splitAcceptLanguage keeps header order and skips empty or wildcard items.
func splitAcceptLanguage(header string) []string {
	var out []string
	for _, part := range strings.Split(header, ",") {
		tag, params, _ := strings.Cut(part, ";")
		tag = strings.TrimSpace(tag)
		if tag == "" || tag == "*" {
			continue
		}
		if q := strings.TrimSpace(params); q == "q=0" || q == "q=0.0" || q == "q=0.00" || q == "q=0.000" {
			continue
		}
		out = append(out, tag)
	}

	return out
}
