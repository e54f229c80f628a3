// Package locale implements locale resolution for a prefix-except-default
// multilingual site.
//
// The package is framework independent. A Config is built once from static
// configuration and is safe for concurrent use; Resolve is a pure function of
// a Config and a Request and returns a plain Result describing whether the
// caller should continue rendering or issue a temporary redirect. HTTP
// adapters live in the middleware package.
package locale

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Code identifies a supported language. The set of codes is closed: only
// codes present in the registry below can be configured.
type Code string

const (
	Arabic  Code = "ar"
	English Code = "en"
	Persian Code = "fa"
	Hebrew  Code = "he"
	Urdu    Code = "ur"
	French  Code = "fr"
	German  Code = "de"
	Spanish Code = "es"
	Turkish Code = "tr"
)

// Direction is the text flow of a locale.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// registry maps every known code to its intrinsic direction.
var registry = map[Code]Direction{
	Arabic:  RTL,
	English: LTR,
	Persian: RTL,
	Hebrew:  RTL,
	Urdu:    RTL,
	French:  LTR,
	German:  LTR,
	Spanish: LTR,
	Turkish: LTR,
}

// KnownCode reports whether s names a code in the registry. Matching is case
// insensitive and ignores surrounding whitespace.
func KnownCode(s string) (Code, bool) {
	c := Code(strings.ToLower(strings.TrimSpace(s)))
	_, ok := registry[c]

	return c, ok
}

// KnownCodes returns every registered code in a stable order.
func KnownCodes() []Code {
	return []Code{Arabic, English, Persian, Hebrew, Urdu, French, German, Spanish, Turkish}
}

// String returns the code as written in URLs.
func (c Code) String() string {
	return string(c)
}

// Tag returns the BCP 47 tag for the code.
func (c Code) Tag() language.Tag {
	tag, err := language.Parse(string(c))
	if err != nil {
		return language.Und
	}

	return tag
}

// NativeName returns the language's name written in the language itself,
// e.g. "العربية" for ar.
func (c Code) NativeName() string {
	tag := c.Tag()
	if tag == language.Und {
		return string(c)
	}
	if name := display.Self.Name(tag); name != "" {
		return name
	}

	return string(c)
}

// ParseDirection parses "ltr" or "rtl".
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case LTR:
		return LTR, true
	case RTL:
		return RTL, true
	default:
		return "", false
	}
}

// String returns the direction as used in the HTML dir attribute.
func (d Direction) String() string {
	return string(d)
}
