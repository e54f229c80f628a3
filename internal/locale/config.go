package locale

import (
	"fmt"
	"strings"

	ferrors "github.com/conneroisu/folio/internal/errors"
)

// Entry is one configured locale as it appears in static configuration.
// An empty Direction means the registry direction for the code.
type Entry struct {
	Code      string `yaml:"code" mapstructure:"code"`
	Direction string `yaml:"direction" mapstructure:"direction"`
}

// Config is the process-wide locale table. It is read-only after NewConfig
// returns.
type Config struct {
	codes      []Code
	members    map[Code]struct{}
	directions map[Code]Direction
	def        Code
}

// NewConfig validates entries and builds a Config. Unknown codes, duplicate
// codes, invalid directions and a default outside the configured set are all
// rejected here so that request-time code never sees them.
func NewConfig(entries []Entry, defaultCode string) (*Config, error) {
	if len(entries) == 0 {
		return nil, ferrors.NewConfigError(ferrors.ErrCodeNoLocales, "at least one locale must be configured")
	}

	cfg := &Config{
		codes:      make([]Code, 0, len(entries)),
		members:    make(map[Code]struct{}, len(entries)),
		directions: make(map[Code]Direction, len(entries)),
	}

	for _, e := range entries {
		code, ok := KnownCode(e.Code)
		if !ok {
			return nil, ferrors.ErrUnknownLocale(e.Code)
		}
		if _, dup := cfg.members[code]; dup {
			return nil, ferrors.NewConfigError(ferrors.ErrCodeDuplicateLocale,
				fmt.Sprintf("locale %q configured more than once", code)).
				WithContext("code", code.String())
		}

		dir := registry[code]
		if strings.TrimSpace(e.Direction) != "" {
			parsed, ok := ParseDirection(e.Direction)
			if !ok {
				return nil, ferrors.NewConfigError(ferrors.ErrCodeDirection,
					fmt.Sprintf("locale %q has invalid direction %q (want ltr or rtl)", code, e.Direction)).
					WithContext("code", code.String())
			}
			dir = parsed
		}

		cfg.codes = append(cfg.codes, code)
		cfg.members[code] = struct{}{}
		cfg.directions[code] = dir
	}

	def, ok := cfg.Lookup(defaultCode)
	if !ok {
		return nil, ferrors.NewConfigError(ferrors.ErrCodeDefaultLocale,
			fmt.Sprintf("default locale %q is not one of the configured locales", defaultCode)).
			WithContext("default", defaultCode)
	}
	cfg.def = def

	return cfg, nil
}

// MustConfig is like NewConfig but panics on error. Intended for tests and
// package-level defaults.
func MustConfig(entries []Entry, defaultCode string) *Config {
	cfg, err := NewConfig(entries, defaultCode)
	if err != nil {
		panic(err)
	}

	return cfg
}

// DefaultEntries is the stock Arabic/English table.
func DefaultEntries() []Entry {
	return []Entry{
		{Code: Arabic.String(), Direction: RTL.String()},
		{Code: English.String(), Direction: LTR.String()},
	}
}

// DefaultConfig returns the Arabic-default, English-secondary configuration.
func DefaultConfig() *Config {
	return MustConfig(DefaultEntries(), Arabic.String())
}

// Codes returns the configured codes in configuration order.
func (c *Config) Codes() []Code {
	out := make([]Code, len(c.codes))
	copy(out, c.codes)

	return out
}

// Default returns the default locale, which is served without a URL prefix.
func (c *Config) Default() Code {
	return c.def
}

// Contains reports whether code is configured.
func (c *Config) Contains(code Code) bool {
	_, ok := c.members[code]

	return ok
}

// Lookup maps s to a configured code, case-insensitively. Codes that exist
// in the registry but are not configured are not found.
func (c *Config) Lookup(s string) (Code, bool) {
	code := Code(strings.ToLower(strings.TrimSpace(s)))
	if !c.Contains(code) {
		return "", false
	}

	return code, true
}

// DirectionOf returns the direction of a configured code. For anything else
// it falls back to the registry, then to LTR.
func (c *Config) DirectionOf(code Code) Direction {
	if dir, ok := c.directions[code]; ok {
		return dir
	}
	if dir, ok := registry[code]; ok {
		return dir
	}

	return LTR
}

// Entries returns the table in the form accepted by NewConfig.
func (c *Config) Entries() []Entry {
	out := make([]Entry, 0, len(c.codes))
	for _, code := range c.codes {
		out = append(out, Entry{Code: code.String(), Direction: c.directions[code].String()})
	}

	return out
}
