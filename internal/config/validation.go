package config

import (
	"fmt"
	"strings"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/locale"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/validation"
)

var environments = map[string]bool{"development": true, "production": true, "test": true}

var logFormats = map[string]bool{"json": true, "text": true, "pretty": true}

// Validate checks every section and collects all problems instead of stopping
// at the first.
func Validate(cfg *Config) *errors.ValidationErrorCollection {
	errs := &errors.ValidationErrorCollection{}

	validateServer(&cfg.Server, errs)
	validateSite(&cfg.Site, errs)
	validateStore(&cfg.Store, errs)
	validateCatalog(&cfg.Catalog, errs)
	validateLog(&cfg.Log, errs)

	return errs
}

func validateServer(s *ServerConfig, errs *errors.ValidationErrorCollection) {
	if err := validation.ValidatePort(s.Port); err != nil {
		errs.AddField("server.port", s.Port, err.Error())
	}
	if err := validation.ValidateHost(s.Host); err != nil {
		errs.AddField("server.host", s.Host, err.Error())
	}
	if !environments[s.Environment] {
		errs.AddField("server.environment", s.Environment, "unknown environment",
			"use development, production or test")
	}
	if s.StaticDir != "" {
		if err := validation.ValidatePath(s.StaticDir); err != nil {
			errs.AddField("server.static_dir", s.StaticDir, err.Error())
		}
	}
}

func validateSite(s *SiteConfig, errs *errors.ValidationErrorCollection) {
	if len(s.Locales) == 0 {
		errs.AddField("site.locales", nil, "at least one locale must be configured")
	}

	seen := make(map[locale.Code]bool, len(s.Locales))
	for i, e := range s.Locales {
		field := fmt.Sprintf("site.locales[%d]", i)

		code, ok := locale.KnownCode(e.Code)
		if !ok {
			errs.AddField(field+".code", e.Code, "unknown locale code",
				"supported codes: "+joinCodes(locale.KnownCodes()))
			continue
		}
		if seen[code] {
			errs.AddField(field+".code", e.Code, "locale configured more than once")
		}
		seen[code] = true

		if strings.TrimSpace(e.Direction) != "" {
			if _, ok := locale.ParseDirection(e.Direction); !ok {
				errs.AddField(field+".direction", e.Direction, "direction must be ltr or rtl")
			}
		}
	}

	if def, ok := locale.KnownCode(s.Default); !ok || !seen[def] {
		errs.AddField("site.default", s.Default, "default locale must be one of the configured locales")
	}

	for field, name := range map[string]string{
		"site.cookie_name":         s.CookieName,
		"site.visitor_cookie_name": s.VisitorCookieName,
	} {
		if !validCookieName(name) {
			errs.AddField(field, name, "invalid cookie name")
		}
	}
	if s.CookieName != "" && s.CookieName == s.VisitorCookieName {
		errs.AddField("site.visitor_cookie_name", s.VisitorCookieName,
			"visitor cookie must differ from the locale cookie")
	}

	for i, p := range s.Bypass.Prefixes {
		if err := validation.ValidatePrefix(p); err != nil {
			errs.AddField(fmt.Sprintf("site.bypass.prefixes[%d]", i), p, err.Error())
		}
	}
	for i, ext := range s.Bypass.Extensions {
		if strings.Trim(ext, ".") == "" || strings.ContainsAny(ext, "/ ") {
			errs.AddField(fmt.Sprintf("site.bypass.extensions[%d]", i), ext, "invalid file extension")
		}
	}
}

func validateStore(s *StoreConfig, errs *errors.ValidationErrorCollection) {
	switch s.Backend {
	case BackendMemory:
	case BackendRedis:
		if err := validation.ValidateAddress(s.RedisAddr); err != nil {
			errs.AddField("store.redis_addr", s.RedisAddr, err.Error())
		}
		if s.RedisDB < 0 {
			errs.AddField("store.redis_db", s.RedisDB, "database index cannot be negative")
		}
	default:
		errs.AddField("store.backend", s.Backend, "unknown store backend", "use memory or redis")
	}

	if s.TTL <= 0 {
		errs.AddField("store.ttl", s.TTL, "ttl must be positive")
	}
	if s.ReadTimeout <= 0 {
		errs.AddField("store.read_timeout", s.ReadTimeout, "read timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		errs.AddField("store.write_timeout", s.WriteTimeout, "write timeout must be positive")
	}
	if s.KeyPrefix == "" {
		errs.AddField("store.key_prefix", s.KeyPrefix, "key prefix cannot be empty")
	}
}

func validateCatalog(c *CatalogConfig, errs *errors.ValidationErrorCollection) {
	if c.Dir != "" {
		if err := validation.ValidatePath(c.Dir); err != nil {
			errs.AddField("catalog.dir", c.Dir, err.Error())
		}
	}
	if c.Watch && c.Dir == "" {
		errs.AddField("catalog.watch", c.Watch, "watching requires catalog.dir")
	}
}

func validateLog(l *LogConfig, errs *errors.ValidationErrorCollection) {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		errs.AddField("log.level", l.Level, err.Error())
	}
	if !logFormats[l.Format] {
		errs.AddField("log.format", l.Format, "unknown log format", "use json, text or pretty")
	}
}

// Warnings returns advice about settings that are valid but probably wrong.
func Warnings(cfg *Config) []string {
	var out []string

	if cfg.IsProduction() && cfg.Store.Backend == BackendMemory {
		out = append(out, "store.backend is memory in production: durable preferences are lost on restart")
	}
	if cfg.IsProduction() && cfg.Catalog.Watch {
		out = append(out, "catalog.watch is enabled in production")
	}
	if !cfg.Site.CanonicalDefault {
		out = append(out, "site.canonical_default is off: /"+cfg.Site.Default+"/... and /... serve the same page")
	}

	return out
}

func validCookieName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune("()<>@,;:\\\"/[]?={}", r) {
			return false
		}
	}

	return true
}

func joinCodes(codes []locale.Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = c.String()
	}

	return strings.Join(parts, ", ")
}
