// Package config provides configuration management for folio using Viper for
// flexible configuration loading from files, environment variables, and
// command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with the FOLIO_ prefix, and validation. The locale table is
// validated and compiled once at load time, so an unknown locale code or
// direction stops the process before it serves a request.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/locale"
	"github.com/conneroisu/folio/internal/preference"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Site    SiteConfig    `yaml:"site" mapstructure:"site"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`

	locales *locale.Config
}

type ServerConfig struct {
	Host        string `yaml:"host" mapstructure:"host"`
	Port        int    `yaml:"port" mapstructure:"port"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	StaticDir   string `yaml:"static_dir" mapstructure:"static_dir"`
}

type SiteConfig struct {
	Locales           []locale.Entry `yaml:"locales" mapstructure:"locales"`
	Default           string         `yaml:"default" mapstructure:"default"`
	CookieName        string         `yaml:"cookie_name" mapstructure:"cookie_name"`
	VisitorCookieName string         `yaml:"visitor_cookie_name" mapstructure:"visitor_cookie_name"`
	CanonicalDefault  bool           `yaml:"canonical_default" mapstructure:"canonical_default"`
	Bypass            BypassConfig   `yaml:"bypass" mapstructure:"bypass"`
}

type BypassConfig struct {
	Prefixes   []string `yaml:"prefixes" mapstructure:"prefixes"`
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
}

type StoreConfig struct {
	Backend       string        `yaml:"backend" mapstructure:"backend"`
	RedisAddr     string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string        `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int           `yaml:"redis_db" mapstructure:"redis_db"`
	KeyPrefix     string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL           time.Duration `yaml:"ttl" mapstructure:"ttl"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

type CatalogConfig struct {
	Dir   string `yaml:"dir" mapstructure:"dir"`
	Watch bool   `yaml:"watch" mapstructure:"watch"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SetDefaults registers every key with its default. Registering keys also
// lets AutomaticEnv overrides reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.static_dir", "")

	entries := make([]map[string]interface{}, 0, 2)
	for _, e := range locale.DefaultEntries() {
		entries = append(entries, map[string]interface{}{"code": e.Code, "direction": e.Direction})
	}
	v.SetDefault("site.locales", entries)
	v.SetDefault("site.default", locale.Arabic.String())
	v.SetDefault("site.cookie_name", preference.DefaultCookieName)
	v.SetDefault("site.visitor_cookie_name", preference.DefaultVisitorCookieName)
	v.SetDefault("site.canonical_default", true)
	v.SetDefault("site.bypass.prefixes", []string{"/api", "/static", "/healthz", "/_folio"})
	v.SetDefault("site.bypass.extensions", []string{
		".css", ".js", ".map", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
		".ico", ".woff", ".woff2", ".txt", ".xml", ".json",
	})

	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.key_prefix", "folio:locale:")
	v.SetDefault("store.ttl", preference.OneYear)
	v.SetDefault("store.read_timeout", preference.DefaultReadTimeout)
	v.SetDefault("store.write_timeout", 2*time.Second)

	v.SetDefault("catalog.dir", "")
	v.SetDefault("catalog.watch", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, normalizes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Viper leaves comma separated env values as a single element.
	cfg.Site.Bypass.Prefixes = splitList(cfg.Site.Bypass.Prefixes)
	cfg.Site.Bypass.Extensions = splitList(cfg.Site.Bypass.Extensions)

	cfg.Server.Environment = strings.ToLower(strings.TrimSpace(cfg.Server.Environment))
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if cfg.Log.Format == "" {
		cfg.Log.Format = "pretty"
		if cfg.IsProduction() {
			cfg.Log.Format = "json"
		}
	}

	if errs := Validate(&cfg); errs.HasErrors() {
		return nil, errs.ToFolioError()
	}

	locales, err := locale.NewConfig(cfg.Site.Locales, cfg.Site.Default)
	if err != nil {
		return nil, err
	}
	cfg.locales = locales

	return &cfg, nil
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

// Locales returns the compiled locale table.
func (c *Config) Locales() *locale.Config {
	if c.locales == nil {
		c.locales = locale.MustConfig(c.Site.Locales, c.Site.Default)
	}

	return c.locales
}

// Bypass returns the predicate for paths the locale middleware skips.
func (c *Config) Bypass() locale.Predicate {
	return locale.AnyPredicate(
		locale.PrefixPredicate(c.Site.Bypass.Prefixes...),
		locale.ExtensionPredicate(c.Site.Bypass.Extensions...),
	)
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// CookieOptions returns the attributes for preference cookies.
func (c *Config) CookieOptions() preference.CookieOptions {
	return preference.DefaultCookieOptions(c.IsProduction())
}
