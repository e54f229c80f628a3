package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/locale"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return v
}

func loadYAML(t *testing.T, body string) (*Config, error) {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".folio.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	return LoadFrom(v)
}

func validationFields(t *testing.T, err error) string {
	t.Helper()

	var fe *errors.FolioError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, errors.ErrCodeValidationFailed, fe.Code)

	return fe.Message
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(newViper())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost:8080", cfg.Addr())
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "pretty", cfg.Log.Format)

	locales := cfg.Locales()
	assert.Equal(t, []locale.Code{locale.Arabic, locale.English}, locales.Codes())
	assert.Equal(t, locale.Arabic, locales.Default())
	assert.Equal(t, locale.RTL, locales.DirectionOf(locale.Arabic))

	assert.True(t, cfg.Site.CanonicalDefault)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 365*24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Store.ReadTimeout)
	assert.Equal(t, 2*time.Second, cfg.Store.WriteTimeout)

	bypass := cfg.Bypass()
	assert.True(t, bypass("/api/locales"))
	assert.True(t, bypass("/favicon.ico"))
	assert.False(t, bypass("/about"))
	assert.False(t, bypass("/apiary"))

	assert.Empty(t, Warnings(cfg))
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := loadYAML(t, `
server:
  host: 0.0.0.0
  port: 3000
  environment: Production
site:
  default: en
  locales:
    - code: en
    - code: ar
      direction: rtl
    - code: fr
  bypass:
    prefixes: [/assets]
    extensions: [pdf]
store:
  backend: redis
  redis_addr: cache:6379
  ttl: 720h
log:
  level: debug
`)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	assert.Equal(t, []locale.Code{locale.English, locale.Arabic, locale.French}, cfg.Locales().Codes())
	assert.Equal(t, locale.English, cfg.Locales().Default())
	assert.Equal(t, 720*time.Hour, cfg.Store.TTL)
	assert.True(t, cfg.CookieOptions().Secure)

	bypass := cfg.Bypass()
	assert.True(t, bypass("/assets/app.css"))
	assert.True(t, bypass("/docs/guide.PDF"))
	assert.False(t, bypass("/api/locales"), "file prefixes replace the defaults")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FOLIO_SERVER_PORT", "9090")
	t.Setenv("FOLIO_SITE_DEFAULT", "en")
	t.Setenv("FOLIO_SITE_CANONICAL_DEFAULT", "false")
	t.Setenv("FOLIO_SITE_BYPASS_PREFIXES", "/api, /feeds")
	t.Setenv("FOLIO_STORE_WRITE_TIMEOUT", "500ms")

	cfg, err := LoadFrom(newViper())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, locale.English, cfg.Locales().Default())
	assert.False(t, cfg.Site.CanonicalDefault)
	assert.Equal(t, []string{"/api", "/feeds"}, cfg.Site.Bypass.Prefixes)
	assert.Equal(t, 500*time.Millisecond, cfg.Store.WriteTimeout)
	assert.Len(t, Warnings(cfg), 1)
}

func TestLoadRejectsInvalidLocales(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantField string
	}{
		{
			name: "unknown code",
			yaml: `
site:
  default: ar
  locales: [{code: ar}, {code: xx}]
`,
			wantField: "site.locales[1].code",
		},
		{
			name: "bad direction",
			yaml: `
site:
  default: ar
  locales: [{code: ar, direction: up}]
`,
			wantField: "site.locales[0].direction",
		},
		{
			name: "duplicate code",
			yaml: `
site:
  default: ar
  locales: [{code: ar}, {code: AR}]
`,
			wantField: "site.locales[1].code",
		},
		{
			name: "default not configured",
			yaml: `
site:
  default: fr
  locales: [{code: ar}, {code: en}]
`,
			wantField: "site.default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.yaml)
			require.Error(t, err)
			assert.Contains(t, validationFields(t, err), tt.wantField)
		})
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantField string
	}{
		{"port", "server: {port: 70000}", "server.port"},
		{"environment", "server: {environment: staging}", "server.environment"},
		{"backend", "store: {backend: etcd}", "store.backend"},
		{"redis addr", "store: {backend: redis, redis_addr: nowhere}", "store.redis_addr"},
		{"catalog traversal", "catalog: {dir: ../../etc}", "catalog.dir"},
		{"watch without dir", "catalog: {watch: true}", "catalog.watch"},
		{"log level", "log: {level: loud}", "log.level"},
		{"log format", "log: {format: xml}", "log.format"},
		{"bypass root", "site: {bypass: {prefixes: [/]}}", "site.bypass.prefixes[0]"},
		{"cookie name", "site: {cookie_name: 'my cookie'}", "site.cookie_name"},
		{"same cookies", "site: {cookie_name: c, visitor_cookie_name: c}", "site.visitor_cookie_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.yaml)
			require.Error(t, err)
			assert.Contains(t, validationFields(t, err), tt.wantField)
		})
	}
}

func TestValidateCollectsEveryError(t *testing.T) {
	cfg, err := LoadFrom(newViper())
	require.NoError(t, err)

	cfg.Server.Port = -1
	cfg.Store.Backend = "nope"
	cfg.Log.Format = "xml"

	errs := Validate(cfg)
	assert.Equal(t, []string{"log.format", "server.port", "store.backend"}, errs.Fields())
}

func TestWarnings(t *testing.T) {
	cfg, err := LoadFrom(newViper())
	require.NoError(t, err)

	cfg.Server.Environment = "production"
	cfg.Catalog.Watch = true

	warnings := Warnings(cfg)
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "memory")
	assert.Contains(t, warnings[1], "catalog.watch")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FOLIO_TEST_A=env\nFOLIO_TEST_B=env\n"), 0o644))
	t.Setenv("FOLIO_TEST_C", "real")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("FOLIO_TEST_A=local\nFOLIO_TEST_C=file\n"), 0o644))

	loaded := LoadDotEnv(dir)
	t.Cleanup(func() {
		os.Unsetenv("FOLIO_TEST_A")
		os.Unsetenv("FOLIO_TEST_B")
	})

	assert.Equal(t, []string{filepath.Join(dir, ".env.local"), filepath.Join(dir, ".env")}, loaded)
	assert.Equal(t, "local", os.Getenv("FOLIO_TEST_A"))
	assert.Equal(t, "env", os.Getenv("FOLIO_TEST_B"))
	assert.Equal(t, "real", os.Getenv("FOLIO_TEST_C"))

	assert.Empty(t, LoadDotEnv(t.TempDir()))
}
