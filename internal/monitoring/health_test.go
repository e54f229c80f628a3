package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/folio/internal/i18n"
	"github.com/conneroisu/folio/internal/locale"
	"github.com/conneroisu/folio/internal/logging"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func static(name string, critical bool, status HealthStatus) HealthChecker {
	return NewHealthCheckFunc(name, critical, func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: status}
	})
}

func TestHealthCheckFunc(t *testing.T) {
	checkFn := NewHealthCheckFunc("test_check", true, func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusHealthy, Message: "All good"}
	})

	assert.Equal(t, "test_check", checkFn.Name())
	assert.True(t, checkFn.IsCritical())

	result := checkFn.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, result.Status)
	assert.Equal(t, "All good", result.Message)
}

func TestCalculateOverallStatus(t *testing.T) {
	tests := []struct {
		name   string
		checks []HealthChecker
		want   HealthStatus
	}{
		{name: "no checks", want: HealthStatusHealthy},
		{
			name:   "all healthy",
			checks: []HealthChecker{static("a", true, HealthStatusHealthy), static("b", false, HealthStatusHealthy)},
			want:   HealthStatusHealthy,
		},
		{
			name:   "critical unhealthy",
			checks: []HealthChecker{static("a", true, HealthStatusUnhealthy), static("b", false, HealthStatusDegraded)},
			want:   HealthStatusUnhealthy,
		},
		{
			name:   "non-critical unhealthy",
			checks: []HealthChecker{static("a", true, HealthStatusHealthy), static("b", false, HealthStatusUnhealthy)},
			want:   HealthStatusDegraded,
		},
		{
			name:   "critical degraded",
			checks: []HealthChecker{static("a", true, HealthStatusDegraded)},
			want:   HealthStatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := NewHealthMonitor(logging.Nop())
			for _, c := range tt.checks {
				monitor.RegisterCheck(c)
			}

			health := monitor.Check(context.Background())
			assert.Equal(t, tt.want, health.Status)
			assert.Equal(t, len(tt.checks), health.Summary.Total)
		})
	}
}

func TestHealthMonitorCheck(t *testing.T) {
	monitor := NewHealthMonitor(nil, WithVersion("v1.2.3"), WithEnvironment("production"))
	monitor.RegisterCheck(static("a", true, HealthStatusHealthy))
	monitor.RegisterCheck(static("b", false, HealthStatusDegraded))
	monitor.RegisterCheck(static("c", false, HealthStatusHealthy))
	monitor.UnregisterCheck("c")

	health := monitor.Check(context.Background())

	assert.Equal(t, "v1.2.3", health.Version)
	assert.Equal(t, "production", health.Environment)
	require.Len(t, health.Checks, 2)
	assert.Equal(t, "a", health.Checks["a"].Name)
	assert.True(t, health.Checks["a"].Critical)
	assert.False(t, health.Checks["a"].LastChecked.IsZero())
	assert.Equal(t, HealthSummary{Total: 2, Healthy: 1, Degraded: 1, Critical: 1}, health.Summary)
	assert.Equal(t, os.Getpid(), health.SystemInfo.PID)
}

func TestHealthMonitorTimeout(t *testing.T) {
	monitor := NewHealthMonitor(logging.Nop(), WithCheckTimeout(20*time.Millisecond))
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	monitor.RegisterCheck(NewHealthCheckFunc("stuck", false, func(ctx context.Context) HealthCheck {
		<-release
		return HealthCheck{Status: HealthStatusHealthy}
	}))

	start := time.Now()
	health := monitor.Check(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, HealthStatusUnknown, health.Checks["stuck"].Status)
	assert.Contains(t, health.Checks["stuck"].Message, "timed out")
	assert.Equal(t, HealthStatusDegraded, health.Status)
}

func TestHealthHTTPHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		status     HealthStatus
		wantCode   int
		wantStatus string
	}{
		{name: "healthy", method: http.MethodGet, status: HealthStatusHealthy, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "degraded still serves", method: http.MethodGet, status: HealthStatusDegraded, wantCode: http.StatusOK, wantStatus: "degraded"},
		{name: "unhealthy", method: http.MethodGet, status: HealthStatusUnhealthy, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy"},
		{name: "head has no body", method: http.MethodHead, status: HealthStatusHealthy, wantCode: http.StatusOK},
		{name: "post rejected", method: http.MethodPost, status: HealthStatusHealthy, wantCode: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor := NewHealthMonitor(logging.Nop())
			monitor.RegisterCheck(static("check", true, tt.status))

			rec := httptest.NewRecorder()
			monitor.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(tt.method, "/healthz", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantStatus == "" {
				if tt.method == http.MethodHead {
					assert.Empty(t, rec.Body.String())
				}
				return
			}
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
		})
	}
}

func TestStoreHealthChecker(t *testing.T) {
	ctx := context.Background()

	result := StoreHealthChecker("memory", struct{}{}).Check(ctx)
	assert.Equal(t, HealthStatusHealthy, result.Status)
	assert.Equal(t, "memory", result.Metadata["backend"])

	result = StoreHealthChecker("redis", fakePinger{}).Check(ctx)
	assert.Equal(t, HealthStatusHealthy, result.Status)

	checker := StoreHealthChecker("redis", fakePinger{err: errors.New("connection refused")})
	assert.False(t, checker.IsCritical())
	result = checker.Check(ctx)
	assert.Equal(t, HealthStatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "connection refused")
}

func TestCatalogHealthChecker(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "active.fr.toml"), []byte(`SiteName = "Folio"`+"\n"), 0o644))

	locales := locale.MustConfig([]locale.Entry{{Code: "ar"}, {Code: "en"}, {Code: "fr"}}, "ar")
	catalog, err := i18n.NewCatalog(i18n.Options{Locales: locales, Dir: dir})
	require.NoError(t, err)

	checker := CatalogHealthChecker(catalog)
	assert.True(t, checker.IsCritical())

	result := checker.Check(context.Background())
	assert.Equal(t, HealthStatusHealthy, result.Status)
	assert.Equal(t, dir, result.Metadata["dir"])
	assert.Equal(t, []string{"fr"}, result.Metadata["incomplete"])
	assert.Positive(t, result.Metadata["missing"])

	assert.Equal(t, HealthStatusUnhealthy, CatalogHealthChecker(nil).Check(context.Background()).Status)
}

func TestGoroutineHealthChecker(t *testing.T) {
	result := GoroutineHealthChecker().Check(context.Background())

	assert.Equal(t, HealthStatusHealthy, result.Status)
	assert.Positive(t, result.Metadata["count"])
}
