// Package monitoring provides the health checks and in-process metrics the
// server exposes on its operational routes.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/conneroisu/folio/internal/i18n"
	"github.com/conneroisu/folio/internal/logging"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// DefaultCheckTimeout bounds a single check.
const DefaultCheckTimeout = 2 * time.Second

// HealthCheck represents a single health check
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Critical    bool                   `json:"critical"`
}

// HealthChecker defines the interface for health check functions
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
	Name() string
	IsCritical() bool
}

// HealthCheckFunc is a function that implements HealthChecker
type HealthCheckFunc struct {
	name     string
	checkFn  func(ctx context.Context) HealthCheck
	critical bool
}

// Check executes the health check function
func (h *HealthCheckFunc) Check(ctx context.Context) HealthCheck {
	return h.checkFn(ctx)
}

// Name returns the health check name
func (h *HealthCheckFunc) Name() string {
	return h.name
}

// IsCritical returns whether this check is critical
func (h *HealthCheckFunc) IsCritical() bool {
	return h.critical
}

// NewHealthCheckFunc creates a new health check function
func NewHealthCheckFunc(
	name string,
	critical bool,
	checkFn func(ctx context.Context) HealthCheck,
) *HealthCheckFunc {
	return &HealthCheckFunc{
		name:     name,
		checkFn:  checkFn,
		critical: critical,
	}
}

// HealthResponse represents the overall health response
type HealthResponse struct {
	Status      HealthStatus           `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	Version     string                 `json:"version,omitempty"`
	Uptime      string                 `json:"uptime"`
	Environment string                 `json:"environment,omitempty"`
	Checks      map[string]HealthCheck `json:"checks"`
	Summary     HealthSummary          `json:"summary"`
	SystemInfo  SystemInfo             `json:"system_info"`
}

// HealthSummary provides a summary of health check results
type HealthSummary struct {
	Total     int `json:"total"`
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Degraded  int `json:"degraded"`
	Unknown   int `json:"unknown"`
	Critical  int `json:"critical"`
}

// SystemInfo provides system information
type SystemInfo struct {
	Hostname  string    `json:"hostname"`
	Platform  string    `json:"platform"`
	GoVersion string    `json:"go_version"`
	StartTime time.Time `json:"start_time"`
	PID       int       `json:"pid"`
}

// HealthMonitor runs the registered checks on demand.
type HealthMonitor struct {
	mutex       sync.RWMutex
	checks      map[string]HealthChecker
	logger      logging.Logger
	timeout     time.Duration
	version     string
	environment string
	startTime   time.Time
}

// HealthOption configures a HealthMonitor.
type HealthOption func(*HealthMonitor)

// WithCheckTimeout overrides DefaultCheckTimeout.
func WithCheckTimeout(d time.Duration) HealthOption {
	return func(hm *HealthMonitor) {
		if d > 0 {
			hm.timeout = d
		}
	}
}

// WithVersion sets the version reported in responses.
func WithVersion(v string) HealthOption {
	return func(hm *HealthMonitor) {
		hm.version = v
	}
}

// WithEnvironment sets the environment reported in responses.
func WithEnvironment(env string) HealthOption {
	return func(hm *HealthMonitor) {
		hm.environment = env
	}
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(logger logging.Logger, opts ...HealthOption) *HealthMonitor {
	if logger == nil {
		logger = logging.Nop()
	}

	hm := &HealthMonitor{
		checks:    make(map[string]HealthChecker),
		logger:    logger.WithComponent("health"),
		timeout:   DefaultCheckTimeout,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(hm)
	}

	return hm
}

// RegisterCheck registers a health check, replacing one of the same name.
func (hm *HealthMonitor) RegisterCheck(checker HealthChecker) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	hm.checks[checker.Name()] = checker
}

// UnregisterCheck removes a health check
func (hm *HealthMonitor) UnregisterCheck(name string) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	delete(hm.checks, name)
}

// Check runs every registered check concurrently, each under the check
// timeout, and aggregates the results.
func (hm *HealthMonitor) Check(ctx context.Context) HealthResponse {
	hm.mutex.RLock()
	checks := make([]HealthChecker, 0, len(hm.checks))
	for _, checker := range hm.checks {
		checks = append(checks, checker)
	}
	hm.mutex.RUnlock()

	results := make([]HealthCheck, len(checks))
	var wg sync.WaitGroup
	for i, checker := range checks {
		wg.Add(1)
		go func(i int, checker HealthChecker) {
			defer wg.Done()
			results[i] = hm.run(ctx, checker)
		}(i, checker)
	}
	wg.Wait()

	byName := make(map[string]HealthCheck, len(results))
	for _, result := range results {
		byName[result.Name] = result
		if result.Status != HealthStatusHealthy {
			hm.logger.Warn(ctx, nil, "Health check failed",
				"name", result.Name,
				"status", string(result.Status),
				"message", result.Message,
				"duration", result.Duration)
		}
	}

	return HealthResponse{
		Status:      calculateOverallStatus(byName),
		Timestamp:   time.Now().UTC(),
		Version:     hm.version,
		Uptime:      time.Since(hm.startTime).Round(time.Second).String(),
		Environment: hm.environment,
		Checks:      byName,
		Summary:     calculateSummary(byName),
		SystemInfo:  hm.systemInfo(),
	}
}

// run executes one check. A check that outlives the timeout reports
// unknown; its goroutine finishes in the background.
func (hm *HealthMonitor) run(ctx context.Context, checker HealthChecker) HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan HealthCheck, 1)
	go func() {
		done <- checker.Check(ctx)
	}()

	var result HealthCheck
	select {
	case result = <-done:
	case <-ctx.Done():
		result = HealthCheck{
			Status:  HealthStatusUnknown,
			Message: fmt.Sprintf("check timed out after %s", hm.timeout),
		}
	}

	result.Name = checker.Name()
	result.Critical = checker.IsCritical()
	result.Duration = time.Since(start)
	result.LastChecked = time.Now().UTC()

	return result
}

// calculateSummary calculates health check summary
func calculateSummary(checks map[string]HealthCheck) HealthSummary {
	summary := HealthSummary{
		Total: len(checks),
	}

	for _, check := range checks {
		switch check.Status {
		case HealthStatusHealthy:
			summary.Healthy++
		case HealthStatusUnhealthy:
			summary.Unhealthy++
		case HealthStatusDegraded:
			summary.Degraded++
		default:
			summary.Unknown++
		}

		if check.Critical {
			summary.Critical++
		}
	}

	return summary
}

// calculateOverallStatus is unhealthy when a critical check is unhealthy,
// degraded when any other check is not healthy, else healthy.
func calculateOverallStatus(checks map[string]HealthCheck) HealthStatus {
	for _, check := range checks {
		if check.Critical && check.Status == HealthStatusUnhealthy {
			return HealthStatusUnhealthy
		}
	}

	for _, check := range checks {
		if check.Status != HealthStatusHealthy {
			return HealthStatusDegraded
		}
	}

	return HealthStatusHealthy
}

// HTTPHandler serves Check as JSON. Only an unhealthy result is a 503; a
// degraded site still serves pages.
func (hm *HealthMonitor) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		health := hm.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		if r.Method == http.MethodHead {
			return
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(health); err != nil {
			hm.logger.Error(r.Context(), err, "Failed to encode health response")
		}
	}
}

func (hm *HealthMonitor) systemInfo() SystemInfo {
	hostname, _ := os.Hostname()

	return SystemInfo{
		Hostname:  hostname,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion: runtime.Version(),
		StartTime: hm.startTime.UTC(),
		PID:       os.Getpid(),
	}
}

// Pinger is implemented by preference backends that can report
// reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealthChecker reports whether the durable preference backend is
// reachable. It is not critical: preferences fall back to the cookie
// store. A backend that is not a Pinger is always healthy.
func StoreHealthChecker(backend string, kv interface{}) HealthChecker {
	return NewHealthCheckFunc("store", false, func(ctx context.Context) HealthCheck {
		meta := map[string]interface{}{"backend": backend}

		pinger, ok := kv.(Pinger)
		if !ok {
			return HealthCheck{Status: HealthStatusHealthy, Message: "in-process store", Metadata: meta}
		}
		if err := pinger.Ping(ctx); err != nil {
			return HealthCheck{
				Status:   HealthStatusUnhealthy,
				Message:  "preferences fall back to cookies: " + err.Error(),
				Metadata: meta,
			}
		}

		return HealthCheck{Status: HealthStatusHealthy, Message: "store reachable", Metadata: meta}
	})
}

// CatalogHealthChecker reports the loaded message catalogs. Missing
// translations fall back to the default locale, so they never fail the
// check.
func CatalogHealthChecker(catalog *i18n.Catalog) HealthChecker {
	return NewHealthCheckFunc("catalog", true, func(ctx context.Context) HealthCheck {
		if catalog == nil {
			return HealthCheck{Status: HealthStatusUnhealthy, Message: "no catalog loaded"}
		}

		missing := catalog.Missing()
		codes := make([]string, 0, len(missing))
		total := 0
		for code, ids := range missing {
			codes = append(codes, code.String())
			total += len(ids)
		}
		sort.Strings(codes)

		message := "all messages translated"
		if total > 0 {
			message = fmt.Sprintf("%d message(s) fall back to the default locale", total)
		}

		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: message,
			Metadata: map[string]interface{}{
				"dir":        catalog.Dir(),
				"missing":    total,
				"incomplete": codes,
			},
		}
	})
}

// GoroutineHealthChecker checks for goroutine leaks
func GoroutineHealthChecker() HealthChecker {
	return NewHealthCheckFunc("goroutines", false, func(ctx context.Context) HealthCheck {
		goroutines := runtime.NumGoroutine()

		status := HealthStatusHealthy
		message := "Goroutine count is normal"

		if goroutines > 1000 {
			status = HealthStatusDegraded
			message = fmt.Sprintf("High goroutine count: %d", goroutines)
		}

		if goroutines > 10000 {
			status = HealthStatusUnhealthy
			message = fmt.Sprintf("Very high goroutine count: %d", goroutines)
		}

		return HealthCheck{
			Status:   status,
			Message:  message,
			Metadata: map[string]interface{}{"count": goroutines},
		}
	})
}
