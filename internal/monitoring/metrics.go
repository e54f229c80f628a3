package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/folio/internal/locale"
	"github.com/conneroisu/folio/internal/preference"
)

// MetricType represents different types of metrics.
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// Metric represents a single metric measurement.
type Metric struct {
	Name   string            `json:"name"`
	Type   MetricType        `json:"type"`
	Value  float64           `json:"value"`
	Labels map[string]string `json:"labels,omitempty"`
}

// MetricCollector is polled for metrics owned elsewhere.
type MetricCollector interface {
	Collect() []Metric
	Name() string
}

// MetricsCollector collects and manages application metrics.
type MetricsCollector struct {
	mutex      sync.RWMutex
	prefix     string
	metrics    map[string]*Metric
	counters   map[string]*int64
	gauges     map[string]*float64
	histograms map[string]*Histogram
	collectors []MetricCollector
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector(prefix string) *MetricsCollector {
	return &MetricsCollector{
		prefix:     prefix,
		metrics:    make(map[string]*Metric),
		counters:   make(map[string]*int64),
		gauges:     make(map[string]*float64),
		histograms: make(map[string]*Histogram),
	}
}

// Counter increments a counter metric.
func (mc *MetricsCollector) Counter(name string, labels map[string]string) {
	mc.CounterAdd(name, 1, labels)
}

// CounterAdd adds delta to a counter metric.
func (mc *MetricsCollector) CounterAdd(name string, delta int64, labels map[string]string) {
	fullName := mc.getFullName(name)
	key := mc.getKey(fullName, labels)

	mc.mutex.RLock()
	counter, exists := mc.counters[key]
	mc.mutex.RUnlock()
	if exists {
		atomic.AddInt64(counter, delta)
		return
	}

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if counter, exists := mc.counters[key]; exists {
		atomic.AddInt64(counter, delta)
		return
	}
	value := delta
	mc.counters[key] = &value
	mc.metrics[key] = &Metric{Name: fullName, Type: MetricTypeCounter, Labels: copyLabels(labels)}
}

// Gauge sets a gauge metric value.
func (mc *MetricsCollector) Gauge(name string, value float64, labels map[string]string) {
	fullName := mc.getFullName(name)
	key := mc.getKey(fullName, labels)

	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	if gauge, exists := mc.gauges[key]; exists {
		*gauge = value
		return
	}
	mc.gauges[key] = &value
	mc.metrics[key] = &Metric{Name: fullName, Type: MetricTypeGauge, Labels: copyLabels(labels)}
}

// Histogram observes a value in a histogram.
func (mc *MetricsCollector) Histogram(name string, value float64, labels map[string]string) {
	fullName := mc.getFullName(name)
	key := mc.getKey(fullName, labels)

	mc.mutex.Lock()
	hist, exists := mc.histograms[key]
	if !exists {
		hist = NewHistogram(DefaultHistogramBuckets)
		mc.histograms[key] = hist
		mc.metrics[key] = &Metric{Name: fullName, Type: MetricTypeHistogram, Labels: copyLabels(labels)}
	}
	mc.mutex.Unlock()

	hist.Observe(value)
}

// Timer measures operation duration.
func (mc *MetricsCollector) Timer(name string, labels map[string]string) func() {
	start := time.Now()

	return func() {
		mc.Histogram(name+"_duration_seconds", time.Since(start).Seconds(), labels)
	}
}

// RegisterCollector adds a custom metric collector.
func (mc *MetricsCollector) RegisterCollector(collector MetricCollector) {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	mc.collectors = append(mc.collectors, collector)
}

// GatherMetrics collects all current metrics, sorted by name then labels.
func (mc *MetricsCollector) GatherMetrics() []Metric {
	mc.mutex.RLock()
	var all []Metric

	for key, counter := range mc.counters {
		m := *mc.metrics[key]
		m.Value = float64(atomic.LoadInt64(counter))
		all = append(all, m)
	}
	for key, gauge := range mc.gauges {
		m := *mc.metrics[key]
		m.Value = *gauge
		all = append(all, m)
	}
	for key, hist := range mc.histograms {
		base := *mc.metrics[key]
		for bucket, count := range hist.GetBuckets() {
			m := base
			m.Name += "_bucket"
			m.Labels = copyLabels(base.Labels)
			m.Labels["le"] = fmt.Sprintf("%.3f", bucket)
			m.Value = float64(count)
			all = append(all, m)
		}
		count, sum := base, base
		count.Name += "_count"
		count.Value = float64(hist.GetCount())
		sum.Name += "_sum"
		sum.Value = hist.GetSum()
		all = append(all, count, sum)
	}
	collectors := append([]MetricCollector(nil), mc.collectors...)
	mc.mutex.RUnlock()

	for _, collector := range collectors {
		all = append(all, collector.Collect()...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Name != all[j].Name {
			return all[i].Name < all[j].Name
		}
		return labelString(all[i].Labels) < labelString(all[j].Labels)
	})

	return all
}

// HTTPHandler serves the gathered metrics as JSON.
func (mc *MetricsCollector) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(map[string]interface{}{
			"timestamp":  time.Now().UTC(),
			"goroutines": runtime.NumGoroutine(),
			"metrics":    mc.GatherMetrics(),
		})
	}
}

// getFullName returns the full metric name with prefix.
func (mc *MetricsCollector) getFullName(name string) string {
	if mc.prefix == "" {
		return name
	}

	return mc.prefix + "_" + name
}

// getKey creates a unique key for a metric with labels.
func (mc *MetricsCollector) getKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	return name + "{" + labelString(labels) + "}"
}

func labelString(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}

	return strings.Join(parts, ",")
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}

	return out
}

// Histogram tracks distribution of values.
type Histogram struct {
	mutex   sync.RWMutex
	bounds  []float64
	buckets map[float64]int64
	count   int64
	sum     float64
}

// DefaultHistogramBuckets defines histogram bucket boundaries in seconds.
var DefaultHistogramBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewHistogram creates a new histogram with the given buckets.
func NewHistogram(buckets []float64) *Histogram {
	h := &Histogram{
		bounds:  append([]float64(nil), buckets...),
		buckets: make(map[float64]int64, len(buckets)),
	}
	for _, b := range buckets {
		h.buckets[b] = 0
	}

	return h
}

// Observe adds a value to the histogram. Buckets are cumulative.
func (h *Histogram) Observe(value float64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.count++
	h.sum += value
	for _, b := range h.bounds {
		if value <= b {
			h.buckets[b]++
		}
	}
}

// GetBuckets returns a copy of the bucket counts.
func (h *Histogram) GetBuckets() map[float64]int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	out := make(map[float64]int64, len(h.buckets))
	for k, v := range h.buckets {
		out[k] = v
	}

	return out
}

// GetCount returns the number of observations.
func (h *Histogram) GetCount() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.count
}

// GetSum returns the sum of all observations.
func (h *Histogram) GetSum() float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.sum
}

// LocaleMetrics records locale routing outcomes.
type LocaleMetrics struct {
	collector *MetricsCollector
	persister *preference.Persister
}

// NewLocaleMetrics registers itself with collector. persister may be nil.
func NewLocaleMetrics(collector *MetricsCollector, persister *preference.Persister) *LocaleMetrics {
	lm := &LocaleMetrics{collector: collector, persister: persister}
	collector.RegisterCollector(lm)

	return lm
}

// Resolved counts one resolution by action, source and active locale.
func (lm *LocaleMetrics) Resolved(res locale.Result) {
	lm.collector.Counter("locale_resolutions_total", map[string]string{
		"action": res.Action.String(),
		"source": res.Source.String(),
		"locale": res.Active.String(),
	})
}

// CatalogReloaded counts a catalog reload attempt.
func (lm *LocaleMetrics) CatalogReloaded(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	lm.collector.Counter("catalog_reloads_total", map[string]string{"result": result})
}

// Collect implements MetricCollector with the persister's write counts.
func (lm *LocaleMetrics) Collect() []Metric {
	if lm.persister == nil {
		return nil
	}

	stats := lm.persister.Stats()
	name := lm.collector.getFullName("preference_writes_total")

	return []Metric{
		{Name: name, Type: MetricTypeCounter, Value: float64(stats.Writes), Labels: map[string]string{"result": "success"}},
		{Name: name, Type: MetricTypeCounter, Value: float64(stats.Failures), Labels: map[string]string{"result": "failure"}},
	}
}

// Name implements MetricCollector.
func (lm *LocaleMetrics) Name() string {
	return "locale"
}
