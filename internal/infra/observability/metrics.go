package observability

import (
	"time"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Bootstrap outcomes recorded by RecordBootstrap.
const (
	BootstrapSuccess    = "success"
	BootstrapRetry      = "retry"
	BootstrapFailed     = "failed"
	BootstrapSuperseded = "superseded"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration   *prometheus.HistogramVec
	externalErrors    *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	bootstrapAttempts *prometheus.CounterVec
	authEvents        *prometheus.CounterVec
	gateDecisions     *prometheus.CounterVec
	activeProviders   prometheus.Gauge
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hrdash_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrdash_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrdash_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrdash_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		bootstrapAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrdash_auth_bootstrap_attempts_total",
				Help: "Auth bootstrap attempts by outcome.",
			},
			[]string{"outcome"},
		),
		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrdash_auth_events_total",
				Help: "Session lifecycle events handled by the auth subscription.",
			},
			[]string{"event"},
		),
		gateDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hrdash_gate_decisions_total",
				Help: "Role gate decisions for protected routes.",
			},
			[]string{"decision"},
		),
		activeProviders: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "hrdash_active_providers",
				Help: "Browser sessions with a live auth provider.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordBootstrap counts one bootstrap attempt outcome.
func (m *Metrics) RecordBootstrap(outcome string) {
	m.bootstrapAttempts.WithLabelValues(outcome).Inc()
}

// RecordAuthEvent counts a session lifecycle event.
func (m *Metrics) RecordAuthEvent(event domain.AuthEventType) {
	m.authEvents.WithLabelValues(string(event)).Inc()
}

// RecordGateDecision counts a role gate decision.
func (m *Metrics) RecordGateDecision(d domain.GateDecision) {
	m.gateDecisions.WithLabelValues(string(d)).Inc()
}

// ProviderStarted / ProviderStopped track live providers.
func (m *Metrics) ProviderStarted() { m.activeProviders.Inc() }
func (m *Metrics) ProviderStopped() { m.activeProviders.Dec() }

// GetAuthSnapshot returns a snapshot of auth metrics for GET /v1/metrics/auth.
func (m *Metrics) GetAuthSnapshot() *domain.AuthMetrics {
	hits := getCounterValue(m.cacheHits, "providers")
	misses := getCounterValue(m.cacheMisses, "providers")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.AuthMetrics{
		BootstrapSucceeded:  int64(getCounterValue(m.bootstrapAttempts, BootstrapSuccess)),
		BootstrapRetried:    int64(getCounterValue(m.bootstrapAttempts, BootstrapRetry)),
		BootstrapFailed:     int64(getCounterValue(m.bootstrapAttempts, BootstrapFailed)),
		BootstrapSuperseded: int64(getCounterValue(m.bootstrapAttempts, BootstrapSuperseded)),
		SignedInEvents:      int64(getCounterValue(m.authEvents, string(domain.EventSignedIn))),
		SignedOutEvents:     int64(getCounterValue(m.authEvents, string(domain.EventSignedOut))),
		GateAllowed:         int64(getCounterValue(m.gateDecisions, string(domain.GateAllow))),
		GateLoading:         int64(getCounterValue(m.gateDecisions, string(domain.GateLoading))),
		GateRedirected:      int64(getCounterValue(m.gateDecisions, string(domain.GateRedirectLogin))),
		ActiveProviders:     int64(getGaugeValue(m.activeProviders)),
		ProviderCacheHit:    hitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getGaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil && m.Gauge.Value != nil {
		return *m.Gauge.Value
	}
	return 0
}
