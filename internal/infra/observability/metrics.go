package observability

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/finvista/finvista-gateway-go/internal/domain"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration     *prometheus.HistogramVec
	externalErrors      *prometheus.CounterVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	requestsTotal       *prometheus.CounterVec
	sessionsTotal       *prometheus.CounterVec
	decisionsTotal      *prometheus.CounterVec
	candidatesGenerated prometheus.Counter
	conflictsSkipped    prometheus.Counter
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
				Name:    "finvista_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvista_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvista_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvista_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvista_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		sessionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvista_recon_sessions_total",
				Help: "Total reconciliation sessions by lifecycle event.",
			},
			[]string{"event"},
		),
		decisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvista_recon_decisions_total",
				Help: "Total match decisions by status.",
			},
			[]string{"status"},
		),
		candidatesGenerated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "finvista_recon_candidates_generated_total",
				Help: "Total match candidates produced by generation passes.",
			},
		),
		conflictsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "finvista_recon_conflicts_skipped_total",
				Help: "Total candidates skipped in bulk accepts due to one-to-one conflicts.",
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

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrSession increments the session lifecycle counter ("created" or "closed").
func (m *Metrics) IncrSession(event string) {
	m.sessionsTotal.WithLabelValues(event).Inc()
}

// IncrDecision increments the decision counter with a status label.
func (m *Metrics) IncrDecision(status string) {
	m.decisionsTotal.WithLabelValues(status).Inc()
}

// AddDecisions records n decisions of the same status at once.
func (m *Metrics) AddDecisions(status string, n int) {
	m.decisionsTotal.WithLabelValues(status).Add(float64(n))
}

// AddCandidatesGenerated records the size of a generation pass.
func (m *Metrics) AddCandidatesGenerated(n int) {
	m.candidatesGenerated.Add(float64(n))
}

// AddConflictsSkipped records skipped candidates from a bulk accept.
func (m *Metrics) AddConflictsSkipped(n int) {
	m.conflictsSkipped.Add(float64(n))
}

// RequestMetricsMiddleware counts processed requests by outcome and records
// their latency.
func RequestMetricsMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := "success"
			if ww.Status() >= 400 {
				status = "error"
			}
			m.IncrRequest(status)
			m.RecordRequestDuration("http", time.Since(start))
		})
	}
}

// GetReconSnapshot returns a snapshot of reconciliation metrics suitable
// for the GET /v1/metrics/reconciliation endpoint.
func (m *Metrics) GetReconSnapshot() *domain.ReconMetricsSnapshot {
	accepted := getCounterValue(m.decisionsTotal, "accepted")
	rejected := getCounterValue(m.decisionsTotal, "rejected")
	manual := getCounterValue(m.decisionsTotal, "manual")

	totalRequests := getCounterValue(m.requestsTotal, "success") +
		getCounterValue(m.requestsTotal, "error")
	errorCount := getCounterValue(m.requestsTotal, "error")
	cacheHits := getCounterValue(m.cacheHits, "transactions")
	cacheMisses := getCounterValue(m.cacheMisses, "transactions")

	errorRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.ReconMetricsSnapshot{
		SessionsCreated:     int64(getCounterValue(m.sessionsTotal, "created")),
		SessionsClosed:      int64(getCounterValue(m.sessionsTotal, "closed")),
		CandidatesGenerated: int64(getPlainCounterValue(m.candidatesGenerated)),
		DecisionsAccepted:   int64(accepted),
		DecisionsRejected:   int64(rejected),
		DecisionsManual:     int64(manual),
		ConflictsSkipped:    int64(getPlainCounterValue(m.conflictsSkipped)),
		ErrorRate:           errorRate,
		CacheHitRate:        cacheHitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
