package domain

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// ReconMetricsSnapshot is returned by GET /v1/metrics/reconciliation.
type ReconMetricsSnapshot struct {
	SessionsCreated     int64   `json:"sessionsCreated"`
	SessionsClosed      int64   `json:"sessionsClosed"`
	CandidatesGenerated int64   `json:"candidatesGenerated"`
	DecisionsAccepted   int64   `json:"decisionsAccepted"`
	DecisionsRejected   int64   `json:"decisionsRejected"`
	DecisionsManual     int64   `json:"decisionsManual"`
	ConflictsSkipped    int64   `json:"conflictsSkipped"`
	ErrorRate           float64 `json:"errorRate"`
	CacheHitRate        float64 `json:"cacheHitRate"`
	Period              string  `json:"period"`
}
