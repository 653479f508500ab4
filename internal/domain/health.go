package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// AuthMetrics is returned by GET /v1/metrics/auth.
type AuthMetrics struct {
	BootstrapSucceeded  int64   `json:"bootstrapSucceeded"`
	BootstrapRetried    int64   `json:"bootstrapRetried"`
	BootstrapFailed     int64   `json:"bootstrapFailed"`
	BootstrapSuperseded int64   `json:"bootstrapSuperseded"`
	SignedInEvents      int64   `json:"signedInEvents"`
	SignedOutEvents     int64   `json:"signedOutEvents"`
	GateAllowed         int64   `json:"gateAllowed"`
	GateLoading         int64   `json:"gateLoading"`
	GateRedirected      int64   `json:"gateRedirected"`
	ActiveProviders     int64   `json:"activeProviders"`
	ProviderCacheHit    float64 `json:"providerCacheHitRate"`
	Period              string  `json:"period"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
