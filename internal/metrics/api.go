package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts control API requests by route template and status.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camrec_api_requests_total",
		Help: "Control API requests by method, route and status code",
	}, []string{"method", "route", "status"})

	// ConfigWrites counts camera document replacements.
	ConfigWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camrec_config_writes_total",
		Help: "Camera document writes by result",
	}, []string{"result"})

	// UploadRuns counts offload job runs.
	UploadRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camrec_upload_runs_total",
		Help: "Offload job runs by result",
	}, []string{"result"})

	// RateLimited counts requests rejected by a rate limiter.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "camrec_api_rate_limited_total",
		Help: "Control API requests rejected by rate limiting",
	}, []string{"limit"})
)

// IncConfigWrite records a document write outcome.
func IncConfigWrite(ok bool) {
	ConfigWrites.WithLabelValues(result(ok)).Inc()
}

// IncUpload records an offload run outcome.
func IncUpload(ok bool) {
	UploadRuns.WithLabelValues(result(ok)).Inc()
}
