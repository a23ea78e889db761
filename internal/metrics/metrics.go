package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poll outcomes recorded per fetcher
const (
	PollChanged   = "changed"
	PollUnchanged = "unchanged"
	PollStale     = "stale"
	PollError     = "error"
)

// Metrics holds all Prometheus metrics for the dashboard. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	BackendRequests  *prometheus.CounterVec
	BackendLatency   *prometheus.HistogramVec
	PollResults      *prometheus.CounterVec
	TokenValidations *prometheus.CounterVec
	ImageHandles     prometheus.Gauge
	StreamClients    prometheus.Gauge
}

// New creates and registers all metrics on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BackendRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gymdash_backend_requests_total",
			Help: "Backend API calls by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		BackendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gymdash_backend_request_seconds",
			Help:    "Backend API call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		PollResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gymdash_poll_results_total",
			Help: "Polling fetch results by fetcher and outcome",
		}, []string{"poller", "result"}),
		TokenValidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gymdash_token_validations_total",
			Help: "Session token validations by kind and result",
		}, []string{"kind", "result"}),
		ImageHandles: f.NewGauge(prometheus.GaugeOpts{
			Name: "gymdash_image_handles",
			Help: "Gym floor frames currently held",
		}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "gymdash_stream_clients",
			Help: "Connected browser event streams",
		}),
	}
}

// ObserveBackend records one backend call
func (m *Metrics) ObserveBackend(endpoint, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	m.BackendLatency.WithLabelValues(endpoint).Observe(seconds)
}

// ObservePoll records one fetch result
func (m *Metrics) ObservePoll(poller, result string) {
	if m == nil {
		return
	}
	m.PollResults.WithLabelValues(poller, result).Inc()
}

// ObserveValidation records a token validation
func (m *Metrics) ObserveValidation(kind string, valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.TokenValidations.WithLabelValues(kind, result).Inc()
}

// AddImageHandles adjusts the held frame gauge
func (m *Metrics) AddImageHandles(delta float64) {
	if m == nil {
		return
	}
	m.ImageHandles.Add(delta)
}

// AddStreamClients adjusts the connected stream gauge
func (m *Metrics) AddStreamClients(delta float64) {
	if m == nil {
		return
	}
	m.StreamClients.Add(delta)
}
