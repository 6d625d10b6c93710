package apiclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opRequest   = "request"
	opFetchJSON = "fetch_json"
	opFetchText = "fetch_text"

	outcomeOK             = "ok"
	outcomeStatusError    = "status_error"
	outcomeTransportError = "transport_error"
	outcomeParseError     = "parse_error"
	outcomeInvalidRequest = "invalid_request"
)

// Metrics holds the client's prometheus collectors.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the client collectors on reg (the default registerer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "tvapi",
				Subsystem: "client",
				Name:      "requests_total",
				Help:      "Total API client calls by operation, method and outcome",
			},
			[]string{"op", "method", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "tvapi",
				Subsystem: "client",
				Name:      "request_seconds",
				Help:      "Duration of API client calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(m.Requests, m.Duration)
	return m
}

func (m *Metrics) observe(op, method, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(op, method, outcome).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
