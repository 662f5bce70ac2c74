package restapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client-side request metrics.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the client metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shelf",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "Backend requests by operation, resource and status code",
		}, []string{"op", "resource", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shelf",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "resource"}),
	}
	if reg != nil {
		reg.MustRegister(m.Requests, m.Duration)
	}
	return m
}

// observe records one request. Status 0 means no response was received.
func (m *Metrics) observe(op, resource string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status != 0 {
		code = strconv.Itoa(status)
	}
	m.Requests.WithLabelValues(op, resource, code).Inc()
	m.Duration.WithLabelValues(op, resource).Observe(elapsed.Seconds())
}
