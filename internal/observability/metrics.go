package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	connections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "callrelay",
			Subsystem: "signal",
			Name:      "connections",
			Help:      "Open signaling connections.",
		},
	)
	registered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "callrelay",
			Subsystem: "directory",
			Name:      "identifiers",
			Help:      "Identifiers bound to a live connection.",
		},
	)
	calls = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "callrelay",
			Subsystem: "calls",
			Name:      "sessions",
			Help:      "Call sessions by state.",
		},
		[]string{"state"},
	)
	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callrelay",
			Subsystem: "signal",
			Name:      "messages_total",
			Help:      "Inbound signaling messages by type and outcome.",
		},
		[]string{"type", "result"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "callrelay",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "callrelay",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(connections, registered, calls, messages, httpRequests, httpDuration)
	})
}

func ConnectionOpened() {
	RegisterMetrics()
	connections.Inc()
}

func ConnectionClosed() {
	RegisterMetrics()
	connections.Dec()
}

func SetRegistered(n int) {
	RegisterMetrics()
	registered.Set(float64(n))
}

func SetCalls(calling, active int) {
	RegisterMetrics()
	calls.WithLabelValues("calling").Set(float64(calling))
	calls.WithLabelValues("active").Set(float64(active))
}

func RecordMessage(msgType, result string) {
	RegisterMetrics()
	messages.WithLabelValues(msgType, result).Inc()
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
