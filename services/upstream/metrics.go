package upstream

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requestTotal    *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	tokenTotal      *prometheus.CounterVec
	pageItemsLoaded *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		requestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masomo_console",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of requests sent to the ERP API.",
		}, []string{"endpoint", "code"}),
		requestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "masomo_console",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of requests sent to the ERP API.",
			Buckets: []float64{
				0.005, 0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"endpoint"}),
		tokenTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masomo_console",
			Subsystem: "upstream",
			Name:      "token_operations_total",
			Help:      "Total number of token logins and refreshes.",
		}, []string{"operation", "result"}),
		pageItemsLoaded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masomo_console",
			Subsystem: "upstream",
			Name:      "items_loaded_total",
			Help:      "Total number of records loaded from list endpoints.",
		}, []string{"endpoint"}),
	}
})

// observeRequest records a request to `route`, an endpoint without record IDs.
func (m *metrics) observeRequest(route string, code int, started time.Time) {
	m.requestTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.requestLatency.WithLabelValues(route).Observe(time.Since(started).Seconds())
}

func (m *metrics) observeToken(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.tokenTotal.WithLabelValues(operation, result).Inc()
}
