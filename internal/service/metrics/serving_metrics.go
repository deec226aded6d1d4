package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ServingLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fingan",
			Subsystem: "serving",
			Name:      "latency_seconds",
			Help:      "Latency of forecast and training endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ServingErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingan",
			Subsystem: "serving",
			Name:      "errors_total",
			Help:      "Errors by endpoint",
		},
		[]string{"endpoint"},
	)

	RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fingan",
			Subsystem: "serving",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)

// Register adds the serving collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ServingLatency, ServingErrors, RateLimited)
	})
}
