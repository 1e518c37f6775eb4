package pages

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pagesmith_page_query_duration_seconds",
			Help:    "Duration of page manager operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	queryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pagesmith_page_query_errors_total",
			Help: "Total number of page manager operations that failed",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(queryDuration, queryErrors)
}

// observe records one operation. Use as: defer observe("op", time.Now(), &err).
func observe(operation string, start time.Time, err *error) {
	queryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil && *err != nil {
		queryErrors.WithLabelValues(operation).Inc()
	}
}
