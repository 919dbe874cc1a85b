package social

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// opTotal counts service operations by name and result ("ok" or the error kind).
	opTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_operations_total",
			Help: "Total number of social graph operations.",
		},
		[]string{"op", "result"},
	)

	opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_operation_duration_seconds",
			Help:    "Duration of social graph operations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	registrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_registrations_total",
			Help: "Registrations by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(opTotal, opDuration, registrations)
}

func observe(op string, start time.Time, err error) {
	opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	opTotal.WithLabelValues(op, resultLabel(err)).Inc()
}
