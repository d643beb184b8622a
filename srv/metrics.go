package srv

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storai_generation_requests_total",
			Help: "Total number of story generation requests.",
		},
		[]string{"mode", "status"}, // mode: story|chapter, status: success|error
	)
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storai_generation_duration_seconds",
			Help:    "Histogram of end-to-end generation durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)
)
