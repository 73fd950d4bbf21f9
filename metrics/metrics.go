package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KVOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsportal_kv_operations_total",
			Help: "Total number of key-value store operations",
		},
		[]string{"op", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsportal_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "code"},
	)

	CSRFRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsportal_csrf_rejections_total",
			Help: "Total number of requests rejected by CSRF protection",
		},
		[]string{"reason"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsportal_http_rate_limited_total",
			Help: "Total number of requests rejected by the per-client rate limiter",
		},
	)

	AssemblyStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsportal_assembly_step_duration_seconds",
			Help:    "Time taken by each application assembly step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	ModulesRegistered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsportal_routing_modules_registered",
			Help: "Number of routing modules registered on the application router",
		},
	)

	PanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsportal_http_panics_recovered_total",
			Help: "Total number of handler panics recovered by middleware",
		},
	)
)
