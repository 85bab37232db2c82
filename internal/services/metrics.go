package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	SessionsStarted     prometheus.Counter
	SessionsCompleted   prometheus.Counter
	SessionsFailed      prometheus.Counter
	AdmissionRejections prometheus.Counter
	SourceOutcomes      *prometheus.CounterVec
	ResearchDuration    prometheus.Histogram
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics(admission *AdmissionController) *Metrics {
	metrics := &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trendscope_sessions_started_total",
			Help: "Total number of research sessions admitted",
		}),

		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trendscope_sessions_completed_total",
			Help: "Total number of research sessions that completed",
		}),

		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trendscope_sessions_failed_total",
			Help: "Total number of research sessions that failed",
		}),

		AdmissionRejections: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trendscope_admission_rejections_total",
			Help: "Total number of start requests rejected at capacity",
		}),

		// Per-source resolution outcomes (success, partial, failed, rate_limited, disabled)
		SourceOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trendscope_source_outcomes_total",
			Help: "Connector resolutions by source and status",
		}, []string{"source", "status"}),

		ResearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "trendscope_research_duration_seconds",
			Help:    "End-to-end research session duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600}, // up to the research timeout
		}),
	}

	// Live occupancy straight from the admission controller
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "trendscope_sessions_active",
			Help: "Currently held sessions (active plus retained terminal)",
		},
		func() float64 {
			if admission != nil {
				return float64(admission.Active())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}
