// Package metrics holds the Prometheus metrics shared across the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	QuestionsTotal   prometheus.Counter
	RepliesTotal     *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	QuorumFailures   prometheus.Counter
	NoMatchTotal     prometheus.Counter
	RateLimitedTotal prometheus.Counter
	FanoutDuration   prometheus.Histogram
	CohortSize       prometheus.Histogram
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		QuestionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civicpulse_questions_total",
			Help: "Total number of questions fanned out to the cohort pipeline",
		}),
		RepliesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicpulse_persona_replies_total",
			Help: "Per-persona reply outcomes partitioned by status",
		}, []string{"status"}),
		ProviderFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "civicpulse_provider_failures_total",
			Help: "Terminal provider call failures partitioned by provider",
		}, []string{"provider"}),
		QuorumFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civicpulse_quorum_failures_total",
			Help: "Fan-out operations rejected because too few replies succeeded",
		}),
		NoMatchTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civicpulse_no_match_total",
			Help: "Ask requests whose filters matched zero personas",
		}),
		RateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "civicpulse_rate_limited_total",
			Help: "Requests rejected by the intake rate limiter",
		}),
		FanoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicpulse_fanout_duration_seconds",
			Help:    "Wall time for a full cohort fan-out to settle",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		CohortSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "civicpulse_cohort_size",
			Help:    "Sampled cohort sizes",
			Buckets: []float64{5, 10, 20, 30, 50, 100, 200},
		}),
	}
}

// ObserveFanout records one settled fan-out batch.
func (m *Metrics) ObserveFanout(d time.Duration, cohort, succeeded, failed int) {
	if m == nil {
		return
	}
	m.FanoutDuration.Observe(d.Seconds())
	m.CohortSize.Observe(float64(cohort))
	m.RepliesTotal.WithLabelValues("ok").Add(float64(succeeded))
	m.RepliesTotal.WithLabelValues("failed").Add(float64(failed))
}
