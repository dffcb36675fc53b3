// Package metrics exposes prometheus collectors for operation submissions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespaceClient = "tezos_client"

// SubmissionMetrics records pipeline outcomes. A nil *SubmissionMetrics
// records nothing.
type SubmissionMetrics struct {
	outcomes       *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	feeAdjustments prometheus.Counter
	polls          prometheus.Histogram
	inFlight       prometheus.Gauge
}

// NewSubmissionMetrics registers the collectors with reg. A nil reg uses the
// default prometheus registry.
func NewSubmissionMetrics(reg prometheus.Registerer) *SubmissionMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	outcomeOpts := prometheus.CounterOpts{
		Name:      "submissions_total",
		Namespace: namespaceClient,
		Help:      "number of finished submissions by final state",
	}
	stageOpts := prometheus.HistogramOpts{
		Name:      "submission_stage_seconds",
		Namespace: namespaceClient,
		Help:      "time spent in each submission stage",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}
	feeOpts := prometheus.CounterOpts{
		Name:      "fee_adjustments_total",
		Namespace: namespaceClient,
		Help:      "number of operation fees raised to the node minimum",
	}
	pollOpts := prometheus.HistogramOpts{
		Name:      "confirmation_polls",
		Namespace: namespaceClient,
		Help:      "status polls issued per submission",
		Buckets:   prometheus.LinearBuckets(1, 2, 10),
	}
	inFlightOpts := prometheus.GaugeOpts{
		Name:      "submissions_in_flight",
		Namespace: namespaceClient,
		Help:      "submissions currently running",
	}

	return &SubmissionMetrics{
		outcomes:       factory.NewCounterVec(outcomeOpts, []string{"state"}),
		stageDuration:  factory.NewHistogramVec(stageOpts, []string{"stage"}),
		feeAdjustments: factory.NewCounter(feeOpts),
		polls:          factory.NewHistogram(pollOpts),
		inFlight:       factory.NewGauge(inFlightOpts),
	}
}

func (m *SubmissionMetrics) Started() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

// Finished counts a submission that stopped in state after polls status
// requests.
func (m *SubmissionMetrics) Finished(state string, polls int) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.outcomes.WithLabelValues(state).Inc()
	if polls > 0 {
		m.polls.Observe(float64(polls))
	}
}

func (m *SubmissionMetrics) StageCompleted(stage string, took time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(took.Seconds())
}

func (m *SubmissionMetrics) FeesAdjusted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.feeAdjustments.Add(float64(n))
}
