// Package metrics registers the Prometheus collectors for the credit
// platform. All methods are nil-safe so callers can run without a
// registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "solarshare"

// Metrics bundles the platform's Prometheus collectors.
type Metrics struct {
	creditRunsTotal    *prometheus.CounterVec
	creditsPostedCents prometheus.Counter
	creditRunUsers     *prometheus.CounterVec
	offsetsTotal       *prometheus.CounterVec
	offsetCentsTotal   prometheus.Counter
}

// New registers the collectors with the given registerer.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		creditRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_runs_total",
			Help:      "Monthly credit runs, by outcome.",
		}, []string{"outcome"}),
		creditsPostedCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_posted_cents_total",
			Help:      "Total credit cents posted to the ledger by credit runs.",
		}),
		creditRunUsers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_run_users_total",
			Help:      "Per-user credit run outcomes.",
		}, []string{"outcome"}),
		offsetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_offsets_total",
			Help:      "Bill offset attempts, by outcome.",
		}, []string{"outcome"}),
		offsetCentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_offset_cents_total",
			Help:      "Total credit cents applied to bills.",
		}),
	}
	registerer.MustRegister(
		m.creditRunsTotal,
		m.creditsPostedCents,
		m.creditRunUsers,
		m.offsetsTotal,
		m.offsetCentsTotal,
	)
	return m
}

// ObserveCreditRun records one finished run.
func (m *Metrics) ObserveCreditRun(outcome string, postedCents int64) {
	if m == nil {
		return
	}
	m.creditRunsTotal.WithLabelValues(outcome).Inc()
	if postedCents > 0 {
		m.creditsPostedCents.Add(float64(postedCents))
	}
}

// ObserveCreditRunUser records one per-user outcome inside a run.
func (m *Metrics) ObserveCreditRunUser(outcome string) {
	if m == nil {
		return
	}
	m.creditRunUsers.WithLabelValues(outcome).Inc()
}

// ObserveOffset records one bill offset attempt.
func (m *Metrics) ObserveOffset(outcome string, appliedCents int64) {
	if m == nil {
		return
	}
	m.offsetsTotal.WithLabelValues(outcome).Inc()
	if appliedCents > 0 {
		m.offsetCentsTotal.Add(float64(appliedCents))
	}
}

// Outcome labels shared by the collectors.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeSkipped      = "skipped"
	OutcomeInsufficient = "insufficient"
)
