// Package metrics collects and exposes Prometheus metrics for the
// reconciliation engine and the bulk backfill coordinator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconciliation outcomes recorded by the engine.
const (
	OutcomeCreated = "created"
	OutcomeMerged  = "merged"
	OutcomeFailed  = "failed"
)

// Collector owns the metric vectors. The registry is injected so tests can
// use a private one instead of the process-global default.
//
// All methods are nil-safe: a nil *Collector records nothing, so wiring
// metrics stays optional.
type Collector struct {
	reconciliations *prometheus.CounterVec
	logins          *prometheus.CounterVec
	backfillEntries *prometheus.CounterVec
	backfillRuns    prometheus.Counter
}

// NewCollector creates and registers all collectors on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rupantar_reconciliations_total",
			Help: "Identity reconciliations by outcome (created, merged, failed).",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rupantar_logins_total",
			Help: "Password logins by result (ok, rejected).",
		}, []string{"result"}),
		backfillEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rupantar_backfill_entries_total",
			Help: "Backfill entries by disposition (synced, failed, skipped).",
		}, []string{"disposition"}),
		backfillRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rupantar_backfill_runs_total",
			Help: "Completed bulk backfill runs.",
		}),
	}
	reg.MustRegister(c.reconciliations, c.logins, c.backfillEntries, c.backfillRuns)
	return c
}

func (c *Collector) RecordReconciliation(outcome string) {
	if c == nil {
		return
	}
	c.reconciliations.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordLogin(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordBackfillEntry(disposition string) {
	if c == nil {
		return
	}
	c.backfillEntries.WithLabelValues(disposition).Inc()
}

func (c *Collector) RecordBackfillRun() {
	if c == nil {
		return
	}
	c.backfillRuns.Inc()
}

// Handler returns the /metrics HTTP handler for the given registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
