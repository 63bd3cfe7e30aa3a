// Package metrics holds the two supplements to the system-of-record: an
// in-process prometheus/client_golang registry of live gauges, and a
// metrics.jsonl recorder that appends one MetricsRecord per completed task
// (spec §3/§6). The gauges are a live in-process view, readable through
// Registry.Gatherer; neither the debug HTTP API nor the TUI reads them.
// metrics.jsonl remains authoritative.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the live gauges the orchestrator updates while it runs. It
// is local to the process — never scraped over the network by the core.
type Registry struct {
	reg *prometheus.Registry

	ActiveWorkers    prometheus.Gauge
	MergeQueueDepth  prometheus.Gauge
	StuckWorkers     prometheus.Gauge
	TierDistribution *prometheus.GaugeVec
}

// NewRegistry constructs a Registry with every gauge registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "undercity",
			Name:      "active_workers",
			Help:      "Number of workers currently executing a task.",
		}),
		MergeQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "undercity",
			Name:      "merge_queue_depth",
			Help:      "Number of items currently pending in the merge queue.",
		}),
		StuckWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "undercity",
			Name:      "stuck_workers",
			Help:      "Number of workspaces the health monitor currently considers stale.",
		}),
		TierDistribution: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "undercity",
			Name:      "tier_distribution",
			Help:      "Number of active workers per router tier.",
		}, []string{"tier"}),
	}

	reg.MustRegister(r.ActiveWorkers, r.MergeQueueDepth, r.StuckWorkers, r.TierDistribution)
	return r
}

// Gatherer exposes the underlying prometheus.Gatherer. No HTTP handler in
// this module serves it.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// SetTierCount overwrites the active-worker gauge for one router tier.
func (r *Registry) SetTierCount(tier string, count int) {
	r.TierDistribution.WithLabelValues(tier).Set(float64(count))
}
