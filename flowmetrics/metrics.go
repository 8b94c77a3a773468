// Package flowmetrics exposes the engine's per-tick counters through
// Prometheus client types, in place of the expvar-backed counters the
// teacher's metric package used for the same purpose: message/sample
// counts per component, now tick and outcome counts per block.
package flowmetrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// Ticks counts every run_once invocation, labeled by block name.
	Ticks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgraph_block_ticks_total",
		Help: "Number of run_once invocations per block.",
	}, []string{"block"})

	// Outcomes counts run_once results, labeled by block name and outcome
	// (produced, idle, eof).
	Outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flowgraph_block_outcomes_total",
		Help: "Number of run_once outcomes per block, by outcome kind.",
	}, []string{"block", "outcome"})

	// ChildrenLive gauges the number of still-running children under the
	// process driver.
	ChildrenLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flowgraph_children_live",
		Help: "Number of process-driver children currently running.",
	})
)

func init() {
	prometheus.MustRegister(Ticks, Outcomes, ChildrenLive)
}
