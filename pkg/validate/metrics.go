package validate

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// commitsTotal counts commit attempts by outcome.
	commitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "netlord_commits_total",
			Help: "Total number of patch commits by outcome",
		},
		[]string{"result"},
	)

	// commitSeconds tracks commit latency.
	commitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "netlord_commit_seconds",
			Help: "Latency of successful patch commits",
		},
	)

	// ruleRunSeconds tracks rule set evaluation latency.
	ruleRunSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "netlord_rule_run_seconds",
			Help: "Latency of rule set evaluations",
		},
		[]string{"rule_set"},
	)

	// violationsGauge tracks the violation counts of the last report by severity.
	violationsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "netlord_violations",
			Help: "Violations in the most recent report by severity",
		},
		[]string{"severity"},
	)

	// graphNodes tracks the node count of the latest graph version.
	graphNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netlord_graph_nodes",
			Help: "Node count of the latest graph version",
		},
	)

	// graphEdges tracks the edge count of the latest graph version.
	graphEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "netlord_graph_edges",
			Help: "Edge count of the latest graph version",
		},
	)
)

func init() {
	prometheus.MustRegister(commitsTotal)
	prometheus.MustRegister(commitSeconds)
	prometheus.MustRegister(ruleRunSeconds)
	prometheus.MustRegister(violationsGauge)
	prometheus.MustRegister(graphNodes)
	prometheus.MustRegister(graphEdges)
}
