package stm

import "github.com/prometheus/client_golang/prometheus"

// Registry is the Prometheus registry the engine's own counters register
// into. It is a dedicated registry rather than prometheus.DefaultRegisterer,
// so importing this package never collides with an embedder's own metric
// names or panics their process at init. Callers who want these counters
// exposed wire Registry into their own handler, e.g.
// promhttp.HandlerFor(stm.Registry, promhttp.HandlerOpts{}); callers who
// never reference Registry pay only the cost of the counters existing in
// memory, never a registration conflict.
var Registry = prometheus.NewRegistry()

// metricsSet is the package's observability surface, grounded on
// talent-plan-tinykv's scheduler/server/metrics.go package-level
// prometheus.NewCounterVec/NewGaugeVec pattern.
type metricsSet struct {
	commits       prometheus.Counter
	retries       prometheus.Counter
	conflicts     *prometheus.CounterVec
	shapeUpgrades prometheus.Counter
}

func newMetricsSet() *metricsSet {
	m := &metricsSet{
		commits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stm",
			Subsystem: "executor",
			Name:      "commits_total",
			Help:      "Total number of committed transactions.",
		}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stm",
			Subsystem: "executor",
			Name:      "retries_total",
			Help:      "Total number of blocking Retry parks.",
		}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stm",
			Subsystem: "executor",
			Name:      "conflicts_total",
			Help:      "Total number of aborted attempts, by control signal kind.",
		}, []string{"kind"}),
		shapeUpgrades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stm",
			Subsystem: "executor",
			Name:      "shape_upgrades_total",
			Help:      "Total number of speculative-shape escalations (lean -> fat -> fat-monitored).",
		}),
	}
	Registry.MustRegister(m.commits, m.retries, m.conflicts, m.shapeUpgrades)
	return m
}

var defaultMetrics = newMetricsSet()
