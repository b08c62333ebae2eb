package watcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ResolveResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "monitor",
		Subsystem: "watcher",
		Name:      "resolve_results_total",
		Help:      "Counts relay resolutions by outcome: relayed, failed, absent, multiple, error or cancelled.",
	}, []string{"chain_id", "result"})
	ActiveWaits = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "watcher",
		Name:      "active_relay_waits",
		Help:      "Shows the number of relay resolutions currently waiting for a live relay event.",
	}, []string{"chain_id"})
)
