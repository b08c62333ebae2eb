package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TrackedMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "tracker",
		Name:      "tracked_messages",
		Help:      "Shows the number of messages with a running relay wait.",
	}, []string{"watcher_id"})
	RelayWaitResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "monitor",
		Subsystem: "tracker",
		Name:      "relay_wait_results_total",
		Help:      "Counts finished relay waits by relay status, or error when the wait gave up.",
	}, []string{"watcher_id", "status"})
)
