package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NewAlertStuckMessage = func(watcherID string) *prometheus.GaugeVec {
		return promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "alert",
			Subsystem:   "monitor",
			Name:        "stuck_message",
			Help:        "Shows the age in seconds of sent messages that are still not relayed on the destination domain.",
			ConstLabels: prometheus.Labels{"watcher_id": watcherID},
		}, []string{"chain_id", "block_number", "tx_hash", "msg_hash"})
	}
	NewAlertFailedRelay = func(watcherID string) *prometheus.GaugeVec {
		return promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "alert",
			Subsystem:   "monitor",
			Name:        "failed_relay",
			Help:        "Shows messages whose relay emitted FailedRelayedMessage on the destination domain.",
			ConstLabels: prometheus.Labels{"watcher_id": watcherID},
		}, []string{"chain_id", "block_number", "tx_hash", "msg_hash"})
	}
)
