package ethclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "monitor",
		Subsystem: "rpc",
		Name:      "request_results_total",
	}, []string{"chain_id", "query", "status"})

	RequestDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "monitor",
		Subsystem: "rpc",
		Name:      "request_duration_seconds",
		Buckets:   []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 20},
	}, []string{"chain_id", "query"})

	ActiveSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "monitor",
		Subsystem: "rpc",
		Name:      "active_log_subscriptions",
		Help:      "Shows the number of log subscriptions that are registered and not yet released.",
	}, []string{"chain_id", "mode"})
)

func ObserveError(chainID, query string, err error) {
	if err != nil {
		var rpcErr rpc.Error
		if errors.Is(err, context.DeadlineExceeded) {
			RequestResults.WithLabelValues(chainID, query, "timeout").Inc()
		} else if errors.As(err, &rpcErr) {
			RequestResults.WithLabelValues(chainID, query, fmt.Sprintf("error-%d", rpcErr.ErrorCode())).Inc()
		} else {
			RequestResults.WithLabelValues(chainID, query, "error").Inc()
		}
	} else {
		RequestResults.WithLabelValues(chainID, query, "ok").Inc()
	}
}

func ObserveDuration(chainID, query string) func() time.Duration {
	return prometheus.NewTimer(RequestDurations.WithLabelValues(chainID, query)).ObserveDuration
}

type trackedSubscription struct {
	ethereum.Subscription
	gauge prometheus.Gauge
	once  sync.Once
}

func trackSubscription(chainID, mode string, sub ethereum.Subscription) ethereum.Subscription {
	gauge := ActiveSubscriptions.WithLabelValues(chainID, mode)
	gauge.Inc()
	return &trackedSubscription{Subscription: sub, gauge: gauge}
}

func (s *trackedSubscription) Unsubscribe() {
	s.Subscription.Unsubscribe()
	s.once.Do(s.gauge.Dec)
}
