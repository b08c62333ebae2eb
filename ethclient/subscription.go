package ethclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/omni/messenger-watcher/logging"
)

type LogsSource interface {
	BlockNumber(ctx context.Context) (uint, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// NewPollingSubscription emulates eth_subscribe("logs") over eth_getLogs.
// Polling starts right after q.FromBlock, or after the current head when
// q.FromBlock is nil. A single eth_getLogs request spans at most maxRange
// blocks (zero means unbounded), a lagging subscription catches up without
// waiting for the next interval. Each subscription owns its polling
// goroutine, which exits on Unsubscribe or on the first failed request;
// the failure is reported on Err().
func NewPollingSubscription(ctx context.Context, logger logging.Logger, src LogsSource, q ethereum.FilterQuery, interval time.Duration, maxRange uint, ch chan<- types.Log) (ethereum.Subscription, error) {
	var next uint
	if q.FromBlock != nil {
		next = uint(q.FromBlock.Uint64())
	} else {
		head, err := src.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("can't get starting block for logs polling: %w", err)
		}
		next = head + 1
	}
	q.ToBlock = nil

	return event.NewSubscription(func(quit <-chan struct{}) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-quit:
				cancel()
			case <-ctx.Done():
			}
		}()

		caughtUp := true
		for {
			if caughtUp && !sleep(ctx, interval) {
				return nil
			}
			head, err := src.BlockNumber(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("can't poll latest block number: %w", err)
			}
			if head < next {
				caughtUp = true
				continue
			}
			to := head
			if maxRange > 0 && to-next+1 > maxRange {
				to = next + maxRange - 1
			}
			fq := q
			fq.FromBlock = new(big.Int).SetUint64(uint64(next))
			fq.ToBlock = new(big.Int).SetUint64(uint64(to))
			logs, err := src.FilterLogs(ctx, fq)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("can't poll logs in range %d-%d: %w", next, to, err)
			}
			logger.WithFields(logrus.Fields{
				"from_block": next,
				"to_block":   to,
				"count":      len(logs),
			}).Trace("polled logs")
			for _, log := range logs {
				select {
				case ch <- log:
				case <-quit:
					return nil
				}
			}
			next = to + 1
			caughtUp = to == head
		}
	}), nil
}

// sleep reports false when ctx is done before d elapses.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
