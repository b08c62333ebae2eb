package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/omni/messenger-watcher/contract"
	"github.com/omni/messenger-watcher/contract/messengerabi"
	"github.com/omni/messenger-watcher/logging"
)

const liveLogsBuffer = 16

type RelayStatus string

const (
	RelaySucceeded RelayStatus = "succeeded"
	RelayFailed    RelayStatus = "failed"
)

// Relay is the observed execution of a message on its destination chain.
type Relay struct {
	MsgHash common.Hash
	Status  RelayStatus
	Log     types.Log
	Receipt *types.Receipt
}

type Resolver struct {
	logger   logging.Logger
	lookback uint
}

func NewResolver(logger logging.Logger, lookback uint) *Resolver {
	return &Resolver{
		logger:   logger,
		lookback: lookback,
	}
}

// Resolve looks for the relay of msgHash on the destination side.
// A nil Relay with a nil error means the message is not relayed yet and
// pollForPending was not requested. With pollForPending the call blocks
// until a relay event is observed or ctx is done.
func (r *Resolver) Resolve(ctx context.Context, dst *Side, msgHash common.Hash, pollForPending bool) (*Relay, error) {
	chainID := dst.Client.ChainID()
	logger := r.logger.WithFields(logrus.Fields{
		"chain_id": chainID,
		"domain":   dst.Domain,
		"msg_hash": msgHash,
	})
	q := relayFilter(dst.Messenger.Address(), msgHash)

	var sub ethereum.Subscription
	var logs chan types.Log
	if pollForPending {
		logs = make(chan types.Log, liveLogsBuffer)
		var err error
		sub, err = dst.Client.SubscribeFilterLogs(ctx, q, logs)
		if err != nil {
			ResolveResults.WithLabelValues(chainID, "error").Inc()
			return nil, fmt.Errorf("%w: can't subscribe to relay events: %w", ErrSubscriptionFailed, err)
		}
		defer sub.Unsubscribe()
	}

	relay, err := r.scan(ctx, dst, q, msgHash)
	if err != nil {
		ResolveResults.WithLabelValues(chainID, resultLabel(err)).Inc()
		return nil, err
	}
	if relay != nil || !pollForPending {
		ResolveResults.WithLabelValues(chainID, relayLabel(relay)).Inc()
		return relay, nil
	}

	logger.Debug("relay not found in lookback window, waiting for relay event")
	ActiveWaits.WithLabelValues(chainID).Inc()
	defer ActiveWaits.WithLabelValues(chainID).Dec()

	relay, err = r.wait(ctx, dst, msgHash, sub, logs)
	if err != nil {
		ResolveResults.WithLabelValues(chainID, resultLabel(err)).Inc()
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"tx_hash":      relay.Log.TxHash,
		"block_number": relay.Log.BlockNumber,
		"status":       relay.Status,
	}).Info("observed live relay event")
	ResolveResults.WithLabelValues(chainID, relayLabel(relay)).Inc()
	return relay, nil
}

func (r *Resolver) scan(ctx context.Context, dst *Side, q ethereum.FilterQuery, msgHash common.Hash) (*Relay, error) {
	head, err := dst.Client.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: can't get latest block: %w", ErrEndpointUnavailable, err)
	}
	window := LookbackWindow(head, r.lookback)
	ranges := SplitBlockRange(window.From, window.To, dst.MaxBlockRangeSize)

	var succeeded, failed []types.Log
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		succeeded, err = filterRanges(gctx, dst, q, messengerabi.RelayedMessageEventSignature, ranges)
		return err
	})
	g.Go(func() error {
		var err error
		failed, err = filterRanges(gctx, dst, q, messengerabi.FailedRelayedMessageEventSignature, ranges)
		return err
	})
	if err = g.Wait(); err != nil {
		return nil, err
	}

	matches := matchRelays(append(succeeded, failed...), msgHash)
	r.logger.WithFields(logrus.Fields{
		"chain_id":   dst.Client.ChainID(),
		"msg_hash":   msgHash,
		"from_block": window.From,
		"to_block":   window.To,
		"matches":    len(matches),
	}).Debug("scanned lookback window for relay events")

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		relay, err := fetchRelay(ctx, dst, &matches[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEndpointUnavailable, err)
		}
		return relay, nil
	default:
		return nil, fmt.Errorf("%w: %s has %d relay events in blocks %d-%d", ErrMultipleRelays, msgHash, len(matches), window.From, window.To)
	}
}

func (r *Resolver) wait(ctx context.Context, dst *Side, msgHash common.Hash, sub ethereum.Subscription, logs <-chan types.Log) (*Relay, error) {
	for {
		select {
		case log := <-logs:
			if log.Removed || len(matchRelays([]types.Log{log}, msgHash)) == 0 {
				continue
			}
			relay, err := fetchRelay(ctx, dst, &log)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
			}
			return relay, nil
		case err := <-sub.Err():
			if err == nil {
				err = errSubscriptionClosed
			}
			return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// relayFilter matches both relay outcome events of msgHash. The same filter
// backs the historical scan and the live subscription.
func relayFilter(messenger common.Address, msgHash common.Hash) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{messenger},
		Topics:    [][]common.Hash{contract.RelayEventTopics(), {msgHash}},
	}
}

func filterRanges(ctx context.Context, dst *Side, q ethereum.FilterQuery, topic common.Hash, ranges []*BlocksRange) ([]types.Log, error) {
	q.Topics = [][]common.Hash{{topic}, q.Topics[1]}
	res := make([]types.Log, 0)
	for _, br := range ranges {
		q.FromBlock = new(big.Int).SetUint64(uint64(br.From))
		q.ToBlock = new(big.Int).SetUint64(uint64(br.To))
		logs, err := dst.Client.FilterLogs(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%w: can't get relay logs in blocks %d-%d: %w", ErrEndpointUnavailable, br.From, br.To, err)
		}
		res = append(res, logs...)
	}
	return res, nil
}

func matchRelays(logs []types.Log, msgHash common.Hash) []types.Log {
	res := make([]types.Log, 0, 1)
	for _, log := range logs {
		hash, _, err := contract.ParseRelay(&log)
		if err == nil && hash == msgHash {
			res = append(res, log)
		}
	}
	return res
}

func fetchRelay(ctx context.Context, dst *Side, log *types.Log) (*Relay, error) {
	hash, success, err := contract.ParseRelay(log)
	if err != nil {
		return nil, err
	}
	receipt, err := dst.Client.TransactionReceiptByHash(ctx, log.TxHash)
	if err != nil {
		return nil, fmt.Errorf("can't get relay receipt %s: %w", log.TxHash, err)
	}
	status := RelaySucceeded
	if !success {
		status = RelayFailed
	}
	return &Relay{
		MsgHash: hash,
		Status:  status,
		Log:     *log,
		Receipt: receipt,
	}, nil
}

func relayLabel(relay *Relay) string {
	switch {
	case relay == nil:
		return "absent"
	case relay.Status == RelayFailed:
		return "failed"
	default:
		return "relayed"
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrMultipleRelays):
		return "multiple"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
