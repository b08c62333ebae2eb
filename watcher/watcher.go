package watcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/omni/messenger-watcher/config"
	"github.com/omni/messenger-watcher/contract"
	"github.com/omni/messenger-watcher/ethclient"
	"github.com/omni/messenger-watcher/logging"
)

const (
	DefaultMaxBlockRangeSize = 10000
	DefaultLookbackBlocks    = 10000
)

type Domain string

const (
	Home    Domain = "home"
	Foreign Domain = "foreign"
)

func ParseDomain(s string) (Domain, error) {
	switch d := Domain(s); d {
	case Home, Foreign:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDomain, s)
	}
}

func (d Domain) Opposite() Domain {
	if d == Home {
		return Foreign
	}
	return Home
}

// Side is one chain endpoint of a watcher together with its messenger.
type Side struct {
	Domain            Domain
	Client            ethclient.Client
	Messenger         *contract.Messenger
	MaxBlockRangeSize uint
}

// NewSide uses DefaultMaxBlockRangeSize when maxBlockRangeSize is zero.
func NewSide(domain Domain, client ethclient.Client, messenger common.Address, maxBlockRangeSize uint) *Side {
	if maxBlockRangeSize == 0 {
		maxBlockRangeSize = DefaultMaxBlockRangeSize
	}
	return &Side{
		Domain:            domain,
		Client:            client,
		Messenger:         contract.NewMessenger(messenger),
		MaxBlockRangeSize: maxBlockRangeSize,
	}
}

// Watcher correlates messages between a home and a foreign chain.
// Methods taking a domain read the source side for extraction and the
// destination side for relay resolution.
type Watcher struct {
	ID       string
	logger   logging.Logger
	home     *Side
	foreign  *Side
	resolver *Resolver
}

// NewWatcher uses DefaultLookbackBlocks when lookback is zero.
func NewWatcher(id string, logger logging.Logger, home, foreign *Side, lookback uint) *Watcher {
	if lookback == 0 {
		lookback = DefaultLookbackBlocks
	}
	logger = logger.WithField("watcher_id", id)
	return &Watcher{
		ID:       id,
		logger:   logger,
		home:     home,
		foreign:  foreign,
		resolver: NewResolver(logger, lookback),
	}
}

// NewWatcherFromConfig dials both endpoints of the configured watcher.
func NewWatcherFromConfig(logger logging.Logger, cfg *config.WatcherConfig) (*Watcher, error) {
	home, err := dialSide(logger, Home, cfg.Home)
	if err != nil {
		return nil, err
	}
	foreign, err := dialSide(logger, Foreign, cfg.Foreign)
	if err != nil {
		return nil, err
	}
	return NewWatcher(cfg.ID, logger, home, foreign, cfg.LookbackBlocks), nil
}

func dialSide(logger logging.Logger, domain Domain, cfg *config.WatcherSideConfig) (*Side, error) {
	rpc := cfg.Chain.RPC
	client, err := ethclient.NewClient(logger, rpc.Host, rpc.Timeout, rpc.PollInterval, cfg.Chain.MaxBlockRangeSize, cfg.Chain.ChainID)
	if err != nil {
		return nil, fmt.Errorf("can't create %s rpc client for chain %s: %w", domain, cfg.ChainName, err)
	}
	return NewSide(domain, client, cfg.MessengerAddress, cfg.Chain.MaxBlockRangeSize), nil
}

func (w *Watcher) Side(domain Domain) (*Side, error) {
	switch domain {
	case Home:
		return w.home, nil
	case Foreign:
		return w.foreign, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
	}
}

// SentMessagesFrom decodes the messages sent by txHash on the source domain.
// A receipt unknown to the chain yields an empty result.
func (w *Watcher) SentMessagesFrom(ctx context.Context, domain Domain, txHash common.Hash) ([]*contract.SentMessage, error) {
	src, err := w.Side(domain)
	if err != nil {
		return nil, err
	}
	receipt, err := src.Client.TransactionReceiptByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		w.logger.WithFields(logrus.Fields{
			"domain":  domain,
			"tx_hash": txHash,
		}).Debug("source receipt is not found yet")
		return []*contract.SentMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: can't get %s receipt %s: %w", ErrEndpointUnavailable, domain, txHash, err)
	}
	return src.Messenger.SentMessages(receipt)
}

func (w *Watcher) MessageHashesFrom(ctx context.Context, domain Domain, txHash common.Hash) ([]common.Hash, error) {
	msgs, err := w.SentMessagesFrom(ctx, domain, txHash)
	if err != nil {
		return nil, err
	}
	return MessageHashes(msgs)
}

// RelayFor resolves msgHash on the destination domain.
func (w *Watcher) RelayFor(ctx context.Context, domain Domain, msgHash common.Hash, pollForPending bool) (*Relay, error) {
	dst, err := w.Side(domain)
	if err != nil {
		return nil, err
	}
	return w.resolver.Resolve(ctx, dst, msgHash, pollForPending)
}

// ReceiptFor returns the relay receipt of msgHash on the destination
// domain, or nil when it is not relayed and pollForPending is false.
func (w *Watcher) ReceiptFor(ctx context.Context, domain Domain, msgHash common.Hash, pollForPending bool) (*types.Receipt, error) {
	relay, err := w.RelayFor(ctx, domain, msgHash, pollForPending)
	if err != nil || relay == nil {
		return nil, err
	}
	return relay.Receipt, nil
}

func (w *Watcher) MessageHashesFromHomeTx(ctx context.Context, txHash common.Hash) ([]common.Hash, error) {
	return w.MessageHashesFrom(ctx, Home, txHash)
}

func (w *Watcher) MessageHashesFromForeignTx(ctx context.Context, txHash common.Hash) ([]common.Hash, error) {
	return w.MessageHashesFrom(ctx, Foreign, txHash)
}

func (w *Watcher) HomeReceipt(ctx context.Context, msgHash common.Hash, pollForPending bool) (*types.Receipt, error) {
	return w.ReceiptFor(ctx, Home, msgHash, pollForPending)
}

func (w *Watcher) ForeignReceipt(ctx context.Context, msgHash common.Hash, pollForPending bool) (*types.Receipt, error) {
	return w.ReceiptFor(ctx, Foreign, msgHash, pollForPending)
}

// RelayInTx looks for the relay of msgHash in a known destination transaction,
// e.g. one remembered from an earlier resolution. A nil Relay means txHash
// does not relay msgHash.
func (w *Watcher) RelayInTx(ctx context.Context, domain Domain, txHash, msgHash common.Hash) (*Relay, error) {
	dst, err := w.Side(domain)
	if err != nil {
		return nil, err
	}
	receipt, err := dst.Client.TransactionReceiptByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: can't get %s receipt %s: %w", ErrEndpointUnavailable, domain, txHash, err)
	}
	for _, log := range receipt.Logs {
		if log.Address != dst.Messenger.Address() {
			continue
		}
		hash, success, err := contract.ParseRelay(log)
		if err != nil || hash != msgHash {
			continue
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
	return nil, nil
}
