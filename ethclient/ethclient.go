package ethclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/omni/messenger-watcher/logging"
)

var ErrIncompatibleChainID = errors.New("rpc url returned incompatible chainID")

// Client is a read-only handle to a single chain. Implementations must be
// safe for concurrent use, including concurrent SubscribeFilterLogs and
// Unsubscribe calls.
type Client interface {
	ChainID() string
	BlockNumber(ctx context.Context) (uint, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	TransactionReceiptByHash(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	// SubscribeFilterLogs delivers logs matching q from blocks mined after the call.
	// The returned subscription must be released with Unsubscribe.
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

type rpcClient struct {
	chainID      string
	url          string
	timeout      time.Duration
	pollInterval time.Duration
	maxRange     uint
	logger       logging.Logger
	rawClient    *rpc.Client
	client       *ethclient.Client
}

// NewClient dials url and checks that it serves chainID. maxRange bounds the
// eth_getLogs requests of polling subscriptions.
func NewClient(logger logging.Logger, url string, timeout, pollInterval time.Duration, maxRange uint, chainID string) (Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rawClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("can't dial JSON rpc url: %w", err)
	}
	client := &rpcClient{
		chainID:      chainID,
		url:          url,
		timeout:      timeout,
		pollInterval: pollInterval,
		maxRange:     maxRange,
		logger:       logger.WithField("chain_id", chainID),
		rawClient:    rawClient,
		client:       ethclient.NewClient(rawClient),
	}
	rpcChainID, err := client.client.ChainID(ctx)
	if err != nil {
		rawClient.Close()
		return nil, fmt.Errorf("can't get chainID: %w", err)
	}
	if rpcChainID.String() != chainID {
		rawClient.Close()
		return nil, fmt.Errorf("received chainID %s != expected %s: %w", rpcChainID, chainID, ErrIncompatibleChainID)
	}
	return client, nil
}

func (c *rpcClient) ChainID() string {
	return c.chainID
}

func (c *rpcClient) BlockNumber(ctx context.Context) (uint, error) {
	defer ObserveDuration(c.chainID, "eth_blockNumber")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	n, err := c.client.BlockNumber(ctx)
	ObserveError(c.chainID, "eth_blockNumber", err)
	return uint(n), err
}

func (c *rpcClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	defer ObserveDuration(c.chainID, "eth_getLogs")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	logs, err := c.client.FilterLogs(ctx, q)
	ObserveError(c.chainID, "eth_getLogs", err)
	return logs, err
}

func (c *rpcClient) TransactionReceiptByHash(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	defer ObserveDuration(c.chainID, "eth_getTransactionReceipt")()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		ObserveError(c.chainID, "eth_getTransactionReceipt", nil)
		return nil, err
	}
	ObserveError(c.chainID, "eth_getTransactionReceipt", err)
	return receipt, err
}

// SubscribeFilterLogs uses eth_subscribe on websocket and IPC endpoints, and
// falls back to polling eth_getLogs every poll interval on HTTP endpoints.
func (c *rpcClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	if !c.rawClient.SupportsSubscriptions() {
		sub, err := NewPollingSubscription(ctx, c.logger, c, q, c.pollInterval, c.maxRange, ch)
		if err != nil {
			return nil, err
		}
		return trackSubscription(c.chainID, "poll", sub), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sub, err := c.client.SubscribeFilterLogs(ctx, q, ch)
	ObserveError(c.chainID, "eth_subscribe", err)
	if err != nil {
		return nil, fmt.Errorf("can't subscribe to logs: %w", err)
	}
	return trackSubscription(c.chainID, "push", sub), nil
}
