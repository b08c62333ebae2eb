package watchertest

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"github.com/omni/messenger-watcher/ethclient"
)

var _ ethclient.Client = (*Chain)(nil)

// Chain is an in-memory ethclient.Client. Every Mine call produces one block
// with one transaction carrying the given logs.
type Chain struct {
	chainID string

	mu       sync.Mutex
	head     uint
	txCount  int
	logs     []types.Log
	receipts map[common.Hash]*types.Receipt
	subErrs  map[int]chan error
	nextSub  int
	queries  []ethereum.FilterQuery

	feed   event.Feed
	active atomic.Int32
	total  atomic.Int32

	BlockNumberErr  error
	FilterLogsErr   error
	ReceiptErr      error
	SubscribeErr    error
	OnBlockNumber   func()
	OnSubscribeSent func()
}

func NewChain(chainID string, head uint) *Chain {
	return &Chain{
		chainID:  chainID,
		head:     head,
		receipts: make(map[common.Hash]*types.Receipt),
		subErrs:  make(map[int]chan error),
	}
}

func (c *Chain) ChainID() string {
	return c.chainID
}

// Mine appends a block holding a single transaction that emitted logs and
// pushes the logs to live subscribers.
func (c *Chain) Mine(logs ...*types.Log) *types.Receipt {
	c.mu.Lock()
	c.head++
	c.txCount++
	txHash := crypto.Keccak256Hash([]byte(c.chainID), big.NewInt(int64(c.txCount)).Bytes())
	blockHash := crypto.Keccak256Hash(txHash.Bytes())
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockHash:   blockHash,
		BlockNumber: new(big.Int).SetUint64(uint64(c.head)),
		Logs:        make([]*types.Log, 0, len(logs)),
	}
	mined := make([]types.Log, 0, len(logs))
	for i, log := range logs {
		l := *log
		l.BlockNumber = uint64(c.head)
		l.BlockHash = blockHash
		l.TxHash = txHash
		l.Index = uint(i)
		receipt.Logs = append(receipt.Logs, &l)
		mined = append(mined, l)
	}
	c.logs = append(c.logs, mined...)
	c.receipts[txHash] = receipt
	c.mu.Unlock()

	for _, log := range mined {
		c.feed.Send(log)
	}
	return receipt
}

// AdvanceHead mines n empty blocks.
func (c *Chain) AdvanceHead(n uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head += n
}

// FailSubscriptions terminates every live subscription with err.
func (c *Chain) FailSubscriptions(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subErrs {
		select {
		case ch <- err:
		default:
		}
	}
}

func (c *Chain) ActiveSubscriptions() int {
	return int(c.active.Load())
}

func (c *Chain) TotalSubscriptions() int {
	return int(c.total.Load())
}

func (c *Chain) Queries() []ethereum.FilterQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ethereum.FilterQuery(nil), c.queries...)
}

func (c *Chain) BlockNumber(context.Context) (uint, error) {
	if c.OnBlockNumber != nil {
		c.OnBlockNumber()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.BlockNumberErr != nil {
		return 0, c.BlockNumberErr
	}
	return c.head, nil
}

func (c *Chain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, q)
	if c.FilterLogsErr != nil {
		return nil, c.FilterLogsErr
	}
	toBlock := uint64(c.head)
	if q.ToBlock != nil {
		toBlock = q.ToBlock.Uint64()
	}
	var fromBlock uint64
	if q.FromBlock != nil {
		fromBlock = q.FromBlock.Uint64()
	}
	res := make([]types.Log, 0)
	for _, log := range c.logs {
		if log.BlockNumber >= fromBlock && log.BlockNumber <= toBlock && Matches(q, &log) {
			res = append(res, log)
		}
	}
	return res, nil
}

func (c *Chain) TransactionReceiptByHash(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReceiptErr != nil {
		return nil, c.ReceiptErr
	}
	receipt, ok := c.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (c *Chain) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	c.mu.Lock()
	if c.SubscribeErr != nil {
		c.mu.Unlock()
		return nil, c.SubscribeErr
	}
	id := c.nextSub
	c.nextSub++
	errCh := make(chan error, 1)
	c.subErrs[id] = errCh
	c.mu.Unlock()

	feedCh := make(chan types.Log)
	feedSub := c.feed.Subscribe(feedCh)
	c.active.Add(1)
	c.total.Add(1)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer func() {
			feedSub.Unsubscribe()
			c.mu.Lock()
			delete(c.subErrs, id)
			c.mu.Unlock()
			c.active.Add(-1)
		}()
		for {
			select {
			case log := <-feedCh:
				if !Matches(q, &log) {
					continue
				}
				select {
				case ch <- log:
					if c.OnSubscribeSent != nil {
						c.OnSubscribeSent()
					}
				case <-quit:
					return nil
				}
			case err := <-errCh:
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// Matches applies eth_getLogs address and topic matching rules.
func Matches(q ethereum.FilterQuery, log *types.Log) bool {
	if len(q.Addresses) > 0 {
		found := false
		for _, addr := range q.Addresses {
			if addr == log.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Topics) > len(log.Topics) {
		return false
	}
	for i, options := range q.Topics {
		if len(options) == 0 {
			continue
		}
		found := false
		for _, topic := range options {
			if topic == log.Topics[i] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
