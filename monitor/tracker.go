package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/omni/messenger-watcher/cache"
	"github.com/omni/messenger-watcher/config"
	"github.com/omni/messenger-watcher/contract"
	"github.com/omni/messenger-watcher/entity"
	"github.com/omni/messenger-watcher/logging"
	"github.com/omni/messenger-watcher/repository"
	"github.com/omni/messenger-watcher/watcher"
)

type relayWait struct {
	id     string
	msg    *entity.Message
	cancel context.CancelFunc
}

// Tracker persists messages of source transactions and keeps a relay wait
// running for each of them until the relay is observed on the opposite
// domain. Waits are deduplicated by message hash.
type Tracker struct {
	cfg     *config.TrackerConfig
	logger  logging.Logger
	watcher *watcher.Watcher
	repo    *repository.Repo
	cache   cache.RelayCache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	waits  map[common.Hash]*relayWait
}

func NewTracker(logger logging.Logger, cfg *config.TrackerConfig, w *watcher.Watcher, repo *repository.Repo, relayCache cache.RelayCache) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		cfg:     cfg,
		logger:  logger.WithField("watcher_id", w.ID),
		watcher: w,
		repo:    repo,
		cache:   relayCache,
		ctx:     ctx,
		cancel:  cancel,
		waits:   make(map[common.Hash]*relayWait),
	}
}

// Start resumes waits of stored messages without relay when configured
// and stops all waits once ctx is done.
func (t *Tracker) Start(ctx context.Context) error {
	if t.cfg.ResumePending {
		msgs, err := t.repo.Messages.FindPending(ctx, t.watcher.ID)
		if err != nil {
			return fmt.Errorf("can't find pending messages: %w", err)
		}
		t.logger.WithField("count", len(msgs)).Info("resuming relay waits for pending messages")
		for _, msg := range msgs {
			t.watch(msg)
		}
	}
	go func() {
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.ctx.Done():
		}
	}()
	return nil
}

// Track stores the messages sent by txHash on the source domain and starts
// waiting for their relays.
func (t *Tracker) Track(ctx context.Context, domain watcher.Domain, txHash common.Hash) ([]*entity.Message, error) {
	src, err := t.watcher.Side(domain)
	if err != nil {
		return nil, err
	}
	stored, err := t.storedMessages(ctx, domain, txHash)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		if err = t.watchUnrelayed(ctx, stored); err != nil {
			return nil, err
		}
		return stored, nil
	}

	sent, err := t.watcher.SentMessagesFrom(ctx, domain, txHash)
	if err != nil {
		return nil, err
	}
	msgs := make([]*entity.Message, 0, len(sent))
	for _, s := range sent {
		msg, err := newMessageEntity(t.watcher.ID, src, s)
		if err != nil {
			return nil, err
		}
		if err = t.repo.Messages.Ensure(ctx, msg); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	for _, msg := range msgs {
		t.watch(msg)
	}
	return msgs, nil
}

// storedMessages returns the messages of txHash persisted by an earlier Track.
func (t *Tracker) storedMessages(ctx context.Context, domain watcher.Domain, txHash common.Hash) ([]*entity.Message, error) {
	msgs, err := t.repo.Messages.FindByTxHash(ctx, t.watcher.ID, txHash)
	if err != nil {
		return nil, fmt.Errorf("can't find stored messages: %w", err)
	}
	res := make([]*entity.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Domain == string(domain) {
			res = append(res, msg)
		}
	}
	return res, nil
}

func (t *Tracker) watchUnrelayed(ctx context.Context, msgs []*entity.Message) error {
	hashes := make([]common.Hash, len(msgs))
	for i, msg := range msgs {
		hashes[i] = msg.MsgHash
	}
	relays, err := t.repo.Relays.FindByMsgHashes(ctx, t.watcher.ID, hashes)
	if err != nil {
		return fmt.Errorf("can't find stored relays: %w", err)
	}
	relayed := make(map[common.Hash]bool, len(relays))
	for _, relay := range relays {
		relayed[relay.MsgHash] = true
	}
	for _, msg := range msgs {
		if !relayed[msg.MsgHash] {
			t.watch(msg)
		}
	}
	return nil
}

// Untrack cancels the relay wait of msgHash, releasing its subscription.
func (t *Tracker) Untrack(msgHash common.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.waits[msgHash]
	if ok {
		w.cancel()
		delete(t.waits, msgHash)
	}
	return ok
}

func (t *Tracker) IsTracked(msgHash common.Hash) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.waits[msgHash]
	return ok
}

// Stop cancels every running wait.
func (t *Tracker) Stop() {
	t.cancel()
}

// Wait blocks until every started wait has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) watch(msg *entity.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ctx.Err() != nil {
		return
	}
	if _, ok := t.waits[msg.MsgHash]; ok {
		return
	}
	ctx, cancel := context.WithCancel(t.ctx)
	w := &relayWait{
		id:     uuid.New().String(),
		msg:    msg,
		cancel: cancel,
	}
	t.waits[msg.MsgHash] = w
	t.wg.Add(1)
	TrackedMessages.WithLabelValues(t.watcher.ID).Inc()
	go t.run(ctx, w)
}

func (t *Tracker) forget(w *relayWait) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.waits[w.msg.MsgHash]; ok && cur.id == w.id {
		delete(t.waits, w.msg.MsgHash)
	}
}

func (t *Tracker) run(ctx context.Context, w *relayWait) {
	defer t.wg.Done()
	defer TrackedMessages.WithLabelValues(t.watcher.ID).Dec()
	defer t.forget(w)
	defer w.cancel()

	dst := watcher.Domain(w.msg.Domain).Opposite()
	logger := t.logger.WithFields(logrus.Fields{
		"wait_id":  w.id,
		"msg_hash": w.msg.MsgHash,
		"domain":   dst,
	})
	logger.Info("waiting for message relay")

	var relay *watcher.Relay
	err := retry.Do(func() error {
		var err error
		relay, err = t.watcher.RelayFor(ctx, dst, w.msg.MsgHash, true)
		if err != nil && !isRetryable(err) {
			return retry.Unrecoverable(err)
		}
		return err
	},
		retry.Context(ctx),
		retry.Attempts(t.cfg.RetryAttempts),
		retry.Delay(t.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.WithError(err).WithField("attempt", n+1).Warn("relay wait failed, retrying")
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("relay wait cancelled")
			return
		}
		RelayWaitResults.WithLabelValues(t.watcher.ID, "error").Inc()
		logger.WithError(err).Error("can't resolve message relay")
		return
	}

	logger = logger.WithFields(logrus.Fields{
		"tx_hash": relay.Log.TxHash,
		"status":  relay.Status,
	})
	if err = t.storeRelay(ctx, dst, relay); err != nil {
		logger.WithError(err).Error("can't store observed relay")
		return
	}
	RelayWaitResults.WithLabelValues(t.watcher.ID, string(relay.Status)).Inc()
	logger.Info("message relay observed")
}

func (t *Tracker) storeRelay(ctx context.Context, dst watcher.Domain, relay *watcher.Relay) error {
	side, err := t.watcher.Side(dst)
	if err != nil {
		return err
	}
	rel := &entity.Relay{
		WatcherID:   t.watcher.ID,
		MsgHash:     relay.MsgHash,
		Domain:      string(dst),
		ChainID:     side.Client.ChainID(),
		TxHash:      relay.Log.TxHash,
		BlockNumber: uint(relay.Log.BlockNumber),
		LogIndex:    relay.Log.Index,
		Status:      string(relay.Status),
	}
	if err = t.repo.Relays.Ensure(ctx, rel); err != nil {
		return err
	}
	return t.cache.Set(ctx, t.watcher.ID, cachedRelay(rel))
}

func isRetryable(err error) bool {
	return errors.Is(err, watcher.ErrEndpointUnavailable) || errors.Is(err, watcher.ErrSubscriptionFailed)
}

func newMessageEntity(watcherID string, src *watcher.Side, msg *contract.SentMessage) (*entity.Message, error) {
	msgHash, err := msg.Hash()
	if err != nil {
		return nil, err
	}
	return &entity.Message{
		WatcherID:   watcherID,
		Domain:      string(src.Domain),
		ChainID:     src.Client.ChainID(),
		TxHash:      msg.Log.TxHash,
		BlockNumber: uint(msg.Log.BlockNumber),
		LogIndex:    msg.Log.Index,
		MsgHash:     msgHash,
		Target:      msg.Target,
		Sender:      msg.Sender,
		Nonce:       msg.Nonce.String(),
		GasLimit:    msg.GasLimit.String(),
		Data:        msg.Message,
	}, nil
}

func cachedRelay(rel *entity.Relay) *cache.Relay {
	return &cache.Relay{
		MsgHash:     rel.MsgHash,
		Domain:      rel.Domain,
		ChainID:     rel.ChainID,
		TxHash:      rel.TxHash,
		BlockNumber: rel.BlockNumber,
		Status:      rel.Status,
	}
}
