// Package memory keeps watcher state in process memory. It backs the
// monitor when no postgres database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/entity"
	"github.com/omni/messenger-watcher/repository"
)

func NewRepo() *repository.Repo {
	relays := NewRelaysRepo()
	return &repository.Repo{
		Messages: NewMessagesRepo(relays),
		Relays:   relays,
	}
}

type messageKey struct {
	chainID  string
	txHash   common.Hash
	logIndex uint
}

type MessagesRepo struct {
	mu     sync.RWMutex
	nextID uint
	msgs   map[messageKey]*entity.Message
	relays *RelaysRepo
}

func NewMessagesRepo(relays *RelaysRepo) *MessagesRepo {
	return &MessagesRepo{
		msgs:   make(map[messageKey]*entity.Message),
		relays: relays,
	}
}

func (r *MessagesRepo) Ensure(_ context.Context, msg *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	key := messageKey{msg.ChainID, msg.TxHash, msg.LogIndex}
	if cur, ok := r.msgs[key]; ok {
		cur.UpdatedAt = &now
		msg.ID, msg.CreatedAt, msg.UpdatedAt = cur.ID, cur.CreatedAt, cur.UpdatedAt
		return nil
	}
	r.nextID++
	msg.ID, msg.CreatedAt, msg.UpdatedAt = r.nextID, &now, &now
	stored := *msg
	r.msgs[key] = &stored
	return nil
}

func (r *MessagesRepo) GetByMsgHash(_ context.Context, watcherID string, msgHash common.Hash) (*entity.Message, error) {
	msgs := r.find(func(msg *entity.Message) bool {
		return msg.WatcherID == watcherID && msg.MsgHash == msgHash
	})
	if len(msgs) == 0 {
		return nil, db.ErrNotFound
	}
	return msgs[0], nil
}

func (r *MessagesRepo) FindByTxHash(_ context.Context, watcherID string, txHash common.Hash) ([]*entity.Message, error) {
	msgs := r.find(func(msg *entity.Message) bool {
		return msg.WatcherID == watcherID && msg.TxHash == txHash
	})
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].LogIndex < msgs[j].LogIndex
	})
	return msgs, nil
}

func (r *MessagesRepo) FindPending(_ context.Context, watcherID string) ([]*entity.Message, error) {
	return r.find(func(msg *entity.Message) bool {
		return msg.WatcherID == watcherID && !r.relays.has(watcherID, msg.MsgHash)
	}), nil
}

func (r *MessagesRepo) find(match func(msg *entity.Message) bool) []*entity.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*entity.Message, 0, 2)
	for _, msg := range r.msgs {
		if match(msg) {
			cp := *msg
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res
}

type relayKey struct {
	watcherID string
	msgHash   common.Hash
}

type RelaysRepo struct {
	mu     sync.RWMutex
	nextID uint
	relays map[relayKey]*entity.Relay
}

func NewRelaysRepo() *RelaysRepo {
	return &RelaysRepo{
		relays: make(map[relayKey]*entity.Relay),
	}
}

func (r *RelaysRepo) Ensure(_ context.Context, relay *entity.Relay) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	key := relayKey{relay.WatcherID, relay.MsgHash}
	if cur, ok := r.relays[key]; ok {
		cur.UpdatedAt = &now
		relay.ID, relay.CreatedAt, relay.UpdatedAt = cur.ID, cur.CreatedAt, cur.UpdatedAt
		return nil
	}
	r.nextID++
	relay.ID, relay.CreatedAt, relay.UpdatedAt = r.nextID, &now, &now
	stored := *relay
	r.relays[key] = &stored
	return nil
}

func (r *RelaysRepo) GetByMsgHash(_ context.Context, watcherID string, msgHash common.Hash) (*entity.Relay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	relay, ok := r.relays[relayKey{watcherID, msgHash}]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *relay
	return &cp, nil
}

func (r *RelaysRepo) FindByMsgHashes(_ context.Context, watcherID string, msgHashes []common.Hash) ([]*entity.Relay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]*entity.Relay, 0, len(msgHashes))
	for _, h := range msgHashes {
		if relay, ok := r.relays[relayKey{watcherID, h}]; ok {
			cp := *relay
			res = append(res, &cp)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (r *RelaysRepo) has(watcherID string, msgHash common.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.relays[relayKey{watcherID, msgHash}]
	return ok
}
