package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	RelayStatusSucceeded = "succeeded"
	RelayStatusFailed    = "failed"
)

// Relay is the RelayedMessage or FailedRelayedMessage event of a message on
// its destination domain.
type Relay struct {
	ID          uint        `db:"id"`
	WatcherID   string      `db:"watcher_id"`
	MsgHash     common.Hash `db:"msg_hash"`
	Domain      string      `db:"domain"`
	ChainID     string      `db:"chain_id"`
	TxHash      common.Hash `db:"tx_hash"`
	BlockNumber uint        `db:"block_number"`
	LogIndex    uint        `db:"log_index"`
	Status      string      `db:"status"`
	CreatedAt   *time.Time  `db:"created_at"`
	UpdatedAt   *time.Time  `db:"updated_at"`
}

type RelaysRepo interface {
	Ensure(ctx context.Context, relay *Relay) error
	GetByMsgHash(ctx context.Context, watcherID string, msgHash common.Hash) (*Relay, error)
	FindByMsgHashes(ctx context.Context, watcherID string, msgHashes []common.Hash) ([]*Relay, error)
}
