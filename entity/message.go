package entity

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Message is a SentMessage event observed on the source domain of a watcher.
type Message struct {
	ID          uint           `db:"id"`
	WatcherID   string         `db:"watcher_id"`
	Domain      string         `db:"domain"`
	ChainID     string         `db:"chain_id"`
	TxHash      common.Hash    `db:"tx_hash"`
	BlockNumber uint           `db:"block_number"`
	LogIndex    uint           `db:"log_index"`
	MsgHash     common.Hash    `db:"msg_hash"`
	Target      common.Address `db:"target"`
	Sender      common.Address `db:"sender"`
	Nonce       string         `db:"nonce"`
	GasLimit    string         `db:"gas_limit"`
	Data        []byte         `db:"data"`
	CreatedAt   *time.Time     `db:"created_at"`
	UpdatedAt   *time.Time     `db:"updated_at"`
}

type MessagesRepo interface {
	Ensure(ctx context.Context, msg *Message) error
	GetByMsgHash(ctx context.Context, watcherID string, msgHash common.Hash) (*Message, error)
	FindByTxHash(ctx context.Context, watcherID string, txHash common.Hash) ([]*Message, error)
	// FindPending lists messages that have no stored relay yet.
	FindPending(ctx context.Context, watcherID string) ([]*Message, error)
}
