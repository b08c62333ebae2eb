package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/entity"
)

type messagesRepo basePostgresRepo

func NewMessagesRepo(table string, db *db.DB) entity.MessagesRepo {
	return (*messagesRepo)(newBasePostgresRepo(table, db))
}

func (r *messagesRepo) Ensure(ctx context.Context, msg *entity.Message) error {
	q, args, err := psql.Insert(r.table).
		Columns("watcher_id", "domain", "chain_id", "tx_hash", "block_number", "log_index", "msg_hash", "target", "sender", "nonce", "gas_limit", "data").
		Values(msg.WatcherID, msg.Domain, msg.ChainID, msg.TxHash, msg.BlockNumber, msg.LogIndex, msg.MsgHash, msg.Target, msg.Sender, msg.Nonce, msg.GasLimit, msg.Data).
		Suffix("ON CONFLICT (chain_id, tx_hash, log_index) DO UPDATE SET updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert message: %w", err)
	}
	return nil
}

func (r *messagesRepo) GetByMsgHash(ctx context.Context, watcherID string, msgHash common.Hash) (*entity.Message, error) {
	q, args, err := psql.Select("*").
		From(r.table).
		Where(sq.Eq{"watcher_id": watcherID, "msg_hash": msgHash}).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	msg := new(entity.Message)
	err = r.db.GetContext(ctx, msg, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("can't get message: %w", err)
	}
	return msg, nil
}

func (r *messagesRepo) FindByTxHash(ctx context.Context, watcherID string, txHash common.Hash) ([]*entity.Message, error) {
	q, args, err := psql.Select("*").
		From(r.table).
		Where(sq.Eq{"watcher_id": watcherID, "tx_hash": txHash}).
		OrderBy("log_index").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	msgs := make([]*entity.Message, 0, 2)
	err = r.db.SelectContext(ctx, &msgs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select messages: %w", err)
	}
	return msgs, nil
}

func (r *messagesRepo) FindPending(ctx context.Context, watcherID string) ([]*entity.Message, error) {
	q, args, err := psql.Select("m.*").
		From(r.table+" m").
		LeftJoin("relays r ON r.watcher_id = m.watcher_id AND r.msg_hash = m.msg_hash").
		Where(sq.Eq{"m.watcher_id": watcherID, "r.id": nil}).
		OrderBy("m.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	msgs := make([]*entity.Message, 0, 10)
	err = r.db.SelectContext(ctx, &msgs, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select pending messages: %w", err)
	}
	return msgs, nil
}
