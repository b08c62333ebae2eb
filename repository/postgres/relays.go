package postgres

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/entity"
)

type relaysRepo basePostgresRepo

func NewRelaysRepo(table string, db *db.DB) entity.RelaysRepo {
	return (*relaysRepo)(newBasePostgresRepo(table, db))
}

func (r *relaysRepo) Ensure(ctx context.Context, relay *entity.Relay) error {
	q, args, err := psql.Insert(r.table).
		Columns("watcher_id", "msg_hash", "domain", "chain_id", "tx_hash", "block_number", "log_index", "status").
		Values(relay.WatcherID, relay.MsgHash, relay.Domain, relay.ChainID, relay.TxHash, relay.BlockNumber, relay.LogIndex, relay.Status).
		Suffix("ON CONFLICT (watcher_id, msg_hash) DO UPDATE SET updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("can't insert relay: %w", err)
	}
	return nil
}

func (r *relaysRepo) GetByMsgHash(ctx context.Context, watcherID string, msgHash common.Hash) (*entity.Relay, error) {
	q, args, err := psql.Select("*").
		From(r.table).
		Where(sq.Eq{"watcher_id": watcherID, "msg_hash": msgHash}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	relay := new(entity.Relay)
	err = r.db.GetContext(ctx, relay, q, args...)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("can't get relay: %w", err)
	}
	return relay, nil
}

func (r *relaysRepo) FindByMsgHashes(ctx context.Context, watcherID string, msgHashes []common.Hash) ([]*entity.Relay, error) {
	hashes := make([][]byte, len(msgHashes))
	for i, h := range msgHashes {
		hashes[i] = h.Bytes()
	}
	q, args, err := psql.Select("*").
		From(r.table).
		Where(sq.Eq{"watcher_id": watcherID}).
		Where("msg_hash = ANY(?)", pq.Array(hashes)).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	relays := make([]*entity.Relay, 0, len(msgHashes))
	err = r.db.SelectContext(ctx, &relays, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select relays: %w", err)
	}
	return relays, nil
}
