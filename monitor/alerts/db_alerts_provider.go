package alerts

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/entity"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type DBAlertsProvider struct {
	db *db.DB
}

func NewDBAlertsProvider(db *db.DB) *DBAlertsProvider {
	return &DBAlertsProvider{
		db: db,
	}
}

// StuckMessage reports its Age in whole seconds.
type StuckMessage struct {
	ChainID     string      `db:"chain_id" json:"chain_id"`
	BlockNumber uint64      `db:"block_number" json:"block_number,string"`
	TxHash      common.Hash `db:"tx_hash" json:"tx_hash"`
	MsgHash     common.Hash `db:"msg_hash" json:"msg_hash"`
	Age         int64       `db:"age" json:"_value,string"`
}

// FindStuckMessages lists stored messages without relay that are older than the threshold.
func (p *DBAlertsProvider) FindStuckMessages(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	q, args, err := psql.Select("m.chain_id", "m.block_number", "m.tx_hash", "m.msg_hash", "EXTRACT(EPOCH FROM now() - m.created_at)::int as age").
		From("messages m").
		LeftJoin("relays r ON r.watcher_id = m.watcher_id AND r.msg_hash = m.msg_hash").
		Where(sq.Eq{"m.watcher_id": params.WatcherID, "r.id": nil}).
		Where(sq.Expr("m.created_at <= now() - make_interval(secs => ?)", params.Threshold.Seconds())).
		OrderBy("m.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]StuckMessage, 0, 5)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select alerts: %w", err)
	}
	return res, nil
}

type FailedRelay struct {
	ChainID     string      `db:"chain_id" json:"chain_id"`
	BlockNumber uint64      `db:"block_number" json:"block_number,string"`
	TxHash      common.Hash `db:"tx_hash" json:"tx_hash"`
	MsgHash     common.Hash `db:"msg_hash" json:"msg_hash"`
}

func (p *DBAlertsProvider) FindFailedRelays(ctx context.Context, params *AlertJobParams) (interface{}, error) {
	q, args, err := psql.Select("chain_id", "block_number", "tx_hash", "msg_hash").
		From("relays").
		Where(sq.Eq{"watcher_id": params.WatcherID, "status": entity.RelayStatusFailed}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	res := make([]FailedRelay, 0, 5)
	err = p.db.SelectContext(ctx, &res, q, args...)
	if err != nil {
		return nil, fmt.Errorf("can't select alerts: %w", err)
	}
	return res, nil
}
