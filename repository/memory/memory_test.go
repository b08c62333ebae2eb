package memory_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/omni/messenger-watcher/db"
	"github.com/omni/messenger-watcher/entity"
	"github.com/omni/messenger-watcher/repository/memory"
)

func TestRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewRepo()
	tx := common.HexToHash("0xaa")

	first := &entity.Message{WatcherID: "w", Domain: "home", ChainID: "1", TxHash: tx, LogIndex: 3, MsgHash: common.HexToHash("0x01")}
	second := &entity.Message{WatcherID: "w", Domain: "home", ChainID: "1", TxHash: tx, LogIndex: 1, MsgHash: common.HexToHash("0x02")}
	require.NoError(t, repo.Messages.Ensure(ctx, first))
	require.NoError(t, repo.Messages.Ensure(ctx, second))
	dup := *first
	require.NoError(t, repo.Messages.Ensure(ctx, &dup))
	require.Equal(t, first.ID, dup.ID)

	msgs, err := repo.Messages.FindByTxHash(ctx, "w", tx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.EqualValues(t, 1, msgs[0].LogIndex)
	require.EqualValues(t, 3, msgs[1].LogIndex)

	msg, err := repo.Messages.GetByMsgHash(ctx, "w", common.HexToHash("0x01"))
	require.NoError(t, err)
	require.Equal(t, first.ID, msg.ID)
	_, err = repo.Messages.GetByMsgHash(ctx, "other", common.HexToHash("0x01"))
	require.ErrorIs(t, err, db.ErrNotFound)

	pending, err := repo.Messages.FindPending(ctx, "w")
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.Relays.Ensure(ctx, &entity.Relay{WatcherID: "w", MsgHash: common.HexToHash("0x02"), Status: entity.RelayStatusFailed}))
	pending, err = repo.Messages.FindPending(ctx, "w")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, common.HexToHash("0x01"), pending[0].MsgHash)

	relays, err := repo.Relays.FindByMsgHashes(ctx, "w", []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")})
	require.NoError(t, err)
	require.Len(t, relays, 1)
	require.Equal(t, entity.RelayStatusFailed, relays[0].Status)

	_, err = repo.Relays.GetByMsgHash(ctx, "w", common.HexToHash("0x01"))
	require.ErrorIs(t, err, db.ErrNotFound)
}
