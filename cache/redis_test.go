package cache_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/omni/messenger-watcher/cache"
)

func TestRelayKey(t *testing.T) {
	t.Parallel()

	msgHash := common.HexToHash("0x01")
	require.Equal(t, "watcher:boba:relay:0x0000000000000000000000000000000000000000000000000000000000000001", cache.RelayKey("boba", msgHash))
	require.NotEqual(t, cache.RelayKey("a", msgHash), cache.RelayKey("b", msgHash))
}

func TestNop(t *testing.T) {
	t.Parallel()

	c := cache.NewNop()
	require.NoError(t, c.Set(context.Background(), "boba", &cache.Relay{MsgHash: common.HexToHash("0x01")}))
	relay, err := c.Get(context.Background(), "boba", common.HexToHash("0x01"))
	require.NoError(t, err)
	require.Nil(t, relay)
}
