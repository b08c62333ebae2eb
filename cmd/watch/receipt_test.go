package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/omni/messenger-watcher/watcher"
	"github.com/omni/messenger-watcher/watcher/watchertest"
)

var messenger = common.HexToAddress("0x4200000000000000000000000000000000000007")

func newTestWatcher(foreign *watchertest.Chain) *watcher.Watcher {
	return watcher.NewWatcher("test", watchertest.NewLogger(),
		watcher.NewSide(watcher.Home, watchertest.NewChain("1", 100), messenger, 1000),
		watcher.NewSide(watcher.Foreign, foreign, messenger, 1000),
		1000,
	)
}

func TestResolveWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("retries endpoint failures", func(t *testing.T) {
		t.Parallel()
		foreign := watchertest.NewChain("2", 100)
		msgHash := common.HexToHash("0x01")
		relayReceipt := foreign.Mine(watchertest.RelayLog(messenger, msgHash, true))

		calls := 0
		foreign.BlockNumberErr = errors.New("connection reset")
		foreign.OnBlockNumber = func() {
			calls++
			if calls == 2 {
				foreign.BlockNumberErr = nil
			}
		}

		relay, err := resolveWithRetry(context.Background(), newTestWatcher(foreign), watcher.Foreign, msgHash, false, 3, time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, 2, calls)
		require.Equal(t, relayReceipt.TxHash, relay.Receipt.TxHash)
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		t.Parallel()
		foreign := watchertest.NewChain("2", 100)
		foreign.BlockNumberErr = errors.New("connection reset")
		calls := 0
		foreign.OnBlockNumber = func() { calls++ }

		_, err := resolveWithRetry(context.Background(), newTestWatcher(foreign), watcher.Foreign, common.HexToHash("0x01"), false, 3, time.Millisecond)
		require.ErrorIs(t, err, watcher.ErrEndpointUnavailable)
		require.Equal(t, 3, calls)
	})

	t.Run("multiple relays are not retried", func(t *testing.T) {
		t.Parallel()
		foreign := watchertest.NewChain("2", 100)
		msgHash := common.HexToHash("0x01")
		foreign.Mine(watchertest.RelayLog(messenger, msgHash, true))
		foreign.Mine(watchertest.RelayLog(messenger, msgHash, false))
		calls := 0
		foreign.OnBlockNumber = func() { calls++ }

		_, err := resolveWithRetry(context.Background(), newTestWatcher(foreign), watcher.Foreign, msgHash, false, 3, time.Millisecond)
		require.ErrorIs(t, err, watcher.ErrMultipleRelays)
		require.Equal(t, 1, calls)
	})
}

func TestPrintJSON(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	hashes := []common.Hash{common.HexToHash("0x01")}
	require.NoError(t, printJSON(buf, hashes))

	var decoded []common.Hash
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, hashes, decoded)
}

func TestIsHash(t *testing.T) {
	t.Parallel()

	require.True(t, isHash(common.HexToHash("0x01").Hex()))
	require.False(t, isHash("0x01"))
	require.False(t, isHash(""))
	require.False(t, isHash("zz"))
}
