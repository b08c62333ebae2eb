package presenter_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/omni/messenger-watcher/cache"
	"github.com/omni/messenger-watcher/config"
	"github.com/omni/messenger-watcher/monitor"
	"github.com/omni/messenger-watcher/presenter"
	"github.com/omni/messenger-watcher/repository/memory"
	"github.com/omni/messenger-watcher/watcher"
	"github.com/omni/messenger-watcher/watcher/watchertest"
)

var (
	homeMessenger    = common.HexToAddress("0x4200000000000000000000000000000000000007")
	foreignMessenger = common.HexToAddress("0x6D4528d791DC8b1A1Ecba5a1a8E32DA0F7E5d3f5")
	senderAddr       = common.HexToAddress("0x000000000000000000000000000000000000000a")
	targetAddr       = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

const waitTimeout = 2 * time.Second

type memCache struct {
	mu     sync.Mutex
	relays map[string]*cache.Relay
}

func (c *memCache) Get(_ context.Context, watcherID string, msgHash common.Hash) (*cache.Relay, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.relays[cache.RelayKey(watcherID, msgHash)], nil
}

func (c *memCache) Set(_ context.Context, watcherID string, relay *cache.Relay) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.relays[cache.RelayKey(watcherID, relay.MsgHash)] = relay
	return nil
}

type presenterEnv struct {
	home    *watchertest.Chain
	foreign *watchertest.Chain
	cache   *memCache
	monitor *monitor.Monitor
	handler http.Handler
}

func newPresenterEnv(t *testing.T, waitTimeout time.Duration) *presenterEnv {
	t.Helper()

	logger := watchertest.NewLogger()
	home := watchertest.NewChain("1", 100)
	foreign := watchertest.NewChain("10", 100)
	w := watcher.NewWatcher("test", logger,
		watcher.NewSide(watcher.Home, home, homeMessenger, 1000),
		watcher.NewSide(watcher.Foreign, foreign, foreignMessenger, 1000),
		10000,
	)
	repo := memory.NewRepo()
	c := &memCache{relays: make(map[string]*cache.Relay)}
	cfg := &config.WatcherConfig{
		ID: "test",
		Tracker: &config.TrackerConfig{
			RetryAttempts: 1,
			RetryDelay:    10 * time.Millisecond,
		},
	}
	m, err := monitor.NewMonitor(logger, nil, repo, c, cfg, w)
	require.NoError(t, err)
	t.Cleanup(func() {
		m.Tracker().Stop()
		m.Tracker().Wait()
	})

	p := presenter.NewPresenter(logger, &config.PresenterConfig{WaitTimeout: waitTimeout}, repo, c,
		map[string]*monitor.Monitor{"test": m})
	return &presenterEnv{
		home:    home,
		foreign: foreign,
		cache:   c,
		monitor: m,
		handler: p.Handler(),
	}
}

func (e *presenterEnv) serve(method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func (e *presenterEnv) do(t *testing.T, method, path string, res interface{}) int {
	t.Helper()
	rec := e.serve(method, path)
	if res != nil && rec.Code == http.StatusOK {
		require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res))
	}
	return rec.Code
}

func (e *presenterEnv) sendMessages(n int) common.Hash {
	logs := make([]*types.Log, 0, n)
	for i := 0; i < n; i++ {
		logs = append(logs, watchertest.SentMessageLog(homeMessenger, targetAddr, senderAddr, []byte{byte(i)}, int64(i), 100000))
	}
	return e.home.Mine(logs...).TxHash
}

func relayPath(domain watcher.Domain, msgHash common.Hash) string {
	return "/watcher/test/" + string(domain) + "/relay/" + msgHash.Hex()
}

func TestPresenter_TxMessages(t *testing.T) {
	t.Parallel()

	env := newPresenterEnv(t, time.Second)
	txHash := env.sendMessages(2)

	var res presenter.TxMessagesResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/watcher/test/home/tx/"+txHash.Hex()+"/messages", &res))
	require.Equal(t, "test", res.WatcherID)
	require.Equal(t, "home", res.Domain)
	require.Equal(t, "1", res.ChainID)
	require.Equal(t, txHash, res.TxHash)
	require.Len(t, res.Messages, 2)

	hashes, err := env.monitor.Watcher().MessageHashesFromHomeTx(context.Background(), txHash)
	require.NoError(t, err)
	for i, msg := range res.Messages {
		require.Equal(t, hashes[i], msg.MsgHash)
		require.Equal(t, "100000", msg.GasLimit)
	}

	for _, msg := range res.Messages {
		require.Nil(t, msg.Relay)
	}

	res = presenter.TxMessagesResult{}
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/watcher/test/foreign/tx/"+txHash.Hex()+"/messages", &res))
	require.NotNil(t, res.Messages)
	require.Empty(t, res.Messages)
}

func TestPresenter_BadRequests(t *testing.T) {
	t.Parallel()

	env := newPresenterEnv(t, time.Second)
	hash := common.HexToHash("0x01").Hex()

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/watcher/other/home/tx/"+hash+"/messages", nil))
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/watcher/test/sideways/tx/"+hash+"/messages", nil))
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/watcher/test/home/tx/0x1234/messages", nil))

	env.home.ReceiptErr = context.DeadlineExceeded
	require.Equal(t, http.StatusBadGateway, env.do(t, http.MethodGet, "/watcher/test/home/tx/"+hash+"/messages", nil))
}

func TestPresenter_Relay(t *testing.T) {
	t.Parallel()

	t.Run("pending without wait", func(t *testing.T) {
		t.Parallel()
		env := newPresenterEnv(t, time.Second)
		var res presenter.RelayResult
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, relayPath(watcher.Foreign, common.HexToHash("0x01")), &res))
		require.Equal(t, presenter.RelayStatePending, res.Status)
		require.Nil(t, res.Tx)
		require.Zero(t, env.foreign.TotalSubscriptions())
	})

	t.Run("relayed and cached", func(t *testing.T) {
		t.Parallel()
		env := newPresenterEnv(t, time.Second)
		msgHash := common.HexToHash("0x01")
		relayReceipt := env.foreign.Mine(watchertest.RelayLog(foreignMessenger, msgHash, true))

		var res presenter.RelayResult
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, relayPath(watcher.Foreign, msgHash), &res))
		require.Equal(t, presenter.RelayStateSucceeded, res.Status)
		require.Equal(t, relayReceipt.TxHash, res.Tx.TxHash)
		require.Equal(t, "https://optimistic.etherscan.io/tx/"+relayReceipt.TxHash.Hex(), res.Tx.Link)

		cached, err := env.cache.Get(context.Background(), "test", msgHash)
		require.NoError(t, err)
		require.Equal(t, relayReceipt.TxHash, cached.TxHash)

		// a cache hit skips the lookback scan
		env.foreign.FilterLogsErr = context.DeadlineExceeded
		res = presenter.RelayResult{}
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, relayPath(watcher.Foreign, msgHash), &res))
		require.Equal(t, presenter.RelayStateSucceeded, res.Status)
		require.Equal(t, relayReceipt.TxHash, res.Tx.TxHash)
	})

	t.Run("wait times out as pending", func(t *testing.T) {
		t.Parallel()
		env := newPresenterEnv(t, 50*time.Millisecond)
		var res presenter.RelayResult
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, relayPath(watcher.Home, common.HexToHash("0x01"))+"?wait=true", &res))
		require.Equal(t, presenter.RelayStatePending, res.Status)
		require.Zero(t, env.home.ActiveSubscriptions())
	})

	t.Run("endpoint timeout during wait is an error", func(t *testing.T) {
		t.Parallel()
		env := newPresenterEnv(t, time.Minute)
		env.foreign.FilterLogsErr = context.DeadlineExceeded
		rec := env.serve(http.MethodGet, relayPath(watcher.Foreign, common.HexToHash("0x04"))+"?wait=true")
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Contains(t, rec.Body.String(), "endpoint")
		require.Zero(t, env.foreign.ActiveSubscriptions())
	})

	t.Run("wait observes live relay", func(t *testing.T) {
		t.Parallel()
		env := newPresenterEnv(t, waitTimeout)
		msgHash := common.HexToHash("0x02")

		done := make(chan *httptest.ResponseRecorder, 1)
		go func() {
			done <- env.serve(http.MethodGet, relayPath(watcher.Foreign, msgHash)+"?wait=true")
		}()
		require.Eventually(t, func() bool {
			return env.foreign.ActiveSubscriptions() == 1
		}, waitTimeout, 5*time.Millisecond)
		env.foreign.Mine(watchertest.RelayLog(foreignMessenger, msgHash, false))

		select {
		case rec := <-done:
			require.Equal(t, http.StatusOK, rec.Code)
			var res presenter.RelayResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			require.Equal(t, presenter.RelayStateFailed, res.Status)
			require.NotNil(t, res.Tx)
		case <-time.After(waitTimeout):
			require.FailNow(t, "relay request did not finish in time")
		}
	})

	t.Run("multiple relays conflict", func(t *testing.T) {
		t.Parallel()
		env := newPresenterEnv(t, time.Second)
		msgHash := common.HexToHash("0x03")
		env.foreign.Mine(watchertest.RelayLog(foreignMessenger, msgHash, false))
		env.foreign.Mine(watchertest.RelayLog(foreignMessenger, msgHash, true))
		require.Equal(t, http.StatusConflict, env.do(t, http.MethodGet, relayPath(watcher.Foreign, msgHash), nil))
	})
}

func TestPresenter_TrackAndUntrack(t *testing.T) {
	t.Parallel()

	env := newPresenterEnv(t, time.Second)
	txHash := env.sendMessages(1)

	var tracked presenter.TrackResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/watcher/test/home/tx/"+txHash.Hex()+"/track", &tracked))
	require.Len(t, tracked.Messages, 1)
	msgHash := tracked.Messages[0].MsgHash
	require.Equal(t, txHash, tracked.Messages[0].Tx.TxHash)

	var msg presenter.MessageResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/watcher/test/message/"+msgHash.Hex(), &msg))
	require.True(t, msg.Tracked)
	require.Nil(t, msg.Relay)
	require.Equal(t, "0", msg.Message.Nonce)

	var untracked presenter.UntrackResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/watcher/test/message/"+msgHash.Hex()+"/track", &untracked))
	require.True(t, untracked.Untracked)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/watcher/test/message/"+msgHash.Hex()+"/track", nil))

	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/watcher/test/message/"+common.HexToHash("0x05").Hex(), nil))
}

func TestPresenter_MessageWithStoredRelay(t *testing.T) {
	t.Parallel()

	env := newPresenterEnv(t, time.Second)
	txHash := env.sendMessages(1)

	var tracked presenter.TrackResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/watcher/test/home/tx/"+txHash.Hex()+"/track", &tracked))
	msgHash := tracked.Messages[0].MsgHash

	require.Eventually(t, func() bool {
		return env.foreign.ActiveSubscriptions() == 1
	}, waitTimeout, 5*time.Millisecond)
	relayReceipt := env.foreign.Mine(watchertest.RelayLog(foreignMessenger, msgHash, true))

	var msg presenter.MessageResult
	require.Eventually(t, func() bool {
		rec := env.serve(http.MethodGet, "/watcher/test/message/"+msgHash.Hex())
		msg = presenter.MessageResult{}
		return rec.Code == http.StatusOK && json.Unmarshal(rec.Body.Bytes(), &msg) == nil && msg.Relay != nil
	}, waitTimeout, 5*time.Millisecond)
	require.Equal(t, presenter.RelayStateSucceeded, msg.Relay.Status)
	require.Equal(t, relayReceipt.TxHash, msg.Relay.Tx.TxHash)
	require.Equal(t, "foreign", msg.Relay.Domain)

	var res presenter.TxMessagesResult
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/watcher/test/home/tx/"+txHash.Hex()+"/messages", &res))
	require.Len(t, res.Messages, 1)
	require.NotNil(t, res.Messages[0].Relay)
	require.Equal(t, presenter.RelayStateSucceeded, res.Messages[0].Relay.Status)
}
