package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gomodule/redigo/redis"

	"github.com/omni/messenger-watcher/config"
)

// Relay is the cached location of a relay event. A hit lets callers fetch
// the relay receipt directly instead of scanning the lookback window.
type Relay struct {
	MsgHash     common.Hash `json:"msg_hash"`
	Domain      string      `json:"domain"`
	ChainID     string      `json:"chain_id"`
	TxHash      common.Hash `json:"tx_hash"`
	BlockNumber uint        `json:"block_number"`
	Status      string      `json:"status"`
}

type RelayCache interface {
	// Get returns nil without error on a cache miss.
	Get(ctx context.Context, watcherID string, msgHash common.Hash) (*Relay, error)
	Set(ctx context.Context, watcherID string, relay *Relay) error
}

func RelayKey(watcherID string, msgHash common.Hash) string {
	return fmt.Sprintf("watcher:%s:relay:%s", watcherID, msgHash)
}

type redisCache struct {
	pool *redis.Pool
	ttl  time.Duration
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

func NewRedisCache(cfg *config.RedisConfig) RelayCache {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &redisCache{
		pool: &redis.Pool{
			MaxIdle:     5,
			IdleTimeout: 5 * time.Minute,
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", addr, timeoutDialOptions()...)
			},
		},
		ttl: cfg.TTL,
	}
}

func (c *redisCache) Get(ctx context.Context, watcherID string, msgHash common.Hash) (*Relay, error) {
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't get redis connection: %w", err)
	}
	defer conn.Close()

	blob, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", RelayKey(watcherID, msgHash)))
	if errors.Is(err, redis.ErrNil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("can't get cached relay: %w", err)
	}
	relay := new(Relay)
	if err = json.Unmarshal(blob, relay); err != nil {
		return nil, fmt.Errorf("can't decode cached relay: %w", err)
	}
	return relay, nil
}

func (c *redisCache) Set(ctx context.Context, watcherID string, relay *Relay) error {
	blob, err := json.Marshal(relay)
	if err != nil {
		return fmt.Errorf("can't encode relay: %w", err)
	}
	conn, err := c.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("can't get redis connection: %w", err)
	}
	defer conn.Close()

	_, err = redis.DoContext(conn, ctx, "SET", RelayKey(watcherID, relay.MsgHash), blob, "PX", c.ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("can't cache relay: %w", err)
	}
	return nil
}

type nopCache struct{}

// NewNop is used when no redis is configured.
func NewNop() RelayCache {
	return nopCache{}
}

func (nopCache) Get(context.Context, string, common.Hash) (*Relay, error) {
	return nil, nil
}

func (nopCache) Set(context.Context, string, *Relay) error {
	return nil
}
