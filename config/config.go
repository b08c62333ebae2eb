package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

const (
	defaultRPCTimeout        = 30 * time.Second
	defaultPollInterval      = 5 * time.Second
	defaultMaxBlockRangeSize = 10000
	defaultLookbackBlocks    = 10000
	defaultRetryAttempts     = 10
	defaultRetryDelay        = 10 * time.Second
	defaultWaitTimeout       = time.Minute
	defaultRedisTTL          = 24 * time.Hour
	defaultAlertInterval     = 5 * time.Minute
	defaultStuckThreshold    = time.Hour
	defaultMaxOpenConns      = 10
	defaultMaxIdleConns      = 3
)

var (
	ErrUnknownChain     = errors.New("unknown chain")
	ErrInvalidMessenger = errors.New("invalid messenger address")
	ErrSameChain        = errors.New("home and foreign sides use the same chain")
	ErrEmptyEntry       = errors.New("empty config entry")
)

type RPCConfig struct {
	Host         string        `yaml:"host"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type ChainConfig struct {
	RPC               *RPCConfig `yaml:"rpc"`
	ChainID           string     `yaml:"chain_id"`
	MaxBlockRangeSize uint       `yaml:"max_block_range_size"`
}

type WatcherSideConfig struct {
	ChainName        string         `yaml:"chain"`
	Chain            *ChainConfig   `yaml:"-"`
	MessengerAddress common.Address `yaml:"messenger_address"`
}

type TrackerConfig struct {
	RetryAttempts uint          `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	ResumePending bool          `yaml:"resume_pending"`
}

type AlertConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Threshold time.Duration `yaml:"threshold"`
}

type WatcherConfig struct {
	ID             string                  `yaml:"-"`
	Home           *WatcherSideConfig      `yaml:"home"`
	Foreign        *WatcherSideConfig      `yaml:"foreign"`
	LookbackBlocks uint                    `yaml:"lookback_blocks"`
	Tracker        *TrackerConfig          `yaml:"tracker"`
	Alerts         map[string]*AlertConfig `yaml:"alerts"`
}

type DBConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       string `yaml:"database"`

	MaxOpenConns int `yaml:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	Host string        `yaml:"host"`
	Port int           `yaml:"port"`
	TTL  time.Duration `yaml:"ttl"`
}

type PresenterConfig struct {
	Host        string        `yaml:"host"`
	WaitTimeout time.Duration `yaml:"wait_timeout"`
}

type Config struct {
	Chains           map[string]*ChainConfig   `yaml:"chains"`
	Watchers         map[string]*WatcherConfig `yaml:"watchers"`
	DBConfig         *DBConfig                 `yaml:"postgres"`
	Redis            *RedisConfig              `yaml:"redis"`
	LogLevel         logrus.Level              `yaml:"log_level"`
	DisabledWatchers []string                  `yaml:"disabled_watchers"`
	EnabledWatchers  []string                  `yaml:"enabled_watchers"`
	Presenter        *PresenterConfig          `yaml:"presenter"`
}

func readYamlConfig(blob []byte) (*Config, error) {
	cfg := new(Config)
	if err := parseYaml(cfg, blob); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) init() error {
	for name, chain := range cfg.Chains {
		if chain == nil {
			return fmt.Errorf("chain %s: %w", name, ErrEmptyEntry)
		}
		if chain.RPC == nil {
			chain.RPC = new(RPCConfig)
		}
		if chain.RPC.Timeout == 0 {
			chain.RPC.Timeout = defaultRPCTimeout
		}
		if chain.RPC.PollInterval == 0 {
			chain.RPC.PollInterval = defaultPollInterval
		}
		if chain.MaxBlockRangeSize == 0 {
			chain.MaxBlockRangeSize = defaultMaxBlockRangeSize
		}
	}
	for id, watcher := range cfg.Watchers {
		if watcher == nil {
			return fmt.Errorf("watcher %s: %w", id, ErrEmptyEntry)
		}
		watcher.ID = id
		if watcher.Home == nil || watcher.Foreign == nil {
			return fmt.Errorf("watcher %s must configure both home and foreign sides", id)
		}
		for _, side := range [2]*WatcherSideConfig{watcher.Home, watcher.Foreign} {
			var ok bool
			side.Chain, ok = cfg.Chains[side.ChainName]
			if !ok {
				return fmt.Errorf("watcher %s refers to chain %q: %w", id, side.ChainName, ErrUnknownChain)
			}
			if side.MessengerAddress == (common.Address{}) {
				return fmt.Errorf("watcher %s, chain %s: %w", id, side.ChainName, ErrInvalidMessenger)
			}
		}
		if watcher.Home.ChainName == watcher.Foreign.ChainName {
			return fmt.Errorf("watcher %s: %w", id, ErrSameChain)
		}
		if watcher.LookbackBlocks == 0 {
			watcher.LookbackBlocks = defaultLookbackBlocks
		}
		if watcher.Tracker == nil {
			watcher.Tracker = new(TrackerConfig)
		}
		if watcher.Tracker.RetryAttempts == 0 {
			watcher.Tracker.RetryAttempts = defaultRetryAttempts
		}
		if watcher.Tracker.RetryDelay == 0 {
			watcher.Tracker.RetryDelay = defaultRetryDelay
		}
		for name, alert := range watcher.Alerts {
			if alert == nil {
				alert = new(AlertConfig)
				watcher.Alerts[name] = alert
			}
			if alert.Interval == 0 {
				alert.Interval = defaultAlertInterval
			}
			if alert.Threshold == 0 {
				alert.Threshold = defaultStuckThreshold
			}
		}
	}
	if cfg.DBConfig != nil {
		if cfg.DBConfig.MaxOpenConns == 0 {
			cfg.DBConfig.MaxOpenConns = defaultMaxOpenConns
		}
		if cfg.DBConfig.MaxIdleConns == 0 {
			cfg.DBConfig.MaxIdleConns = defaultMaxIdleConns
		}
	}
	if cfg.Redis != nil && cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = defaultRedisTTL
	}
	if cfg.Presenter != nil && cfg.Presenter.WaitTimeout == 0 {
		cfg.Presenter.WaitTimeout = defaultWaitTimeout
	}
	return nil
}

// ActiveWatchers applies enabled_watchers and disabled_watchers filters.
func (cfg *Config) ActiveWatchers() map[string]*WatcherConfig {
	res := make(map[string]*WatcherConfig, len(cfg.Watchers))
	if cfg.EnabledWatchers != nil {
		for _, id := range cfg.EnabledWatchers {
			if w, ok := cfg.Watchers[id]; ok {
				res[id] = w
			}
		}
	} else {
		for id, w := range cfg.Watchers {
			res[id] = w
		}
	}
	for _, id := range cfg.DisabledWatchers {
		delete(res, id)
	}
	return res
}

func ReadConfig(blob []byte) (*Config, error) {
	cfg, err := readYamlConfig(blob)
	if err != nil {
		return nil, fmt.Errorf("can't read yaml config: %w", err)
	}
	if err = cfg.init(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func ReadConfigWithEnv(blob []byte) (*Config, error) {
	return ReadConfig(expandEnv(blob))
}

func ReadConfigFromFile(path string) (*Config, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't read config file: %w", err)
	}
	return ReadConfigWithEnv(blob)
}
