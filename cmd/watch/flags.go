package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/omni/messenger-watcher/config"
	"github.com/omni/messenger-watcher/logging"
	"github.com/omni/messenger-watcher/watcher"
)

const (
	flagConfig  = "config"
	flagWatcher = "watcher"
	flagDomain  = "domain"
	flagTx      = "tx"
	flagHash    = "hash"
	flagWait    = "wait"
	flagTimeout = "timeout"
	flagRetries = "retries"
)

// watcherFromFlags dials the endpoints of the watcher selected by the
// persistent flags. Logs go to stderr, stdout is kept for results.
func watcherFromFlags(cmd *cobra.Command) (*watcher.Watcher, watcher.Domain, error) {
	path, _ := cmd.Flags().GetString(flagConfig)
	id, _ := cmd.Flags().GetString(flagWatcher)
	domainStr, _ := cmd.Flags().GetString(flagDomain)

	domain, err := watcher.ParseDomain(domainStr)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.ReadConfigFromFile(path)
	if err != nil {
		return nil, "", err
	}
	watcherCfg, ok := cfg.Watchers[id]
	if !ok {
		return nil, "", fmt.Errorf("watcher %q is not configured", id)
	}

	logger := logging.NewWithOutput(os.Stderr)
	logger.SetLevel(cfg.LogLevel)
	w, err := watcher.NewWatcherFromConfig(logger, watcherCfg)
	if err != nil {
		return nil, "", err
	}
	return w, domain, nil
}

func printJSON(out io.Writer, res interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
