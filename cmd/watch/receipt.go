package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/spf13/cobra"

	"github.com/omni/messenger-watcher/watcher"
)

const retryDelay = time.Second

type receiptResult struct {
	MsgHash common.Hash    `json:"msgHash"`
	Domain  string         `json:"domain"`
	Status  string         `json:"status"`
	Receipt *types.Receipt `json:"receipt,omitempty"`
}

func receiptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Print the relay receipt of a message hash on the destination domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, domain, err := watcherFromFlags(cmd)
			if err != nil {
				return err
			}
			hash, _ := cmd.Flags().GetString(flagHash)
			if !isHash(hash) {
				return fmt.Errorf("invalid message hash %q", hash)
			}
			wait, _ := cmd.Flags().GetBool(flagWait)
			timeout, _ := cmd.Flags().GetDuration(flagTimeout)
			retries, _ := cmd.Flags().GetUint(flagRetries)

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			msgHash := common.HexToHash(hash)
			relay, err := resolveWithRetry(ctx, w, domain, msgHash, wait, retries, retryDelay)
			if err != nil {
				return err
			}
			res := &receiptResult{
				MsgHash: msgHash,
				Domain:  string(domain),
				Status:  "pending",
			}
			if relay != nil {
				res.Status = string(relay.Status)
				res.Receipt = relay.Receipt
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().String(flagHash, "", "message hash")
	cmd.Flags().Bool(flagWait, false, "wait for the relay when it is not found in the lookback window")
	cmd.Flags().Duration(flagTimeout, 10*time.Minute, "overall timeout, 0 disables it")
	cmd.Flags().Uint(flagRetries, 3, "attempts on endpoint and subscription failures, 0 retries until the timeout")
	_ = cmd.MarkFlagRequired(flagHash)
	return cmd
}

func resolveWithRetry(ctx context.Context, w *watcher.Watcher, domain watcher.Domain, msgHash common.Hash, wait bool, attempts uint, delay time.Duration) (*watcher.Relay, error) {
	var relay *watcher.Relay
	var lastErr error
	err := retry.Do(func() error {
		relay, lastErr = w.RelayFor(ctx, domain, msgHash, wait)
		if lastErr != nil && !errors.Is(lastErr, watcher.ErrEndpointUnavailable) && !errors.Is(lastErr, watcher.ErrSubscriptionFailed) {
			return retry.Unrecoverable(lastErr)
		}
		return lastErr
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.LastErrorOnly(true),
	)
	if err != nil && lastErr != nil {
		return nil, lastErr
	}
	return relay, err
}
