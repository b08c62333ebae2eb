package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func hashesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hashes",
		Short: "Print the message hashes sent by a source transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, domain, err := watcherFromFlags(cmd)
			if err != nil {
				return err
			}
			tx, _ := cmd.Flags().GetString(flagTx)
			if !isHash(tx) {
				return fmt.Errorf("invalid transaction hash %q", tx)
			}

			hashes, err := w.MessageHashesFrom(cmd.Context(), domain, common.HexToHash(tx))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), hashes)
		},
	}
	cmd.Flags().String(flagTx, "", "source transaction hash")
	_ = cmd.MarkFlagRequired(flagTx)
	return cmd
}

func isHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}
