package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "watch",
	Short: "Extracts cross-domain message hashes and resolves their relays",
}

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.SilenceUsage = true
	rootCmd.PersistentFlags().String(flagConfig, "config.yml", "path to the yaml config")
	rootCmd.PersistentFlags().String(flagWatcher, "", "watcher id from the config")
	rootCmd.PersistentFlags().String(flagDomain, "", "home or foreign")
	rootCmd.AddCommand(hashesCmd(), receiptCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
