package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pcbuilder/internal/refresh"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh-prices",
	Short: "Refresh catalog prices and ratings from Keepa",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, dbStore, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer dbStore.Close()

	summary, err := refresh.NewActualizer(newKeepaClient(), dbStore, cfg.Refresh.BatchSize, logger).Run(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
