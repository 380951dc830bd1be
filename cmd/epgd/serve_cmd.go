// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/epgmerge/internal/config"
	"github.com/ManuGH/epgmerge/internal/daemon"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon",
		Long: `Runs epgd as a long-lived service:
- serves the cached schedule immediately, then refreshes all sources
- refreshes again every refreshInterval
- reloads the config file on change or SIGHUP
- exposes the merged guide, status and metrics over HTTP`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, config.NewConfigHolder(cfg, loader))
		},
	}
}

func runServe(ctx context.Context, holder *config.ConfigHolder) error {
	defer holder.Stop()
	return daemon.Serve(ctx, holder)
}
