// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command epgd merges XMLTV programme guides from several sources and serves
// the result over HTTP.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/epgmerge/internal/config"
	xglog "github.com/ManuGH/epgmerge/internal/log"
	"github.com/ManuGH/epgmerge/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "epgd",
		Short:        "Merge XMLTV programme guides",
		Long:         "epgd downloads XMLTV programme guides from several sources, merges them into one schedule and serves it over HTTP.",
		SilenceUsage: true,
		Version:      version.String(),
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML); defaults to $EPGD_DATA_DIR/config.yaml when present")

	root.AddCommand(
		newServeCmd(opts),
		newFetchCmd(opts),
		newCacheCmd(opts),
		newConfigCmd(opts),
		newHealthcheckCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "epgd", version.String())
		},
	}
}

// resolveConfigPath picks the explicit path, or config.yaml inside the data
// directory when it exists. An empty result means ENV and defaults only.
func resolveConfigPath(explicit string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	dataDir := strings.TrimSpace(config.ParseString(config.EnvPrefix+"DATA_DIR", config.DefaultDataDir))
	if dataDir == "" {
		return ""
	}
	autoPath := filepath.Join(dataDir, "config.yaml")
	if _, err := os.Stat(autoPath); err == nil {
		return autoPath
	}
	return ""
}

// loadConfig resolves and loads the configuration, then reconfigures the
// global logger from it.
func loadConfig(opts *rootOptions) (config.AppConfig, *config.Loader, error) {
	path := resolveConfigPath(opts.configPath)
	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		if path == "" {
			return cfg, nil, err
		}
		return cfg, nil, fmt.Errorf("%s: %w", path, err)
	}

	xglog.Configure(xglog.Config{
		Level:   cfg.LogLevel,
		Output:  os.Stderr,
		Service: "epgd",
		Version: cfg.Version,
	})

	source := "env+defaults"
	if path != "" {
		source = "file"
	}
	logger := xglog.WithComponent("cli")
	logger.Debug().
		Str(xglog.FieldEvent, "config.loaded").
		Str("source", source).
		Str(xglog.FieldPath, path).
		Msg("configuration loaded")
	return cfg, loader, nil
}
