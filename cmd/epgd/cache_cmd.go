// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/epgmerge/internal/cache"
	"github.com/ManuGH/epgmerge/internal/config"
	"github.com/ManuGH/epgmerge/internal/daemon"
	"github.com/ManuGH/epgmerge/internal/heuristics"
	"github.com/ManuGH/epgmerge/internal/persistence/sqlite"
	platformnet "github.com/ManuGH/epgmerge/internal/platform/net"
)

// errCorrupt makes the command exit non-zero after printing the findings.
var errCorrupt = errors.New("integrity check failed")

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect persisted state",
	}

	var verify string
	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show the cached schedule and per-source heuristics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(root)
			if err != nil {
				return err
			}
			return runCacheInspect(cmd.Context(), cmd.OutOrStdout(), cfg, verify)
		},
	}
	inspect.Flags().StringVar(&verify, "verify", "", "also check the sqlite heuristics database: quick or full")
	cmd.AddCommand(inspect)
	return cmd
}

func runCacheInspect(ctx context.Context, w io.Writer, cfg config.AppConfig, verify string) error {
	verify = strings.ToLower(strings.TrimSpace(verify))
	if verify != "" && verify != "quick" && verify != "full" {
		return fmt.Errorf("invalid --verify mode %q: use quick or full", verify)
	}

	store := cache.NewStore(cfg.DataDir)
	_, _ = fmt.Fprintf(w, "cache:      %s\n", store.Path())
	if env, ok := store.Load(ctx); ok {
		_, _ = fmt.Fprintf(w, "saved at:   %s (%s ago)\n", env.SavedAt.Format(time.RFC3339), time.Since(env.SavedAt).Truncate(time.Second))
		_, _ = fmt.Fprintf(w, "channels:   %d\n", len(env.EPG))
		_, _ = fmt.Fprintf(w, "programmes: %d\n", env.EPG.Programmes())
		_, _ = fmt.Fprintf(w, "names:      %d\n", len(env.Map))
	} else {
		_, _ = fmt.Fprintln(w, "status:     no usable cache")
	}

	heur, err := daemon.OpenHeuristics(cfg)
	if err != nil {
		return fmt.Errorf("open heuristics store: %w", err)
	}
	defer func() { _ = heur.Close() }()

	_, _ = fmt.Fprintf(w, "\nheuristics (%s):\n", backendName(cfg))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SOURCE\tBYTES\tPARSE\tUPDATED")
	for _, src := range cfg.Sources {
		obs, found, err := heur.Get(ctx, src)
		safe := platformnet.SanitizeURL(src)
		switch {
		case err != nil:
			_, _ = fmt.Fprintf(tw, "%s\terror: %v\t\t\n", safe, err)
		case !found:
			_, _ = fmt.Fprintf(tw, "%s\t-\t-\t-\n", safe)
		default:
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", safe, obs.ByteSize, obs.ParseDuration, obs.UpdatedAt.Format(time.RFC3339))
		}
	}
	_ = tw.Flush()

	if verify == "" {
		return nil
	}
	return verifyHeuristics(w, cfg, verify)
}

func backendName(cfg config.AppConfig) string {
	if cfg.Heuristics.Backend == "" {
		return heuristics.BackendSqlite
	}
	return cfg.Heuristics.Backend
}

func verifyHeuristics(w io.Writer, cfg config.AppConfig, mode string) error {
	if backendName(cfg) != heuristics.BackendSqlite {
		_, _ = fmt.Fprintf(w, "\nintegrity: skipped (backend %s)\n", backendName(cfg))
		return nil
	}
	path := filepath.Join(cfg.DataDir, heuristics.SqliteFileName)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("heuristics database: %w", err)
	}

	issues, err := sqlite.VerifyIntegrity(path, mode)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if issues != nil {
		_, _ = fmt.Fprintf(w, "\nintegrity (%s): CORRUPTION DETECTED\n", mode)
		for _, issue := range issues {
			_, _ = fmt.Fprintf(w, "  - %s\n", issue)
		}
		return errCorrupt
	}
	_, _ = fmt.Fprintf(w, "\nintegrity (%s): ok\n", mode)
	return nil
}
