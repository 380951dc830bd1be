// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ManuGH/epgmerge/internal/cache"
	"github.com/ManuGH/epgmerge/internal/config"
	"github.com/ManuGH/epgmerge/internal/daemon"
	"github.com/ManuGH/epgmerge/internal/jobs"
)

type fetchOptions struct {
	output   string
	noCache  bool
	quiet    bool
	sources  []string
	noExport bool
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch [source-url...]",
		Short: "Fetch and merge all sources once",
		Long: `Runs one FetchAndMerge over the configured sources (or the URLs given as
arguments), shows a progress line and writes the merged XMLTV document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(root)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				opts.sources = args
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runFetch(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "XMLTV output path (default: xmltvFile inside the data directory)")
	cmd.Flags().BoolVar(&opts.noExport, "no-export", false, "do not write the XMLTV document")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not update the schedule cache")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress the progress line")
	return cmd
}

func runFetch(ctx context.Context, stdout, stderr io.Writer, cfg config.AppConfig, opts *fetchOptions) error {
	sources := cfg.Sources
	if len(opts.sources) > 0 {
		sources = opts.sources
	}

	heur, err := daemon.OpenHeuristics(cfg)
	if err != nil {
		return fmt.Errorf("open heuristics store: %w", err)
	}
	defer func() { _ = heur.Close() }()

	var store *cache.Store
	if !opts.noCache {
		store = cache.NewStore(cfg.DataDir)
	}
	engine, err := daemon.NewEngine(cfg, heur, store)
	if err != nil {
		return err
	}

	var sink func(float64)
	var line *progressLine
	if !opts.quiet {
		line = newProgressLine(stderr)
		sink = line.Update
	}
	res, err := engine.FetchAndMerge(ctx, engine.Describe(ctx, sources), sink)
	if line != nil {
		line.Finish()
	}
	if err != nil {
		return err
	}

	printReport(stdout, res)
	if res.AllSourcesFailed() {
		return jobs.ErrAllSourcesFailed
	}

	if opts.noExport {
		return nil
	}
	path := opts.output
	if path == "" {
		if path, err = jobs.ExportPath(cfg.DataDir, cfg.XMLTVFile); err != nil {
			return err
		}
	}
	if err := jobs.WriteXMLTV(ctx, path, res.Schedule, res.Names); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

func printReport(w io.Writer, res *jobs.Result) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "SOURCE\tSTATUS\tENCODING\tCHANNELS\tPROGRAMMES\tDROPPED\tDURATION")
	for _, r := range res.Sources {
		status := "ok"
		if !r.OK {
			status = r.Error
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.URL, status, r.Encoding, r.Channels, r.Programmes, r.Dropped, r.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(w, "merged %d channels, %d programmes, %d names (%d conflicts) in %s\n",
		len(res.Schedule), res.Schedule.Programmes(), len(res.Names), len(res.Conflicts), res.Duration.Round(time.Millisecond))
}
