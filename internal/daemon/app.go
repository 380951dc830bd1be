// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/epgmerge/internal/config"
	xglog "github.com/ManuGH/epgmerge/internal/log"
)

// Refresher is the part of jobs.Service the daemon drives.
type Refresher interface {
	Run(ctx context.Context) error
	SetSources(urls []string)
}

// App owns the long-lived runtime lifecycle (refresh loop, config watcher,
// reload wiring) and delegates server management to Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	cfgHolder    *config.ConfigHolder
	service      Refresher
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. cfgHolder may be nil.
func NewApp(logger zerolog.Logger, manager Manager, cfgHolder *config.ConfigHolder, service Refresher) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		cfgHolder:    cfgHolder,
		service:      service,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.service == nil {
		return ErrMissingService
	}

	g, ctx := errgroup.WithContext(ctx)

	// Startup must not fail because the watcher could not be started.
	if a.cfgHolder != nil {
		if err := a.cfgHolder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}
	}

	if a.cfgHolder != nil {
		applyCh := make(chan config.AppConfig, 1)
		a.cfgHolder.RegisterListener(applyCh)
		current := a.cfgHolder.Get()

		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case next := <-applyCh:
					a.apply(current, next)
					current = next
				}
			}
		})
	}

	if a.cfgHolder != nil && a.reloadSignal != nil {
		g.Go(func() error {
			hupChan := make(chan os.Signal, 1)
			signal.Notify(hupChan, a.reloadSignal)
			defer signal.Stop(hupChan)

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-hupChan:
					a.logger.Info().
						Str(xglog.FieldEvent, "config.reload_signal").
						Str("signal", a.reloadSignal.String()).
						Msg("received reload signal, reloading config")

					if err := a.cfgHolder.Reload(ctx); err != nil {
						a.logger.Warn().
							Err(err).
							Str(xglog.FieldEvent, "config.reload_failed").
							Msg("config reload failed")
					}
				}
			}
		})
	}

	g.Go(func() error {
		return a.service.Run(ctx)
	})

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.WithoutCancel(ctx))
		}
		return err
	})

	return g.Wait()
}

// apply pushes the hot-reloadable settings of next into the running process.
func (a *App) apply(prev, next config.AppConfig) {
	if !slices.Equal(prev.Sources, next.Sources) {
		a.service.SetSources(next.Sources)
		a.logger.Info().
			Str(xglog.FieldEvent, "config.sources_applied").
			Int(xglog.FieldSources, len(next.Sources)).
			Msg("applied new source list")
	}
	if prev.LogLevel != next.LogLevel && next.LogLevel != "" {
		if err := xglog.SetLevel(next.LogLevel); err != nil {
			a.logger.Warn().Err(err).Str("level", next.LogLevel).Msg("ignoring invalid log level")
		}
	}
}
