// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"fmt"

	"github.com/ManuGH/epgmerge/internal/config"
	"github.com/ManuGH/epgmerge/internal/health"
	xglog "github.com/ManuGH/epgmerge/internal/log"
	"github.com/ManuGH/epgmerge/internal/telemetry"
)

// Serve runs epgd with the configuration held by holder until ctx is done.
func Serve(ctx context.Context, holder *config.ConfigHolder) error {
	cfg := holder.Get()
	logger := xglog.WithComponent("daemon")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return fmt.Errorf("startup checks: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.init_failed").Msg("telemetry initialization failed, continuing without tracing")
		tp = nil
	}

	rt, err := Bootstrap(cfg)
	if err != nil {
		if tp != nil {
			_ = tp.Shutdown(context.WithoutCancel(ctx))
		}
		return fmt.Errorf("bootstrap: %w", err)
	}

	mgr, err := NewManager(DefaultServerConfig(cfg.API.ListenAddr), Deps{
		Logger:     logger,
		APIHandler: rt.API.Handler(),
	})
	if err != nil {
		_ = rt.Close(ctx)
		return err
	}
	if tp != nil {
		mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	}
	mgr.RegisterShutdownHook("heuristics", rt.Close)

	logger.Info().
		Str(xglog.FieldEvent, "daemon.start").
		Str("listen", cfg.API.ListenAddr).
		Int(xglog.FieldSources, len(cfg.Sources)).
		Dur("refresh_interval", cfg.RefreshInterval).
		Str(xglog.FieldPath, rt.XMLTVPath).
		Msg("starting epgd")

	return NewApp(logger, mgr, holder, rt.Service).Run(ctx)
}
