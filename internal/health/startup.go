// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/epgmerge/internal/config"
	"github.com/ManuGH/epgmerge/internal/heuristics"
	"github.com/ManuGH/epgmerge/internal/log"
	platformnet "github.com/ManuGH/epgmerge/internal/platform/net"
)

// PerformStartupChecks validates the environment before the daemon starts.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkWritableDir(logger, "data directory", cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if cfg.Fetch.ScratchDir != "" {
		if err := checkWritableDir(logger, "scratch directory", cfg.Fetch.ScratchDir); err != nil {
			return fmt.Errorf("scratch directory check failed: %w", err)
		}
	}

	if len(cfg.Sources) == 0 {
		logger.Warn().Msg("no EPG sources configured; the merged schedule will stay empty")
	}
	for i, src := range cfg.Sources {
		logger.Info().
			Int(log.FieldSourceIndex, i).
			Str(log.FieldSourceURL, platformnet.SanitizeURL(src)).
			Msg("source configured")
	}

	if cfg.Heuristics.Backend == heuristics.BackendMemory {
		logger.Warn().Msg("heuristics use the in-memory backend; progress estimates reset on restart")
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; the schedule cache may be lost on reboot")
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

func checkWritableDir(logger zerolog.Logger, what, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory does not exist: %s", path)
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	f, err := os.CreateTemp(path, ".write_test")
	if err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %w)", path, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	logger.Info().Str(log.FieldPath, path).Msgf("%s is writable", what)
	return nil
}
