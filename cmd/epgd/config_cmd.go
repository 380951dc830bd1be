// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/epgmerge/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate or print the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, loader, err := loadConfig(root)
			if err != nil {
				return err
			}
			where := loader.Path()
			if where == "" {
				where = "environment"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid (%d sources)\n", where, len(cfg.Sources))
			return nil
		},
	})

	var format string
	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration (defaults + file + env) with secrets masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(root)
			if err != nil {
				return err
			}
			return dumpConfig(cmd.OutOrStdout(), cfg, format)
		},
	}
	dump.Flags().StringVar(&format, "format", "yaml", "output format: yaml or json")
	cmd.AddCommand(dump)
	return cmd
}

func dumpConfig(w io.Writer, cfg config.AppConfig, format string) error {
	masked := config.MaskSecrets(cfg)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(masked)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(masked); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}
