// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/ontology-annotator/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as a loadable YAML file",
		Long: `Print the configuration assembled from .env files, environment variables,
the config file and defaults. Credentials are never printed; only whether
they are set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return writeConfig(cmd.OutOrStdout(), cfg)
		},
	})

	return cmd
}

// writeConfig prints cfg in the flat key space accepted by --config, so the
// output can be saved and loaded back. Credentials appear only as comments.
func writeConfig(w io.Writer, cfg *config.Config) error {
	if _, err := fmt.Fprintf(w, "# bioportal_api_key set: %t\n# anthropic_api_key set: %t\n",
		cfg.BioPortalEnabled(), cfg.ExtractionEnabled()); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Settings()); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}
