// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the command-line interface of the ontology annotator.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/ontology-annotator/pkg/config"
	"github.com/stacklok/ontology-annotator/pkg/logger"
)

// NewRootCmd creates a new root command for the ontology annotator CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "ontology-annotator",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "Map biomedical text to standardized ontology identifiers",
		Long: `ontology-annotator resolves biomedical terms to ontology identifiers
(MONDO, HP, ChEBI, HGNC and others) using the EBI Ontology Lookup Service,
with BioPortal as an optional fallback. It can also extract entity mentions
from free text with a language model before annotating them.

Run "ontology-annotator serve" to expose the annotator as MCP tools.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			// Re-initialize so --debug takes effect.
			logger.Initialize()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAnnotateCmd())
	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadConfig reads settings using the global viper instance, which carries
// the command's flag bindings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(viper.GetViper(), configFile)
}
