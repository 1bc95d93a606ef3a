// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stacklok/ontology-annotator/pkg/annotator"
	"github.com/stacklok/ontology-annotator/pkg/domain"
	mcpserver "github.com/stacklok/ontology-annotator/pkg/mcp/server"
)

func newExtractCmd() *cobra.Command {
	var (
		flags       queryFlags
		domainNames []string
		annotate    bool
	)

	cmd := &cobra.Command{
		Use:   "extract TEXT",
		Short: "Extract entity mentions from text with the language model",
		Long: `Extract biomedical entity mentions from TEXT and print them as JSON.
With --annotate each mention is also run through the annotation pipeline.
Requires ANTHROPIC_API_KEY.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domains := make([]domain.Domain, 0, len(domainNames))
			for _, name := range domainNames {
				d, err := domain.Parse(name)
				if err != nil {
					return err
				}
				domains = append(domains, d)
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			c, err := buildComponents(cfg)
			if err != nil {
				return err
			}
			if c.extractor == nil {
				return fmt.Errorf("entity extraction is not configured: set ANTHROPIC_API_KEY")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Annotation.RequestTimeout)
			defer cancel()

			mentions, err := c.extractor.Extract(ctx, args[0], domains)
			if err != nil {
				return err
			}

			var results []annotator.Result
			if annotate {
				queries := make([]annotator.Query, len(mentions))
				for i, m := range mentions {
					queries[i] = flags.query(m.Text, m.Domain)
				}
				results = c.pipeline.AnnotateMany(ctx, queries)
			}

			response := mcpserver.ExtractionResponse{
				OriginalText:      args[0],
				ExtractedEntities: make([]mcpserver.Entity, len(mentions)),
			}
			for i, m := range mentions {
				entity := mcpserver.Entity{Mention: m, Matches: []annotator.Match{}}
				if i < len(results) {
					if results[i].Matches != nil {
						entity.Matches = results[i].Matches
					}
					entity.Diagnostics = results[i].Diagnostics
					entity.Error = results[i].Error
				}
				response.ExtractedEntities[i] = entity
			}
			return printJSON(cmd.OutOrStdout(), response)
		},
	}

	cmd.Flags().StringSliceVar(&domainNames, "domain", nil, fmt.Sprintf("Domain to extract (repeatable, one of %v)", domain.Names()))
	cmd.Flags().BoolVar(&annotate, "annotate", false, "Annotate each extracted mention")
	flags.register(cmd)
	return cmd
}
