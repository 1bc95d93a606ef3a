// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/stacklok/ontology-annotator/pkg/annotator"
	"github.com/stacklok/ontology-annotator/pkg/domain"
	mcpserver "github.com/stacklok/ontology-annotator/pkg/mcp/server"
)

type queryFlags struct {
	ontologies    []string
	minConfidence float64
	noFallback    bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.ontologies, "ontology", nil, "Ontology namespace to search (repeatable, overrides domain defaults)")
	cmd.Flags().Float64Var(&f.minConfidence, "min-confidence", annotator.DefaultMinConfidence, "Minimum confidence for returned matches")
	cmd.Flags().BoolVar(&f.noFallback, "no-fallback", false, "Never query BioPortal")
}

func (f *queryFlags) query(text string, d domain.Domain) annotator.Query {
	return annotator.Query{
		Text:                text,
		Domain:              d,
		PreferredOntologies: domain.NormalizeOntologies(f.ontologies),
		MinConfidence:       f.minConfidence,
		AllowFallback:       !f.noFallback,
	}
}

func newAnnotateCmd() *cobra.Command {
	var (
		flags      queryFlags
		domainName string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "annotate TERM [TERM...]",
		Short: "Annotate terms and print the matches as JSON",
		Long: `Run the annotation pipeline locally for each TERM, using the same
configuration as the MCP server, and print the results as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != outputJSON && output != outputText {
				return fmt.Errorf("unsupported output %q (valid: %s, %s)", output, outputJSON, outputText)
			}
			d, err := domain.Parse(domainName)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			c, err := buildComponents(cfg)
			if err != nil {
				return err
			}

			queries := make([]annotator.Query, len(args))
			for i, term := range args {
				queries[i] = flags.query(term, d)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Annotation.RequestTimeout)
			defer cancel()
			results := c.pipeline.AnnotateMany(ctx, queries)
			if output == outputText {
				return renderAnnotationsTable(cmd.OutOrStdout(), results)
			}
			return printJSON(cmd.OutOrStdout(), mcpserver.AnnotationsResponse{Annotations: results})
		},
	}

	cmd.Flags().StringVar(&domainName, "domain", "", fmt.Sprintf("Domain of the terms (%v)", domain.Names()))
	cmd.Flags().StringVarP(&output, "output", "o", outputJSON, "Output format (json or text)")
	flags.register(cmd)
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
