// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/stacklok/ontology-annotator/pkg/annotator"
)

const (
	outputJSON = "json"
	outputText = "text"
)

var annotationHeaders = []string{"Input", "Ontology ID", "Label", "Confidence", "Stage"}

// renderAnnotationsTable writes one row per match. Inputs without matches
// get a single row so every input stays visible.
func renderAnnotationsTable(w io.Writer, results []annotator.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No terms annotated.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Options(
		tablewriter.WithHeader(annotationHeaders),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(len(annotationHeaders), tw.AlignLeft)),
	)

	for _, result := range results {
		if len(result.Matches) == 0 {
			note := "(no match)"
			if result.Error != "" {
				note = "error: " + result.Error
			}
			if err := table.Append([]string{result.InputText, note, "", "", ""}); err != nil {
				return fmt.Errorf("failed to append row: %w", err)
			}
			continue
		}
		for _, m := range result.Matches {
			if err := table.Append([]string{
				result.InputText,
				m.OntologyID,
				m.Label,
				strconv.FormatFloat(m.Confidence, 'f', 4, 64),
				m.SourceStage.String(),
			}); err != nil {
				return fmt.Errorf("failed to append row: %w", err)
			}
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}
