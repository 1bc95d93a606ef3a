// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package annotator resolves biomedical terms to ranked ontology matches.
//
// A Pipeline runs up to four lookup stages for every term: exact label,
// synonym and fuzzy search against the primary service, then an optional
// fallback search against a secondary catalog. Each stage's raw relevance is
// mapped onto a shared confidence scale so that results from different stages
// can be merged, deduplicated by ontology id, filtered by a minimum
// confidence and sorted deterministically.
package annotator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stacklok/ontology-annotator/pkg/domain"
)

// DefaultMinConfidence is the threshold applied when a caller sets none.
const DefaultMinConfidence = 0.7

// Stage identifies the pipeline stage that produced a match.
// Lower values have higher priority.
type Stage int

// Pipeline stages in priority order.
const (
	StageExact Stage = iota + 1
	StageSynonym
	StageFuzzy
	StageFallback
)

var stageNames = map[Stage]string{
	StageExact:    "exact",
	StageSynonym:  "synonym",
	StageFuzzy:    "fuzzy",
	StageFallback: "fallback",
}

// String returns the wire name of the stage.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// MarshalJSON encodes the stage by name.
func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a stage name.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for stage, n := range stageNames {
		if n == name {
			*s = stage
			return nil
		}
	}
	return fmt.Errorf("unknown stage %q", name)
}

// Query is a request to resolve one term.
type Query struct {
	// Text is the term to resolve. It is trimmed before use.
	Text string
	// Domain narrows the default ontologies. Unspecified searches everything.
	Domain domain.Domain
	// PreferredOntologies overrides the domain defaults for the primary stages.
	PreferredOntologies []string
	// MinConfidence drops matches below this confidence. Must be in [0,1].
	MinConfidence float64
	// AllowFallback permits the fallback stage.
	AllowFallback bool
}

// NewQuery returns a Query with the default threshold and fallback enabled.
func NewQuery(text string, d domain.Domain) Query {
	return Query{
		Text:          text,
		Domain:        d,
		MinConfidence: DefaultMinConfidence,
		AllowFallback: true,
	}
}

// Match is one ontology term returned for a query.
type Match struct {
	OntologyID      string            `json:"ontology_id"`
	Label           string            `json:"label"`
	Ontology        string            `json:"ontology"`
	Confidence      float64           `json:"confidence"`
	SourceStage     Stage             `json:"source_stage"`
	MatchedText     string            `json:"matched_text"`
	Definition      string            `json:"definition,omitempty"`
	Synonyms        []string          `json:"synonyms,omitempty"`
	IRI             string            `json:"iri,omitempty"`
	CrossReferences map[string]string `json:"cross_references,omitempty"`
}

// Diagnostic records why a stage contributed nothing.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Result is the annotation of one query.
type Result struct {
	InputText   string       `json:"input_text"`
	Domain      string       `json:"domain,omitempty"`
	Matches     []Match      `json:"matches"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	// Error is set by AnnotateMany when this query failed as a whole.
	Error string `json:"error,omitempty"`
}

//go:generate mockgen -destination=mocks/mock_annotator.go -package=mocks -source=annotator.go Annotator

// Annotator resolves terms to ontology matches.
type Annotator interface {
	// Annotate resolves one query. Finding nothing is not an error.
	// It fails on invalid input or when ctx is done.
	Annotate(ctx context.Context, q Query) (*Result, error)
	// AnnotateMany resolves each query independently and returns one
	// Result per query in input order. Per-query failures are reported in
	// Result.Error.
	AnnotateMany(ctx context.Context, queries []Query) []Result
}

// OntologyDefaults supplies the default ontology namespaces per domain.
type OntologyDefaults interface {
	OntologiesFor(d domain.Domain) []string
}

func failedResult(q Query, err error) Result {
	return Result{
		InputText: strings.TrimSpace(q.Text),
		Domain:    string(q.Domain),
		Matches:   []Match{},
		Error:     err.Error(),
	}
}
