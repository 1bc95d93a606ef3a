// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package annotator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/ontology-annotator/pkg/domain"
	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
	"github.com/stacklok/ontology-annotator/pkg/logger"
	"github.com/stacklok/ontology-annotator/pkg/lookup"
	"github.com/stacklok/ontology-annotator/pkg/metrics"
)

// DefaultBatchConcurrency bounds AnnotateMany when no limit is configured.
const DefaultBatchConcurrency = 8

// primaryStages run against the primary service, concurrently.
var primaryStages = []struct {
	stage Stage
	mode  lookup.Mode
}{
	{StageExact, lookup.ModeExact},
	{StageSynonym, lookup.ModeSynonym},
	{StageFuzzy, lookup.ModeFuzzy},
}

// Pipeline is the default Annotator. It holds no per-request state and is
// safe for concurrent use.
type Pipeline struct {
	primary          lookup.Searcher
	fallback         lookup.Searcher
	defaults         OntologyDefaults
	batchConcurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFallback enables the fallback stage using s.
func WithFallback(s lookup.Searcher) Option {
	return func(p *Pipeline) {
		p.fallback = s
	}
}

// WithBatchConcurrency bounds how many queries AnnotateMany runs at once.
func WithBatchConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchConcurrency = n
		}
	}
}

// NewPipeline returns a Pipeline searching primary. defaults may be nil, in
// which case queries without preferred ontologies are unrestricted.
func NewPipeline(primary lookup.Searcher, defaults OntologyDefaults, opts ...Option) *Pipeline {
	p := &Pipeline{
		primary:          primary,
		defaults:         defaults,
		batchConcurrency: DefaultBatchConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FallbackConfigured reports whether the fallback stage can run.
func (p *Pipeline) FallbackConfigured() bool {
	return p.fallback != nil
}

// stageOutcome is what one stage contributed.
type stageOutcome struct {
	matches    []Match
	diagnostic *Diagnostic
}

// Annotate implements Annotator.
func (p *Pipeline) Annotate(ctx context.Context, q Query) (*Result, error) {
	text, err := validate(q)
	if err != nil {
		return nil, err
	}

	ontologies := p.resolveOntologies(q)

	outcomes := make([]stageOutcome, len(primaryStages))
	var g errgroup.Group
	for i, s := range primaryStages {
		g.Go(func() error {
			outcomes[i] = p.runStage(ctx, s.stage, p.primary, lookup.Query{
				Text:       text,
				Ontologies: ontologies,
				Mode:       s.mode,
			})
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var matches []Match
	var diagnostics []Diagnostic
	for _, o := range outcomes {
		matches = append(matches, o.matches...)
		if o.diagnostic != nil {
			diagnostics = append(diagnostics, *o.diagnostic)
		}
	}

	switch {
	case !q.AllowFallback:
		metrics.RecordStage(StageFallback.String(), metrics.OutcomeSkipped, 0)
	case p.fallback == nil:
		metrics.RecordStage(StageFallback.String(), metrics.OutcomeSkipped, 0)
		if !anyAtLeast(matches, q.MinConfidence) {
			diagnostics = append(diagnostics, Diagnostic{
				Stage:   StageFallback.String(),
				Kind:    oaerrors.ErrConfigurationMissing,
				Message: "fallback lookup is not configured",
			})
		}
	case anyAtLeast(matches, q.MinConfidence):
		metrics.RecordStage(StageFallback.String(), metrics.OutcomeSkipped, 0)
	default:
		// The fallback catalog is searched without namespace restriction.
		o := p.runStage(ctx, StageFallback, p.fallback, lookup.Query{Text: text, Mode: lookup.ModeFuzzy})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		matches = append(matches, o.matches...)
		if o.diagnostic != nil {
			diagnostics = append(diagnostics, *o.diagnostic)
		}
	}

	ranked := rank(matches, q.MinConfidence)
	metrics.RecordMatches(len(ranked))

	return &Result{
		InputText:   text,
		Domain:      string(q.Domain),
		Matches:     ranked,
		Diagnostics: diagnostics,
	}, nil
}

// runStage calls s and scores its candidates. Failures are soft: the stage
// contributes no matches and a diagnostic instead.
func (*Pipeline) runStage(ctx context.Context, stage Stage, s lookup.Searcher, q lookup.Query) stageOutcome {
	start := time.Now()
	candidates, err := s.Search(ctx, q)
	elapsed := time.Since(start)

	if err != nil {
		kind := oaerrors.TypeOf(err)
		if ctx.Err() == nil {
			logger.Warnw("lookup stage failed",
				"stage", stage.String(),
				"kind", kind,
				"text", q.Text,
				"error", err.Error(),
			)
		}
		metrics.RecordStage(stage.String(), metrics.OutcomeError, elapsed)
		return stageOutcome{diagnostic: &Diagnostic{Stage: stage.String(), Kind: kind, Message: err.Error()}}
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.ID == "" {
			continue
		}
		matched := c.MatchedText
		if matched == "" {
			matched = q.Text
		}
		matches = append(matches, Match{
			OntologyID:      c.ID,
			Label:           c.Label,
			Ontology:        c.Ontology,
			Confidence:      Confidence(stage, c.Score),
			SourceStage:     stage,
			MatchedText:     matched,
			Definition:      c.Definition,
			Synonyms:        c.Synonyms,
			IRI:             c.IRI,
			CrossReferences: c.CrossReferences,
		})
	}

	outcome := metrics.OutcomeSuccess
	if len(matches) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.RecordStage(stage.String(), outcome, elapsed)
	logger.Debugf("stage %s returned %d candidates for %q in %v", stage, len(matches), q.Text, elapsed)

	return stageOutcome{matches: matches}
}

func (p *Pipeline) resolveOntologies(q Query) []string {
	if preferred := domain.NormalizeOntologies(q.PreferredOntologies); len(preferred) > 0 {
		return preferred
	}
	if q.Domain == domain.Unspecified || p.defaults == nil {
		return nil
	}
	return p.defaults.OntologiesFor(q.Domain)
}

// validate checks q and returns the trimmed text.
func validate(q Query) (string, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return "", oaerrors.NewInvalidInputError("text must not be empty", nil)
	}
	if q.Domain != domain.Unspecified && !q.Domain.Valid() {
		return "", oaerrors.NewInvalidInputError(fmt.Sprintf("unknown domain %q (valid domains: %s)",
			string(q.Domain), strings.Join(domain.Names(), ", ")), nil)
	}
	if math.IsNaN(q.MinConfidence) || q.MinConfidence < 0 || q.MinConfidence > 1 {
		return "", oaerrors.NewInvalidInputError(
			fmt.Sprintf("min_confidence must be between 0 and 1, got %v", q.MinConfidence), nil)
	}
	return text, nil
}
