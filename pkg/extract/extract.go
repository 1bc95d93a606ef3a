// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package extract finds biomedical entity mentions in free text using a
// language model.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/stacklok/ontology-annotator/pkg/domain"
	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
	"github.com/stacklok/ontology-annotator/pkg/logger"
)

// Mention is one entity found in the source text. Start and End are
// character (rune) offsets, End exclusive.
type Mention struct {
	Text                 string        `json:"text"`
	Domain               domain.Domain `json:"domain"`
	Start                int           `json:"start_pos"`
	End                  int           `json:"end_pos"`
	ExtractionConfidence float64       `json:"extraction_confidence"`
}

//go:generate mockgen -destination=mocks/mock_extract.go -package=mocks -source=extract.go Extractor,Completer

// Extractor finds entity mentions in text.
type Extractor interface {
	// Extract returns the mentions of the given domains in text, or of all
	// domains when domains is empty. Unusable model output is reported as
	// an extraction_failure error.
	Extract(ctx context.Context, text string, domains []domain.Domain) ([]Mention, error)
}

// Completer produces a text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMExtractor is an Extractor backed by a Completer.
type LLMExtractor struct {
	completer Completer
}

// NewLLMExtractor returns an extractor that prompts completer.
func NewLLMExtractor(completer Completer) *LLMExtractor {
	return &LLMExtractor{completer: completer}
}

const promptTemplate = `Extract biomedical entities from the following text.

Text: %s

Extract entities of these types: %s

Return a JSON array of entities with:
- text: the extracted phrase exactly as it appears in the input
- start_pos: character start position in the original text (0-indexed)
- end_pos: character end position in the original text (exclusive)
- domain: one of %s
- confidence: 0.0 to 1.0

Only return the JSON array, no other text.`

// Prompt builds the extraction prompt for text and domains.
func Prompt(text string, domains []domain.Domain) string {
	names := make([]string, len(domains))
	for i, d := range domains {
		names[i] = string(d)
	}
	return fmt.Sprintf(promptTemplate, text, strings.Join(names, ", "), strings.Join(domain.Names(), ", "))
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string, domains []domain.Domain) ([]Mention, error) {
	if strings.TrimSpace(text) == "" {
		return nil, oaerrors.NewInvalidInputError("text must not be empty", nil)
	}
	requested, err := resolveDomains(domains)
	if err != nil {
		return nil, err
	}

	content, err := e.completer.Complete(ctx, Prompt(text, requested))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, oaerrors.NewExtractionFailureError("language model call failed", err)
	}

	mentions, err := ParseMentions(content, text, requested)
	if err != nil {
		return nil, err
	}
	logger.Debugf("extracted %d entities from %d characters", len(mentions), len([]rune(text)))
	return mentions, nil
}

func resolveDomains(domains []domain.Domain) ([]domain.Domain, error) {
	if len(domains) == 0 {
		return domain.All(), nil
	}
	out := make([]domain.Domain, 0, len(domains))
	for _, d := range domains {
		if !d.Valid() {
			return nil, oaerrors.NewInvalidInputError(fmt.Sprintf("unknown domain %q (valid domains: %s)",
				string(d), strings.Join(domain.Names(), ", ")), nil)
		}
		if !containsDomain(out, d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func containsDomain(list []domain.Domain, d domain.Domain) bool {
	for _, x := range list {
		if x == d {
			return true
		}
	}
	return false
}
