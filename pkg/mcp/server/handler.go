// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package server provides the MCP (Model Context Protocol) server that
// exposes ontology annotation as tools.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/stacklok/ontology-annotator/pkg/annotator"
	"github.com/stacklok/ontology-annotator/pkg/domain"
	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
	"github.com/stacklok/ontology-annotator/pkg/extract"
	"github.com/stacklok/ontology-annotator/pkg/logger"
	"github.com/stacklok/ontology-annotator/pkg/metrics"
)

// Tool names.
const (
	ToolAnnotateTerms      = "annotate_ontology_terms"
	ToolExtractAndAnnotate = "extract_and_annotate"
)

const defaultMinConfidence = annotator.DefaultMinConfidence

// Handler handles MCP tool requests
type Handler struct {
	annotator      annotator.Annotator
	extractor      extract.Extractor
	requestTimeout time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithExtractor enables extract_and_annotate. Without it the tool reports
// that extraction is not configured.
func WithExtractor(e extract.Extractor) HandlerOption {
	return func(h *Handler) {
		h.extractor = e
	}
}

// WithRequestTimeout bounds each tool invocation. Zero means no limit
// beyond the caller's context.
func WithRequestTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		h.requestTimeout = d
	}
}

// NewHandler creates a new tool handler backed by a.
func NewHandler(a annotator.Annotator, opts ...HandlerOption) *Handler {
	h := &Handler{annotator: a}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AnnotationsResponse is the structured result of annotate_ontology_terms.
type AnnotationsResponse struct {
	Annotations []annotator.Result `json:"annotations"`
}

// Entity is one extracted mention together with its annotations.
type Entity struct {
	extract.Mention
	Matches     []annotator.Match      `json:"matches"`
	Diagnostics []annotator.Diagnostic `json:"diagnostics,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// ExtractionResponse is the structured result of extract_and_annotate.
type ExtractionResponse struct {
	OriginalText      string                 `json:"original_text"`
	ExtractedEntities []Entity               `json:"extracted_entities"`
	Diagnostics       []annotator.Diagnostic `json:"diagnostics,omitempty"`
}

// AnnotateOntologyTerms maps one or more terms to ontology identifiers.
func (h *Handler) AnnotateOntologyTerms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Texts                json.RawMessage `json:"texts"`
		Domain               string          `json:"domain"`
		PreferredOntologies  []string        `json:"preferred_ontologies"`
		UseBioPortalFallback *bool           `json:"use_bioportal_fallback"`
		MinConfidence        *float64        `json:"min_confidence"`
	}{}

	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}

	texts, err := parseTexts(args.Texts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := domain.Parse(args.Domain)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	minConfidence, err := parseMinConfidence(args.MinConfidence)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	allowFallback := boolOrDefault(args.UseBioPortalFallback, true)
	preferred := domain.NormalizeOntologies(args.PreferredOntologies)

	queries := make([]annotator.Query, len(texts))
	for i, text := range texts {
		queries[i] = annotator.Query{
			Text:                text,
			Domain:              d,
			PreferredOntologies: preferred,
			MinConfidence:       minConfidence,
			AllowFallback:       allowFallback,
		}
	}

	return h.invoke(ctx, ToolAnnotateTerms, func(ctx context.Context) (any, error) {
		// Items cut off by the deadline carry their own error; finished ones are kept.
		results := h.annotator.AnnotateMany(ctx, queries)
		return AnnotationsResponse{Annotations: results}, nil
	}, "texts", len(texts), "domain", d.String())
}

// ExtractAndAnnotate finds entity mentions in free text and annotates each.
func (h *Handler) ExtractAndAnnotate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := struct {
		Text                 string              `json:"text"`
		Domains              []string            `json:"domains"`
		PreferredOntologies  map[string][]string `json:"preferred_ontologies"`
		UseBioPortalFallback *bool               `json:"use_bioportal_fallback"`
		MinConfidence        *float64            `json:"min_confidence"`
	}{}

	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse arguments: %v", err)), nil
	}
	if h.extractor == nil {
		return mcp.NewToolResultError("entity extraction is not configured: set ANTHROPIC_API_KEY"), nil
	}

	if strings.TrimSpace(args.Text) == "" {
		return mcp.NewToolResultError("text must not be empty"), nil
	}
	domains, err := parseDomains(args.Domains)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	preferred, err := parsePreferredByDomain(args.PreferredOntologies)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	minConfidence, err := parseMinConfidence(args.MinConfidence)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	allowFallback := boolOrDefault(args.UseBioPortalFallback, true)

	return h.invoke(ctx, ToolExtractAndAnnotate, func(ctx context.Context) (any, error) {
		response := ExtractionResponse{
			OriginalText:      args.Text,
			ExtractedEntities: []Entity{},
		}

		mentions, err := h.extractor.Extract(ctx, args.Text, domains)
		switch {
		case err == nil:
		case oaerrors.IsExtractionFailure(err):
			logger.Warnw("entity extraction failed", "kind", oaerrors.TypeOf(err), "error", err)
			response.Diagnostics = []annotator.Diagnostic{{
				Stage:   "extraction",
				Kind:    oaerrors.TypeOf(err),
				Message: err.Error(),
			}}
			return response, nil
		default:
			return nil, err
		}

		queries := make([]annotator.Query, len(mentions))
		for i, m := range mentions {
			queries[i] = annotator.Query{
				Text:                m.Text,
				Domain:              m.Domain,
				PreferredOntologies: preferred[m.Domain],
				MinConfidence:       minConfidence,
				AllowFallback:       allowFallback,
			}
		}
		results := h.annotator.AnnotateMany(ctx, queries)

		for i, m := range mentions {
			entity := Entity{Mention: m, Matches: []annotator.Match{}}
			if i < len(results) {
				if results[i].Matches != nil {
					entity.Matches = results[i].Matches
				}
				entity.Diagnostics = results[i].Diagnostics
				entity.Error = results[i].Error
			}
			response.ExtractedEntities = append(response.ExtractedEntities, entity)
		}
		return response, nil
	}, "characters", len([]rune(args.Text)), "domains", len(domains))
}

// invoke runs fn under the request timeout and turns its outcome into a
// tool result. Errors returned by fn become tool errors; partial batch
// results are returned by fn as values.
func (h *Handler) invoke(
	ctx context.Context,
	tool string,
	fn func(context.Context) (any, error),
	keysAndValues ...any,
) (*mcp.CallToolResult, error) {
	requestID := uuid.NewString()
	start := time.Now()
	logger.Debugw("tool call started", append([]any{"tool", tool, "request_id", requestID}, keysAndValues...)...)

	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	value, err := fn(ctx)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordToolCall(tool, metrics.OutcomeError, duration)
		logger.Warnw("tool call failed", "tool", tool, "request_id", requestID, "duration", duration, "error", err)
		return mcp.NewToolResultError(toolErrorMessage(err)), nil
	}

	metrics.RecordToolCall(tool, metrics.OutcomeSuccess, duration)
	logger.Infow("tool call completed", "tool", tool, "request_id", requestID, "duration", duration)
	return mcp.NewToolResultStructuredOnly(value), nil
}

func toolErrorMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return err.Error()
	}
}

// parseTexts accepts a single string or a list of strings.
func parseTexts(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("texts is required")
	}

	var texts []string
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		texts = []string{single}
	} else if err := json.Unmarshal(raw, &texts); err != nil {
		return nil, fmt.Errorf("texts must be a string or a list of strings")
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("texts must not be empty")
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("texts[%d] must not be empty", i)
		}
	}
	return texts, nil
}

func parseDomains(raw []string) ([]domain.Domain, error) {
	domains := make([]domain.Domain, 0, len(raw))
	for _, s := range raw {
		d, err := domain.Parse(s)
		if err != nil {
			return nil, err
		}
		if d == domain.Unspecified {
			return nil, fmt.Errorf("domains must not contain empty values")
		}
		domains = append(domains, d)
	}
	return domains, nil
}

func parsePreferredByDomain(raw map[string][]string) (map[domain.Domain][]string, error) {
	out := make(map[domain.Domain][]string, len(raw))
	for key, ontologies := range raw {
		d, err := domain.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("preferred_ontologies: %w", err)
		}
		if d == domain.Unspecified {
			return nil, fmt.Errorf("preferred_ontologies: domain key must not be empty")
		}
		out[d] = domain.NormalizeOntologies(ontologies)
	}
	return out, nil
}

func parseMinConfidence(v *float64) (float64, error) {
	if v == nil {
		return defaultMinConfidence, nil
	}
	if math.IsNaN(*v) || *v < 0 || *v > 1 {
		return 0, fmt.Errorf("min_confidence must be between 0 and 1, got %v", *v)
	}
	return *v, nil
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
