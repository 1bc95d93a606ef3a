// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/ontology-annotator/pkg/annotator"
	annotatormocks "github.com/stacklok/ontology-annotator/pkg/annotator/mocks"
	"github.com/stacklok/ontology-annotator/pkg/config"
	"github.com/stacklok/ontology-annotator/pkg/domain"
	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
	"github.com/stacklok/ontology-annotator/pkg/extract"
	extractmocks "github.com/stacklok/ontology-annotator/pkg/extract/mocks"
	"github.com/stacklok/ontology-annotator/pkg/lookup"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func errorText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, result.IsError)
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return text.Text
}

func diabetesResult(text string) annotator.Result {
	return annotator.Result{
		InputText: text,
		Domain:    "disease",
		Matches: []annotator.Match{{
			OntologyID:  "MONDO:0005015",
			Label:       "diabetes mellitus",
			Ontology:    "mondo",
			Confidence:  1,
			SourceStage: annotator.StageExact,
			MatchedText: text,
		}},
	}
}

func TestHandler_AnnotateOntologyTerms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        map[string]any
		setupMocks  func(*annotatormocks.MockAnnotator)
		wantErr     string
		checkResult func(*testing.T, AnnotationsResponse)
	}{
		{
			name: "single string with defaults",
			args: map[string]any{"texts": "diabetes mellitus", "domain": "disease"},
			setupMocks: func(m *annotatormocks.MockAnnotator) {
				m.EXPECT().AnnotateMany(gomock.Any(), []annotator.Query{{
					Text:          "diabetes mellitus",
					Domain:        domain.Disease,
					MinConfidence: 0.7,
					AllowFallback: true,
				}}).Return([]annotator.Result{diabetesResult("diabetes mellitus")})
			},
			checkResult: func(t *testing.T, resp AnnotationsResponse) {
				t.Helper()
				require.Len(t, resp.Annotations, 1)
				assert.Equal(t, "MONDO:0005015", resp.Annotations[0].Matches[0].OntologyID)
			},
		},
		{
			name: "list with overrides",
			args: map[string]any{
				"texts":                  []any{"fever", "seizure"},
				"preferred_ontologies":   []any{"HP", " hp ", "mp"},
				"use_bioportal_fallback": false,
				"min_confidence":         0.5,
			},
			setupMocks: func(m *annotatormocks.MockAnnotator) {
				m.EXPECT().AnnotateMany(gomock.Any(), []annotator.Query{
					{Text: "fever", PreferredOntologies: []string{"hp", "mp"}, MinConfidence: 0.5},
					{Text: "seizure", PreferredOntologies: []string{"hp", "mp"}, MinConfidence: 0.5},
				}).Return([]annotator.Result{
					{InputText: "fever", Matches: []annotator.Match{}},
					{InputText: "seizure", Matches: []annotator.Match{}},
				})
			},
			checkResult: func(t *testing.T, resp AnnotationsResponse) {
				t.Helper()
				require.Len(t, resp.Annotations, 2)
				assert.Equal(t, "fever", resp.Annotations[0].InputText)
				assert.Equal(t, "seizure", resp.Annotations[1].InputText)
			},
		},
		{
			name:    "missing texts",
			args:    map[string]any{},
			wantErr: "texts is required",
		},
		{
			name:    "blank text",
			args:    map[string]any{"texts": "   "},
			wantErr: "texts[0] must not be empty",
		},
		{
			name:    "empty list",
			args:    map[string]any{"texts": []any{}},
			wantErr: "texts must not be empty",
		},
		{
			name:    "wrong texts type",
			args:    map[string]any{"texts": 42},
			wantErr: "texts must be a string or a list of strings",
		},
		{
			name:    "unknown domain",
			args:    map[string]any{"texts": "aspirin", "domain": "drug"},
			wantErr: `unknown domain "drug"`,
		},
		{
			name:    "confidence out of range",
			args:    map[string]any{"texts": "aspirin", "min_confidence": 1.5},
			wantErr: "min_confidence must be between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockAnnotator := annotatormocks.NewMockAnnotator(ctrl)
			if tt.setupMocks != nil {
				tt.setupMocks(mockAnnotator)
			} else {
				mockAnnotator.EXPECT().AnnotateMany(gomock.Any(), gomock.Any()).Times(0)
			}

			h := NewHandler(mockAnnotator)
			result, err := h.AnnotateOntologyTerms(context.Background(), callRequest(ToolAnnotateTerms, tt.args))
			require.NoError(t, err)

			if tt.wantErr != "" {
				assert.Contains(t, errorText(t, result), tt.wantErr)
				return
			}
			require.False(t, result.IsError)
			resp, ok := result.StructuredContent.(AnnotationsResponse)
			require.True(t, ok)
			tt.checkResult(t, resp)
		})
	}
}

// fastOrBlockingSearcher answers "fast" at once and holds every other text
// until the request deadline.
func fastOrBlockingSearcher() lookup.SearcherFunc {
	return func(ctx context.Context, q lookup.Query) ([]lookup.Candidate, error) {
		if q.Text == "fast" {
			return []lookup.Candidate{{ID: "MONDO:1", Label: "fast", Ontology: "mondo", Score: 1, MatchedText: "fast"}}, nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func TestHandler_AnnotateOntologyTerms_TimeoutKeepsCompletedItems(t *testing.T) {
	t.Parallel()

	pipeline := annotator.NewPipeline(fastOrBlockingSearcher(), config.Default())
	h := NewHandler(pipeline, WithRequestTimeout(100*time.Millisecond))

	result, err := h.AnnotateOntologyTerms(context.Background(),
		callRequest(ToolAnnotateTerms, map[string]any{"texts": []any{"fast", "slow"}, "use_bioportal_fallback": false}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	resp, ok := result.StructuredContent.(AnnotationsResponse)
	require.True(t, ok)
	require.Len(t, resp.Annotations, 2)

	assert.Empty(t, resp.Annotations[0].Error)
	require.NotEmpty(t, resp.Annotations[0].Matches)
	assert.Equal(t, "MONDO:1", resp.Annotations[0].Matches[0].OntologyID)

	assert.Equal(t, "slow", resp.Annotations[1].InputText)
	assert.Empty(t, resp.Annotations[1].Matches)
	assert.Contains(t, resp.Annotations[1].Error, context.DeadlineExceeded.Error())
}

func TestHandler_ExtractAndAnnotate_TimeoutKeepsCompletedEntities(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockExtractor := extractmocks.NewMockExtractor(ctrl)
	mockExtractor.EXPECT().Extract(gomock.Any(), "fast then slow", gomock.Any()).Return([]extract.Mention{
		{Text: "fast", Domain: domain.Disease, Start: 0, End: 4, ExtractionConfidence: 0.9},
		{Text: "slow", Domain: domain.Disease, Start: 10, End: 14, ExtractionConfidence: 0.9},
	}, nil)

	pipeline := annotator.NewPipeline(fastOrBlockingSearcher(), config.Default())
	h := NewHandler(pipeline, WithExtractor(mockExtractor), WithRequestTimeout(100*time.Millisecond))

	result, err := h.ExtractAndAnnotate(context.Background(),
		callRequest(ToolExtractAndAnnotate, map[string]any{"text": "fast then slow", "use_bioportal_fallback": false}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	resp, ok := result.StructuredContent.(ExtractionResponse)
	require.True(t, ok)
	require.Len(t, resp.ExtractedEntities, 2)
	require.NotEmpty(t, resp.ExtractedEntities[0].Matches)
	assert.Equal(t, "MONDO:1", resp.ExtractedEntities[0].Matches[0].OntologyID)
	assert.Empty(t, resp.ExtractedEntities[0].Error)
	assert.Empty(t, resp.ExtractedEntities[1].Matches)
	assert.NotEmpty(t, resp.ExtractedEntities[1].Error)
}

func TestHandler_ExtractAndAnnotate_ExtractionTimeout(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockAnnotator := annotatormocks.NewMockAnnotator(ctrl)
	mockAnnotator.EXPECT().AnnotateMany(gomock.Any(), gomock.Any()).Times(0)
	mockExtractor := extractmocks.NewMockExtractor(ctrl)
	mockExtractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, _ []domain.Domain) ([]extract.Mention, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	h := NewHandler(mockAnnotator, WithExtractor(mockExtractor), WithRequestTimeout(10*time.Millisecond))
	result, err := h.ExtractAndAnnotate(context.Background(), callRequest(ToolExtractAndAnnotate, map[string]any{"text": "fever"}))
	require.NoError(t, err)
	assert.Equal(t, "request timed out", errorText(t, result))
}

func TestHandler_ExtractAndAnnotate(t *testing.T) {
	t.Parallel()

	const text = "Patient has diabetes mellitus and takes metformin."
	mentions := []extract.Mention{
		{Text: "diabetes mellitus", Domain: domain.Disease, Start: 12, End: 29, ExtractionConfidence: 0.95},
		{Text: "metformin", Domain: domain.Chemical, Start: 40, End: 49, ExtractionConfidence: 0.9},
	}

	tests := []struct {
		name        string
		args        map[string]any
		setupMocks  func(*annotatormocks.MockAnnotator, *extractmocks.MockExtractor)
		wantErr     string
		checkResult func(*testing.T, ExtractionResponse)
	}{
		{
			name: "entities annotated in order",
			args: map[string]any{
				"text":                 text,
				"domains":              []any{"disease", "chemical"},
				"preferred_ontologies": map[string]any{"disease": []any{"MONDO"}},
				"min_confidence":       0.6,
			},
			setupMocks: func(a *annotatormocks.MockAnnotator, e *extractmocks.MockExtractor) {
				e.EXPECT().Extract(gomock.Any(), text, []domain.Domain{domain.Disease, domain.Chemical}).Return(mentions, nil)
				a.EXPECT().AnnotateMany(gomock.Any(), []annotator.Query{
					{Text: "diabetes mellitus", Domain: domain.Disease, PreferredOntologies: []string{"mondo"}, MinConfidence: 0.6, AllowFallback: true},
					{Text: "metformin", Domain: domain.Chemical, MinConfidence: 0.6, AllowFallback: true},
				}).Return([]annotator.Result{
					diabetesResult("diabetes mellitus"),
					{InputText: "metformin", Domain: "chemical"},
				})
			},
			checkResult: func(t *testing.T, resp ExtractionResponse) {
				t.Helper()
				assert.Equal(t, text, resp.OriginalText)
				require.Len(t, resp.ExtractedEntities, 2)
				assert.Equal(t, mentions[0], resp.ExtractedEntities[0].Mention)
				assert.Len(t, resp.ExtractedEntities[0].Matches, 1)
				assert.Equal(t, mentions[1], resp.ExtractedEntities[1].Mention)
				assert.NotNil(t, resp.ExtractedEntities[1].Matches)
				assert.Empty(t, resp.ExtractedEntities[1].Matches)
			},
		},
		{
			name: "extraction failure yields empty entity list",
			args: map[string]any{"text": text},
			setupMocks: func(a *annotatormocks.MockAnnotator, e *extractmocks.MockExtractor) {
				e.EXPECT().Extract(gomock.Any(), text, []domain.Domain{}).
					Return(nil, oaerrors.NewExtractionFailureError("language model output is not valid JSON", nil))
				a.EXPECT().AnnotateMany(gomock.Any(), gomock.Any()).Times(0)
			},
			checkResult: func(t *testing.T, resp ExtractionResponse) {
				t.Helper()
				assert.Empty(t, resp.ExtractedEntities)
				require.Len(t, resp.Diagnostics, 1)
				assert.Equal(t, oaerrors.ErrExtractionFailure, resp.Diagnostics[0].Kind)
			},
		},
		{
			name:    "blank text",
			args:    map[string]any{"text": " "},
			wantErr: "text must not be empty",
		},
		{
			name:    "unknown domain",
			args:    map[string]any{"text": text, "domains": []any{"protein"}},
			wantErr: `unknown domain "protein"`,
		},
		{
			name:    "unknown preferred ontology domain",
			args:    map[string]any{"text": text, "preferred_ontologies": map[string]any{"drug": []any{"chebi"}}},
			wantErr: "preferred_ontologies",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			mockAnnotator := annotatormocks.NewMockAnnotator(ctrl)
			mockExtractor := extractmocks.NewMockExtractor(ctrl)
			if tt.setupMocks != nil {
				tt.setupMocks(mockAnnotator, mockExtractor)
			} else {
				mockExtractor.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
				mockAnnotator.EXPECT().AnnotateMany(gomock.Any(), gomock.Any()).Times(0)
			}

			h := NewHandler(mockAnnotator, WithExtractor(mockExtractor))
			result, err := h.ExtractAndAnnotate(context.Background(), callRequest(ToolExtractAndAnnotate, tt.args))
			require.NoError(t, err)

			if tt.wantErr != "" {
				assert.Contains(t, errorText(t, result), tt.wantErr)
				return
			}
			require.False(t, result.IsError)
			resp, ok := result.StructuredContent.(ExtractionResponse)
			require.True(t, ok)
			tt.checkResult(t, resp)
		})
	}
}

func TestHandler_ExtractAndAnnotate_NotConfigured(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	h := NewHandler(annotatormocks.NewMockAnnotator(ctrl))

	result, err := h.ExtractAndAnnotate(context.Background(), callRequest(ToolExtractAndAnnotate, map[string]any{"text": "fever"}))
	require.NoError(t, err)
	assert.Contains(t, errorText(t, result), "ANTHROPIC_API_KEY")
}
