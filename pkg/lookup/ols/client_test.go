// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package ols

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/ontology-annotator/pkg/config"
	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
	"github.com/stacklok/ontology-annotator/pkg/lookup"
	"github.com/stacklok/ontology-annotator/pkg/networking"
)

const diabetesResponse = `{
  "response": {
    "numFound": 3,
    "docs": [
      {
        "iri": "http://purl.obolibrary.org/obo/MONDO_0005015",
        "obo_id": "MONDO:0005015",
        "short_form": "MONDO_0005015",
        "label": "diabetes mellitus",
        "ontology_name": "mondo",
        "description": ["A metabolic disorder characterized by abnormally high blood sugar levels."],
        "synonym": ["diabetes", "DM"],
        "obo_xref": [{"database": "DOID", "id": "9351"}, {"database": "umls", "id": "C0011849"}],
        "score": 40.0
      },
      {
        "iri": "http://purl.obolibrary.org/obo/DOID_9351",
        "short_form": "DOID_9351",
        "label": "Diabetes Mellitus",
        "ontology_name": "doid",
        "description": "A glucose metabolism disease.",
        "synonym": "diabetes",
        "score": 20.0
      },
      {
        "iri": "http://purl.obolibrary.org/obo/HP_0000819",
        "obo_id": "HP:0000819",
        "label": "Diabetes mellitus type 2",
        "ontology_name": "hp",
        "synonym": ["DIABETES MELLITUS", "NIDDM"],
        "obo_xref": ["SNOMEDCT_US:44054006"],
        "score": 10.0
      }
    ]
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	httpClient, err := networking.NewHttpClientBuilder().WithPrivateIPs(true).WithInsecureHTTP(true).Build()
	require.NoError(t, err)

	cfg := config.Default().OLS
	cfg.APIURL = srv.URL + "/api/"
	cfg.RateLimit = 0
	return NewClient(cfg, httpClient)
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func TestSearchExact(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "diabetes mellitus", q.Get("q"))
		assert.Equal(t, "true", q.Get("exact"))
		assert.Equal(t, "mondo,doid", q.Get("ontology"))
		assert.Equal(t, "10", q.Get("rows"))
		assert.Equal(t, fieldList, q.Get("fieldList"))
		jsonHandler(diabetesResponse)(w, r)
	})

	got, err := client.Search(context.Background(), lookup.Query{
		Text:       "diabetes mellitus",
		Ontologies: []string{"mondo", "doid"},
		Mode:       lookup.ModeExact,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, lookup.Candidate{
		ID:          "MONDO:0005015",
		Label:       "diabetes mellitus",
		Ontology:    "mondo",
		Score:       1.0,
		MatchedText: "diabetes mellitus",
		IRI:         "http://purl.obolibrary.org/obo/MONDO_0005015",
		Definition:  "A metabolic disorder characterized by abnormally high blood sugar levels.",
		Synonyms:    []string{"diabetes", "DM"},
		CrossReferences: map[string]string{
			"doid": "DOID:9351",
			"umls": "UMLS:C0011849",
		},
	}, got[0])

	assert.Equal(t, "DOID:9351", got[1].ID)
	assert.Equal(t, 0.5, got[1].Score)
	assert.Equal(t, "A glucose metabolism disease.", got[1].Definition)
	assert.Equal(t, []string{"diabetes"}, got[1].Synonyms)
}

func TestSearchSynonymSkipsLabelMatches(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("exact"))
		assert.Empty(t, r.URL.Query().Get("ontology"))
		jsonHandler(diabetesResponse)(w, r)
	})

	got, err := client.Search(context.Background(), lookup.Query{Text: "diabetes mellitus", Mode: lookup.ModeSynonym})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "HP:0000819", got[0].ID)
	assert.Equal(t, "DIABETES MELLITUS", got[0].MatchedText)
	assert.Equal(t, 0.25, got[0].Score)
	assert.Equal(t, map[string]string{"snomedct_us": "SNOMEDCT_US:44054006"}, got[0].CrossReferences)
}

func TestSearchFuzzyReturnsAllDocs(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, jsonHandler(diabetesResponse))

	got, err := client.Search(context.Background(), lookup.Query{Text: "diabetes", Mode: lookup.ModeFuzzy})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, c := range got {
		assert.Equal(t, "diabetes", c.MatchedText)
	}
}

func TestSearchRankScoresWhenUnscored(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, jsonHandler(`{"response":{"docs":[
		{"obo_id":"A:1","label":"a"},
		{"obo_id":"A:2","label":"b"},
		{"label":"no id"}
	]}}`))

	got, err := client.Search(context.Background(), lookup.Query{Text: "a", Mode: lookup.ModeFuzzy})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, 0.5, got[1].Score)
}

func TestSearchEmptyResponse(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, jsonHandler(`{"response":{"numFound":0,"docs":[]}}`))

	got, err := client.Search(context.Background(), lookup.Query{Text: "zzz", Mode: lookup.ModeExact})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantType string
	}{
		{
			name: "server error is transient",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "unavailable", http.StatusBadGateway)
			},
			wantType: oaerrors.ErrTransientUpstream,
		},
		{
			name: "rate limited is transient",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantType: oaerrors.ErrTransientUpstream,
		},
		{
			name: "bad request is a client error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "invalid ontology", http.StatusBadRequest)
			},
			wantType: oaerrors.ErrUpstreamClient,
		},
		{
			name:     "invalid JSON is a client error",
			handler:  jsonHandler(`{"response":`),
			wantType: oaerrors.ErrUpstreamClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, tt.handler)
			_, err := client.Search(context.Background(), lookup.Query{Text: "x", Mode: lookup.ModeFuzzy})
			require.Error(t, err)
			assert.Equal(t, tt.wantType, oaerrors.TypeOf(err))
		})
	}
}

func TestSearchCancelledContext(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		jsonHandler(diabetesResponse)(w, r)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Search(ctx, lookup.Query{Text: "x", Mode: lookup.ModeFuzzy})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}
