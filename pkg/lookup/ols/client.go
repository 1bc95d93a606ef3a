// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ols implements lookup.Searcher against the EBI Ontology Lookup
// Service (OLS4) search API.
package ols

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/stacklok/ontology-annotator/pkg/config"
	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
	"github.com/stacklok/ontology-annotator/pkg/lookup"
	"github.com/stacklok/ontology-annotator/pkg/networking"
)

// ServiceName identifies OLS in logs, metrics and diagnostics.
const ServiceName = "ols"

// fieldList asks OLS4 for the fields it otherwise omits from search docs.
const fieldList = "id,iri,label,ontology_name,description,synonym,obo_xref,short_form,obo_id,score"

// Client searches OLS. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient networking.HTTPClient
	maxResults int
	limiter    *rate.Limiter
}

// NewClient returns an OLS client using httpClient for transport.
func NewClient(cfg config.OLSConfig, httpClient networking.HTTPClient) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		httpClient: httpClient,
		maxResults: cfg.MaxResults,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// Search runs one OLS search and filters the docs according to q.Mode.
func (c *Client) Search(ctx context.Context, q lookup.Query) ([]lookup.Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, oaerrors.NewTransientUpstreamError("ols rate limit wait exceeds deadline", err)
	}

	params := url.Values{
		"q":         {q.Text},
		"rows":      {strconv.Itoa(c.maxResults)},
		"fieldList": {fieldList},
	}
	if len(q.Ontologies) > 0 {
		params.Set("ontology", strings.Join(q.Ontologies, ","))
	}
	if q.Mode == lookup.ModeExact {
		params.Set("exact", "true")
	}

	result, err := networking.Fetch(ctx, c.httpClient, c.baseURL+"/search", networking.WithQuery(params))
	if err != nil {
		return nil, networking.ClassifyError(ctx, ServiceName, err)
	}

	docs, err := parseDocs(result.Data)
	if err != nil {
		return nil, err
	}
	return selectCandidates(docs, q), nil
}

// doc is the subset of an OLS search doc the pipeline uses.
type doc struct {
	candidate lookup.Candidate
	score     float64
}

func parseDocs(body []byte) ([]doc, error) {
	if !gjson.ValidBytes(body) {
		return nil, oaerrors.NewUpstreamClientError("ols returned invalid JSON", nil)
	}

	raw := gjson.GetBytes(body, "response.docs").Array()
	docs := make([]doc, 0, len(raw))
	maxScore := 0.0
	allScored := len(raw) > 0
	for _, r := range raw {
		id := r.Get("obo_id").String()
		if id == "" {
			id = lookup.CURIE(r.Get("short_form").String())
		}
		if id == "" {
			continue
		}

		score := r.Get("score")
		if !score.Exists() || score.Float() <= 0 {
			allScored = false
		} else if score.Float() > maxScore {
			maxScore = score.Float()
		}

		docs = append(docs, doc{
			candidate: lookup.Candidate{
				ID:              id,
				Label:           r.Get("label").String(),
				Ontology:        strings.ToLower(r.Get("ontology_name").String()),
				IRI:             r.Get("iri").String(),
				Definition:      first(lookup.Strings(r.Get("description"))),
				Synonyms:        lookup.Strings(r.Get("synonym")),
				CrossReferences: crossReferences(r.Get("obo_xref")),
			},
			score: score.Float(),
		})
	}

	for i := range docs {
		if allScored && maxScore > 0 {
			docs[i].candidate.Score = lookup.ClampScore(docs[i].score / maxScore)
		} else {
			docs[i].candidate.Score = lookup.RankScore(i, len(docs))
		}
	}
	return docs, nil
}

func selectCandidates(docs []doc, q lookup.Query) []lookup.Candidate {
	out := make([]lookup.Candidate, 0, len(docs))
	for _, d := range docs {
		c := d.candidate
		switch q.Mode {
		case lookup.ModeExact:
			if !strings.EqualFold(c.Label, q.Text) {
				continue
			}
			c.MatchedText = q.Text
		case lookup.ModeSynonym:
			if strings.EqualFold(c.Label, q.Text) {
				continue
			}
			synonym, ok := matchingSynonym(c.Synonyms, q.Text)
			if !ok {
				continue
			}
			c.MatchedText = synonym
		default:
			c.MatchedText = q.Text
		}
		out = append(out, c)
	}
	return out
}

func matchingSynonym(synonyms []string, text string) (string, bool) {
	for _, s := range synonyms {
		if strings.EqualFold(strings.TrimSpace(s), text) {
			return s, true
		}
	}
	return "", false
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// crossReferences maps obo_xref entries to lower-cased database keys with
// DB:ACC values. Entries may be objects or plain "DB:ACC" strings.
func crossReferences(r gjson.Result) map[string]string {
	if !r.Exists() {
		return nil
	}
	items := r.Array()
	refs := make(map[string]string, len(items))
	for _, item := range items {
		var db, acc string
		if item.IsObject() {
			db = item.Get("database").String()
			acc = item.Get("id").String()
		} else {
			db, acc, _ = strings.Cut(item.String(), ":")
		}
		db = strings.TrimSpace(db)
		acc = strings.TrimSpace(acc)
		if db == "" || acc == "" {
			continue
		}
		refs[strings.ToLower(db)] = strings.ToUpper(db) + ":" + acc
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}
