// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bioportal implements lookup.Searcher against the NCBO BioPortal
// REST API. It is only constructed when an API key is configured.
package bioportal

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

// ServiceName identifies BioPortal in logs, metrics and diagnostics.
const ServiceName = "bioportal"

// acronyms maps lower-cased namespaces to BioPortal ontology acronyms.
// Namespaces missing here are upper-cased.
var acronyms = map[string]string{
	"mondo":     "MONDO",
	"doid":      "DOID",
	"hp":        "HP",
	"chebi":     "CHEBI",
	"drugbank":  "DRUGBANK",
	"hgnc":      "HGNC",
	"ncbigene":  "NCBIGENE",
	"mp":        "MP",
	"uberon":    "UBERON",
	"fma":       "FMA",
	"ncbitaxon": "NCBITAXON",
}

// Client searches BioPortal. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient networking.HTTPClient
	maxResults int
	limiter    *rate.Limiter
}

// NewClient returns a BioPortal client, or a configuration_missing error when
// no API key is set.
func NewClient(cfg config.BioPortalConfig, httpClient networking.HTTPClient) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, oaerrors.NewConfigurationMissingError("BIOPORTAL_API_KEY is not configured", nil)
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		maxResults: cfg.MaxResults,
		limiter:    rate.NewLimiter(limit, max(cfg.RateBurst, 1)),
	}, nil
}

// Acronyms converts namespaces to BioPortal ontology acronyms.
func Acronyms(ontologies []string) []string {
	if len(ontologies) == 0 {
		return nil
	}
	out := make([]string, 0, len(ontologies))
	for _, o := range ontologies {
		key := strings.ToLower(strings.TrimSpace(o))
		if a, ok := acronyms[key]; ok {
			out = append(out, a)
		} else if key != "" {
			out = append(out, strings.ToUpper(key))
		}
	}
	return out
}

// Search runs one BioPortal search. BioPortal reports no relevance score,
// so candidates are scored by rank.
func (c *Client) Search(ctx context.Context, q lookup.Query) ([]lookup.Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, oaerrors.NewTransientUpstreamError("bioportal rate limit wait exceeds deadline", err)
	}

	params := url.Values{
		"q":               {q.Text},
		"pagesize":        {strconv.Itoa(c.maxResults)},
		"display_context": {"false"},
	}
	if list := Acronyms(q.Ontologies); len(list) > 0 {
		params.Set("ontologies", strings.Join(list, ","))
	}
	if q.Mode == lookup.ModeExact {
		params.Set("require_exact_match", "true")
	}

	result, err := networking.Fetch(ctx, c.httpClient, c.baseURL+"/search",
		networking.WithQuery(params),
		networking.WithHeader("Authorization", "apikey token="+c.apiKey),
	)
	if err != nil {
		return nil, networking.ClassifyError(ctx, ServiceName, err)
	}

	if !gjson.ValidBytes(result.Data) {
		return nil, oaerrors.NewUpstreamClientError("bioportal returned invalid JSON", nil)
	}

	var candidates []lookup.Candidate
	for _, item := range gjson.GetBytes(result.Data, "collection").Array() {
		c, ok := parseItem(item)
		if !ok {
			continue
		}
		if q.Mode == lookup.ModeExact && !strings.EqualFold(c.Label, q.Text) {
			continue
		}
		c.MatchedText = q.Text
		candidates = append(candidates, c)
	}
	for i := range candidates {
		candidates[i].Score = lookup.RankScore(i, len(candidates))
	}
	return candidates, nil
}

func parseItem(item gjson.Result) (lookup.Candidate, bool) {
	iri := item.Get(`\@id`).String()
	if iri == "" {
		iri = item.Get("id").String()
	}
	id := termID(iri)
	if id == "" {
		return lookup.Candidate{}, false
	}

	ontology := ""
	if link := strings.TrimRight(item.Get("links.ontology").String(), "/"); link != "" {
		ontology = strings.ToLower(link[strings.LastIndex(link, "/")+1:])
	}

	definition := ""
	if defs := lookup.Strings(item.Get("definition")); len(defs) > 0 {
		definition = defs[0]
	}

	return lookup.Candidate{
		ID:         id,
		Label:      item.Get("prefLabel").String(),
		Ontology:   ontology,
		IRI:        iri,
		Definition: definition,
		Synonyms:   lookup.Strings(item.Get("synonym")),
	}, true
}

// termID derives a CURIE from the local part of an IRI.
func termID(iri string) string {
	local := iri
	if i := strings.LastIndexAny(iri, "/#"); i >= 0 {
		local = iri[i+1:]
	}
	return lookup.CURIE(local)
}
