// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package lookup defines the capability shared by every ontology search
// service the annotation pipeline talks to.
package lookup

import (
	"context"
	"math"
	"strings"
)

// Mode selects the kind of search a Searcher performs.
type Mode string

const (
	// ModeExact matches entries whose canonical label equals the query text.
	ModeExact Mode = "exact"
	// ModeSynonym matches entries whose synonym list contains the query text.
	ModeSynonym Mode = "synonym"
	// ModeFuzzy is free-text relevance search.
	ModeFuzzy Mode = "fuzzy"
)

// Query is one search request.
type Query struct {
	// Text is the trimmed term to search for.
	Text string
	// Ontologies restricts the search to these lower-cased namespaces.
	// Empty means unrestricted.
	Ontologies []string
	// Mode is the kind of search.
	Mode Mode
}

// Candidate is one entry returned by a Searcher.
type Candidate struct {
	ID              string
	Label           string
	Ontology        string
	Score           float64
	MatchedText     string
	IRI             string
	Definition      string
	Synonyms        []string
	CrossReferences map[string]string
}

//go:generate mockgen -destination=mocks/mock_searcher.go -package=mocks -source=lookup.go Searcher

// Searcher searches an ontology service. Score on returned candidates is a
// raw relevance in [0,1]. Failures are typed with pkg/errors so callers can
// tell transient upstream errors from client errors.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Candidate, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, q Query) ([]Candidate, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, q Query) ([]Candidate, error) {
	return f(ctx, q)
}

// ClampScore limits a raw relevance to [0,1]. NaN becomes 0.
func ClampScore(raw float64) float64 {
	switch {
	case math.IsNaN(raw), raw < 0:
		return 0
	case raw > 1:
		return 1
	default:
		return raw
	}
}

// RankScore is the raw relevance of the i-th of n results when the service
// does not report one.
func RankScore(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return ClampScore(1 - float64(i)/float64(n))
}

// CURIE turns an IRI local part or short form such as MONDO_0005015 into
// MONDO:0005015. Values that already contain a colon are returned as is.
func CURIE(shortForm string) string {
	if shortForm == "" || strings.Contains(shortForm, ":") {
		return shortForm
	}
	return strings.Replace(shortForm, "_", ":", 1)
}
