// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package annotator

import (
	"cmp"
	"math"
	"slices"

	"github.com/stacklok/ontology-annotator/pkg/lookup"
)

// exactDecay is the confidence an exact match loses per unit of missing
// raw relevance. Exact matches never drop below exactFloor.
const (
	exactDecay = 0.1
	exactFloor = 0.9
)

// Confidence maps a raw relevance in [0,1] onto the shared confidence
// scale for stage, rounded to four decimal places.
func Confidence(stage Stage, raw float64) float64 {
	r := lookup.ClampScore(raw)
	var c float64
	switch stage {
	case StageExact:
		c = math.Max(exactFloor, 1-exactDecay*(1-r))
	case StageSynonym:
		c = 0.75 + 0.15*r
	case StageFuzzy:
		c = 0.4 + 0.3*r
	case StageFallback:
		c = 0.3 + 0.3*r
	default:
		return 0
	}
	return round4(c)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// rank merges stage outputs into the final result set. For every ontology id
// only the highest-confidence occurrence is kept, with the earlier stage
// winning ties. Matches below minConfidence are dropped and the rest sorted
// by confidence descending, stage ascending, then ontology id.
func rank(matches []Match, minConfidence float64) []Match {
	best := make(map[string]int, len(matches))
	var unique []Match
	for _, m := range matches {
		i, seen := best[m.OntologyID]
		if !seen {
			best[m.OntologyID] = len(unique)
			unique = append(unique, m)
			continue
		}
		if outranks(m, unique[i]) {
			unique[i] = m
		}
	}

	out := make([]Match, 0, len(unique))
	for _, m := range unique {
		if m.Confidence >= minConfidence {
			out = append(out, m)
		}
	}

	slices.SortFunc(out, func(a, b Match) int {
		return cmp.Or(
			cmp.Compare(b.Confidence, a.Confidence),
			cmp.Compare(a.SourceStage, b.SourceStage),
			cmp.Compare(a.OntologyID, b.OntologyID),
		)
	})
	return out
}

func outranks(a, b Match) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.SourceStage < b.SourceStage
}

func anyAtLeast(matches []Match, threshold float64) bool {
	return slices.ContainsFunc(matches, func(m Match) bool {
		return m.Confidence >= threshold
	})
}
