// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/stacklok/ontology-annotator/pkg/domain"
	oaerrors "github.com/stacklok/ontology-annotator/pkg/errors"
	"github.com/stacklok/ontology-annotator/pkg/lookup"
	"github.com/stacklok/ontology-annotator/pkg/logger"
)

var (
	openingFence = regexp.MustCompile("^```(?:json)?\\s*")
	closingFence = regexp.MustCompile("\\s*```$")
)

// ParseMentions decodes model output into mentions of source. Entities with
// a domain outside allowed, empty text, or text that does not occur in
// source are dropped. Offsets are repaired when they do not point at the
// entity text.
func ParseMentions(content, source string, allowed []domain.Domain) ([]Mention, error) {
	content = strings.TrimSpace(content)
	content = openingFence.ReplaceAllString(content, "")
	content = closingFence.ReplaceAllString(content, "")
	content = strings.TrimSpace(content)

	if content == "" {
		return nil, oaerrors.NewExtractionFailureError("language model returned no output", nil)
	}
	if !gjson.Valid(content) {
		return nil, oaerrors.NewExtractionFailureError("language model output is not valid JSON", nil)
	}
	parsed := gjson.Parse(content)
	if !parsed.IsArray() {
		return nil, oaerrors.NewExtractionFailureError("language model output is not a JSON array", nil)
	}

	src := []rune(source)
	folded := foldRunes(src)

	mentions := []Mention{}
	for _, item := range parsed.Array() {
		if !item.IsObject() {
			continue
		}
		text := item.Get("text").String()
		d := domain.Domain(strings.ToLower(strings.TrimSpace(item.Get("domain").String())))
		if strings.TrimSpace(text) == "" || !containsDomain(allowed, d) {
			continue
		}

		start, end, hasOffsets := offsets(item)
		start, end, ok := realign(src, folded, text, start, end, hasOffsets)
		if !ok {
			logger.Debugf("discarding extracted entity not found in text: %q [%s]", text, d)
			continue
		}

		m := Mention{
			Text:                 string(src[start:end]),
			Domain:               d,
			Start:                start,
			End:                  end,
			ExtractionConfidence: math.Round(lookup.ClampScore(item.Get("confidence").Float())*1e4) / 1e4,
		}
		if !containsMention(mentions, m) {
			mentions = append(mentions, m)
		}
	}
	return mentions, nil
}

func offsets(item gjson.Result) (start, end int, ok bool) {
	s, e := item.Get("start_pos"), item.Get("end_pos")
	if s.Type != gjson.Number || e.Type != gjson.Number {
		return 0, 0, false
	}
	if s.Num != math.Trunc(s.Num) || e.Num != math.Trunc(e.Num) {
		return 0, 0, false
	}
	return int(s.Int()), int(e.Int()), true
}

// realign returns the span of text in src. Model offsets are kept when they
// point exactly at text. Otherwise the case-insensitive occurrence nearest
// the model's start offset is used, or the first one without offsets.
func realign(src, folded []rune, text string, start, end int, hasOffsets bool) (int, int, bool) {
	want := []rune(text)
	if hasOffsets && start >= 0 && end <= len(src) && start < end && string(src[start:end]) == text {
		return start, end, true
	}

	needle := foldRunes(want)
	best := -1
	for i := 0; i+len(needle) <= len(folded); i++ {
		if !runesEqual(folded[i:i+len(needle)], needle) {
			continue
		}
		if !hasOffsets {
			best = i
			break
		}
		if best < 0 || abs(i-start) < abs(best-start) {
			best = i
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return best, best + len(needle), true
}

func foldRunes(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsMention(list []Mention, m Mention) bool {
	for _, x := range list {
		if x.Start == m.Start && x.End == m.End && x.Domain == m.Domain {
			return true
		}
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
