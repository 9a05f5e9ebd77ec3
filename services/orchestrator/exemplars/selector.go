// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package exemplars

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Source provides the exemplars to rank.
type Source interface {
	All() []Exemplar
}

// Scored is an exemplar with its similarity to the query, in [0, 1].
type Scored struct {
	Exemplar
	Score float64
}

// Selector ranks exemplars by character-sequence similarity.
type Selector struct {
	source Source
}

func NewSelector(source Source) *Selector {
	return &Selector{source: source}
}

// TopK returns the k exemplars whose questions are most similar to question.
//
// # Description
//
// Similarity is the Ratcliff/Obershelp ratio over the lowercased rune
// sequences of both questions. Results are ordered by descending score;
// equal scores keep corpus order. Fewer than k results are returned when
// the corpus is smaller.
//
// # Inputs
//
//   - question: The user question.
//   - k: Maximum number of results. Non-positive returns none.
//
// # Outputs
//
//   - []Scored: Ranked exemplars. Never nil.
func (s *Selector) TopK(question string, k int) []Scored {
	if k <= 0 || s.source == nil {
		return []Scored{}
	}
	corpus := s.source.All()
	if len(corpus) == 0 {
		return []Scored{}
	}

	query := runeSeq(question)
	scored := make([]Scored, len(corpus))
	for i, ex := range corpus {
		scored[i] = Scored{Exemplar: ex, Score: ratio(query, runeSeq(ex.Question))}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored
}

// Similarity returns the similarity ratio of two strings.
func Similarity(a, b string) float64 {
	return ratio(runeSeq(a), runeSeq(b))
}

func ratio(a, b []string) float64 {
	return difflib.NewMatcher(a, b).Ratio()
}

// runeSeq lowercases s and splits it into one element per rune.
func runeSeq(s string) []string {
	lower := strings.ToLower(s)
	seq := make([]string, 0, len(lower))
	for _, r := range lower {
		seq = append(seq, string(r))
	}
	return seq
}
