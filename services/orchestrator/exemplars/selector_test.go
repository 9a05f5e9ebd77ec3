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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCorpus() *Corpus {
	return NewStaticCorpus([]Exemplar{
		{Question: "What materials are fire resistant?", Answer: "A, B and C."},
		{Question: "How do I reset the pump?", Answer: "Hold the reset button."},
		{Question: "Which materials are fire-resistant?", Answer: "A and B."},
		{Question: "Vật liệu nào chống cháy?", Answer: "A, B."},
	})
}

func TestSimilarity_Bounds(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Same Text", "same text"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("abc", "xyz"))

	s := Similarity("fire resistant", "fire-resistant")
	assert.Greater(t, s, 0.9)
	assert.Less(t, s, 1.0)
}

func TestSimilarity_KnownRatio(t *testing.T) {
	// Same value Python's SequenceMatcher(None, "abcd", "bcde").ratio() gives.
	assert.InDelta(t, 0.75, Similarity("abcd", "bcde"), 1e-9)
}

func TestSelector_TopKOrdering(t *testing.T) {
	sel := NewSelector(testCorpus())

	got := sel.TopK("which materials are fire resistant", 2)
	require.Len(t, got, 2)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
	assert.Contains(t, got[0].Question, "materials")
	assert.Contains(t, got[1].Question, "materials")
}

func TestSelector_Deterministic(t *testing.T) {
	sel := NewSelector(testCorpus())
	assert.Equal(t, sel.TopK("reset pump", 3), sel.TopK("reset pump", 3))
}

func TestSelector_KLargerThanCorpus(t *testing.T) {
	sel := NewSelector(testCorpus())

	got := sel.TopK("anything", 10)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestSelector_TiesKeepCorpusOrder(t *testing.T) {
	sel := NewSelector(NewStaticCorpus([]Exemplar{
		{ID: "first", Question: "xyz", Answer: "1"},
		{ID: "second", Question: "xyz", Answer: "2"},
		{ID: "third", Question: "xyz", Answer: "3"},
	}))

	got := sel.TopK("xyz", 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestSelector_EmptyInputs(t *testing.T) {
	assert.Empty(t, NewSelector(NewStaticCorpus(nil)).TopK("q", 3))
	assert.Empty(t, NewSelector(testCorpus()).TopK("q", 0))
	assert.NotNil(t, NewSelector(nil).TopK("q", 3))
}
