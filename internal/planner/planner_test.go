// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePeaksClampsAtZero(t *testing.T) {
	freq := Frequencies{
		Writes:  [][]int{nil, {10, 0, 0}},
		Deletes: [][]int{nil, {0, 20, 0}},
		Reads:   [][]int{nil, {0, 0, 0}},
	}
	peak := computePeaks(freq, 1)
	// running: 10, 10-20 -> clamped to 0, 0+0 -> 0. Peak should be 10.
	assert.Equal(t, 10, peak[1])
}

func TestCosineSimilarityIdenticalVectors(t *testing.T) {
	a := []float64{1, 2, 3}
	assert.InDelta(t, 1.0, cosineSimilarity(a, a), 0.001)
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float64{1, 0}
	b := []float64{0, 1}
	assert.Equal(t, 0.0, cosineSimilarity(a, b))
}

func TestCosineSimilarityZeroVectorIsZero(t *testing.T) {
	a := []float64{0, 0, 0}
	b := []float64{1, 2, 3}
	assert.Equal(t, 0.0, cosineSimilarity(a, b))
}

func TestSortRelatedDescending(t *testing.T) {
	corr := [][]float64{
		nil,
		{0, 0, 0.9, 0.1},
		{0, 0.9, 0, 0.5},
		{0, 0.1, 0.5, 0},
	}
	related := sortRelated(corr, 3)
	require.NotEmpty(t, related[1])
	assert.Equal(t, 2, related[1][0], "higher correlation should sort first")
}

func TestRunProducesFullCoverageLayout(t *testing.T) {
	m, n, v := 3, 4, 42
	freq := Frequencies{
		Writes:  [][]int{nil, {100}, {50}, {10}},
		Deletes: [][]int{nil, {0}, {0}, {0}},
		Reads:   [][]int{nil, {200}, {100}, {20}},
	}
	plan := Run(freq, m, n, v)

	require.Len(t, plan.DiskRanges, n+1)
	for d := 1; d <= n; d++ {
		covered := 0
		for _, r := range plan.DiskRanges[d] {
			covered += r.Len()
		}
		assert.Equal(t, v, covered, "disk %d should cover all V units", d)
	}

	seenCategory := map[int]bool{}
	for d := 1; d <= n; d++ {
		for _, r := range plan.DiskRanges[d] {
			seenCategory[int(r.Category)] = true
		}
	}
	for c := 1; c <= m; c++ {
		assert.True(t, seenCategory[c], "category %d has no ranges on any disk", c)
	}
}

func TestRunHandlesZeroFrequencies(t *testing.T) {
	m, n, v := 2, 2, 20
	freq := Frequencies{
		Writes:  [][]int{nil, {0}, {0}},
		Deletes: [][]int{nil, {0}, {0}},
		Reads:   [][]int{nil, {0}, {0}},
	}
	plan := Run(freq, m, n, v)
	for d := 1; d <= n; d++ {
		covered := 0
		for _, r := range plan.DiskRanges[d] {
			covered += r.Len()
		}
		assert.Equal(t, v, covered, "disk %d should cover all V units", d)
	}
}
