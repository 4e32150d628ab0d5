// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package planner consumes the preprocessing frequency tables once and
// produces the per-category storage budget, the category correlation
// matrix, and the per-disk range plan that diskmap.DiskMap is built from.
// It is grounded on frequency_data.{h,cpp} in the original tool, recast in
// the teacher's style of a single-owner struct built once at startup (the
// way internal/curator/storageclass.Get builds its table once from
// core.StorageClass_value).
package planner

import (
	"math"
	"sort"

	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
)

// Frequencies holds the three M x sliceCount aggregate tables read from the
// preprocessing header, indexed [category][slice]: 1-indexed by category
// (row 0 unused) and 0-indexed by slice.
type Frequencies struct {
	Deletes [][]int
	Writes  [][]int
	Reads   [][]int
}

// Plan is the immutable output of Run: per-category storage budgets,
// correlation data, and the per-disk range layout.
type Plan struct {
	M, N, V int

	Peak          []int       // Peak[c], 1-indexed
	Correlation   [][]float64 // Correlation[c1][c2], 1-indexed, symmetric
	RelatedSorted [][]int     // RelatedSorted[c] = other categories, desc by correlation

	DiskRanges [][]core.Range // DiskRanges[d], 1-indexed, sorted by Start
}

// Run computes a Plan from the frequency tables and system constants. It is
// called exactly once, after the preprocessing header is fully read.
func Run(freq Frequencies, m, n, v int) *Plan {
	p := &Plan{M: m, N: n, V: v}
	p.Peak = computePeaks(freq, m)
	p.Correlation = computeCorrelation(freq, m)
	p.RelatedSorted = sortRelated(p.Correlation, m)
	p.DiskRanges = layoutDisks(p.Peak, m, n, v)

	sumPeak := 0
	for c := 1; c <= m; c++ {
		sumPeak += p.Peak[c]
	}
	if sumPeak == 0 {
		log.Warningf("planner: zero aggregate peak across %d categories, falling back to an even page split", m)
	}
	return p
}

// computePeaks returns, for each category, the maximum over slices of the
// running (writes - deletes) total, clamped to never go negative.
func computePeaks(freq Frequencies, m int) []int {
	peak := make([]int, m+1)
	for c := 1; c <= m; c++ {
		running := 0
		best := 0
		writes := row(freq.Writes, c)
		deletes := row(freq.Deletes, c)
		slices := len(writes)
		if len(deletes) > slices {
			slices = len(deletes)
		}
		for s := 0; s < slices; s++ {
			running += at(writes, s) - at(deletes, s)
			if running < 0 {
				running = 0
			}
			if running > best {
				best = running
			}
		}
		peak[c] = best
	}
	return peak
}

// liveSeries reconstructs the running non-negative live-unit series used by
// the correlation calculation, i.e. the same quantity computePeaks maximizes
// over, but kept per-slice instead of reduced to a max.
func liveSeries(freq Frequencies, c int) []int {
	writes := row(freq.Writes, c)
	deletes := row(freq.Deletes, c)
	slices := len(writes)
	if len(deletes) > slices {
		slices = len(deletes)
	}
	live := make([]int, slices)
	running := 0
	for s := 0; s < slices; s++ {
		running += at(writes, s) - at(deletes, s)
		if running < 0 {
			running = 0
		}
		live[s] = running
	}
	return live
}

// computeCorrelation returns the cosine similarity between categories' read
// rate vectors (reads[c,t] / live[c,t], skipping slices where live is zero).
func computeCorrelation(freq Frequencies, m int) [][]float64 {
	corr := make([][]float64, m+1)
	for i := range corr {
		corr[i] = make([]float64, m+1)
	}

	rates := make([][]float64, m+1)
	for c := 1; c <= m; c++ {
		live := liveSeries(freq, c)
		reads := row(freq.Reads, c)
		rate := make([]float64, len(live))
		for s, l := range live {
			if l > 0 {
				v := float64(at(reads, s)) / float64(l)
				if !math.IsInf(v, 0) && !math.IsNaN(v) {
					rate[s] = v
				}
			}
		}
		rates[c] = rate
	}

	for i := 1; i <= m; i++ {
		for j := i + 1; j <= m; j++ {
			c := cosineSimilarity(rates[i], rates[j])
			corr[i][j] = c
			corr[j][i] = c
		}
	}
	return corr
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for s := 0; s < n; s++ {
		dot += a[s] * b[s]
		na += a[s] * a[s]
		nb += b[s] * b[s]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// sortRelated builds, for each category, the list of other categories sorted
// by descending correlation.
func sortRelated(corr [][]float64, m int) [][]int {
	related := make([][]int, m+1)
	for c := 1; c <= m; c++ {
		others := make([]int, 0, m-1)
		for o := 1; o <= m; o++ {
			if o != c {
				others = append(others, o)
			}
		}
		sort.SliceStable(others, func(i, j int) bool {
			return corr[c][others[i]] > corr[c][others[j]]
		})
		related[c] = others
	}
	return related
}

func row(t [][]int, c int) []int {
	if c < len(t) {
		return t[c]
	}
	return nil
}

func at(s []int, i int) int {
	if i < len(s) {
		return s[i]
	}
	return 0
}
