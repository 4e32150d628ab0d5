// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package planner

import (
	"sort"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
)

// layoutDisks implements the five-step placement algorithm from §4.1:
// budget categories in pages, guarantee one page per category per disk,
// round-robin the residual, lay pages out per disk with a rotated category
// order, and concatenate same-category runs into ranges.
func layoutDisks(peak []int, m, n, v int) [][]core.Range {
	pageSize := choosePageSize(v)
	pagesPerDisk := v / pageSize
	totalPages := n * pagesPerDisk

	byPeakDesc := sortedCategoriesByPeakDesc(peak, m)

	pages := categoryPageBudget(peak, m, n, totalPages, byPeakDesc)

	perDisk := distributePages(pages, byPeakDesc, m, n)

	return materializeRanges(perDisk, byPeakDesc, m, n, pagesPerDisk, pageSize)
}

// choosePageSize returns the largest divisor of v that is <= core.PageSize,
// which is 1 if v has no larger such divisor (e.g. v is a prime greater than
// core.PageSize).
func choosePageSize(v int) int {
	for p := core.PageSize; p >= 1; p-- {
		if v%p == 0 {
			return p
		}
	}
	return 1
}

func sortedCategoriesByPeakDesc(peak []int, m int) []int {
	cats := make([]int, m)
	for c := 1; c <= m; c++ {
		cats[c-1] = c
	}
	sort.SliceStable(cats, func(i, j int) bool { return peak[cats[i]] > peak[cats[j]] })
	return cats
}

// categoryPageBudget implements Step 1: round each category's share of
// totalPages by peak weight, clamp to at least n (one per disk), and scale
// down uniformly if the clamped sum overruns totalPages.
func categoryPageBudget(peak []int, m, n, totalPages int, byPeakDesc []int) []int {
	sumPeak := 0
	for c := 1; c <= m; c++ {
		sumPeak += peak[c]
	}

	pages := make([]int, m+1)
	if sumPeak == 0 {
		// No signal from an empty frequency table: split evenly.
		share := totalPages / m
		for c := 1; c <= m; c++ {
			pages[c] = share
		}
	} else {
		for c := 1; c <= m; c++ {
			pages[c] = int(round(float64(peak[c]) / float64(sumPeak) * float64(totalPages)))
		}
	}

	for c := 1; c <= m; c++ {
		if pages[c] < n {
			pages[c] = n
		}
	}

	sum := 0
	for c := 1; c <= m; c++ {
		sum += pages[c]
	}
	if sum > totalPages && sum > 0 {
		scale := float64(totalPages) / float64(sum)
		for c := 1; c <= m; c++ {
			pages[c] = int(float64(pages[c]) * scale)
			if pages[c] < 1 {
				pages[c] = 1
			}
		}
	}
	return pages
}

// distributePages implements Steps 2-3: guarantee one page per category per
// disk, then round-robin the residual across disks in byPeakDesc order.
// Returns perDisk[d][c] = pages of category c placed on disk d.
func distributePages(pages []int, byPeakDesc []int, m, n int) [][]int {
	perDisk := make([][]int, n+1)
	for d := 1; d <= n; d++ {
		perDisk[d] = make([]int, m+1)
		for _, c := range byPeakDesc {
			perDisk[d][c] = 1 // Step 2 guarantee.
		}
	}

	diskPtr := 0
	for _, c := range byPeakDesc {
		residual := pages[c] - n
		for i := 0; i < residual; i++ {
			d := diskPtr%n + 1
			perDisk[d][c]++
			diskPtr++
		}
	}
	return perDisk
}

// materializeRanges implements Step 4-5: for each disk, walk a rotated
// category ordering one page at a time, consuming perDisk budgets, then
// concatenate contiguous same-category page runs into ranges.
func materializeRanges(perDisk [][]int, byPeakDesc []int, m, n, pagesPerDisk, pageSize int) [][]core.Range {
	ranges := make([][]core.Range, n+1)
	for d := 1; d <= n; d++ {
		rotation := rotate(byPeakDesc, (d-1)%m)
		placement := make([]int, 0, pagesPerDisk)
		remaining := make([]int, m+1)
		copy(remaining, perDisk[d])

		placed := 0
		for stalled := false; placed < pagesPerDisk && !stalled; {
			stalled = true
			for _, c := range rotation {
				if placed >= pagesPerDisk {
					break
				}
				if remaining[c] > 0 {
					placement = append(placement, c)
					remaining[c]--
					placed++
					stalled = false
				}
			}
		}
		// If rounding left slack, pad with the top category so every page
		// on the disk is accounted for.
		for placed < pagesPerDisk {
			placement = append(placement, byPeakDesc[0])
			placed++
		}

		ranges[d] = concatenatePages(placement, pageSize)
	}
	return ranges
}

func rotate(s []int, by int) []int {
	if len(s) == 0 {
		return s
	}
	by = by % len(s)
	out := make([]int, len(s))
	copy(out, s[by:])
	copy(out[len(s)-by:], s[:by])
	return out
}

// concatenatePages turns a per-page category sequence into ranges by
// merging contiguous runs of the same category.
func concatenatePages(placement []int, pageSize int) []core.Range {
	var ranges []core.Range
	for i := 0; i < len(placement); {
		j := i
		for j < len(placement) && placement[j] == placement[i] {
			j++
		}
		ranges = append(ranges, core.Range{
			Start:    core.Unit(i*pageSize + 1),
			End:      core.Unit(j*pageSize + 1),
			Category: core.CategoryID(placement[i]),
		})
		i = j
	}
	return ranges
}

func round(f float64) float64 {
	if f < 0 {
		return -round(-f)
	}
	return float64(int64(f + 0.5))
}
