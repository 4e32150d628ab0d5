// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package diskmap owns the per-disk unit grid: which units are free, which
// are allocated and to whom, and how many free units each (disk, category)
// pair has within the planner's preallocated ranges. It is grounded on
// disk_manager.{h,cpp} in the original tool and mirrors the teacher's
// internal/tractserver disk.go in spirit: one struct per physical resource,
// with allocate/free pairs that always have a rollback path on failure.
package diskmap

import (
	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
)

// unitState is stored per (disk, unit). A negative value means free; a
// non-negative value is the intra-object ordinal of the unit within its
// owning object.
type unitState int

const free unitState = core.FreeUnit

// DiskMap owns the unit grid for all N disks.
type DiskMap struct {
	n int
	v int

	units [][]unitState // units[d][u], 1-indexed, index 0 unused

	freeCount    []int   // freeCount[d]
	tagFreeCount [][]int // tagFreeCount[d][c], 1-indexed on both axes

	ranges [][]core.Range // ranges[d], in disk-order, immutable after New
}

// New builds a DiskMap from the planner's per-disk range plan. ranges[d]
// must be sorted by Start and non-overlapping, for d in [1, n].
func New(n, v int, ranges [][]core.Range, maxCategory int) *DiskMap {
	dm := &DiskMap{
		n:            n,
		v:            v,
		units:        make([][]unitState, n+1),
		freeCount:    make([]int, n+1),
		tagFreeCount: make([][]int, n+1),
		ranges:       make([][]core.Range, n+1),
	}
	for d := 1; d <= n; d++ {
		dm.units[d] = make([]unitState, v+1)
		for u := range dm.units[d] {
			dm.units[d][u] = free
		}
		dm.freeCount[d] = v
		dm.tagFreeCount[d] = make([]int, maxCategory+1)
		if d < len(ranges) {
			dm.ranges[d] = ranges[d]
			for _, r := range ranges[d] {
				dm.tagFreeCount[d][int(r.Category)] += r.Len()
			}
		}
	}
	return dm
}

// FreeCount returns the number of FREE units on disk d.
func (dm *DiskMap) FreeCount(d core.DiskID) int { return dm.freeCount[d] }

// TagFree returns the number of FREE units within category c's ranges on
// disk d.
func (dm *DiskMap) TagFree(d core.DiskID, c core.CategoryID) int {
	if int(c) >= len(dm.tagFreeCount[d]) {
		return 0
	}
	return dm.tagFreeCount[d][c]
}

// UnitState returns the unit's intra-object ordinal, or (-1, false) if free.
func (dm *DiskMap) UnitState(d core.DiskID, u core.Unit) (int, bool) {
	s := dm.units[d][u]
	if s == free {
		return -1, false
	}
	return int(s), true
}

// categoryOf returns the category whose range contains u on disk d, if any.
func (dm *DiskMap) categoryOf(d core.DiskID, u core.Unit) (core.CategoryID, bool) {
	for _, r := range dm.ranges[d] {
		if r.Contains(u) {
			return r.Category, true
		}
	}
	return 0, false
}

// AllocateFor searches the ranges tagged c on disk d for free runs,
// fragmenting across runs and across same-category ranges if necessary,
// until the union of selected runs totals size. On success it marks every
// chosen unit non-free with 0-based intra-object ordinals in traversal
// order. On failure it rolls back and returns ErrNoSpace.
func (dm *DiskMap) AllocateFor(d core.DiskID, size int, c core.CategoryID) (core.Blocklist, core.Error) {
	if size <= 0 {
		return nil, core.ErrInvalidArgument
	}
	if dm.TagFree(d, c) < size {
		return nil, core.ErrNoSpace
	}

	var chosen core.Blocklist
	remaining := size
	for _, r := range dm.ranges[d] {
		if r.Category != c {
			continue
		}
		remaining = dm.scanRangeForRuns(d, r, remaining, &chosen)
		if remaining == 0 {
			break
		}
	}

	if remaining > 0 {
		dm.rollback(d, chosen)
		return nil, core.ErrNoSpace
	}

	dm.commit(d, chosen, size)
	dm.decrementTag(d, c, size)
	return chosen, core.NoError
}

// scanRangeForRuns walks range r on disk d left to right, appending free
// runs (or prefixes of them, capped at `remaining`) to chosen, and returns
// the updated remaining count.
func (dm *DiskMap) scanRangeForRuns(d core.DiskID, r core.Range, remaining int, chosen *core.Blocklist) int {
	u := r.Start
	for u < r.End && remaining > 0 {
		if dm.units[d][u] != free {
			u++
			continue
		}
		runStart := u
		runLen := 0
		for u < r.End && dm.units[d][u] == free && runLen < remaining {
			runLen++
			u++
		}
		*chosen = append(*chosen, core.Block{Start: runStart, Length: runLen})
		remaining -= runLen
	}
	return remaining
}

// AllocateAnywhere allocates size free units from disk d regardless of
// category tagging, fragmenting across the whole disk if a single
// contiguous run isn't available. Each allocated unit decrements the
// counter of whichever category's range contains it.
func (dm *DiskMap) AllocateAnywhere(d core.DiskID, size int) (core.Blocklist, core.Error) {
	if size <= 0 || size > dm.v {
		return nil, core.ErrInvalidArgument
	}
	if dm.freeCount[d] < size {
		return nil, core.ErrNoSpace
	}

	var chosen core.Blocklist
	remaining := size
	for u := core.Unit(1); u <= core.Unit(dm.v) && remaining > 0; u++ {
		if dm.units[d][u] != free {
			continue
		}
		runStart := u
		runLen := 0
		for u <= core.Unit(dm.v) && dm.units[d][u] == free && runLen < remaining {
			runLen++
			u++
		}
		u-- // outer loop will re-increment
		chosen = append(chosen, core.Block{Start: runStart, Length: runLen})
		remaining -= runLen
	}

	if remaining > 0 {
		// Shouldn't happen given the freeCount check above, but roll back
		// defensively rather than leaving a half-marked disk.
		dm.rollback(d, chosen)
		return nil, core.ErrNoSpace
	}

	// Tally per-category decrements before committing, since commit mutates
	// unit state that categoryOf reads.
	tagDelta := map[core.CategoryID]int{}
	for _, b := range chosen {
		for off := 0; off < b.Length; off++ {
			if cat, ok := dm.categoryOf(d, b.Start+core.Unit(off)); ok {
				tagDelta[cat]++
			}
		}
	}

	dm.commit(d, chosen, size)
	for cat, n := range tagDelta {
		dm.decrementTag(d, cat, n)
	}
	return chosen, core.NoError
}

// commit marks every unit in bl as allocated, assigning 0-based intra-object
// ordinals in traversal order, and updates the disk's free count.
func (dm *DiskMap) commit(d core.DiskID, bl core.Blocklist, size int) {
	ordinal := 0
	for _, b := range bl {
		for off := 0; off < b.Length; off++ {
			dm.units[d][b.Start+core.Unit(off)] = unitState(ordinal)
			ordinal++
		}
	}
	dm.freeCount[d] -= size
}

// rollback frees every unit already marked by a failed allocation attempt.
func (dm *DiskMap) rollback(d core.DiskID, bl core.Blocklist) {
	for _, b := range bl {
		for off := 0; off < b.Length; off++ {
			dm.units[d][b.Start+core.Unit(off)] = free
		}
	}
}

func (dm *DiskMap) decrementTag(d core.DiskID, c core.CategoryID, n int) {
	if int(c) < len(dm.tagFreeCount[d]) {
		dm.tagFreeCount[d][c] -= n
	}
}

// Free marks every unit in bl as free again on disk d, restoring the disk's
// and each affected category's free counts.
func (dm *DiskMap) Free(d core.DiskID, bl core.Blocklist) {
	freed := 0
	tagDelta := map[core.CategoryID]int{}
	for _, b := range bl {
		for off := 0; off < b.Length; off++ {
			u := b.Start + core.Unit(off)
			if dm.units[d][u] == free {
				log.Warningf("diskmap: freeing already-free unit %v on %v", u, d)
				continue
			}
			if cat, ok := dm.categoryOf(d, u); ok {
				tagDelta[cat]++
			}
			dm.units[d][u] = free
			freed++
		}
	}
	dm.freeCount[d] += freed
	for cat, n := range tagDelta {
		if int(cat) < len(dm.tagFreeCount[d]) {
			dm.tagFreeCount[d][cat] += n
		}
	}
}
