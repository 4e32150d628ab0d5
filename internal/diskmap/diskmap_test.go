// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package diskmap

import (
	"testing"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
)

func oneDiskRanges(v int) [][]core.Range {
	return [][]core.Range{
		nil,
		{
			{Start: 1, End: core.Unit(v/2 + 1), Category: 1},
			{Start: core.Unit(v/2 + 1), End: core.Unit(v + 1), Category: 2},
		},
	}
}

func TestAllocateForAndFree(t *testing.T) {
	dm := New(1, 20, oneDiskRanges(20), 2)

	if got := dm.TagFree(1, 1); got != 10 {
		t.Fatalf("TagFree(1,1) = %d, want 10", got)
	}

	bl, err := dm.AllocateFor(1, 6, 1)
	if err != core.NoError {
		t.Fatalf("AllocateFor: %v", err)
	}
	if bl.TotalLength() != 6 {
		t.Fatalf("TotalLength() = %d, want 6", bl.TotalLength())
	}
	if got := dm.TagFree(1, 1); got != 4 {
		t.Fatalf("TagFree(1,1) after alloc = %d, want 4", got)
	}
	if got := dm.FreeCount(1); got != 14 {
		t.Fatalf("FreeCount(1) = %d, want 14", got)
	}

	for i, u := range bl.Units() {
		ord, ok := dm.UnitState(1, u)
		if !ok || ord != i {
			t.Fatalf("UnitState(%v) = (%d, %v), want (%d, true)", u, ord, ok, i)
		}
	}

	dm.Free(1, bl)
	if got := dm.TagFree(1, 1); got != 10 {
		t.Fatalf("TagFree(1,1) after free = %d, want 10", got)
	}
	if got := dm.FreeCount(1); got != 20 {
		t.Fatalf("FreeCount(1) after free = %d, want 20", got)
	}
}

func TestAllocateForFragmentsAcrossRuns(t *testing.T) {
	dm := New(1, 10, oneDiskRanges(10), 2)

	// Fill category 1's whole range (units 1-5), then free units 1 and 3
	// individually to leave two disjoint single-unit free runs.
	all, err := dm.AllocateFor(1, 5, 1)
	if err != core.NoError {
		t.Fatalf("setup alloc: %v", err)
	}
	_ = all
	dm.Free(1, core.Blocklist{{Start: 1, Length: 1}, {Start: 3, Length: 1}})

	bl, err := dm.AllocateFor(1, 2, 1)
	if err != core.NoError {
		t.Fatalf("AllocateFor: %v", err)
	}
	if bl.TotalLength() != 2 {
		t.Fatalf("TotalLength() = %d, want 2", bl.TotalLength())
	}
	if len(bl) != 2 {
		t.Fatalf("expected the allocation to fragment across 2 runs, got %d", len(bl))
	}
}

func TestAllocateForNoSpace(t *testing.T) {
	dm := New(1, 10, oneDiskRanges(10), 2)

	if _, err := dm.AllocateFor(1, 100, 1); err != core.ErrNoSpace {
		t.Fatalf("AllocateFor oversized = %v, want ErrNoSpace", err)
	}
	if got := dm.TagFree(1, 1); got != 5 {
		t.Fatalf("TagFree(1,1) after failed alloc = %d, want unchanged 5", got)
	}
}

func TestAllocateAnywhereDecrementsOwningCategory(t *testing.T) {
	dm := New(1, 10, oneDiskRanges(10), 2)

	bl, err := dm.AllocateAnywhere(1, 10)
	if err != core.NoError {
		t.Fatalf("AllocateAnywhere: %v", err)
	}
	if bl.TotalLength() != 10 {
		t.Fatalf("TotalLength() = %d, want 10", bl.TotalLength())
	}
	if got := dm.TagFree(1, 1); got != 0 {
		t.Fatalf("TagFree(1,1) = %d, want 0", got)
	}
	if got := dm.TagFree(1, 2); got != 0 {
		t.Fatalf("TagFree(1,2) = %d, want 0", got)
	}

	dm.Free(1, bl)
	if got := dm.TagFree(1, 1); got != 5 {
		t.Fatalf("TagFree(1,1) after free = %d, want 5", got)
	}
	if got := dm.TagFree(1, 2); got != 5 {
		t.Fatalf("TagFree(1,2) after free = %d, want 5", got)
	}
}
