// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package objectstore

import (
	"testing"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
	"github.com/westerndigitalcorporation/blocksim/internal/diskmap"
	"github.com/westerndigitalcorporation/blocksim/internal/planner"
)

func threeDiskRanges(v int) [][]core.Range {
	ranges := make([][]core.Range, 4)
	for d := 1; d <= 3; d++ {
		ranges[d] = []core.Range{{Start: 1, End: core.Unit(v + 1), Category: 1}}
	}
	return ranges
}

func TestCreateDistinctDisksAndDelete(t *testing.T) {
	dm := diskmap.New(3, 20, threeDiskRanges(20), 1)
	store := New(3, dm, &planner.Plan{M: 1, RelatedSorted: [][]int{nil, nil}}, nil)

	if err := store.Create(1, 5, 1); err != core.NoError {
		t.Fatalf("Create: %v", err)
	}
	rec, ok := store.Get(1)
	if !ok {
		t.Fatalf("Get(1) not found after Create")
	}
	seen := map[core.DiskID]bool{}
	for _, r := range rec.Replicas {
		if seen[r.Disk] {
			t.Fatalf("replica disk %v repeated", r.Disk)
		}
		seen[r.Disk] = true
		if r.Blocks.TotalLength() != 5 {
			t.Fatalf("replica on %v has length %d, want 5", r.Disk, r.Blocks.TotalLength())
		}
		for _, u := range r.Blocks.Units() {
			obj, ok := store.ObjectOf(r.Disk, u)
			if !ok || obj != 1 {
				t.Fatalf("ObjectOf(%v,%v) = (%v,%v), want (1,true)", r.Disk, u, obj, ok)
			}
		}
	}
	if len(seen) != core.ReplicaCount {
		t.Fatalf("got %d distinct disks, want %d", len(seen), core.ReplicaCount)
	}

	if err := store.Delete(1); err != core.NoError {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := store.Get(1); ok {
		t.Fatalf("object still present after Delete")
	}
	for d := core.DiskID(1); d <= 3; d++ {
		if dm.FreeCount(d) != 20 {
			t.Fatalf("FreeCount(%v) after delete = %d, want 20", d, dm.FreeCount(d))
		}
	}
}

func TestCreateDuplicateRejected(t *testing.T) {
	dm := diskmap.New(3, 20, threeDiskRanges(20), 1)
	store := New(3, dm, &planner.Plan{M: 1, RelatedSorted: [][]int{nil, nil}}, nil)

	if err := store.Create(1, 5, 1); err != core.NoError {
		t.Fatalf("first Create: %v", err)
	}
	if err := store.Create(1, 5, 1); err != core.ErrDuplicateObjectID {
		t.Fatalf("duplicate Create = %v, want ErrDuplicateObjectID", err)
	}
}

// TestCreateAnywhereFallback is scenario S5: no disk has room in the
// object's own category and there are no correlated categories with space,
// so allocate_anywhere must succeed on the least-loaded disk.
func TestCreateAnywhereFallback(t *testing.T) {
	ranges := [][]core.Range{
		nil,
		{{Start: 1, End: 6, Category: 1}, {Start: 6, End: 11, Category: 5}},
		{{Start: 1, End: 6, Category: 1}, {Start: 6, End: 11, Category: 5}},
		{{Start: 1, End: 6, Category: 1}, {Start: 6, End: 11, Category: 5}},
	}
	dm := diskmap.New(3, 10, ranges, 5)
	// Exhaust category 5 on every disk.
	for d := core.DiskID(1); d <= 3; d++ {
		if _, err := dm.AllocateFor(d, 5, 5); err != core.NoError {
			t.Fatalf("exhausting category 5 on %v: %v", d, err)
		}
	}

	plan := &planner.Plan{M: 5, RelatedSorted: make([][]int, 6)}
	plan.RelatedSorted[5] = []int{} // not correlated to anything with space

	store := New(3, dm, plan, nil)
	if err := store.Create(42, 2, 5); err != core.NoError {
		t.Fatalf("Create via anywhere fallback: %v", err)
	}
	rec, _ := store.Get(42)
	for _, r := range rec.Replicas {
		if r.Blocks.TotalLength() != 2 {
			t.Fatalf("replica on %v has length %d, want 2", r.Disk, r.Blocks.TotalLength())
		}
	}
}

func TestCreateNoSpaceRollsBackPriorReplicas(t *testing.T) {
	dm := diskmap.New(3, 4, threeDiskRanges(4), 1)
	store := New(3, dm, &planner.Plan{M: 1, RelatedSorted: [][]int{nil, nil}}, nil)

	// Size 5 can't fit on any 4-unit disk, by any tier.
	if err := store.Create(1, 5, 1); err != core.ErrNoSpace {
		t.Fatalf("Create oversized = %v, want ErrNoSpace", err)
	}
	for d := core.DiskID(1); d <= 3; d++ {
		if dm.FreeCount(d) != 4 {
			t.Fatalf("FreeCount(%v) = %d, want 4 (fully rolled back)", d, dm.FreeCount(d))
		}
	}
	if _, ok := store.Get(1); ok {
		t.Fatalf("object recorded despite allocation failure")
	}
}
