// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package objectstore owns the object id -> record mapping and the reverse
// (disk, unit) -> object id index. Create's three-tier placement fallback
// (direct category ranges, correlated categories, anywhere) is grounded on
// Curator.allocateTS / pickNFromDomain in the teacher, recast from picking
// tractservers across failure domains to picking disks across allocator
// tiers; the RAII-style rollback-on-partial-failure discipline is the same
// one diskmap.DiskMap itself uses for a single allocation.
package objectstore

import (
	"sort"

	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
	"github.com/westerndigitalcorporation/blocksim/internal/diskmap"
	"github.com/westerndigitalcorporation/blocksim/internal/metrics"
	"github.com/westerndigitalcorporation/blocksim/internal/planner"
	"github.com/westerndigitalcorporation/blocksim/pkg/slices"
)

// Replica is one of an object's three copies.
type Replica struct {
	Disk   core.DiskID
	Blocks core.Blocklist
}

// Record is a live object: its size, category, and three replica placements.
type Record struct {
	ID       core.ObjectID
	Size     int
	Category core.CategoryID
	Replicas [core.ReplicaCount]Replica
}

// Store maps object ids to records and maintains the reverse index that
// lets a completed (disk, unit) READ be attributed back to an object.
type Store struct {
	n       int
	dm      *diskmap.DiskMap
	plan    *planner.Plan
	objects map[core.ObjectID]*Record
	reverse []map[core.Unit]core.ObjectID // reverse[d], 1-indexed
	metrics *metrics.Metrics
}

// New builds an empty Store bound to dm for placement and plan for the
// correlated-category fallback order.
func New(n int, dm *diskmap.DiskMap, plan *planner.Plan, m *metrics.Metrics) *Store {
	s := &Store{
		n:       n,
		dm:      dm,
		plan:    plan,
		objects: make(map[core.ObjectID]*Record),
		reverse: make([]map[core.Unit]core.ObjectID, n+1),
		metrics: m,
	}
	for d := 1; d <= n; d++ {
		s.reverse[d] = make(map[core.Unit]core.ObjectID)
	}
	return s
}

// Get returns the record for id, if it currently exists.
func (s *Store) Get(id core.ObjectID) (*Record, bool) {
	r, ok := s.objects[id]
	return r, ok
}

// ObjectOf resolves a completed read's (disk, unit) back to the object it
// belongs to.
func (s *Store) ObjectOf(d core.DiskID, u core.Unit) (core.ObjectID, bool) {
	id, ok := s.reverse[d][u]
	return id, ok
}

// Create places a new object's three replicas per the tiered fallback
// policy in spec.md §4.3: direct category ranges first, then correlated
// categories, then anywhere on the least-loaded disks. It fails with
// ErrDuplicateObjectID if id is already live, or ErrNoSpace if no tier can
// complete all three replicas, rolling back any replicas already placed.
func (s *Store) Create(id core.ObjectID, size int, cat core.CategoryID) core.Error {
	if _, exists := s.objects[id]; exists {
		return core.ErrDuplicateObjectID
	}
	if size <= 0 {
		return core.ErrInvalidArgument
	}

	var replicas []Replica
	var used []core.DiskID

	for slot := 0; slot < core.ReplicaCount; slot++ {
		replica, err := s.placeOne(size, cat, used)
		if err != core.NoError {
			s.rollback(replicas)
			if s.metrics != nil {
				s.metrics.AllocationFailed()
			}
			return core.ErrNoSpace
		}
		replicas = append(replicas, replica)
		used = append(used, replica.Disk)
	}

	rec := &Record{ID: id, Size: size, Category: cat}
	copy(rec.Replicas[:], replicas)
	s.objects[id] = rec
	for _, r := range rec.Replicas {
		for _, u := range r.Blocks.Units() {
			s.reverse[r.Disk][u] = id
		}
	}
	return core.NoError
}

// placeOne runs the three-tier fallback for a single replica slot, given the
// disks already used by earlier slots of the same object.
func (s *Store) placeOne(size int, cat core.CategoryID, used []core.DiskID) (Replica, core.Error) {
	if d, bl, err := s.tryTagged(size, cat, cat, used); err == core.NoError {
		if s.metrics != nil {
			s.metrics.AllocationTierUsed("direct")
		}
		return Replica{Disk: d, Blocks: bl}, core.NoError
	}

	if s.plan != nil && int(cat) < len(s.plan.RelatedSorted) {
		for _, c2 := range s.plan.RelatedSorted[cat] {
			if d, bl, err := s.tryTagged(size, core.CategoryID(c2), cat, used); err == core.NoError {
				if s.metrics != nil {
					s.metrics.AllocationTierUsed("correlated")
				}
				return Replica{Disk: d, Blocks: bl}, core.NoError
			}
		}
	}

	if d, bl, err := s.tryAnywhere(size, used); err == core.NoError {
		if s.metrics != nil {
			s.metrics.AllocationTierUsed("anywhere")
		}
		return Replica{Disk: d, Blocks: bl}, core.NoError
	}

	return Replica{}, core.ErrNoSpace
}

// tryTagged tries allocate_for(d, size, tagCategory) on every disk not in
// used, in descending tag_free(d, tagCategory) order, returning the first
// success.
func (s *Store) tryTagged(size int, tagCategory, originalCategory core.CategoryID, used []core.DiskID) (core.DiskID, core.Blocklist, core.Error) {
	candidates := s.candidateDisks(used)
	sort.SliceStable(candidates, func(i, j int) bool {
		return s.dm.TagFree(candidates[i], tagCategory) > s.dm.TagFree(candidates[j], tagCategory)
	})
	for _, d := range candidates {
		if bl, err := s.dm.AllocateFor(d, size, tagCategory); err == core.NoError {
			return d, bl, core.NoError
		}
	}
	return 0, nil, core.ErrNoSpace
}

// tryAnywhere tries allocate_anywhere on every disk not in used, trying the
// least-loaded (most free space) disk first.
func (s *Store) tryAnywhere(size int, used []core.DiskID) (core.DiskID, core.Blocklist, core.Error) {
	candidates := s.candidateDisks(used)
	sort.SliceStable(candidates, func(i, j int) bool {
		return s.dm.FreeCount(candidates[i]) > s.dm.FreeCount(candidates[j])
	})
	for _, d := range candidates {
		if bl, err := s.dm.AllocateAnywhere(d, size); err == core.NoError {
			return d, bl, core.NoError
		}
	}
	return 0, nil, core.ErrNoSpace
}

func (s *Store) candidateDisks(used []core.DiskID) []core.DiskID {
	out := make([]core.DiskID, 0, s.n)
	for d := core.DiskID(1); d <= core.DiskID(s.n); d++ {
		if !slices.Contains(used, d) {
			out = append(out, d)
		}
	}
	return out
}

// rollback frees every replica already placed for an object whose creation
// ultimately failed.
func (s *Store) rollback(replicas []Replica) {
	for _, r := range replicas {
		s.dm.Free(r.Disk, r.Blocks)
	}
}

// Delete frees every replica's blocklist, purges the reverse index, and
// removes the object record. Returns ErrUnknownObject if id does not exist.
func (s *Store) Delete(id core.ObjectID) core.Error {
	rec, ok := s.objects[id]
	if !ok {
		return core.ErrUnknownObject
	}
	for _, r := range rec.Replicas {
		s.dm.Free(r.Disk, r.Blocks)
		for _, u := range r.Blocks.Units() {
			delete(s.reverse[r.Disk], u)
		}
	}
	delete(s.objects, id)
	log.V(2).Infof("objectstore: deleted %v", id)
	return core.NoError
}
