// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package sim wires the planner, disk map, object store, head scheduler,
// and request tracker together into the per-step dataflow described in
// spec.md §2: deletes, then writes, then read registration, then
// scheduling. It is grounded on the teacher's cmd/curator wiring pattern,
// where one top-level struct owns every subsystem and exposes a small
// number of entry points to the protocol driver.
package sim

import (
	"github.com/westerndigitalcorporation/blocksim/internal/core"
	"github.com/westerndigitalcorporation/blocksim/internal/diskmap"
	"github.com/westerndigitalcorporation/blocksim/internal/headscheduler"
	"github.com/westerndigitalcorporation/blocksim/internal/metrics"
	"github.com/westerndigitalcorporation/blocksim/internal/objectstore"
	"github.com/westerndigitalcorporation/blocksim/internal/planner"
	"github.com/westerndigitalcorporation/blocksim/internal/requesttracker"
)

// WriteRecord is one object creation requested by the event stream.
type WriteRecord struct {
	ID       core.ObjectID
	Size     int
	Category core.CategoryID
}

// ReadRecord is one read request registration.
type ReadRecord struct {
	RequestID core.RequestID
	ObjectID  core.ObjectID
}

// Simulation owns every subsystem for one run.
type Simulation struct {
	n, v, g int

	dm        *diskmap.DiskMap
	plan      *planner.Plan
	store     *objectstore.Store
	scheduler *headscheduler.Scheduler
	tracker   *requesttracker.Tracker
	metrics   *metrics.Metrics
}

// New runs the planner once over freq and builds every subsystem from its
// output, per spec.md §2's preprocessing phase.
func New(freq planner.Frequencies, m, n, v, g int) *Simulation {
	return NewWithMetrics(freq, m, n, v, g, nil)
}

// NewWithMetrics is New with an explicit metrics sink. protocol.Driver calls
// it with the sink cmd/blocksim handed the driver (nil when metrics are off).
func NewWithMetrics(freq planner.Frequencies, m, n, v, g int, met *metrics.Metrics) *Simulation {
	plan := planner.Run(freq, m, n, v)
	dm := diskmap.New(n, v, plan.DiskRanges, m)
	store := objectstore.New(n, dm, plan, met)
	scheduler := headscheduler.New(n, v, g, met)
	tracker := requesttracker.New(store, scheduler, met)

	return &Simulation{
		n: n, v: v, g: g,
		dm: dm, plan: plan, store: store,
		scheduler: scheduler, tracker: tracker, metrics: met,
	}
}

// N returns the number of disks, for the protocol driver's output loop.
func (s *Simulation) N() int { return s.n }

// DeleteBatch drops every named object: cancels its open requests, frees
// its units, and removes its record. Unknown ids are silently skipped per
// spec.md §7.
func (s *Simulation) DeleteBatch(ids []core.ObjectID) []core.RequestID {
	var cancelled []core.RequestID
	for _, id := range ids {
		if _, ok := s.store.Get(id); !ok {
			continue
		}
		cancelled = append(cancelled, s.tracker.CancelForObject(id)...)
		s.store.Delete(id)
	}
	return cancelled
}

// WriteBatch creates every object it can place, per the three-tier
// fallback in objectstore.Store.Create. Duplicates and unplaceable objects
// are silently skipped, per spec.md §7.
func (s *Simulation) WriteBatch(records []WriteRecord) []*objectstore.Record {
	var created []*objectstore.Record
	for _, rec := range records {
		if err := s.store.Create(rec.ID, rec.Size, rec.Category); err == core.NoError {
			out, _ := s.store.Get(rec.ID)
			created = append(created, out)
		}
	}
	return created
}

// ReadBatchAndSchedule registers every read request, drops ones naming an
// unknown object, runs the tracker's allocation pass, then asks the
// scheduler to plan and execute one step for every disk in ascending id
// order, propagating completions back through the tracker.
func (s *Simulation) ReadBatchAndSchedule(records []ReadRecord, step int) (map[core.DiskID][]headscheduler.Action, []core.RequestID) {
	for _, rec := range records {
		if _, ok := s.store.Get(rec.ObjectID); !ok {
			continue
		}
		s.tracker.Register(rec.RequestID, rec.ObjectID, step)
	}
	s.tracker.AllocateStep()

	actions := make(map[core.DiskID][]headscheduler.Action, s.n)
	reads := make(map[core.DiskID][]core.Unit, s.n)
	for d := core.DiskID(1); d <= core.DiskID(s.n); d++ {
		a, r := s.scheduler.Step(d)
		actions[d] = a
		if len(r) > 0 {
			reads[d] = r
		}
	}

	completed := s.tracker.CompletionsForStep(step, reads)
	s.tracker.EndOfStepReset()
	if s.metrics != nil {
		s.metrics.StepProcessed()
	}
	return actions, completed
}
