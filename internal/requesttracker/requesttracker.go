// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package requesttracker consolidates concurrent reads of the same object,
// selects which replica supplies still-uncovered ordinals, and propagates
// per-unit READ completions into per-request completion events. It is
// grounded on the teacher's internal/tractserver request bookkeeping in
// spirit (one map keyed by id, a reverse index for fan-in, explicit status
// transitions) rather than any single file, since the teacher has no direct
// analogue of cross-request deduplication.
package requesttracker

import (
	"math"

	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
	"github.com/westerndigitalcorporation/blocksim/internal/headscheduler"
	"github.com/westerndigitalcorporation/blocksim/internal/metrics"
	"github.com/westerndigitalcorporation/blocksim/internal/objectstore"
)

// Status is a request's position in its PENDING -> PROCESSING -> COMPLETED
// lifecycle.
type Status int

// The three statuses a request passes through.
const (
	Pending Status = iota
	Processing
	Completed
)

type target struct {
	disk core.DiskID
	unit core.Unit
}

// Request is one outstanding or completed read of an object.
type Request struct {
	ID       core.RequestID
	Object   core.ObjectID
	Status   Status
	Started  int // step the request was registered, for latency metrics
	Remaining map[int]target // ordinal -> currently assigned scheduler target
}

// Tracker owns every in-flight and completed request, the per-object
// reverse index used for consolidation and completion fan-out, and the
// per-(disk,unit) subscriber counts used to decide whether a cancelled
// request's scheduler targets can actually be removed.
type Tracker struct {
	store     *objectstore.Store
	scheduler *headscheduler.Scheduler
	metrics   *metrics.Metrics

	requests map[core.RequestID]*Request
	byObject map[core.ObjectID][]core.RequestID
	pending  []core.RequestID

	subs map[core.DiskID]map[core.Unit]int
}

// New builds an empty Tracker bound to store for object lookups and
// scheduler for target enrollment and replica-selection heuristics.
func New(store *objectstore.Store, scheduler *headscheduler.Scheduler, m *metrics.Metrics) *Tracker {
	return &Tracker{
		store:     store,
		scheduler: scheduler,
		metrics:   m,
		requests:  make(map[core.RequestID]*Request),
		byObject:  make(map[core.ObjectID][]core.RequestID),
		subs:      make(map[core.DiskID]map[core.Unit]int),
	}
}

// Register enrolls a new read request. It is enqueued PENDING until the
// next AllocateStep call, per spec.md §4.5.
func (t *Tracker) Register(id core.RequestID, object core.ObjectID, step int) {
	req := &Request{ID: id, Object: object, Status: Pending, Started: step, Remaining: map[int]target{}}
	t.requests[id] = req
	t.byObject[object] = append(t.byObject[object], id)
	t.pending = append(t.pending, id)
}

// AllocateStep processes every PENDING request in FIFO order: consolidating
// with in-flight siblings first, then filling any still-uncovered ordinals
// via replica selection, then moving the request to PROCESSING.
func (t *Tracker) AllocateStep() {
	queue := t.pending
	t.pending = nil

	for _, id := range queue {
		req, ok := t.requests[id]
		if !ok {
			continue
		}
		rec, ok := t.store.Get(req.Object)
		if !ok {
			// Object was deleted before this request could be allocated;
			// drop it silently, mirroring the no-output-on-NoSpace rule.
			delete(t.requests, id)
			continue
		}

		t.consolidate(req, rec)
		if len(req.Remaining) < rec.Size {
			t.fillFromReplica(req, rec)
		}
		req.Status = Processing
	}
}

// consolidate subscribes req to every scheduler target already assigned to
// an in-flight sibling request on the same object.
func (t *Tracker) consolidate(req *Request, rec *objectstore.Record) {
	for _, siblingID := range t.byObject[req.Object] {
		if siblingID == req.ID {
			continue
		}
		sibling, ok := t.requests[siblingID]
		if !ok || sibling.Status != Processing {
			continue
		}
		for ordinal, tg := range sibling.Remaining {
			if _, have := req.Remaining[ordinal]; have {
				continue
			}
			req.Remaining[ordinal] = tg
			t.addSub(tg)
		}
	}
}

// fillFromReplica picks a replica per the distance/load heuristic and
// enrolls scheduler targets for every ordinal the request doesn't already
// cover.
func (t *Tracker) fillFromReplica(req *Request, rec *objectstore.Record) {
	replica := t.selectReplica(rec)
	units := replica.Blocks.Units()
	var newTargets []core.Unit
	for ordinal, u := range units {
		if _, have := req.Remaining[ordinal]; have {
			continue
		}
		tg := target{disk: replica.Disk, unit: u}
		req.Remaining[ordinal] = tg
		t.addSub(tg)
		newTargets = append(newTargets, u)
	}
	if len(newTargets) > 0 {
		t.scheduler.AddTargets(replica.Disk, newTargets)
	}
}

// selectReplica implements the distance/load-spread heuristic in spec.md
// §4.5 step 2.
func (t *Tracker) selectReplica(rec *objectstore.Record) objectstore.Replica {
	distances := make([]int, core.ReplicaCount)
	loads := make([]int, core.ReplicaCount)
	maxLoad, minLoad := 0, math.MaxInt
	for i, r := range rec.Replicas {
		if len(r.Blocks) == 0 {
			distances[i] = math.MaxInt
			loads[i] = math.MaxInt
			continue
		}
		first := r.Blocks[0]
		d := t.scheduler.DistanceToNearest(r.Disk, first.Start, first.Length)
		if d < 0 {
			d = math.MaxInt
		}
		distances[i] = d
		load := t.scheduler.HeadLoad(r.Disk)
		loads[i] = load
		if load > maxLoad {
			maxLoad = load
		}
		if load < minLoad {
			minLoad = load
		}
	}

	loadSpread := 0.0
	if maxLoad > 0 {
		loadSpread = float64(maxLoad-minLoad) / float64(maxLoad)
	}

	best := 0
	if loadSpread > 0.65 {
		for i := 1; i < core.ReplicaCount; i++ {
			if loads[i] < loads[best] {
				best = i
			}
		}
	} else {
		for i := 1; i < core.ReplicaCount; i++ {
			if distances[i] < distances[best] {
				best = i
			}
		}
	}
	return rec.Replicas[best]
}

// CompletionsForStep must be called once the scheduler has returned the
// (disk, unit) pairs it actually read this step. It returns the ids of
// every request that just completed.
func (t *Tracker) CompletionsForStep(step int, reads map[core.DiskID][]core.Unit) []core.RequestID {
	var completed []core.RequestID
	for d, units := range reads {
		for _, u := range units {
			object, ok := t.store.ObjectOf(d, u)
			if !ok {
				continue
			}
			ordinal, ok := t.ordinalOf(d, u)
			if !ok {
				continue
			}
			t.deleteSub(target{disk: d, unit: u})
			for _, id := range t.byObject[object] {
				req, ok := t.requests[id]
				if !ok || req.Status != Processing {
					continue
				}
				if _, have := req.Remaining[ordinal]; !have {
					continue
				}
				delete(req.Remaining, ordinal)
				if len(req.Remaining) == 0 {
					req.Status = Completed
					completed = append(completed, req.ID)
					if t.metrics != nil {
						t.metrics.RequestCompleted(step - req.Started)
					}
				}
			}
		}
	}
	return completed
}

// ordinalOf resolves (d, u)'s intra-object ordinal via the object store's
// replica blocklists, since diskmap's own ordinal bookkeeping is private to
// the allocator.
func (t *Tracker) ordinalOf(d core.DiskID, u core.Unit) (int, bool) {
	object, ok := t.store.ObjectOf(d, u)
	if !ok {
		return 0, false
	}
	rec, ok := t.store.Get(object)
	if !ok {
		return 0, false
	}
	for _, r := range rec.Replicas {
		if r.Disk != d {
			continue
		}
		for ordinal, unit := range r.Blocks.Units() {
			if unit == u {
				return ordinal, true
			}
		}
	}
	return 0, false
}

// CancelForObject cancels every open request on object, releasing scheduler
// targets that no other request still subscribes to, and returns the
// cancelled request ids.
func (t *Tracker) CancelForObject(object core.ObjectID) []core.RequestID {
	var cancelled []core.RequestID
	for _, id := range t.byObject[object] {
		req, ok := t.requests[id]
		if !ok {
			continue
		}
		for _, tg := range req.Remaining {
			if t.removeSub(tg) {
				t.scheduler.RemoveTargets(tg.disk, []core.Unit{tg.unit})
			}
		}
		delete(t.requests, id)
		cancelled = append(cancelled, id)
	}
	delete(t.byObject, object)
	if len(cancelled) > 0 {
		log.V(2).Infof("requesttracker: cancelled %d requests on %v", len(cancelled), object)
	}
	return cancelled
}

// EndOfStepReset removes every COMPLETED request from the primary map and
// the object reverse index, per spec.md §4.5's end-of-step reset.
func (t *Tracker) EndOfStepReset() {
	for object, ids := range t.byObject {
		kept := ids[:0]
		for _, id := range ids {
			req, ok := t.requests[id]
			if !ok {
				continue
			}
			if req.Status == Completed {
				delete(t.requests, id)
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			delete(t.byObject, object)
		} else {
			t.byObject[object] = kept
		}
	}
}

func (t *Tracker) addSub(tg target) {
	m, ok := t.subs[tg.disk]
	if !ok {
		m = make(map[core.Unit]int)
		t.subs[tg.disk] = m
	}
	m[tg.unit]++
}

// removeSub decrements tg's subscriber count and reports whether it reached
// zero, meaning the scheduler target can actually be cancelled.
func (t *Tracker) removeSub(tg target) bool {
	m, ok := t.subs[tg.disk]
	if !ok {
		return true
	}
	m[tg.unit]--
	if m[tg.unit] <= 0 {
		delete(m, tg.unit)
		return true
	}
	return false
}

func (t *Tracker) deleteSub(tg target) {
	if m, ok := t.subs[tg.disk]; ok {
		delete(m, tg.unit)
	}
}
