// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package headscheduler plans and executes each disk head's bounded-cost
// sequence of JUMP/PASS/READ micro-operations for one step. It is grounded
// on disk_head_manager.{h,cpp} in the original tool; the per-disk pending
// set uses github.com/google/btree instead of std::set, since spec.md's
// design notes call for an O(log n) cyclic-successor structure and a plain
// hash set can't provide one.
package headscheduler

import (
	"math"

	"github.com/google/btree"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
	"github.com/westerndigitalcorporation/blocksim/internal/metrics"
)

// ActionKind tags one head micro-operation. Modeled as a small tagged
// variant rather than an inheritance hierarchy, per spec.md §9.
type ActionKind int

// The three action kinds a head can emit in a step.
const (
	Pass ActionKind = iota
	Read
	Jump
)

// Action is one emitted head operation. Unit carries the JUMP target for
// Jump actions and the unit read for Read actions; it is unused for Pass.
type Action struct {
	Kind ActionKind
	Unit core.Unit
}

type headState struct {
	pos            core.Unit
	lastAction     ActionKind
	lastReadCost   int
	pending        *btree.BTreeG[int]
}

// Scheduler owns every disk head's position, history, and pending-read set.
type Scheduler struct {
	n, v, g int
	heads   []headState // 1-indexed
	metrics *metrics.Metrics
}

// New builds a Scheduler for n disks of v units each, with a per-step token
// budget of g. Every head starts at unit 1, as if having just PASSed there.
func New(n, v, g int, m *metrics.Metrics) *Scheduler {
	s := &Scheduler{n: n, v: v, g: g, heads: make([]headState, n+1), metrics: m}
	for d := 1; d <= n; d++ {
		s.heads[d] = headState{
			pos:        1,
			lastAction: Pass,
			pending:    btree.NewG[int](32, func(a, b int) bool { return a < b }),
		}
	}
	return s
}

// AddTargets enrolls unit positions on disk d as outstanding read targets.
func (s *Scheduler) AddTargets(d core.DiskID, units []core.Unit) {
	for _, u := range units {
		s.heads[d].pending.ReplaceOrInsert(int(u))
	}
}

// RemoveTargets cancels unit positions on disk d, e.g. on object deletion.
func (s *Scheduler) RemoveTargets(d core.DiskID, units []core.Unit) {
	for _, u := range units {
		s.heads[d].pending.Delete(int(u))
	}
}

// HeadPosition returns the disk's current head position.
func (s *Scheduler) HeadPosition(d core.DiskID) core.Unit {
	return s.heads[d].pos
}

// HeadLoad returns the number of outstanding pending-read targets on d.
func (s *Scheduler) HeadLoad(d core.DiskID) int {
	return s.heads[d].pending.Len()
}

// DistanceToNearest returns the minimum forward cyclic distance from the
// head's current position to any pending target inside [start, start+len-1].
// The distance wraps past v back to 1; the range itself does not, so a range
// running past v matches no units at the start of the disk. Returns -1 if no
// pending target falls in range.
func (s *Scheduler) DistanceToNearest(d core.DiskID, start core.Unit, length int) int {
	h := &s.heads[d]
	best := -1
	lo, hi := int(start), int(start)+length-1
	h.pending.Ascend(func(u int) bool {
		if u < lo {
			return true
		}
		if u > hi {
			return false
		}
		dist := s.cyclicDistance(h.pos, core.Unit(u))
		if best == -1 || dist < best {
			best = dist
		}
		return true
	})
	return best
}

// cyclicDistance returns the number of PASSes to move from "from" to "to"
// going forward only, wrapping past v back to 1.
func (s *Scheduler) cyclicDistance(from, to core.Unit) int {
	if to >= from {
		return int(to - from)
	}
	return s.v - int(from) + int(to)
}

// nearestTarget finds the cyclic successor of pos in the pending set: the
// smallest pending unit >= pos, or the smallest pending unit overall if none
// is >= pos.
func nearestTarget(pending *btree.BTreeG[int], pos core.Unit) (core.Unit, bool) {
	var found int
	ok := false
	pending.AscendGreaterOrEqual(int(pos), func(u int) bool {
		found = u
		ok = true
		return false
	})
	if ok {
		return core.Unit(found), true
	}
	min, ok := pending.Min()
	if !ok {
		return 0, false
	}
	return core.Unit(min), true
}

func readCost(lastAction ActionKind, lastCost int) int {
	if lastAction != Read {
		return core.ReadCostInitial
	}
	cost := int(math.Ceil(float64(lastCost) * core.ReadCostDecay))
	if cost < core.ReadCostFloor {
		cost = core.ReadCostFloor
	}
	return cost
}

// Step plans and executes one disk's micro-operations for the current step,
// per the contract in spec.md §4.4. It returns the emitted action sequence
// (for protocol output) and the units actually read (for the tracker to
// propagate completions from).
func (s *Scheduler) Step(d core.DiskID) (actions []Action, reads []core.Unit) {
	h := &s.heads[d]
	budget := s.g

	if h.pending.Len() == 0 {
		return nil, nil
	}

	// Initial JUMP decision: only considered as the very first action.
	if next, ok := nearestTarget(h.pending, h.pos); ok && next != h.pos {
		dist := s.cyclicDistance(h.pos, next)
		if dist+core.ReadCostInitial > budget {
			h.pos = next
			h.lastAction = Jump
			h.lastReadCost = s.g
			s.record(Jump, s.g)
			return []Action{{Kind: Jump, Unit: next}}, nil
		}
	}

	for budget > 0 && h.pending.Len() > 0 {
		target, ok := nearestTarget(h.pending, h.pos)
		if !ok {
			break
		}

		if target == h.pos {
			cost := readCost(h.lastAction, h.lastReadCost)
			if cost > budget {
				break
			}
			h.pending.Delete(int(h.pos))
			actions = append(actions, Action{Kind: Read, Unit: h.pos})
			reads = append(reads, h.pos)
			s.record(Read, cost)
			budget -= cost
			h.lastAction = Read
			h.lastReadCost = cost
			h.pos = s.advance(h.pos)
			continue
		}

		dist := s.cyclicDistance(h.pos, target)

		if h.lastAction == Read {
			doneContinuous, readActions, readUnits, spentBudget, endState, spill := s.evaluateContinuousVsPass(h, dist, budget)
			if doneContinuous {
				for i, u := range readUnits {
					actions = append(actions, readActions[i])
					reads = append(reads, u)
					h.pending.Delete(int(u))
				}
				budget -= spentBudget
				h.lastAction = endState.lastAction
				h.lastReadCost = endState.lastReadCost
				h.pos = endState.pos
				if spill {
					break
				}
				continue
			}
		}

		steps := dist
		if steps > budget {
			steps = budget
		}
		for i := 0; i < steps; i++ {
			actions = append(actions, Action{Kind: Pass})
			s.record(Pass, core.PassCost)
		}
		budget -= steps
		h.lastAction = Pass
		h.lastReadCost = core.PassCost
		h.pos = s.advanceBy(h.pos, steps)
	}

	return actions, reads
}

// evaluateContinuousVsPass compares "PASS to target then READ" against
// "READ continuously through target" (dist+1 reads), per the boundary-aware
// cost rule in spec.md §4.4 step 2. It returns whether the continuous-READ
// plan won, the READ actions/units that fit within this step's remaining
// budget, the budget they consume, the resulting head state, and whether the
// plan spills into the next step.
func (s *Scheduler) evaluateContinuousVsPass(h *headState, dist, budget int) (won bool, actions []Action, units []core.Unit, spent int, end headState, spill bool) {
	passCost := dist
	totalPassPlanCost := passCost + core.ReadCostInitial
	if passCost < budget && passCost+core.ReadCostInitial > budget {
		totalPassPlanCost = budget + core.ReadCostInitial
	}

	lastCost := h.lastReadCost
	tempBudget := budget
	totalReadCost := 0
	possibleSteps := 0
	needsNextSlice := false
	pos := h.pos

	for i := 0; i <= dist; i++ {
		cost := readCost(Read, lastCost)
		if tempBudget >= cost {
			totalReadCost += cost
			tempBudget -= cost
			lastCost = cost
			possibleSteps++
			actions = append(actions, Action{Kind: Read, Unit: pos})
			units = append(units, pos)
			pos = s.advance(pos)
			if totalReadCost > totalPassPlanCost {
				break
			}
		} else {
			needsNextSlice = true
			break
		}
	}

	totalReadPlanCost := totalReadCost
	if needsNextSlice {
		remaining := dist + 1 - possibleSteps
		nextLastCost := lastCost
		nextSliceCost := 0
		for i := 0; i < remaining; i++ {
			step := int(math.Ceil(float64(nextLastCost) * core.ReadCostDecay))
			if step < core.ReadCostFloor {
				step = core.ReadCostFloor
			}
			nextSliceCost += step
			nextLastCost = step
		}
		totalReadPlanCost = budget + nextSliceCost
	}

	if totalReadPlanCost >= totalPassPlanCost {
		return false, nil, nil, 0, headState{}, false
	}
	if possibleSteps == 0 {
		// The continuous plan wins on paper but can't even afford its first
		// READ this step; terminate the disk's step without falling back to
		// PASS, matching the original tool's behavior.
		return true, nil, nil, 0, headState{pos: h.pos, lastAction: h.lastAction, lastReadCost: h.lastReadCost}, true
	}
	return true, actions, units, totalReadCost, headState{pos: pos, lastAction: Read, lastReadCost: lastCost}, needsNextSlice
}

func (s *Scheduler) advance(u core.Unit) core.Unit {
	return s.advanceBy(u, 1)
}

func (s *Scheduler) advanceBy(u core.Unit, n int) core.Unit {
	p := (int(u) - 1 + n) % s.v
	return core.Unit(p + 1)
}

func (s *Scheduler) record(kind ActionKind, tokens int) {
	if s.metrics == nil {
		return
	}
	name := map[ActionKind]string{Pass: "pass", Read: "read", Jump: "jump"}[kind]
	s.metrics.ActionEmitted(name)
	s.metrics.TokensSpentFor(name, tokens)
}
