// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package headscheduler

import (
	"testing"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
)

// TestJumpTriggered is scenario S2: V=1000, G=200, head at 1, a single
// pending target at 600. distance+64 = 663 > 200, so step 1 must emit a
// lone JUMP(600) and nothing else.
func TestJumpTriggered(t *testing.T) {
	s := New(1, 1000, 200, nil)
	s.AddTargets(1, []core.Unit{600})

	actions, reads := s.Step(1)
	if len(actions) != 1 || actions[0].Kind != Jump || actions[0].Unit != 600 {
		t.Fatalf("actions = %+v, want a lone JUMP(600)", actions)
	}
	if len(reads) != 0 {
		t.Fatalf("reads = %v, want none", reads)
	}
	if got := s.HeadPosition(1); got != 600 {
		t.Fatalf("HeadPosition = %v, want 600", got)
	}
}

// TestReadDecay exercises the S6 decay arithmetic: once the head reaches a
// run of adjacent pending units, costs 64+52+42+34=192 fit inside G=256, so
// all four are read in the same step the head arrives.
func TestReadDecay(t *testing.T) {
	s := New(1, 1000, 256, nil)
	s.AddTargets(1, []core.Unit{10, 11, 12, 13})

	actions, reads := s.Step(1)
	if len(reads) != 4 {
		t.Fatalf("reads = %v, want 4 units read", reads)
	}
	for _, a := range actions {
		if a.Kind != Read {
			t.Fatalf("actions = %+v, want all READ", actions)
		}
	}
	if got := s.HeadPosition(1); got != 14 {
		t.Fatalf("HeadPosition = %v, want 14", got)
	}
	if s.HeadLoad(1) != 0 {
		t.Fatalf("HeadLoad = %d, want 0", s.HeadLoad(1))
	}
}

func TestReadCostDecaySequence(t *testing.T) {
	if got := readCost(Pass, 0); got != 64 {
		t.Fatalf("first READ after non-READ = %d, want 64", got)
	}
	if got := readCost(Read, 64); got != 52 {
		t.Fatalf("readCost(64) = %d, want 52", got)
	}
	if got := readCost(Read, 52); got != 42 {
		t.Fatalf("readCost(52) = %d, want 42", got)
	}
	if got := readCost(Read, 42); got != 34 {
		t.Fatalf("readCost(42) = %d, want 34", got)
	}
	if got := readCost(Read, 16); got != 16 {
		t.Fatalf("readCost floors at 16, got %d", got)
	}
}

func TestDistanceToNearestWraps(t *testing.T) {
	s := New(1, 100, 1000, nil)
	s.AddTargets(1, []core.Unit{5})
	// Head starts at 1 and no Step is run, so it stays there (position only
	// changes via Step).
	if got := s.DistanceToNearest(1, 90, 20); got != -1 {
		t.Fatalf("DistanceToNearest out of range = %d, want -1", got)
	}
	if got := s.DistanceToNearest(1, 1, 10); got != 4 {
		t.Fatalf("DistanceToNearest(1,1,10) = %d, want 4", got)
	}
}

func TestNoPendingTargetsYieldsNoActions(t *testing.T) {
	s := New(2, 50, 100, nil)
	actions, reads := s.Step(1)
	if actions != nil || reads != nil {
		t.Fatalf("expected no actions/reads with an empty pending set, got %v / %v", actions, reads)
	}
}
