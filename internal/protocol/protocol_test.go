// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

package protocol

import (
	"bufio"
	"strings"
	"testing"

	"github.com/westerndigitalcorporation/blocksim/internal/headscheduler"
)

func TestActionStringJump(t *testing.T) {
	got := actionString([]headscheduler.Action{{Kind: headscheduler.Jump, Unit: 600}})
	if got != "j 600" {
		t.Fatalf("actionString(JUMP) = %q, want %q", got, "j 600")
	}
}

func TestActionStringPassReadSequence(t *testing.T) {
	actions := []headscheduler.Action{
		{Kind: headscheduler.Pass},
		{Kind: headscheduler.Pass},
		{Kind: headscheduler.Read, Unit: 3},
		{Kind: headscheduler.Pass},
		{Kind: headscheduler.Read, Unit: 5},
	}
	got := actionString(actions)
	if got != "pprpr#" {
		t.Fatalf("actionString = %q, want %q", got, "pprpr#")
	}
}

func TestActionStringEmpty(t *testing.T) {
	if got := actionString(nil); got != "#" {
		t.Fatalf("actionString(nil) = %q, want %q", got, "#")
	}
}

func TestReadTableParsesRowMajor(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("1 2 3 4 5 6"))
	table := readTable(r, 2, 3)
	if len(table) != 3 {
		t.Fatalf("len(table) = %d, want 3 (1-indexed, m=2)", len(table))
	}
	if got := table[1]; len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("table[1] = %v, want [1 2 3]", got)
	}
	if got := table[2]; len(got) != 3 || got[0] != 4 || got[2] != 6 {
		t.Fatalf("table[2] = %v, want [4 5 6]", got)
	}
}

func TestReadIntSkipsWhitespace(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("  42   7"))
	if got := readInt(r); got != 42 {
		t.Fatalf("readInt = %d, want 42", got)
	}
	if got := readInt(r); got != 7 {
		t.Fatalf("readInt = %d, want 7", got)
	}
}
