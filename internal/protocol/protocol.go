// Copyright (c) 2015 Western Digital Corporation or its affiliates. All rights reserved.
// SPDX-License-Identifier: MIT

// Package protocol drives the stdin/stdout contract in spec.md §6: a
// configuration header, then a time-stepped loop of delete/write/read
// batches and per-disk action-string output. It is grounded on main.cpp in
// the original tool for exact framing, using buffered I/O the way the
// teacher's pkg/rpc codecs do, with fmt.Fscan standing in for operator>>.
package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	log "github.com/golang/glog"

	"github.com/westerndigitalcorporation/blocksim/internal/core"
	"github.com/westerndigitalcorporation/blocksim/internal/headscheduler"
	"github.com/westerndigitalcorporation/blocksim/internal/metrics"
	"github.com/westerndigitalcorporation/blocksim/internal/planner"
	"github.com/westerndigitalcorporation/blocksim/internal/sim"
)

// Driver owns the buffered reader/writer pair and runs the full session.
type Driver struct {
	in      *bufio.Reader
	out     *bufio.Writer
	metrics *metrics.Metrics
}

// New wraps r and w for the protocol session. Metrics observation is
// disabled; use NewWithMetrics to publish the core's counters.
func New(r io.Reader, w io.Writer) *Driver {
	return NewWithMetrics(r, w, nil)
}

// NewWithMetrics is New with an explicit metrics sink.
func NewWithMetrics(r io.Reader, w io.Writer, m *metrics.Metrics) *Driver {
	return &Driver{in: bufio.NewReaderSize(r, 1<<20), out: bufio.NewWriterSize(w, 1<<20), metrics: m}
}

// Run reads the configuration header, builds the simulation, and then
// drives T+ExtraSteps per-step iterations, writing protocol output after
// each. It returns an error when the header or a step's TIMESTAMP token
// cannot be read, or when flushing output fails. A malformed field inside a
// frequency table or a batch is read as 0 (batch fields are also logged),
// and every domain-level failure is handled internally and reported per
// spec.md §7.
func (d *Driver) Run() error {
	var t, m, n, v, g int
	if _, err := fmt.Fscan(d.in, &t, &m, &n, &v, &g); err != nil {
		return fmt.Errorf("protocol: reading header: %w", err)
	}

	slices := (t + core.SliceWidth - 1) / core.SliceWidth
	freq := planner.Frequencies{
		Deletes: readTable(d.in, m, slices),
		Writes:  readTable(d.in, m, slices),
		Reads:   readTable(d.in, m, slices),
	}

	fmt.Fprint(d.out, "OK\n")
	if err := d.out.Flush(); err != nil {
		return err
	}

	s := sim.NewWithMetrics(freq, m, n, v, g, d.metrics)

	totalSteps := t + core.ExtraSteps
	for step := 1; step <= totalSteps; step++ {
		if err := d.runStep(s, step); err != nil {
			return err
		}
	}
	return nil
}

func readTable(r *bufio.Reader, m, slices int) [][]int {
	table := make([][]int, m+1)
	for c := 1; c <= m; c++ {
		table[c] = make([]int, slices)
		for s := 0; s < slices; s++ {
			fmt.Fscan(r, &table[c][s])
		}
	}
	return table
}

func (d *Driver) runStep(s *sim.Simulation, step int) error {
	var label string
	var ts int
	if _, err := fmt.Fscan(d.in, &label, &ts); err != nil {
		return fmt.Errorf("protocol: reading TIMESTAMP token for step %d: %w", step, err)
	}
	fmt.Fprintf(d.out, "TIMESTAMP %d\n", ts)

	nDel := readInt(d.in)
	ids := make([]core.ObjectID, nDel)
	for i := range ids {
		ids[i] = core.ObjectID(readInt(d.in))
	}
	cancelled := s.DeleteBatch(ids)
	fmt.Fprintf(d.out, "%d\n", len(cancelled))
	for _, rid := range cancelled {
		fmt.Fprintf(d.out, "%d\n", int(rid))
	}

	nW := readInt(d.in)
	writes := make([]sim.WriteRecord, nW)
	for i := range writes {
		writes[i] = sim.WriteRecord{
			ID:       core.ObjectID(readInt(d.in)),
			Size:     readInt(d.in),
			Category: core.CategoryID(readInt(d.in)),
		}
	}
	created := s.WriteBatch(writes)
	for _, rec := range created {
		fmt.Fprintf(d.out, "%d\n", int(rec.ID))
		for _, r := range rec.Replicas {
			fmt.Fprintf(d.out, "%d", int(r.Disk))
			for _, u := range r.Blocks.Units() {
				fmt.Fprintf(d.out, " %d", int(u))
			}
			fmt.Fprint(d.out, "\n")
		}
	}

	nR := readInt(d.in)
	reads := make([]sim.ReadRecord, nR)
	for i := range reads {
		reads[i] = sim.ReadRecord{
			RequestID: core.RequestID(readInt(d.in)),
			ObjectID:  core.ObjectID(readInt(d.in)),
		}
	}
	actions, completed := s.ReadBatchAndSchedule(reads, step)

	for disk := 1; disk <= s.N(); disk++ {
		fmt.Fprint(d.out, actionString(actions[core.DiskID(disk)]))
		fmt.Fprint(d.out, "\n")
	}

	fmt.Fprintf(d.out, "%d\n", len(completed))
	for _, rid := range completed {
		fmt.Fprintf(d.out, "%d\n", int(rid))
	}

	if err := d.out.Flush(); err != nil {
		return err
	}
	return nil
}

// actionString renders a disk's per-step action list per spec.md §6 step 5:
// "j T" for a leading JUMP, else a p/r run terminated by '#'.
func actionString(actions []headscheduler.Action) string {
	if len(actions) > 0 && actions[0].Kind == headscheduler.Jump {
		return fmt.Sprintf("j %d", int(actions[0].Unit))
	}
	var b strings.Builder
	for _, a := range actions {
		switch a.Kind {
		case headscheduler.Pass:
			b.WriteByte('p')
		case headscheduler.Read:
			b.WriteByte('r')
		}
	}
	b.WriteByte('#')
	return b.String()
}

func readInt(r *bufio.Reader) int {
	var n int
	if _, err := fmt.Fscan(r, &n); err != nil {
		log.Warningf("protocol: malformed numeric field: %v", err)
		return 0
	}
	return n
}
