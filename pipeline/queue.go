package pipeline

import (
	"fmt"

	"github.com/rs/xid"
)

// QueueEntry is a Job together with the half-cycle it was dispatched at and
// the derived half-cycles its stages complete at.
type QueueEntry struct {
	ID            string
	Job           Job
	DispatchCycle int
}

// PassedFirstStageAt returns the half-cycle at which the entry's operands
// have drained the pipeline's first stage.
func (e *QueueEntry) PassedFirstStageAt(cfg Config) int {
	return e.DispatchCycle + cfg.JobCyclePassedFirstStage()
}

// OutputStartAt returns the half-cycle at which the entry's first output
// column becomes readable.
func (e *QueueEntry) OutputStartAt(cfg Config) int {
	return e.DispatchCycle + cfg.JobCycleOutputStart()
}

// DoneAt returns the half-cycle at which the entry retires.
func (e *QueueEntry) DoneAt(cfg Config) int {
	return e.DispatchCycle + cfg.JobCycleDone()
}

// InvariantError reports a violated pipeline invariant: an overfull buffer,
// or a read-before-write hazard between concurrently in-flight jobs.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "pipeline: " + e.Msg
}

// Queue holds the jobs currently in flight through the systolic array, in
// dispatch order.
type Queue struct {
	cfg     Config
	entries []*QueueEntry
	cycle   int
}

// NewQueue constructs an empty queue for the given array geometry.
func NewQueue(cfg Config) *Queue {
	return &Queue{cfg: cfg}
}

// Len returns the number of jobs currently in flight.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Entries returns the in-flight entries, oldest first. Callers must not
// retain the slice past the next mutating call.
func (q *Queue) Entries() []*QueueEntry {
	return q.entries
}

// Retire drops every entry that has reached DoneAt at or before the given
// cycle, returning the retired entries.
func (q *Queue) Retire(cycle int) []*QueueEntry {
	var retired []*QueueEntry
	var kept []*QueueEntry
	for _, e := range q.entries {
		if cycle >= e.DoneAt(q.cfg) {
			retired = append(retired, e)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return retired
}

// RemoveIDs drops the entries whose ID is in ids and returns them, in their
// original queue order. Used by callers (such as a fast behavioral
// execution path) that retire jobs out of half-cycle order and so can't use
// Retire's cycle-threshold semantics.
func (q *Queue) RemoveIDs(ids []string) []*QueueEntry {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	var removed []*QueueEntry
	var kept []*QueueEntry
	for _, e := range q.entries {
		if want[e.ID] {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	q.entries = kept
	return removed
}

// Dispatch enqueues job at the queue's current half-cycle and advances that
// cursor by JobCyclePassedFirstStage()+1 half-cycles, the reference model's
// dispatch cadence: a new job cannot enter the array until the previous one
// has cleared the first pipeline stage, freeing its lane. It reports an
// InvariantError if the operand buffers named by job would overflow the
// configured buffer sizes, or if ReadBeforeWrite reports a hazard.
func (q *Queue) Dispatch(job Job) (*QueueEntry, error) {
	if err := q.checkBufferCapacity(job); err != nil {
		return nil, err
	}
	if hazard := q.ReadBeforeWrite(job); hazard != nil {
		return nil, &InvariantError{Msg: fmt.Sprintf(
			"read-before-write hazard: job %s reads a buffer job %s has not yet written back",
			job.ID, hazard.Job.ID)}
	}

	entry := &QueueEntry{
		ID:            xid.New().String(),
		Job:           job,
		DispatchCycle: q.cycle,
	}
	q.entries = append(q.entries, entry)
	q.cycle += q.cfg.JobCyclePassedFirstStage() + 1
	return entry, nil
}

// checkBufferCapacity bounds how many distinct row-slices of a left operand
// buffer (or column-slices of a right operand buffer) can be checked out at
// once. Only entries still within BufferFillWindow (they haven't yet
// finished streaming their operands in) hold their buffer slot; older
// entries have already freed it, even though they remain in the queue
// awaiting output. Distinct row/col offsets into the very same Matrix are
// what compete for a slot, not the Matrix pointer alone — a full tile
// dispatch legitimately reuses the same underlying A/B buffers across every
// fanned-out job.
func (q *Queue) checkBufferCapacity(job Job) error {
	window := q.cfg.BufferFillWindow()
	leftRows := map[int]bool{job.ARow: true}
	rightCols := map[int]bool{job.BCol: true}
	for _, e := range q.entries {
		if q.cycle-e.DispatchCycle >= window {
			continue
		}
		if e.Job.A == job.A {
			leftRows[e.Job.ARow] = true
		}
		if e.Job.B == job.B {
			rightCols[e.Job.BCol] = true
		}
	}
	if len(leftRows) > q.cfg.BufferLeftSize {
		return &InvariantError{Msg: fmt.Sprintf("left buffer full: %d distinct row-slices in flight (limit %d)", len(leftRows), q.cfg.BufferLeftSize)}
	}
	if len(rightCols) > q.cfg.BufferRightSize {
		return &InvariantError{Msg: fmt.Sprintf("right buffer full: %d distinct column-slices in flight (limit %d)", len(rightCols), q.cfg.BufferRightSize)}
	}
	return nil
}

// ReadBeforeWrite reports the first of the last
// JobCycleDone()/JobCyclePassedFirstStage() queued entries (the jobs that can
// be in flight together) whose write set aliases job's read set by buffer
// identity, or nil if no hazard exists.
func (q *Queue) ReadBeforeWrite(job Job) *QueueEntry {
	window := q.cfg.JobCycleDone() / q.cfg.JobCyclePassedFirstStage()
	start := 0
	if len(q.entries) > window {
		start = len(q.entries) - window
	}
	for _, e := range q.entries[start:] {
		for _, w := range e.Job.WriteSet() {
			for _, r := range job.ReadSet() {
				if w == r {
					return e
				}
			}
		}
	}
	return nil
}

// DispatchFanout dispatches an mCnt×nCnt grid of Mmma×Nmma jobs covering the
// A/B/C tiles rooted at (aRow,aCol)/(bRow,bCol)/(cRow,cCol), all sharing the
// same K-slice. The walk is row-major: every column block of one Mmma-row
// group is dispatched before the next row group's.
func (q *Queue) DispatchFanout(a, b, c *Matrix, mCnt, nCnt int, aRow, aCol, bRow, bCol, cRow, cCol int) ([]*QueueEntry, error) {
	var out []*QueueEntry
	for m := 0; m < mCnt; m++ {
		for n := 0; n < nCnt; n++ {
			job := Job{
				ID: fmt.Sprintf("mma-%d-%d", m, n),
				A:  a, B: b, C: c,
				ARow: aRow + m*q.cfg.Mmma, ACol: aCol,
				BRow: bRow, BCol: bCol + n*q.cfg.Nmma,
				CRow: cRow + m*q.cfg.Mmma, CCol: cCol + n*q.cfg.Nmma,
			}
			entry, err := q.Dispatch(job)
			if err != nil {
				return out, err
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// DispatchTile fans a full Mtile×Ntile×K GEMM tile out into Mmma×Nmma×Kmma
// jobs, handling a K remainder that doesn't divide evenly into Kmma by
// dispatching a final, narrower K-slice.
func (q *Queue) DispatchTile(a, b, c *Matrix, k int) ([]*QueueEntry, error) {
	mCnt := q.cfg.Mtile / q.cfg.Mmma
	nCnt := q.cfg.Ntile / q.cfg.Nmma

	var out []*QueueEntry
	for kOff := 0; kOff < k; kOff += q.cfg.Kmma {
		entries, err := q.DispatchFanout(a, b, c, mCnt, nCnt, 0, kOff, kOff, 0, 0, 0)
		if err != nil {
			return out, err
		}
		out = append(out, entries...)
	}
	return out, nil
}
