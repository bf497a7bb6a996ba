// Package ioport drives the systolic array's input/output ports one
// half-cycle at a time: feeding operand elements in as a job's K-slice
// streams through, seeding accumulator ports, and reading settled outputs
// back into the destination matrix once a job reaches its output window.
package ioport

import (
	"fmt"

	"systolicarraysim/mmacompute"
	"systolicarraysim/pipeline"
	"systolicarraysim/rtl"
)

// LaneJob pairs an in-flight queue entry with the systolic array lane
// (backend port index) it has been assigned to drive through.
type LaneJob struct {
	Lane  int
	Entry *pipeline.QueueEntry
}

// Driver steps a Backend through one half-cycle at a time on behalf of a
// set of concurrently in-flight jobs.
type Driver struct {
	cfg pipeline.Config
}

// NewDriver constructs a driver for the given array geometry.
func NewDriver(cfg pipeline.Config) *Driver {
	return &Driver{cfg: cfg}
}

// kForRel reports the left-operand column index k a half-cycle rel presents,
// given the interleaved even/odd-k loading schedule: two new k values arrive
// every FmaCycles half-cycles, on the window's first two cycles. ok is false
// when rel doesn't land on a loading cycle, or k has run past Kmma.
func kForRel(rel, fmaCycles, kmma int) (k int, ok bool) {
	phase := rel % fmaCycles
	if phase != 0 && phase != 1 {
		return 0, false
	}
	k = 2*(rel/fmaCycles) + phase
	return k, k < kmma
}

// Step advances backend by one half-cycle at the given absolute cycle
// count, loading operand and accumulator ports for every job still filling
// its K-slice, and reading back settled outputs for every job that has
// reached its output window. It returns the subset of jobs whose output
// window has fully elapsed this cycle (JobCycleDone), which the caller
// should retire from its queue.
func (d *Driver) Step(cycle int, jobs []LaneJob, backend rtl.Backend) ([]*pipeline.QueueEntry, error) {
	var retired []*pipeline.QueueEntry

	rowsRTL := backend.RowsImplemented()
	if rowsRTL <= 0 || rowsRTL > d.cfg.Mmma {
		rowsRTL = d.cfg.Mmma
	}

	for _, lj := range jobs {
		entry := lj.Entry
		job := entry.Job
		rel := cycle - entry.DispatchCycle
		if rel < 0 {
			continue
		}

		if rel == 0 {
			if err := backend.Reset(lj.Lane); err != nil {
				return retired, fmt.Errorf("ioport: reset lane %d: %w", lj.Lane, err)
			}
		}

		// Accumulator load: on even rel, present c[m, n=rel/2] to every
		// row's acc port, seeding that column's running sum.
		if rel%2 == 0 {
			n := rel / 2
			if n < d.cfg.Nmma {
				for m := 0; m < rowsRTL; m++ {
					seed := job.C.At(job.CRow+m, job.CCol+n)
					if err := backend.SetAccPort(lj.Lane, m, n, seed); err != nil {
						return retired, fmt.Errorf("ioport: seed acc port lane %d row %d col %d: %w", lj.Lane, m, n, err)
					}
				}
			}
		}

		// Left-matrix load: A[m][k] is shared across every output column,
		// so each row only needs to load its k-th element once.
		if k, ok := kForRel(rel, d.cfg.FmaCycles, d.cfg.Kmma); ok {
			for m := 0; m < rowsRTL; m++ {
				left := job.A.At(job.ARow+m, job.ACol+k)
				if err := backend.SetLeftPort(lj.Lane, m, k, left); err != nil {
					return retired, fmt.Errorf("ioport: set left port lane %d row %d k %d: %w", lj.Lane, m, k, err)
				}
			}
		}

		// Right-matrix load: column n enters the array 2*n half-cycles
		// behind column 0, so every column still within that offset of the
		// current cycle gets a chance to present its own k-th element.
		maxN := rel/2 + 1
		if maxN > d.cfg.Nmma {
			maxN = d.cfg.Nmma
		}
		for n := 0; n < maxN; n++ {
			nRel := rel - 2*n
			if nRel < 0 {
				continue
			}
			if k, ok := kForRel(nRel, d.cfg.FmaCycles, d.cfg.Kmma); ok {
				right := job.B.At(job.BRow+k, job.BCol+n)
				if err := backend.SetRightPort(lj.Lane, n, k, right); err != nil {
					return retired, fmt.Errorf("ioport: set right port lane %d col %d k %d: %w", lj.Lane, n, k, err)
				}
			}
		}

		// Output read: column n's result becomes available 2*n half-cycles
		// after the first column's, following the same stride the right
		// load uses.
		outputStart := entry.OutputStartAt(d.cfg)
		if rel >= d.cfg.JobCycleOutputStart() {
			o := (entry.DispatchCycle + rel) - outputStart
			if o%2 == 0 {
				n := o / 2
				if n < d.cfg.Nmma {
					for m := 0; m < rowsRTL; m++ {
						val, err := backend.ReadOut(lj.Lane, m, n)
						if err != nil {
							return retired, fmt.Errorf("ioport: read output lane %d row %d col %d: %w", lj.Lane, m, n, err)
						}
						job.C.Set(job.CRow+m, job.CCol+n, val)
					}
				}
			}
		}

		if rel == d.cfg.JobCycleDone() {
			if rowsRTL < d.cfg.Mmma {
				// Partial-column simulation: the backend only instantiates
				// rowsRTL of the array's Mmma rows. The remaining rows never
				// touched a port; compute them directly through the
				// unfaulted behavioral model now that the job has retired.
				for m := rowsRTL; m < d.cfg.Mmma; m++ {
					a := job.A.RowSlice(job.ARow+m, job.ACol, d.cfg.Kmma)
					for n := 0; n < d.cfg.Nmma; n++ {
						b := job.B.ColSlice(job.BRow, job.BCol+n, d.cfg.Kmma)
						acc := job.C.At(job.CRow+m, job.CCol+n)
						sum, err := mmacompute.Row(acc, a, b, nil, nil)
						if err != nil {
							return retired, fmt.Errorf("ioport: partial-column fallback row %d col %d: %w", m, n, err)
						}
						job.C.Set(job.CRow+m, job.CCol+n, sum)
					}
				}
			}
			retired = append(retired, entry)
		}
	}

	if err := backend.Tick(); err != nil {
		return retired, fmt.Errorf("ioport: tick: %w", err)
	}
	return retired, nil
}
