// Package sasim is the top-level execution orchestrator: it owns the job
// queue and the compute backend, and exposes the dispatch and execution
// operations a host program drives a GEMM (and its fault-injection
// campaigns) through.
package sasim

import (
	"fmt"

	"systolicarraysim/diag"
	"systolicarraysim/fault"
	"systolicarraysim/pipeline"
	"systolicarraysim/rtl"
)

// noCopy documents (and, via `go vet -copylocks`, enforces) that Simulator
// must not be copied after first use: it owns a single backend handle and a
// single job queue, and copying it would let two Simulator values drive the
// same in-flight jobs.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Simulator is the non-copyable owner of one RTL/co-simulation backend and
// one job queue. Construct with New; pass by pointer thereafter.
type Simulator struct {
	_ noCopy

	cfg     pipeline.Config
	backend rtl.Backend
	queue   *pipeline.Queue
	rng     fault.Rand
	diag    *diag.Diagnostics

	csimFault *fault.CsimFault
	rtlFault  *fault.RTLFault

	cycle         int
	errorDetected bool
}

// New constructs a Simulator over the given array geometry, backend, and
// random source. diagnostics may be nil to disable logging.
func New(cfg pipeline.Config, backend rtl.Backend, rng fault.Rand, diagnostics *diag.Diagnostics) *Simulator {
	return &Simulator{
		cfg:     cfg,
		backend: backend,
		queue:   pipeline.NewQueue(cfg),
		rng:     rng,
		diag:    diagnostics,
	}
}

// ErrorDetected reports whether the backend's error flag has tripped, or a
// mismatch was otherwise recorded, since the simulator was constructed.
func (s *Simulator) ErrorDetected() bool {
	return s.errorDetected || s.backend.ReadErrorFlag()
}

// DispatchMma dispatches a single Mmma×Nmma×Kmma job.
func (s *Simulator) DispatchMma(a, b, c *pipeline.Matrix, aRow, aCol, bRow, bCol, cRow, cCol int) error {
	job := pipeline.Job{
		ID: fmt.Sprintf("mma-%d-%d", cRow, cCol),
		A: a, B: b, C: c,
		ARow: aRow, ACol: aCol,
		BRow: bRow, BCol: bCol,
		CRow: cRow, CCol: cCol,
	}
	entry, err := s.queue.Dispatch(job)
	if err != nil {
		return err
	}
	if s.diag != nil {
		s.diag.JobDispatched(entry)
	}
	return nil
}

// DispatchMmaFanout dispatches an mCnt×nCnt grid of Mmma×Nmma jobs sharing a
// K-slice, in row-major order: every column block of one row group before
// the next row group's.
func (s *Simulator) DispatchMmaFanout(a, b, c *pipeline.Matrix, mCnt, nCnt int, aRow, aCol, bRow, bCol, cRow, cCol int) error {
	entries, err := s.queue.DispatchFanout(a, b, c, mCnt, nCnt, aRow, aCol, bRow, bCol, cRow, cCol)
	if s.diag != nil {
		for _, e := range entries {
			s.diag.JobDispatched(e)
		}
	}
	return err
}

// DispatchTile dispatches a full Mtile×Ntile×k GEMM tile.
func (s *Simulator) DispatchTile(a, b, c *pipeline.Matrix, k int) error {
	entries, err := s.queue.DispatchTile(a, b, c, k)
	if s.diag != nil {
		for _, e := range entries {
			s.diag.JobDispatched(e)
		}
	}
	return err
}

// QueueLen reports the number of jobs currently in flight.
func (s *Simulator) QueueLen() int {
	return s.queue.Len()
}
