package sasim

import (
	"fmt"

	"systolicarraysim/fault"
	"systolicarraysim/mmacompute"
)

// ExecCsim retires up to maxJobs in-flight jobs (or every job currently
// queued, if maxJobs <= 0) by computing their outputs directly through
// mmacompute.Row rather than driving the backend port-by-port. This is the
// fast path used both for ordinary (non-fault) GEMM execution and for the
// leading jobs ExecRtl's fast-transient skip retires.
//
// s.cycle here counts columns, not half-cycles: the reference model's
// ExecCsim advances CycleCnt_ once per output column it computes, and
// compares that same counter against the armed fault's TransientCycle. A
// column's fault check is gated on s.csimFault.Row alone, so at most one row
// of any given job's column is ever eligible — a job the armed fault never
// targets, or a column at the wrong cycle, computes cleanly in every row.
func (s *Simulator) ExecCsim(maxJobs int) error {
	entries := s.queue.Entries()
	if maxJobs > 0 && maxJobs < len(entries) {
		entries = entries[:maxJobs]
	}

	processedIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		job := entry.Job
		mCnt := job.C.Rows - job.CRow
		if mCnt > s.cfg.Mmma {
			mCnt = s.cfg.Mmma
		}
		nCnt := job.C.Cols - job.CCol
		if nCnt > s.cfg.Nmma {
			nCnt = s.cfg.Nmma
		}

		for n := 0; n < nCnt; n++ {
			for m := 0; m < mCnt; m++ {
				a := job.A.RowSlice(job.ARow+m, job.ACol, s.cfg.Kmma)
				b := job.B.ColSlice(job.BRow, job.BCol+n, s.cfg.Kmma)

				var fi *fault.CsimFault
				if s.csimFault != nil && s.csimFault.Row == m && s.csimFault.Active(s.cycle) {
					fi = s.csimFault
				}

				acc := job.C.At(job.CRow+m, job.CCol+n)
				sum, err := mmacompute.Row(acc, a, b, fi, s.rng)
				if err != nil {
					return fmt.Errorf("sasim: ExecCsim job %s row %d col %d: %w", job.ID, m, n, err)
				}
				job.C.Set(job.CRow+m, job.CCol+n, sum)
			}
			s.cycle++
		}

		if s.diag != nil {
			s.diag.JobRetired(entry, s.cycle)
		}
		processedIDs = append(processedIDs, entry.ID)
	}

	s.queue.RemoveIDs(processedIDs)
	return nil
}
