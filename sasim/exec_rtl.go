package sasim

import (
	"fmt"

	"systolicarraysim/fault"
	"systolicarraysim/ioport"
)

// ExecRtl drives the configured backend through every in-flight job's full
// half-cycle timeline via ioport.Driver, applying the armed RTL fault (if
// any) at the cycles it's active.
//
// When fastTransient (or fastTransientTest) is set and the armed fault is
// Transient, ExecRtl first retires the leading TransientCycle/JobCycleDone()
// jobs through the fast behavioral path (ExecCsim); under the dispatch
// cadence every one of those jobs has retired by the fault's firing cycle.
// The remaining jobs keep their dispatch cycles, so the half-cycle loop
// below still counts from cycle 0 and the fault fires at the same absolute
// cycle it would without the skip. fastTransientTest additionally forces
// one job through the skip when none would be and more than one is queued,
// so tests can exercise the skip path regardless of the firing cycle. There
// is no flush: after the fault fires, the remaining jobs are still driven
// half-cycle by half-cycle until they retire.
func (s *Simulator) ExecRtl(fastTransient, fastTransientTest bool) error {
	if s.queue.Len() == 0 {
		return nil
	}

	if s.rtlFault != nil && s.rtlFault.Mode == fault.ModeTransient && (fastTransient || fastTransientTest) {
		window := s.cfg.JobCycleDone()
		if window < 1 {
			window = 1
		}
		jobsBefore := s.rtlFault.TransientCycle / window
		if fastTransientTest && jobsBefore == 0 && s.queue.Len() > 1 {
			jobsBefore = 1
		}
		if jobsBefore > 0 {
			if err := s.ExecCsim(jobsBefore); err != nil {
				return fmt.Errorf("sasim: ExecRtl fast-transient skip: %w", err)
			}
			s.cycle = 0
		}
	}

	entries := s.queue.Entries()
	if len(entries) == 0 {
		return nil
	}

	laneJobs := make([]ioport.LaneJob, 0, len(entries))
	for i, e := range entries {
		lane := i % max(s.cfg.SACnt, 1)
		laneJobs = append(laneJobs, ioport.LaneJob{Lane: lane, Entry: e})
	}

	if s.rtlFault != nil && s.rtlFault.Mode == fault.ModePermanent {
		if err := s.backend.SetFaultSignal(*s.rtlFault); err != nil {
			return fmt.Errorf("sasim: ExecRtl arm permanent fault: %w", err)
		}
	}

	maxDone := 0
	for _, lj := range laneJobs {
		if d := lj.Entry.DoneAt(s.cfg); d > maxDone {
			maxDone = d
		}
	}

	driver := ioport.NewDriver(s.cfg)
	for cycle := 0; cycle <= maxDone; cycle++ {
		transientFiring := s.rtlFault != nil && s.rtlFault.Mode == fault.ModeTransient && s.rtlFault.Active(cycle)
		if transientFiring {
			if err := s.backend.SetFaultSignal(*s.rtlFault); err != nil {
				return fmt.Errorf("sasim: ExecRtl arm transient fault: %w", err)
			}
		}

		retired, err := driver.Step(cycle, laneJobs, s.backend)
		if err != nil {
			s.errorDetected = true
			return fmt.Errorf("sasim: ExecRtl cycle %d: %w", cycle, err)
		}

		if transientFiring {
			if err := s.backend.ClearFaultSignal(); err != nil {
				return fmt.Errorf("sasim: ExecRtl clear transient fault: %w", err)
			}
		}

		for _, e := range retired {
			if s.diag != nil {
				s.diag.JobRetired(e, cycle)
			}
		}
		s.cycle = cycle
	}

	s.queue.Retire(maxDone)
	if s.backend.ReadErrorFlag() {
		s.errorDetected = true
	}
	return nil
}
