package sasim

import "systolicarraysim/fault"

// FiSetCsim arms f as the behavioral-model fault ExecCsim will apply,
// including when ExecRtl's fast-transient skip runs jobs through ExecCsim.
func (s *Simulator) FiSetCsim(f fault.CsimFault) {
	s.csimFault = &f
	if s.diag != nil {
		s.diag.FaultArmed(f.ID, f.Place.String(), f.Corruption.String(), f.Bits.String(), f.Mode.String())
	}
}

// FiSetCsimRandom draws and arms a random behavioral-model fault targeting
// one of rowCount rows. ExecCsim's cycle counter advances once per column
// processed (JobQueue_.size() * Nmma() in the reference model), not once per
// half-cycle the way ExecRtl's does, so the transient firing window is sized
// to that column-scale rather than CyclesRequired's half-cycle scale.
func (s *Simulator) FiSetCsimRandom(id string, rowCount int) fault.CsimFault {
	window := s.queue.Len() * s.cfg.Nmma
	f := fault.RandomCsimFault(s.rng, id, s.cfg.Kmma, rowCount, s.mantissaBits(), s.totalBits(), window)
	s.FiSetCsim(f)
	return f
}

// FiResetCsim disarms the currently armed behavioral-model fault.
func (s *Simulator) FiResetCsim() {
	s.csimFault = nil
}

// FiSetRTL arms f as the RTL-backend fault ExecRtl will apply.
func (s *Simulator) FiSetRTL(f fault.RTLFault) {
	s.rtlFault = &f
	if s.diag != nil {
		s.diag.FaultArmed(f.ID, "rtl-signal", f.Corruption.String(), f.Bits.String(), f.Mode.String())
	}
}

// FiSetRTLRandom draws and arms a random RTL-backend fault targeting one of
// signalCount opaque signal paths.
func (s *Simulator) FiSetRTLRandom(id string, signalCount int) fault.RTLFault {
	f := fault.RandomRTLFault(s.rng, id, signalCount, s.mantissaBits(), s.totalBits(), s.cfg.CyclesRequired(s.queue.Len()))
	s.FiSetRTL(f)
	return f
}

// FiResetRTL disarms the currently armed RTL-backend fault and clears any
// signal still latched in the backend.
func (s *Simulator) FiResetRTL() error {
	s.rtlFault = nil
	return s.backend.ClearFaultSignal()
}

// mantissaBits/totalBits bound bitPos draws to the float64 bit pattern
// fault.Corrupt operates on: its 52 stored mantissa bits, or all 64 bits.
func (s *Simulator) mantissaBits() int { return 52 }
func (s *Simulator) totalBits() int    { return 64 }
