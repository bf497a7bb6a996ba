// Package rtl abstracts the systolic array's compute backend behind a
// narrow port-level interface, so the same pipeline/ioport driving code can
// run against either the fast behavioral model or a real netlist
// co-simulation process.
package rtl

import "systolicarraysim/fault"

// Backend is the opaque compute target the per-cycle I/O driver toggles.
// Implementations own their own internal buffering; the driver only ever
// resets a lane, sets ports, ticks the clock, and reads results back out.
//
// Every port method is scoped to a lane: the array services SACnt
// independent systolic-array instances, and each instance drives its own
// left/right/acc/out ports without visibility into any other lane's job.
type Backend interface {
	// Reset clears lane's operand and accumulator buffers, readying it for a
	// new job. The driver calls this once, at the new job's first half-cycle,
	// before presenting that job's first operand or accumulator seed — a
	// software stand-in for the "job start" pulse a real netlist derives
	// from its own free-running per-lane counter.
	Reset(lane int) error
	// SetLeftPort loads left-operand A[m][k] into lane's row m, column k.
	SetLeftPort(lane, m, k int, value float64) error
	// SetRightPort loads right-operand B[k][n] into lane's column n, row k.
	SetRightPort(lane, n, k int, value float64) error
	// SetAccPort seeds row m's running accumulator for output column n with
	// the destination matrix's current value there.
	SetAccPort(lane, m, n int, value float64) error
	// ReadOut reads the settled value at row m, column n.
	ReadOut(lane, m, n int) (float64, error)
	// SetFaultSignal arms f for injection on subsequent Tick calls.
	SetFaultSignal(f fault.RTLFault) error
	// ClearFaultSignal disarms any fault previously armed with SetFaultSignal.
	ClearFaultSignal() error
	// Tick advances the backend by one half-cycle.
	Tick() error
	// ReadErrorFlag reports whether the backend's internal consistency
	// check (e.g. a netlist assertion, or a behavioral sanity check) has
	// tripped since the backend was constructed; Reset does not clear it.
	ReadErrorFlag() bool
	// RowsImplemented reports how many of the array's Mmma rows this backend
	// actually drives through its ports (MmmaRTL in the reference model). A
	// backend that instantiates the full array returns Mmma; the driver
	// computes any remaining rows directly through the behavioral model once
	// a job retires.
	RowsImplemented() int
}

// Error wraps a backend-reported failure (a bad port index, a process that
// exited, a malformed co-simulation response) in a typed error the caller
// can inspect without string-matching.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "rtl: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
