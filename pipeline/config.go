// Package pipeline implements the systolic array's job dispatch and timing
// model: turning an M×K times K×N GEMM request into a queue of per-tile
// jobs, and deriving the half-cycle counts at which each job's stages
// complete.
package pipeline

import "fmt"

// Config holds the systolic array's geometry. Mmma/Kmma/Nmma are the native
// array dimensions a single job drives directly; Mtile/Ntile bound the
// larger GEMM shapes DispatchTile fans out into Mmma×Nmma-sized jobs.
// BufferLeftSize/BufferRightSize bound how many distinct left row-slices and
// right column-slices may be inside their BufferFillWindow at once; Dispatch
// rejects a job that would exceed either with an InvariantError.
type Config struct {
	Mmma int
	Kmma int
	Nmma int

	Mtile int
	Ntile int

	BufferLeftSize  int
	BufferRightSize int

	FmaCycles int

	ThreadsPerSA int
	SACnt        int
}

// DefaultConfig mirrors the reference accelerator's native array shape.
func DefaultConfig() Config {
	return Config{
		Mmma: 8, Kmma: 8, Nmma: 8,
		Mtile: 32, Ntile: 32,
		BufferLeftSize: 8, BufferRightSize: 2,
		FmaCycles:    12,
		ThreadsPerSA: 4, SACnt: 16,
	}
}

// Validate checks the geometry invariants the timing formulas below assume.
func (c Config) Validate() error {
	if c.Mmma <= 0 || c.Kmma <= 0 || c.Nmma <= 0 {
		return fmt.Errorf("pipeline: Mmma/Kmma/Nmma must be positive, got %d/%d/%d", c.Mmma, c.Kmma, c.Nmma)
	}
	if c.Mtile <= 0 || c.Ntile <= 0 {
		return fmt.Errorf("pipeline: Mtile/Ntile must be positive, got %d/%d", c.Mtile, c.Ntile)
	}
	if c.Mtile%c.Mmma != 0 {
		return fmt.Errorf("pipeline: Mtile (%d) must be a multiple of Mmma (%d)", c.Mtile, c.Mmma)
	}
	if c.Ntile%c.Nmma != 0 {
		return fmt.Errorf("pipeline: Ntile (%d) must be a multiple of Nmma (%d)", c.Ntile, c.Nmma)
	}
	if c.BufferLeftSize <= 0 || c.BufferRightSize <= 0 {
		return fmt.Errorf("pipeline: buffer sizes must be positive, got left=%d right=%d", c.BufferLeftSize, c.BufferRightSize)
	}
	if c.FmaCycles <= 0 {
		return fmt.Errorf("pipeline: FmaCycles must be positive, got %d", c.FmaCycles)
	}
	return nil
}

// JobCyclePassedFirstStage is the half-cycle count at which a job's operands
// have fully drained through the multiply-accumulate pipeline's first stage,
// freeing its buffer read ports for a hazard-free dependent dispatch.
func (c Config) JobCyclePassedFirstStage() int {
	return 2*c.Nmma + 1
}

// BufferFillWindow is the half-cycle count, Kmma, for which a dispatched
// job's row- and column-slices count as occupying an operand buffer slot. It
// is a fixed count and does not follow ioport.Driver's loading schedule,
// which takes longer to present a full Kmma-deep row (38 half-cycles for the
// default geometry). With the default geometry it is also shorter than the
// JobCyclePassedFirstStage()+1 dispatch cadence, so no earlier job is still
// counted when the next one dispatches.
func (c Config) BufferFillWindow() int {
	return c.Kmma
}

// JobCycleOutputStart is the half-cycle count at which the first output
// column becomes readable for a job: the multiply-add pipeline's latency
// (Kmma/2 loaded k-pairs, each FmaCycles deep) plus a fixed 4-cycle drain.
func (c Config) JobCycleOutputStart() int {
	return (c.Kmma/2)*c.FmaCycles + 4
}

// JobCycleDone is the half-cycle count at which a job has retired: every
// output column has been read and the job's buffer slots may be reused. Each
// of the remaining Nmma-1 columns after the first trails it by 2 half-cycles.
func (c Config) JobCycleDone() int {
	return c.JobCycleOutputStart() + 2*(c.Nmma-1)
}

// CyclesRequired returns the number of half-cycles needed to fully retire
// jobCount back-to-back jobs, each dispatched JobCyclePassedFirstStage+1
// half-cycles after the previous one.
func (c Config) CyclesRequired(jobCount int) int {
	if jobCount <= 0 {
		return 0
	}
	return c.JobCycleDone() + (jobCount-1)*(c.JobCyclePassedFirstStage()+1) + 1
}

// JobsDoneInCycles returns how many jobs (of a back-to-back stream) have
// fully retired after the given number of elapsed half-cycles.
func (c Config) JobsDoneInCycles(cycles int) int {
	done := c.JobCycleDone()
	if cycles <= done {
		return 0
	}
	return (cycles-done-1)/(c.JobCyclePassedFirstStage()+1) + 1
}
