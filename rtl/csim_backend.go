package rtl

import (
	"fmt"

	"systolicarraysim/fault"
	"systolicarraysim/mmacompute"
)

// CsimBackend is a Backend implementation that computes results with
// mmacompute.Row instead of driving a netlist. It lets ExecRtl run its
// per-cycle port-loading code in ioport.Driver without a co-simulation
// process; ExecCsim does not use a Backend and calls mmacompute.Row
// directly.
//
// Each lane holds the full Mmma×Kmma left operand and Nmma×Kmma right
// operand it has received so far, plus one accumulator seed per output
// column; ReadOut computes that column's dot product on demand once the
// driver asks for it, which the per-cycle timing formulas guarantee is only
// after every k-term feeding that column has already arrived.
type CsimBackend struct {
	mmma, kmma, nmma int
	rng              fault.Rand

	lanes map[int]*laneState

	armed     *fault.RTLFault
	errorFlag bool
}

type laneState struct {
	left          [][]float64 // [m][k]
	right         [][]float64 // [n][k]
	acc           [][]float64 // [m][n]
	consumedFault bool
}

func newLaneState(mmma, kmma, nmma int) *laneState {
	left := make([][]float64, mmma)
	for m := range left {
		left[m] = make([]float64, kmma)
	}
	right := make([][]float64, nmma)
	for n := range right {
		right[n] = make([]float64, kmma)
	}
	acc := make([][]float64, mmma)
	for m := range acc {
		acc[m] = make([]float64, nmma)
	}
	return &laneState{left: left, right: right, acc: acc}
}

// NewCsimBackend constructs a behavioral backend for an Mmma×Kmma×Nmma array.
func NewCsimBackend(mmma, kmma, nmma int, rng fault.Rand) *CsimBackend {
	return &CsimBackend{
		mmma:  mmma,
		kmma:  kmma,
		nmma:  nmma,
		rng:   rng,
		lanes: make(map[int]*laneState),
	}
}

func (b *CsimBackend) lane(l int) *laneState {
	ls, ok := b.lanes[l]
	if !ok {
		ls = newLaneState(b.mmma, b.kmma, b.nmma)
		b.lanes[l] = ls
	}
	return ls
}

func (b *CsimBackend) Reset(lane int) error {
	b.lanes[lane] = newLaneState(b.mmma, b.kmma, b.nmma)
	return nil
}

func (b *CsimBackend) SetLeftPort(lane, m, k int, value float64) error {
	if m < 0 || m >= b.mmma || k < 0 || k >= b.kmma {
		return &Error{Op: "SetLeftPort", Err: fmt.Errorf("index out of range m=%d k=%d", m, k)}
	}
	b.lane(lane).left[m][k] = value
	return nil
}

func (b *CsimBackend) SetRightPort(lane, n, k int, value float64) error {
	if n < 0 || n >= b.nmma || k < 0 || k >= b.kmma {
		return &Error{Op: "SetRightPort", Err: fmt.Errorf("index out of range n=%d k=%d", n, k)}
	}
	b.lane(lane).right[n][k] = value
	return nil
}

func (b *CsimBackend) SetAccPort(lane, m, n int, value float64) error {
	if m < 0 || m >= b.mmma || n < 0 || n >= b.nmma {
		return &Error{Op: "SetAccPort", Err: fmt.Errorf("index out of range m=%d n=%d", m, n)}
	}
	b.lane(lane).acc[m][n] = value
	return nil
}

func (b *CsimBackend) ReadOut(lane, m, n int) (float64, error) {
	if m < 0 || m >= b.mmma || n < 0 || n >= b.nmma {
		return 0, &Error{Op: "ReadOut", Err: fmt.Errorf("index out of range m=%d n=%d", m, n)}
	}
	ls := b.lane(lane)

	var fi *fault.CsimFault
	if b.armed != nil && b.armed.SignalIndex == m && !ls.consumedFault {
		cf := toCsimFault(*b.armed)
		fi = &cf
		ls.consumedFault = true
	}

	sum, err := mmacompute.Row(ls.acc[m][n], ls.left[m], ls.right[n], fi, b.rng)
	if err != nil {
		b.errorFlag = true
		return 0, &Error{Op: "ReadOut", Err: err}
	}
	return sum, nil
}

func (b *CsimBackend) SetFaultSignal(f fault.RTLFault) error {
	b.armed = &f
	return nil
}

func (b *CsimBackend) ClearFaultSignal() error {
	b.armed = nil
	return nil
}

func (b *CsimBackend) ReadErrorFlag() bool {
	return b.errorFlag
}

// Tick is a no-op beyond satisfying the Backend interface: this behavioral
// backend settles each output column lazily, on ReadOut, rather than
// advancing internal wavefront state one half-cycle at a time.
func (b *CsimBackend) Tick() error {
	return nil
}

func (b *CsimBackend) RowsImplemented() int {
	return b.mmma
}

// toCsimFault maps an opaque RTL signal-index fault onto the behavioral
// model's place taxonomy. The RTL backend only exposes one injectable
// signal per lane, so it is always modeled as landing at the multiplier
// stage — the stage a single stuck/flipped signal on a systolic PE's
// datapath most directly corresponds to.
func toCsimFault(f fault.RTLFault) fault.CsimFault {
	return fault.CsimFault{
		ID:             f.ID,
		Place:          fault.CsimPlaceMultipliers,
		Corruption:     f.Corruption,
		Bits:           f.Bits,
		Mode:           f.Mode,
		Row:            f.SignalIndex,
		BitPos:         f.BitPos,
		TransientCycle: f.TransientCycle,
	}
}
