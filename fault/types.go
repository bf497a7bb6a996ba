// Package fault models the hardware fault taxonomy injectable into the
// behavioral compute model (CsimFault) and the RTL backend (RTLFault), and
// the corruption operators applied at injection sites.
package fault

// Mode selects whether a fault is dormant, fires once at a chosen cycle
// (Transient), or is active for the remainder of the run (Permanent).
type Mode int

const (
	ModeNone Mode = iota
	ModeTransient
	ModePermanent
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "None"
	case ModeTransient:
		return "Transient"
	case ModePermanent:
		return "Permanent"
	default:
		return "Unknown"
	}
}

// Corruption is the bit-level operator applied to a value at the fault site.
type Corruption int

const (
	CorruptionNone Corruption = iota
	CorruptionStuckHigh
	CorruptionStuckLow
	CorruptionFlip
)

func (c Corruption) String() string {
	switch c {
	case CorruptionNone:
		return "None"
	case CorruptionStuckHigh:
		return "StuckHigh"
	case CorruptionStuckLow:
		return "StuckLow"
	case CorruptionFlip:
		return "Flip"
	default:
		return "Unknown"
	}
}

// Bits selects which bit positions of the target value a fault may land on.
type Bits int

const (
	BitsNone Bits = iota
	BitsEverywhere
	BitsMantissa
)

func (b Bits) String() string {
	switch b {
	case BitsNone:
		return "None"
	case BitsEverywhere:
		return "Everywhere"
	case BitsMantissa:
		return "Mantissa"
	default:
		return "Unknown"
	}
}

// CsimPlace selects which stage of the behavioral row computation a
// behavioral-model fault targets.
type CsimPlace int

const (
	CsimPlaceNone CsimPlace = iota
	CsimPlaceEverywhere
	CsimPlaceInputs
	CsimPlaceMultipliers
	CsimPlaceAccAdders
	CsimPlaceColumnAdders
)

func (p CsimPlace) String() string {
	switch p {
	case CsimPlaceNone:
		return "None"
	case CsimPlaceEverywhere:
		return "Everywhere"
	case CsimPlaceInputs:
		return "Inputs"
	case CsimPlaceMultipliers:
		return "Multipliers"
	case CsimPlaceAccAdders:
		return "AccAdders"
	case CsimPlaceColumnAdders:
		return "ColumnAdders"
	default:
		return "Unknown"
	}
}

// CsimFault fully describes one behavioral-model fault: where it strikes,
// how it corrupts the value, which bit range is eligible, and when it fires.
type CsimFault struct {
	ID             string
	Place          CsimPlace
	Corruption     Corruption
	Bits           Bits
	Mode           Mode
	Row            int
	BitPos         uint8
	TransientCycle int
}

// RTLFault describes a fault injected into the opaque RTL backend: a signal
// path index plus the same corruption/bits/mode axes.
type RTLFault struct {
	ID             string
	SignalIndex    int
	Corruption     Corruption
	Bits           Bits
	Mode           Mode
	BitPos         uint8
	TransientCycle int
}

// Active reports whether f should fire this cycle, given the current
// simulator cycle count.
func (f CsimFault) Active(cycle int) bool {
	switch f.Mode {
	case ModePermanent:
		return true
	case ModeTransient:
		return cycle == f.TransientCycle
	default:
		return false
	}
}

// Active reports whether f should fire this cycle, given the current
// simulator cycle count.
func (f RTLFault) Active(cycle int) bool {
	switch f.Mode {
	case ModePermanent:
		return true
	case ModeTransient:
		return cycle == f.TransientCycle
	default:
		return false
	}
}
