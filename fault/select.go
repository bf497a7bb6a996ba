package fault

// Rand is the minimal random source fault selection needs. Production code
// wires *rand.Rand (or any process-global generator); tests substitute a
// deterministic stub so selection outcomes are reproducible.
type Rand interface {
	Intn(n int) int
}

var corruptions = []Corruption{
	CorruptionStuckHigh,
	CorruptionStuckLow,
	CorruptionFlip,
}

var bitsChoices = []Bits{
	BitsEverywhere,
	BitsMantissa,
}

var modes = []Mode{
	ModeTransient,
	ModePermanent,
}

// drawCsimPlace draws a fault site from the weighted pool the behavioral
// row computation exposes: each of kmma multipliers and each of kmma
// accumulate-adders is one equally-weighted slot, the single column adder is
// one more slot, and the remaining slot goes to the row's input operands.
// This replaces the reference implementation's FiSetCsim bucket scheme, which
// derived the same intent (Multipliers and AccAdders overwhelmingly likely,
// ColumnAdders rare, Inputs rarer still) from an integer-truncated
// RAND_MAX/(2*Kmma+1) fraction — a scheme whose leftover-to-Inputs share
// depended on RAND_MAX's remainder rather than a chosen weight. Never
// resolves to CsimPlaceEverywhere; that value is a caller sentinel, not a
// fault site.
func drawCsimPlace(rng Rand, kmma int) CsimPlace {
	kmma = max1(kmma)
	total := 2*kmma + 2
	n := rng.Intn(total)
	switch {
	case n < kmma:
		return CsimPlaceMultipliers
	case n < 2*kmma:
		return CsimPlaceAccAdders
	case n < 2*kmma+1:
		return CsimPlaceColumnAdders
	default:
		return CsimPlaceInputs
	}
}

// RandomCsimFault draws a random behavioral-model fault. kmma weights the
// place draw (see drawCsimPlace); mantissaBits and totalBits bound bitPos
// depending on the drawn Bits value; rowCount bounds the target row;
// transientCycleWindow bounds the draw for a Transient fault's firing cycle.
func RandomCsimFault(rng Rand, id string, kmma, rowCount, mantissaBits, totalBits, transientCycleWindow int) CsimFault {
	f := CsimFault{
		ID:         id,
		Place:      drawCsimPlace(rng, kmma),
		Corruption: corruptions[rng.Intn(len(corruptions))],
		Bits:       bitsChoices[rng.Intn(len(bitsChoices))],
		Mode:       modes[rng.Intn(len(modes))],
		Row:        rng.Intn(max1(rowCount)),
	}
	f.BitPos = drawBitPos(rng, f.Bits, mantissaBits, totalBits)
	if f.Mode == ModeTransient {
		f.TransientCycle = rng.Intn(max1(transientCycleWindow))
	}
	return f
}

// RandomRTLFault draws a uniformly random RTL-backend fault targeting one of
// signalCount opaque signal paths.
func RandomRTLFault(rng Rand, id string, signalCount, mantissaBits, totalBits, transientCycleWindow int) RTLFault {
	f := RTLFault{
		ID:          id,
		SignalIndex: rng.Intn(max1(signalCount)),
		Corruption:  corruptions[rng.Intn(len(corruptions))],
		Bits:        bitsChoices[rng.Intn(len(bitsChoices))],
		Mode:        modes[rng.Intn(len(modes))],
	}
	f.BitPos = drawBitPos(rng, f.Bits, mantissaBits, totalBits)
	if f.Mode == ModeTransient {
		f.TransientCycle = rng.Intn(max1(transientCycleWindow))
	}
	return f
}

func drawBitPos(rng Rand, b Bits, mantissaBits, totalBits int) uint8 {
	switch b {
	case BitsMantissa:
		return uint8(rng.Intn(max1(mantissaBits)))
	case BitsEverywhere:
		return uint8(rng.Intn(max1(totalBits)))
	default:
		return 0
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
