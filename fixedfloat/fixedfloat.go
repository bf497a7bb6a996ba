// Package fixedfloat implements the fixed-width, signed-mantissa floating
// point wire formats used at the systolic array's datapath boundary.
//
// Each format packs a biased exponent and a two's-complement mantissa that
// carries its own implicit leading-1 bit (for normal values only). This lets
// the hardware's signed-mantissa multiplier treat both operand signs
// uniformly instead of branching on a separate sign bit.
package fixedfloat

import (
	"fmt"
	"math"

	"systolicarraysim/bitpack"
)

// Format describes one fixed-width wire format: total bit width, exponent
// width (always biased the same way as the IEEE host type it's derived from),
// and mantissa width (including the implicit leading-1 for normals).
type Format struct {
	Name          string
	TotalBits     int
	ExponentBits  int
	MantissaBits  int
	SourceExpBits int // width of the exponent field in the host type this format is derived from
	SourceMantBits int // width of the mantissa field (excluding leading-1) in the host type
}

var (
	// NFp16 is the 20-bit format: 12-bit signed mantissa, 8-bit exponent,
	// derived from a float32 host value.
	NFp16 = Format{Name: "NFp16", TotalBits: 20, ExponentBits: 8, MantissaBits: 12, SourceExpBits: 8, SourceMantBits: 23}
	// NFp32 is the 33-bit format: 25-bit signed mantissa, 8-bit exponent,
	// derived from a float32 host value.
	NFp32 = Format{Name: "NFp32", TotalBits: 33, ExponentBits: 8, MantissaBits: 25, SourceExpBits: 8, SourceMantBits: 23}
	// NFp64 is the 65-bit format: 54-bit signed mantissa, 11-bit exponent,
	// derived from a float64 host value.
	NFp64 = Format{Name: "NFp64", TotalBits: 65, ExponentBits: 11, MantissaBits: 54, SourceExpBits: 11, SourceMantBits: 52}
)

// ByteLen returns the minimum number of bytes needed to hold f.TotalBits.
func (f Format) ByteLen() int {
	return (f.TotalBits + 7) / 8
}

func (f Format) valid() bool {
	return f == NFp16 || f == NFp32 || f == NFp64
}

// Encode packs value into f's wire format and returns the tightly-packed
// byte buffer (f.ByteLen() bytes, low bit of the mantissa at bit 0 of byte 0).
//
// NaN and Inf inputs are not given special treatment: their raw exponent and
// mantissa bits are packed as if the value were finite. This mirrors the
// accelerator's own datapath, which has no NaN/Inf semantics.
func Encode(f Format, value float64) ([]byte, error) {
	if !f.valid() {
		return nil, fmt.Errorf("fixedfloat: unsupported format width %d", f.TotalBits)
	}

	var expBits uint64
	var mantBits uint64
	var signBit uint64

	switch f.SourceExpBits {
	case 8:
		u32 := math.Float32bits(float32(value))
		signBit = uint64(u32>>31) & 1
		expBits = uint64(u32>>23) & bitmask(8)
		mantBits = uint64(u32) & bitmask(23)
	case 11:
		u64 := math.Float64bits(value)
		signBit = (u64 >> 63) & 1
		expBits = (u64 >> 52) & bitmask(11)
		mantBits = u64 & bitmask(52)
	default:
		return nil, fmt.Errorf("fixedfloat: unsupported source exponent width %d", f.SourceExpBits)
	}

	// The implicit leading-1 is folded in whenever the biased exponent field
	// is nonzero, i.e. for every value except zero and true subnormals.
	isNormal := expBits != 0

	unsignedMag := mantBits
	srcWidth := f.SourceMantBits
	if isNormal {
		unsignedMag |= 1 << f.SourceMantBits
		srcWidth++
	}

	// magBits is the room left for magnitude once one bit of MantissaBits is
	// reserved for the two's-complement sign. Formats narrower than the
	// host type keep only the top magBits bits of the source mantissa
	// (truncating toward zero); formats at least as wide keep it exactly.
	magBits := f.MantissaBits - 1
	var reducedMag uint64
	if srcWidth > magBits {
		reducedMag = unsignedMag >> uint(srcWidth-magBits)
	} else {
		reducedMag = unsignedMag << uint(magBits-srcWidth)
	}
	reducedMag &= bitmask(magBits)

	signedMantissa := int64(reducedMag)
	if signBit == 1 {
		signedMantissa = -signedMantissa
	}
	signedMantissa &= int64(bitmask(f.MantissaBits))

	out := make([]byte, f.ByteLen())
	mantBytes := uint64ToBytes(uint64(signedMantissa))
	if err := bitpack.Copy(out, 0, mantBytes, f.MantissaBits); err != nil {
		return nil, fmt.Errorf("fixedfloat: pack mantissa: %w", err)
	}

	expBytes := uint64ToBytes(expBits)
	if err := bitpack.Copy(out, f.MantissaBits, expBytes, f.ExponentBits); err != nil {
		return nil, fmt.Errorf("fixedfloat: pack exponent: %w", err)
	}

	return out, nil
}

// Decode unpacks a wire-format buffer (as produced by Encode) back into a
// float64. Whether the mantissa carries a leading-1 is inferred from a
// nonzero exponent field, and that bit is dropped when the IEEE mantissa
// field is reassembled. NaN and Inf get no special treatment here either.
func Decode(f Format, buf []byte) (float64, error) {
	if !f.valid() {
		return 0, fmt.Errorf("fixedfloat: unsupported format width %d", f.TotalBits)
	}
	if len(buf)*8 < f.TotalBits {
		return 0, fmt.Errorf("fixedfloat: source buffer too small (%d bits < %d)", len(buf)*8, f.TotalBits)
	}

	mantRaw := extractBits(buf, 0, f.MantissaBits)
	signedMant := int64(mantRaw)
	msb := int64(1) << (f.MantissaBits - 1)
	if signedMant&msb != 0 {
		signedMant |= -1 << f.MantissaBits // sign-extend to 64 bits
	}
	isNeg := signedMant < 0
	if isNeg {
		signedMant = -signedMant
	}
	reducedMag := uint64(signedMant) & bitmask(f.MantissaBits-1)

	expRaw := extractBits(buf, f.MantissaBits, f.ExponentBits)
	isNormal := expRaw != 0

	srcWidth := f.SourceMantBits
	if isNormal {
		srcWidth++
	}
	magBits := f.MantissaBits - 1

	var full uint64
	if srcWidth > magBits {
		full = reducedMag << uint(srcWidth-magBits)
	} else {
		full = reducedMag >> uint(magBits-srcWidth)
	}
	if isNormal {
		full &^= 1 << uint(f.SourceMantBits) // drop the implicit leading-1 before reassembling the field
	}

	switch f.SourceExpBits {
	case 8:
		mant23 := uint32(full) & bitmask32(f.SourceMantBits)
		var u32 uint32
		if isNeg {
			u32 |= 1 << 31
		}
		u32 |= uint32(expRaw) << 23
		u32 |= mant23
		return float64(math.Float32frombits(u32)), nil
	case 11:
		mant52 := full & bitmask(f.SourceMantBits)
		var u64 uint64
		if isNeg {
			u64 |= 1 << 63
		}
		u64 |= expRaw << 52
		u64 |= mant52
		return math.Float64frombits(u64), nil
	default:
		return 0, fmt.Errorf("fixedfloat: unsupported source exponent width %d", f.SourceExpBits)
	}
}

func bitmask(n int) uint64 {
	if n >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << n) - 1
}

func bitmask32(n int) uint32 {
	if n >= 32 {
		return math.MaxUint32
	}
	return (uint32(1) << n) - 1
}

func uint64ToBytes(v uint64) []byte {
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

// extractBits reads nBits starting at bit offset startBit from buf and
// returns them right-aligned in a uint64, via bitpack.Extract.
func extractBits(buf []byte, startBit, nBits int) uint64 {
	raw, err := bitpack.Extract(buf, startBit, nBits)
	if err != nil {
		return 0
	}
	var out uint64
	for i, b := range raw {
		out |= uint64(b) << uint(8*i)
	}
	return out
}
