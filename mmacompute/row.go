// Package mmacompute implements the behavioral ("C-model") row computation
// used both as the ExecCsim fast-path and as the fallback for the partial
// columns ExecRtl can't drive through the RTL backend.
package mmacompute

import (
	"fmt"

	"systolicarraysim/fault"
)

// Row folds the dot product of a and b (equal length, one systolic column's
// worth of a GEMM row/column pair) into acc and returns the updated
// accumulator: acc + sum(a[k]*b[k]). Callers seed acc with the destination
// matrix's current value, so repeated calls against the same (row, col)
// across dispatches accumulate C += A*B instead of overwriting it.
//
// If fi is non-nil, the caller has already determined this is the fault's
// target row for the current cycle; Row draws its own target column index k
// and applies fi's corruption at exactly one site, gated on fi.Place:
// Inputs corrupts one of the running accumulator, a[k], or b[k] before the
// multiply; Multipliers corrupts the product after the multiply; AccAdders
// corrupts the running sum right after it absorbs that product; ColumnAdders
// corrupts the final result once, after the full loop.
func Row(acc float64, a, b []float64, fi *fault.CsimFault, rng fault.Rand) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("mmacompute: row length mismatch: len(a)=%d len(b)=%d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("mmacompute: empty row")
	}

	var kFi int
	if fi != nil {
		kFi = rng.Intn(len(a))
	}

	sum := acc
	for k := 0; k < len(a); k++ {
		ak, bk := a[k], b[k]

		if fi != nil && fi.Place == fault.CsimPlaceInputs && k == kFi {
			switch rng.Intn(3) {
			case 0:
				sum = fault.Corrupt(sum, fi.Corruption, fi.BitPos)
			case 1:
				ak = fault.Corrupt(ak, fi.Corruption, fi.BitPos)
			case 2:
				bk = fault.Corrupt(bk, fi.Corruption, fi.BitPos)
			}
		}

		product := ak * bk

		if fi != nil && fi.Place == fault.CsimPlaceMultipliers && k == kFi {
			product = fault.Corrupt(product, fi.Corruption, fi.BitPos)
		}

		sum += product

		if fi != nil && fi.Place == fault.CsimPlaceAccAdders && k == kFi {
			sum = fault.Corrupt(sum, fi.Corruption, fi.BitPos)
		}
	}

	if fi != nil && fi.Place == fault.CsimPlaceColumnAdders {
		sum = fault.Corrupt(sum, fi.Corruption, fi.BitPos)
	}

	return sum, nil
}
