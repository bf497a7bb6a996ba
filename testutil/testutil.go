// Package testutil provides the matrix-generation and comparison helpers
// the reference model's own unit tests used: an exponent-range random
// double generator and a relative/absolute-difference matrix comparison
// that reports the single worst offending element rather than failing on
// the first mismatch.
package testutil

import (
	"fmt"
	"math"

	"systolicarraysim/pipeline"
)

// RandomDoubleSource is the minimal random source RandomDouble needs.
type RandomDoubleSource interface {
	Intn(n int) int
	Float64() float64
}

// RandomDouble draws a value whose unbiased power-of-two exponent is uniform
// in [expMin, expMax] and whose sign and mantissa fraction are uniform random,
// except that a fractionZero fraction of draws return exactly zero. This
// mirrors the reference unit tests' own matrix-fill generator, which
// exercises a wide dynamic range instead of clustering around 1.0 the way
// a plain uniform float generator would.
func RandomDouble(rng RandomDoubleSource, expMin, expMax int, fractionZero float64) float64 {
	if fractionZero > 0 && rng.Float64() < fractionZero {
		return 0
	}

	span := expMax - expMin + 1
	if span < 1 {
		span = 1
	}
	exp := expMin + rng.Intn(span)

	mantissa := rng.Float64() // [0,1), stands in for a uniform mantissa fraction
	sign := 1.0
	if rng.Intn(2) == 1 {
		sign = -1.0
	}

	return sign * (1 + mantissa) * math.Ldexp(1, exp)
}

// RandomMatrix fills a rows×cols matrix using RandomDouble.
func RandomMatrix(rng RandomDoubleSource, rows, cols, expMin, expMax int, fractionZero float64) *pipeline.Matrix {
	m := &pipeline.Matrix{Data: make([]float64, rows*cols), Rows: rows, Cols: cols}
	for i := range m.Data {
		m.Data[i] = RandomDouble(rng, expMin, expMax, fractionZero)
	}
	return m
}

// unitTestRelTolerance mirrors the reference model's own relative-error
// acceptance threshold for GEMM result comparisons.
const unitTestRelTolerance = 3e-10

// MatrixMismatch describes the worst offending element found by
// AssertMatrixClose.
type MatrixMismatch struct {
	Row, Col      int
	Got, Want     float64
	AbsDiff       float64
	RelDiff       float64
}

// CompareMatrices compares got and want element-by-element and returns the
// single largest-relative-error mismatch, or nil if every element is within
// unitTestRelTolerance (using absolute difference when want is zero).
func CompareMatrices(got, want *pipeline.Matrix) (*MatrixMismatch, error) {
	if got.Rows != want.Rows || got.Cols != want.Cols {
		return nil, fmt.Errorf("testutil: shape mismatch: got %dx%d, want %dx%d", got.Rows, got.Cols, want.Rows, want.Cols)
	}

	var worst *MatrixMismatch
	for r := 0; r < got.Rows; r++ {
		for c := 0; c < got.Cols; c++ {
			g, w := got.At(r, c), want.At(r, c)
			abs := math.Abs(g - w)
			rel := abs
			if w != 0 {
				rel = abs / math.Abs(w)
			}
			if rel <= unitTestRelTolerance {
				continue
			}
			if worst == nil || rel > worst.RelDiff {
				worst = &MatrixMismatch{Row: r, Col: c, Got: g, Want: w, AbsDiff: abs, RelDiff: rel}
			}
		}
	}
	return worst, nil
}

// AssertMatrixClose reports (via t.Fatalf's signature — any type providing
// Fatalf) a failure describing the worst mismatched element between got and
// want, if any exceed the acceptance tolerance.
func AssertMatrixClose(t interface{ Fatalf(string, ...interface{}) }, got, want *pipeline.Matrix) {
	mismatch, err := CompareMatrices(got, want)
	if err != nil {
		t.Fatalf("%v", err)
		return
	}
	if mismatch != nil {
		t.Fatalf("matrix mismatch at (%d,%d): got %v want %v (abs diff %v, rel diff %v)",
			mismatch.Row, mismatch.Col, mismatch.Got, mismatch.Want, mismatch.AbsDiff, mismatch.RelDiff)
	}
}
