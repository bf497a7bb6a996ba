package sasim_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"systolicarraysim/fault"
	"systolicarraysim/pipeline"
	"systolicarraysim/rtl"
	"systolicarraysim/sasim"
)

type zeroRand struct{}

func (zeroRand) Intn(n int) int { return 0 }

func newMatrix(rows, cols int) *pipeline.Matrix {
	return &pipeline.Matrix{Data: make([]float64, rows*cols), Rows: rows, Cols: cols}
}

func fillSequential(m *pipeline.Matrix) {
	for i := range m.Data {
		m.Data[i] = float64(i%7) + 1
	}
}

func expectedGemm(a, b *pipeline.Matrix, aRow, aCol, bRow, bCol, m, n, k int) *pipeline.Matrix {
	out := newMatrix(m, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for kk := 0; kk < k; kk++ {
				sum += a.At(aRow+i, aCol+kk) * b.At(bRow+kk, bCol+j)
			}
			out.Set(i, j, sum)
		}
	}
	return out
}

// fillNonzero seeds m with a distinct nonzero value per cell, standing in for
// a destination block already carrying a partial sum from an earlier K-slice.
func fillNonzero(m *pipeline.Matrix) {
	for i := range m.Data {
		m.Data[i] = float64(i%5)*0.5 + 1
	}
}

// addMatrix folds src elementwise onto dst, in place.
func addMatrix(dst, src *pipeline.Matrix) {
	for i := range dst.Data {
		dst.Data[i] += src.Data[i]
	}
}

var _ = Describe("Simulator, single MMA dispatch (S1)", func() {
	It("computes the correct dot products with no fault armed", func() {
		cfg := pipeline.DefaultConfig()
		a := newMatrix(cfg.Mmma, cfg.Kmma)
		b := newMatrix(cfg.Kmma, cfg.Nmma)
		c := newMatrix(cfg.Mmma, cfg.Nmma)
		fillSequential(a)
		fillSequential(b)
		fillNonzero(c) // a nonzero seed exercises C += A*B, not C = A*B

		want := expectedGemm(a, b, 0, 0, 0, 0, cfg.Mmma, cfg.Nmma, cfg.Kmma)
		addMatrix(want, c)

		backend := rtl.NewCsimBackend(cfg.Mmma, cfg.Kmma, cfg.Nmma, zeroRand{})
		sim := sasim.New(cfg, backend, zeroRand{}, nil)

		Expect(sim.DispatchMma(a, b, c, 0, 0, 0, 0, 0, 0)).To(Succeed())
		Expect(sim.ExecCsim(0)).To(Succeed())

		for r := 0; r < cfg.Mmma; r++ {
			for col := 0; col < cfg.Nmma; col++ {
				Expect(c.At(r, col)).To(Equal(want.At(r, col)))
			}
		}
		Expect(sim.ErrorDetected()).To(BeFalse())
	})
})

var _ = Describe("Simulator, full tile dispatch (S2)", func() {
	It("computes every Mmma×Nmma block of the tile correctly", func() {
		cfg := pipeline.DefaultConfig()
		a := newMatrix(cfg.Mtile, cfg.Kmma)
		b := newMatrix(cfg.Kmma, cfg.Ntile)
		c := newMatrix(cfg.Mtile, cfg.Ntile)
		fillSequential(a)
		fillSequential(b)

		backend := rtl.NewCsimBackend(cfg.Mmma, cfg.Kmma, cfg.Nmma, zeroRand{})
		sim := sasim.New(cfg, backend, zeroRand{}, nil)

		Expect(sim.DispatchTile(a, b, c, cfg.Kmma)).To(Succeed())
		Expect(sim.ExecCsim(0)).To(Succeed())

		want := expectedGemm(a, b, 0, 0, 0, 0, cfg.Mtile, cfg.Ntile, cfg.Kmma)
		for r := 0; r < cfg.Mtile; r++ {
			for col := 0; col < cfg.Ntile; col++ {
				Expect(c.At(r, col)).To(Equal(want.At(r, col)))
			}
		}
	})
})

var _ = Describe("Simulator, read-before-write hazard (S3)", func() {
	It("rejects a job that reads a buffer an in-flight job hasn't written back", func() {
		cfg := pipeline.DefaultConfig()
		a := newMatrix(cfg.Mmma, cfg.Kmma)
		b := newMatrix(cfg.Kmma, cfg.Nmma)
		c := newMatrix(cfg.Mmma, cfg.Nmma)

		backend := rtl.NewCsimBackend(cfg.Mmma, cfg.Kmma, cfg.Nmma, zeroRand{})
		sim := sasim.New(cfg, backend, zeroRand{}, nil)

		Expect(sim.DispatchMma(a, b, c, 0, 0, 0, 0, 0, 0)).To(Succeed())

		c2 := newMatrix(cfg.Mmma, cfg.Nmma)
		err := sim.DispatchMma(c, b, c2, 0, 0, 0, 0, 0, 0)
		Expect(err).To(HaveOccurred())
		Expect(sasim.Classify(err)).To(Equal(sasim.ErrorKindInvariant))
	})
})

var _ = Describe("Simulator, permanent behavioral fault (S4)", func() {
	It("diverges the faulted row's output from the fault-free expectation", func() {
		cfg := pipeline.DefaultConfig()
		a := newMatrix(cfg.Mmma, cfg.Kmma)
		b := newMatrix(cfg.Kmma, cfg.Nmma)
		c := newMatrix(cfg.Mmma, cfg.Nmma)
		fillSequential(a)
		fillSequential(b)
		fillNonzero(c)

		want := expectedGemm(a, b, 0, 0, 0, 0, cfg.Mmma, cfg.Nmma, cfg.Kmma)
		addMatrix(want, c)

		backend := rtl.NewCsimBackend(cfg.Mmma, cfg.Kmma, cfg.Nmma, zeroRand{})
		sim := sasim.New(cfg, backend, zeroRand{}, nil)

		sim.FiSetCsim(fault.CsimFault{
			ID: "f1", Place: fault.CsimPlaceColumnAdders,
			Corruption: fault.CorruptionStuckHigh, Bits: fault.BitsEverywhere,
			Mode: fault.ModePermanent, Row: 0, BitPos: 4,
		})

		Expect(sim.DispatchMma(a, b, c, 0, 0, 0, 0, 0, 0)).To(Succeed())
		Expect(sim.ExecCsim(0)).To(Succeed())

		for col := 0; col < cfg.Nmma; col++ {
			Expect(c.At(0, col)).NotTo(Equal(want.At(0, col)), "faulted row 0 col %d should diverge", col)
		}
		for r := 1; r < cfg.Mmma; r++ {
			for col := 0; col < cfg.Nmma; col++ {
				Expect(c.At(r, col)).To(Equal(want.At(r, col)), "unfaulted row %d col %d should match", r, col)
			}
		}
	})
})

var _ = Describe("Simulator, transient RTL fault (S5)", func() {
	It("only perturbs execution at the cycle the fault is armed to fire", func() {
		cfg := pipeline.DefaultConfig()
		cfg.SACnt = 1
		a := newMatrix(cfg.Mmma, cfg.Kmma)
		b := newMatrix(cfg.Kmma, cfg.Nmma)
		c := newMatrix(cfg.Mmma, cfg.Nmma)
		fillSequential(a)
		fillSequential(b)
		fillNonzero(c)

		want := expectedGemm(a, b, 0, 0, 0, 0, cfg.Mmma, cfg.Nmma, cfg.Kmma)
		addMatrix(want, c)

		backend := rtl.NewCsimBackend(cfg.Mmma, cfg.Kmma, cfg.Nmma, zeroRand{})
		sim := sasim.New(cfg, backend, zeroRand{}, nil)

		sim.FiSetRTL(fault.RTLFault{
			ID: "rtlf1", SignalIndex: 0, Corruption: fault.CorruptionFlip,
			Bits: fault.BitsMantissa, Mode: fault.ModeTransient,
			BitPos: 3, TransientCycle: 1_000_000, // far beyond this job's window: never fires
		})

		Expect(sim.DispatchMma(a, b, c, 0, 0, 0, 0, 0, 0)).To(Succeed())
		Expect(sim.ExecRtl(false, false)).To(Succeed())

		for r := 0; r < cfg.Mmma; r++ {
			for col := 0; col < cfg.Nmma; col++ {
				Expect(c.At(r, col)).To(Equal(want.At(r, col)), "row %d col %d", r, col)
			}
		}
	})
})

var _ = Describe("Simulator, fast-transient skip/flush (S6)", func() {
	It("produces the same result as a full cycle-by-cycle run when the fault never fires", func() {
		cfg := pipeline.DefaultConfig()
		cfg.SACnt = 1
		a := newMatrix(cfg.Mmma, cfg.Kmma)
		b := newMatrix(cfg.Kmma, cfg.Nmma)
		fillSequential(a)
		fillSequential(b)

		want := expectedGemm(a, b, 0, 0, 0, 0, cfg.Mmma, cfg.Nmma, cfg.Kmma)

		cFast := newMatrix(cfg.Mmma, cfg.Nmma)
		backendFast := rtl.NewCsimBackend(cfg.Mmma, cfg.Kmma, cfg.Nmma, zeroRand{})
		simFast := sasim.New(cfg, backendFast, zeroRand{}, nil)
		simFast.FiSetRTL(fault.RTLFault{
			ID: "far", SignalIndex: 0, Mode: fault.ModeTransient,
			Corruption: fault.CorruptionFlip, TransientCycle: 1_000_000,
		})
		Expect(simFast.DispatchMma(a, b, cFast, 0, 0, 0, 0, 0, 0)).To(Succeed())
		Expect(simFast.ExecRtl(true, false)).To(Succeed())

		for r := 0; r < cfg.Mmma; r++ {
			for col := 0; col < cfg.Nmma; col++ {
				Expect(cFast.At(r, col)).To(Equal(want.At(r, col)))
			}
		}
	})
})
