package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/google/go-cmp/cmp"

	"systolicarraysim/pipeline"
)

func newMatrix(rows, cols int) *pipeline.Matrix {
	return &pipeline.Matrix{Data: make([]float64, rows*cols), Rows: rows, Cols: cols}
}

var _ = Describe("Config timing derivations", func() {
	cfg := pipeline.DefaultConfig()

	It("orders the pipeline stage cycles monotonically", func() {
		Expect(cfg.JobCyclePassedFirstStage()).To(BeNumerically("<", cfg.JobCycleOutputStart()))
		Expect(cfg.JobCycleOutputStart()).To(BeNumerically("<", cfg.JobCycleDone()))
	})

	It("computes JobsDoneInCycles as the inverse of CyclesRequired", func() {
		for n := 1; n <= 5; n++ {
			cycles := cfg.CyclesRequired(n)
			Expect(cfg.JobsDoneInCycles(cycles)).To(Equal(n))
		}
	})

	It("matches the reference model's derived timing constants for the default 8x8x8 array", func() {
		Expect(cfg.JobCyclePassedFirstStage()).To(Equal(17))
		Expect(cfg.JobCycleOutputStart()).To(Equal(52))
		Expect(cfg.JobCycleDone()).To(Equal(66))
		Expect(cfg.CyclesRequired(16)).To(Equal(337))
	})

	It("rejects a non-multiple tile geometry", func() {
		bad := cfg
		bad.Mtile = cfg.Mmma + 1
		Expect(bad.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("Queue.Dispatch", func() {
	var (
		cfg   pipeline.Config
		queue *pipeline.Queue
		a, b, c *pipeline.Matrix
	)

	BeforeEach(func() {
		cfg = pipeline.DefaultConfig()
		queue = pipeline.NewQueue(cfg)
		a = newMatrix(cfg.Mmma, cfg.Kmma)
		b = newMatrix(cfg.Kmma, cfg.Nmma)
		c = newMatrix(cfg.Mmma, cfg.Nmma)
	})

	It("advances the dispatch cycle by JobCyclePassedFirstStage()+1 half-cycles per job", func() {
		e1, err := queue.Dispatch(pipeline.Job{ID: "j1", A: a, B: b, C: c})
		Expect(err).NotTo(HaveOccurred())
		e2, err := queue.Dispatch(pipeline.Job{ID: "j2", A: a, B: b, C: c})
		Expect(err).NotTo(HaveOccurred())
		Expect(e2.DispatchCycle - e1.DispatchCycle).To(Equal(cfg.JobCyclePassedFirstStage() + 1))
	})

	It("flags a read-before-write hazard by buffer identity", func() {
		_, err := queue.Dispatch(pipeline.Job{ID: "producer", A: a, B: b, C: c})
		Expect(err).NotTo(HaveOccurred())

		consumer := pipeline.Job{ID: "consumer", A: c, B: b, C: newMatrix(cfg.Mmma, cfg.Nmma)}
		_, err = queue.Dispatch(consumer)
		Expect(err).To(HaveOccurred())
	})

	It("does not flag a destination buffer shared with an in-flight job, since C is not in the read set", func() {
		producer := pipeline.Job{ID: "producer", A: a, B: b, C: c, CRow: 0}
		_, err := queue.Dispatch(producer)
		Expect(err).NotTo(HaveOccurred())

		other := newMatrix(cfg.Mmma, cfg.Nmma)
		consumer := pipeline.Job{ID: "consumer", A: other, B: b, C: c}
		_, err = queue.Dispatch(consumer)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects overflowing the left buffer with distinct row-slices still in their fill window", func() {
		small := cfg
		small.BufferLeftSize = 2
		small.Kmma = 1000 // fill window wide enough to span several dispatch cadences
		q := pipeline.NewQueue(small)

		for i := 0; i < small.BufferLeftSize; i++ {
			job := pipeline.Job{ID: "j", A: a, ARow: i * cfg.Mmma, B: newMatrix(cfg.Kmma, cfg.Nmma), C: newMatrix(cfg.Mmma, cfg.Nmma)}
			_, err := q.Dispatch(job)
			Expect(err).NotTo(HaveOccurred())
		}
		overflow := pipeline.Job{ID: "overflow", A: a, ARow: small.BufferLeftSize * cfg.Mmma, B: newMatrix(cfg.Kmma, cfg.Nmma), C: newMatrix(cfg.Mmma, cfg.Nmma)}
		_, err := q.Dispatch(overflow)
		Expect(err).To(HaveOccurred())
	})

	It("does not count a row-slice once it has aged out of its fill window", func() {
		small := cfg
		small.BufferLeftSize = 1
		small.Kmma = 2 // fill window (2 half-cycles) ends well before the next dispatch
		q := pipeline.NewQueue(small)

		_, err := q.Dispatch(pipeline.Job{ID: "j1", A: a, ARow: 0, B: newMatrix(cfg.Kmma, cfg.Nmma), C: newMatrix(cfg.Mmma, cfg.Nmma)})
		Expect(err).NotTo(HaveOccurred())

		// j1's row-slice has already cleared its fill window by the time j2
		// dispatches, so a second distinct row-slice does not overflow a
		// buffer sized for only one concurrent slice.
		_, err = q.Dispatch(pipeline.Job{ID: "j2", A: a, ARow: cfg.Mmma, B: newMatrix(cfg.Kmma, cfg.Nmma), C: newMatrix(cfg.Mmma, cfg.Nmma)})
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Queue.DispatchTile", func() {
	It("dispatches Mtile/Mmma * Ntile/Nmma jobs per K-slice", func() {
		cfg := pipeline.DefaultConfig()
		queue := pipeline.NewQueue(cfg)
		a := newMatrix(cfg.Mtile, cfg.Kmma)
		b := newMatrix(cfg.Kmma, cfg.Ntile)
		c := newMatrix(cfg.Mtile, cfg.Ntile)

		entries, err := queue.DispatchTile(a, b, c, cfg.Kmma)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen((cfg.Mtile / cfg.Mmma) * (cfg.Ntile / cfg.Nmma)))
	})

	It("handles a K remainder with a narrower final slice", func() {
		cfg := pipeline.DefaultConfig()
		queue := pipeline.NewQueue(cfg)
		k := cfg.Kmma + cfg.Kmma/2
		a := newMatrix(cfg.Mtile, k)
		b := newMatrix(k, cfg.Ntile)
		c := newMatrix(cfg.Mtile, cfg.Ntile)

		entries, err := queue.DispatchTile(a, b, c, k)
		Expect(err).NotTo(HaveOccurred())
		perSlice := (cfg.Mtile / cfg.Mmma) * (cfg.Ntile / cfg.Nmma)
		Expect(len(entries)).To(Equal(perSlice * 2))
	})
})

var _ = Describe("Queue.Retire", func() {
	It("retires only entries whose DoneAt has elapsed", func() {
		cfg := pipeline.DefaultConfig()
		queue := pipeline.NewQueue(cfg)
		a := newMatrix(cfg.Mmma, cfg.Kmma)
		b := newMatrix(cfg.Kmma, cfg.Nmma)
		c := newMatrix(cfg.Mmma, cfg.Nmma)

		entry, err := queue.Dispatch(pipeline.Job{ID: "j1", A: a, B: b, C: c})
		Expect(err).NotTo(HaveOccurred())

		Expect(queue.Retire(entry.DoneAt(cfg) - 1)).To(BeEmpty())
		retired := queue.Retire(entry.DoneAt(cfg))
		Expect(retired).To(HaveLen(1))
		Expect(cmp.Equal(retired[0].Job.ID, "j1")).To(BeTrue())
		Expect(queue.Len()).To(Equal(0))
	})
})
