// Command sasctl drives the systolic array simulator from the command
// line: dispatch a GEMM against randomly generated matrices, optionally
// under an injected fault, and report the result.
package main

import (
	"fmt"
	"math/rand"
	"os"

	"github.com/go-logr/funcr"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"systolicarraysim/config"
	"systolicarraysim/diag"
	"systolicarraysim/fault"
	"systolicarraysim/pipeline"
	"systolicarraysim/rtl"
	"systolicarraysim/sasim"
	"systolicarraysim/testutil"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "sasctl",
		Short: "Drive the systolic-array MMA behavioral simulator",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose diagnostics")

	root.AddCommand(newRunCmd(&verbose))
	root.AddCommand(newInjectCmd(&verbose))
	return root
}

func newRunCmd(verbose *bool) *cobra.Command {
	var m, n, k int64
	var seed int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch and execute a GEMM against random matrices",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.DefaultOptions()
			opts.Verbose = *verbose
			opts.MustValidate()

			d := newDiagnostics(opts)
			rng := rand.New(rand.NewSource(seed))

			a := testutil.RandomMatrix(rng, int(m), int(k), -8, 8, 0.05)
			b := testutil.RandomMatrix(rng, int(k), int(n), -8, 8, 0.05)
			c := &pipeline.Matrix{Data: make([]float64, m*n), Rows: int(m), Cols: int(n)}

			backend := rtl.NewCsimBackend(opts.Pipeline.Mmma, opts.Pipeline.Kmma, opts.Pipeline.Nmma, rng)
			sim := sasim.New(opts.Pipeline, backend, rng, d)

			if err := sim.DispatchTile(a, b, c, int(k)); err != nil {
				return err
			}
			if err := sim.ExecCsim(0); err != nil {
				return err
			}

			d.DumpMatrix("A", a)
			d.DumpMatrix("B", b)
			d.DumpMatrix("C", c)
			fmt.Printf("computed %dx%d result, error detected: %v\n", c.Rows, c.Cols, sim.ErrorDetected())
			return nil
		},
	}
	cmd.Flags().Int64Var(&m, "m", 32, "GEMM M dimension")
	cmd.Flags().Int64Var(&n, "n", 32, "GEMM N dimension")
	cmd.Flags().Int64Var(&k, "k", 8, "GEMM K dimension")
	cmd.Flags().Int64Var(&seed, "seed", 1, "PRNG seed")
	return cmd
}

func newInjectCmd(verbose *bool) *cobra.Command {
	var mode, corruption, bits, place string
	var seed int64

	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Run one MMA job under an injected behavioral fault and report ErrorDetected",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.DefaultOptions()
			opts.Verbose = *verbose
			opts.Fault = config.FaultEnvironment{Mode: mode, Corruption: corruption, Bits: bits, Place: place}
			if err := opts.Validate(); err != nil {
				return err
			}

			d := newDiagnostics(opts)
			rng := rand.New(rand.NewSource(seed))

			cfg := opts.Pipeline
			a := testutil.RandomMatrix(rng, cfg.Mmma, cfg.Kmma, -8, 8, 0)
			b := testutil.RandomMatrix(rng, cfg.Kmma, cfg.Nmma, -8, 8, 0)
			c := &pipeline.Matrix{Data: make([]float64, cfg.Mmma*cfg.Nmma), Rows: cfg.Mmma, Cols: cfg.Nmma}

			backend := rtl.NewCsimBackend(cfg.Mmma, cfg.Kmma, cfg.Nmma, rng)
			sim := sasim.New(cfg, backend, rng, d)

			if opts.ResolveMode() != fault.ModeNone {
				sim.FiSetCsim(fault.CsimFault{
					ID:         diag.NewID(),
					Place:      opts.ResolvePlace(),
					Corruption: opts.ResolveCorruption(),
					Bits:       opts.ResolveBits(),
					Mode:       opts.ResolveMode(),
					Row:        0,
				})
			}

			if err := sim.DispatchMma(a, b, c, 0, 0, 0, 0, 0, 0); err != nil {
				return err
			}
			if err := sim.ExecCsim(0); err != nil {
				return err
			}

			d.DumpMatrix("C", c)
			fmt.Printf("error detected: %v\n", sim.ErrorDetected())
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "none", "fault mode: none|transient|permanent")
	cmd.Flags().StringVar(&corruption, "corruption", "none", "corruption: none|stuck-high|stuck-low|flip")
	cmd.Flags().StringVar(&bits, "bits", "none", "bits: none|everywhere|mantissa")
	cmd.Flags().StringVar(&place, "place", "none", "place: none|everywhere|inputs|multipliers|acc-adders|column-adders")
	cmd.Flags().Int64Var(&seed, "seed", 1, "PRNG seed")
	return cmd
}

func newDiagnostics(opts config.Options) *diag.Diagnostics {
	log := funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, prefix, args)
	}, funcr.Options{})
	var l logr.Logger = log
	return diag.New(l, opts.Verbose)
}
