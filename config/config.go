// Package config holds the host-side options a simulation run is
// configured from: array geometry overrides and the fault-environment
// selection knobs a caller would otherwise populate from a command line or
// environment variables. It follows the teacher's config-loader idiom of a
// flat options struct validated once, panicking on combinations that can
// never produce a runnable simulation.
package config

import (
	"fmt"

	"systolicarraysim/fault"
	"systolicarraysim/pipeline"
)

// FaultEnvironment names the closed set of fault-mode/corruption/bits/place
// strings a host configuration selects from. It is for reference only: the
// core fault package works in terms of the fault.Mode/Corruption/Bits/
// CsimPlace enums directly, and never parses these strings itself.
type FaultEnvironment struct {
	Mode       string
	Corruption string
	Bits       string
	Place      string
}

var (
	validModes       = map[string]fault.Mode{"none": fault.ModeNone, "transient": fault.ModeTransient, "permanent": fault.ModePermanent}
	validCorruptions = map[string]fault.Corruption{"none": fault.CorruptionNone, "stuck-high": fault.CorruptionStuckHigh, "stuck-low": fault.CorruptionStuckLow, "flip": fault.CorruptionFlip}
	validBits        = map[string]fault.Bits{"none": fault.BitsNone, "everywhere": fault.BitsEverywhere, "mantissa": fault.BitsMantissa}
	validPlaces      = map[string]fault.CsimPlace{
		"none": fault.CsimPlaceNone, "everywhere": fault.CsimPlaceEverywhere,
		"inputs": fault.CsimPlaceInputs, "multipliers": fault.CsimPlaceMultipliers,
		"acc-adders": fault.CsimPlaceAccAdders, "column-adders": fault.CsimPlaceColumnAdders,
	}
)

// Options is the full set of host-configurable knobs for a run.
type Options struct {
	Pipeline pipeline.Config
	Fault    FaultEnvironment
	Verbose  bool
}

// DefaultOptions returns the reference array geometry with fault injection
// disabled.
func DefaultOptions() Options {
	return Options{
		Pipeline: pipeline.DefaultConfig(),
		Fault:    FaultEnvironment{Mode: "none", Corruption: "none", Bits: "none", Place: "none"},
	}
}

// Error reports an invalid configuration.
type Error struct {
	Field string
	Msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// Validate checks Options for internal consistency, returning an *Error on
// the first problem found. Callers that treat configuration mistakes as
// unrecoverable (e.g. the cmd/sasctl entry point) may panic on a non-nil
// result rather than propagate it, matching the teacher's own
// command-line-validator idiom.
func (o Options) Validate() error {
	if err := o.Pipeline.Validate(); err != nil {
		return &Error{Field: "Pipeline", Msg: err.Error()}
	}

	fe := o.Fault
	if _, ok := validModes[fe.Mode]; !ok {
		return &Error{Field: "Fault.Mode", Msg: fmt.Sprintf("unknown mode %q", fe.Mode)}
	}
	if _, ok := validCorruptions[fe.Corruption]; !ok {
		return &Error{Field: "Fault.Corruption", Msg: fmt.Sprintf("unknown corruption %q", fe.Corruption)}
	}
	if _, ok := validBits[fe.Bits]; !ok {
		return &Error{Field: "Fault.Bits", Msg: fmt.Sprintf("unknown bits %q", fe.Bits)}
	}
	if _, ok := validPlaces[fe.Place]; !ok {
		return &Error{Field: "Fault.Place", Msg: fmt.Sprintf("unknown place %q", fe.Place)}
	}
	if fe.Mode != "none" && fe.Place == "none" {
		return &Error{Field: "Fault.Place", Msg: "a fault mode was selected but no place was given"}
	}
	return nil
}

// ResolveMode looks up the fault.Mode named by o.Fault.Mode. Callers should
// only rely on this after Validate has passed.
func (o Options) ResolveMode() fault.Mode { return validModes[o.Fault.Mode] }

// ResolveCorruption looks up the fault.Corruption named by o.Fault.Corruption.
func (o Options) ResolveCorruption() fault.Corruption { return validCorruptions[o.Fault.Corruption] }

// ResolveBits looks up the fault.Bits named by o.Fault.Bits.
func (o Options) ResolveBits() fault.Bits { return validBits[o.Fault.Bits] }

// ResolvePlace looks up the fault.CsimPlace named by o.Fault.Place.
func (o Options) ResolvePlace() fault.CsimPlace { return validPlaces[o.Fault.Place] }

// MustValidate panics if o is invalid, in the teacher's
// command-line-validator style of treating a bad configuration as a
// programmer/operator error rather than a recoverable one.
func (o Options) MustValidate() {
	if err := o.Validate(); err != nil {
		panic(err)
	}
}
