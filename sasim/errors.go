package sasim

import (
	"errors"

	"systolicarraysim/config"
	"systolicarraysim/pipeline"
	"systolicarraysim/rtl"
)

// ErrorKind classifies an error returned from this package's operations, so
// a host program (e.g. cmd/sasctl) can report which layer failed without
// string-matching.
type ErrorKind int

const (
	ErrorKindUnknown ErrorKind = iota
	ErrorKindConfig
	ErrorKindInvariant
	ErrorKindRTL
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorKindConfig:
		return "config"
	case ErrorKindInvariant:
		return "invariant"
	case ErrorKindRTL:
		return "rtl"
	default:
		return "unknown"
	}
}

// Classify inspects err's chain and reports which subsystem raised it.
func Classify(err error) ErrorKind {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return ErrorKindConfig
	}
	var invErr *pipeline.InvariantError
	if errors.As(err, &invErr) {
		return ErrorKindInvariant
	}
	var rtlErr *rtl.Error
	if errors.As(err, &rtlErr) {
		return ErrorKindRTL
	}
	return ErrorKindUnknown
}
