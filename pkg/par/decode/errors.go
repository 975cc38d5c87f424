package decode

import (
	"errors"
	"fmt"

	"github.com/ib-77/ogpar/pkg/par"
)

type Phase string

const (
	PhaseInstances  Phase = "allocate instances"
	PhaseHulls      Phase = "allocate hulls"
	PhaseInitialize Phase = "initialize"
)

var (
	ErrClosed  = errors.New("decode: decoder closed")
	ErrDropped = errors.New("decode: job dropped before it ran")
	ErrSplit   = errors.New("decode: blocks do not cover the hull")
)

// DecodeError reports the failures captured during one phase.
type DecodeError struct {
	Phase    Phase
	Failures []par.Failure
}

func (e *DecodeError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("decode: %s: %v", e.Phase, e.Failures[0])
	}
	return fmt.Sprintf("decode: %s: %d failures, first: %v", e.Phase, len(e.Failures), e.Failures[0])
}

func (e *DecodeError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
