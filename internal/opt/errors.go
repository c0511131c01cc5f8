package opt

import (
	"errors"
	"fmt"
)

// Kind classifies optimizer failures.
type Kind string

const (
	KindInputValidation      Kind = "InputValidationError"
	KindDataAvailability     Kind = "DataAvailabilityError"
	KindConstraintInfeasible Kind = "ConstraintInfeasibleError"
	KindComputationTimeout   Kind = "ComputationTimeoutError"
	KindAlgorithm            Kind = "AlgorithmError"
)

func (k Kind) Error() string { return string(k) }

// Sentinels for errors.Is checks, e.g. errors.Is(err, opt.ErrDataAvailability).
var (
	ErrInputValidation      error = KindInputValidation
	ErrDataAvailability     error = KindDataAvailability
	ErrConstraintInfeasible error = KindConstraintInfeasible
	ErrComputationTimeout   error = KindComputationTimeout
	ErrAlgorithm            error = KindAlgorithm
)

// Error is the typed error returned by the pipeline.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := string(e.Kind)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare Kind so callers can test categories without unwrapping.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}
