package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for invalid generator input. Every error returned by this
// package wraps one of these, usually inside an *InputError.
var (
	ErrInvalidResolution   = errors.New("invalid resolution")
	ErrInvalidBoundingBox  = errors.New("invalid bounding box")
	ErrTypeMismatch        = errors.New("level type mismatch")
	ErrNegativeStdDev      = errors.New("negative standard deviation")
	ErrInvalidAxis         = errors.New("invalid axis")
	ErrDuplicateLevel      = errors.New("duplicate level")
	ErrInvalidLeadIndex    = errors.New("invalid lead index")
	ErrUnknownPerturbation = errors.New("unknown perturbation")
	ErrUnknownBiasPolicy   = errors.New("unknown bias policy")
	ErrInvalidTropopause   = errors.New("invalid tropopause")
)

// InputError identifies the input that violated a constraint.
type InputError struct {
	Field string
	Value any
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s=%v", e.Err, e.Field, e.Value)
}

func (e *InputError) Unwrap() error { return e.Err }

func inputError(err error, field string, value any) error {
	return &InputError{Field: field, Value: value, Err: err}
}

// IsInputError reports whether err was caused by invalid generator input
// rather than an internal failure.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
