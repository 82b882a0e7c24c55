// Package simerr holds the error kinds shared by the simulator packages.
//
// Every kind carries enough expected-vs-actual detail to diagnose a failed run
// without re-running it. Match by kind with errors.Is against the sentinels, or
// pull the detail out with errors.As.
package simerr

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrConfig          = errors.New("config error")
	ErrReproducibility = errors.New("reproducibility error")
	ErrInvalidState    = errors.New("invalid state")
	ErrDataGap         = errors.New("data gap")
	ErrShape           = errors.New("shape mismatch")
)

// ConfigError reports missing or invalid configuration or input columns.
// It is fatal and never retried.
type ConfigError struct {
	Field    string
	Expected string
	Actual   string
	Msg      string
}

func (e *ConfigError) Error() string {
	s := "config error"
	if e.Field != "" {
		s += ": " + e.Field
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Expected != "" || e.Actual != "" {
		s += fmt.Sprintf(" (expected %s, got %s)", e.Expected, e.Actual)
	}
	return s
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// Configf builds a ConfigError for field with a formatted message.
func Configf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ReproducibilityError reports that a fitted artifact disagrees with the live
// feature pipeline.
type ReproducibilityError struct {
	What     string
	Expected any
	Actual   any
}

func (e *ReproducibilityError) Error() string {
	return fmt.Sprintf("reproducibility error: %s: expected %v, got %v", e.What, e.Expected, e.Actual)
}

func (e *ReproducibilityError) Is(target error) bool { return target == ErrReproducibility }

// InvalidStateError reports an operation attempted in the wrong lifecycle state.
type InvalidStateError struct {
	Op    string
	State string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state: %s not allowed in state %s", e.Op, e.State)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// ShapeError reports an input of the wrong length or width.
type ShapeError struct {
	What     string
	Expected int
	Actual   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: %s: expected %d, got %d", e.What, e.Expected, e.Actual)
}

func (e *ShapeError) Is(target error) bool { return target == ErrShape }

// DataGapWarning marks a missing or NaN price at one step. It is recovered
// locally by the engines and surfaced to the caller, not returned as a failure.
type DataGapWarning struct {
	Index int
	Time  time.Time
	Asset string
}

func (w DataGapWarning) Error() string {
	if w.Time.IsZero() {
		return fmt.Sprintf("data gap: %s at index %d", w.Asset, w.Index)
	}
	return fmt.Sprintf("data gap: %s at index %d (%s)", w.Asset, w.Index, w.Time.Format(time.RFC3339))
}

func (w DataGapWarning) Is(target error) bool { return target == ErrDataGap }
