package aion

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies a SimError per the taxonomy in spec.md §7.
type ErrorKind int

const (
	// KindUserInput errors are recoverable and the simulation continues.
	// Failed assertions are reported via TakeDiagnostics. Division or
	// modulo by zero evaluates to all-X without a diagnostic, and an
	// unknown name passed to SignalValue is reported only by its
	// boolean result.
	KindUserInput ErrorKind = iota
	// KindModelExhaustion errors are fatal: delta-cycle overflow,
	// suspended-process storms, infinite zero-time forever loops.
	KindModelExhaustion
	// KindWaveformIO errors are fatal for waveform recording only; the
	// simulation itself continues running without a waveform.
	KindWaveformIO
	// KindInternal errors indicate a kernel bug: an event at a past
	// time, an unknown SimSignalId, malformed IR.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindUserInput:
		return "user-input"
	case KindModelExhaustion:
		return "model-exhaustion"
	case KindWaveformIO:
		return "waveform-io"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind latch the kernel's fatal
// flag and make subsequent StepDelta/RunUntil calls no-ops.
func (k ErrorKind) Fatal() bool {
	return k == KindModelExhaustion || k == KindInternal
}

// SimError is the kernel's error type. It wraps an underlying cause
// while recording which taxonomy bucket (ErrorKind) it belongs to, so
// callers can both errors.Is/As against the cause and switch on Kind.
type SimError struct {
	Kind ErrorKind
	Err  error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *SimError) Unwrap() error { return e.Err }

func newSimError(kind ErrorKind, format string, args ...interface{}) *SimError {
	return &SimError{Kind: kind, Err: errors.Errorf(format, args...)}
}

func wrapSimError(kind ErrorKind, err error, msg string) *SimError {
	return &SimError{Kind: kind, Err: errors.Wrap(err, msg)}
}

// Diagnostic is a recoverable KindUserInput or KindWaveformIO condition
// surfaced through TakeDiagnostics rather than aborting the run.
type Diagnostic struct {
	Time    SimTime
	Kind    ErrorKind
	Message string
}

// Sentinel errors for conditions callers may want to test with
// errors.Is, mirroring the discrete SimError variants of
// original_source/crates/aion_sim/src/error.rs.
var (
	ErrNoTopModule   = errors.New("design has no top-level module")
	ErrDivisionByZero = errors.New("division by zero")
)

// ErrModuleNotFound reports that moduleID was referenced but does not
// exist in the design.
func ErrModuleNotFound(moduleID int) error {
	return errors.Errorf("module with ID %d not found in design", moduleID)
}
