package sequencer

import (
	"errors"
	"fmt"
)

// ErrorKind classifies operation failures.
type ErrorKind string

// ErrorKind constants for sequencer errors.
const (
	KindInvalidInput    ErrorKind = "INVALID_INPUT"
	KindDeviceNotFound  ErrorKind = "DEVICE_NOT_FOUND"
	KindTransport       ErrorKind = "TRANSPORT_ERROR"
	KindProtocolAborted ErrorKind = "PROTOCOL_ABORTED"
	KindBusy            ErrorKind = "BUSY"
)

// Sentinels matched with errors.Is against an *Error of the same kind.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrTransport       = errors.New("transport error")
	ErrProtocolAborted = errors.New("protocol aborted")
	ErrBusy            = errors.New("another device operation is in progress")
)

// NoStep marks errors not tied to a program step.
const NoStep = -1

// Error is the single failure type returned by sequencer operations.
type Error struct {
	Kind      ErrorKind
	Operation string
	// Step is the index of the failing step, or NoStep.
	Step  int
	Cause error
}

func newError(kind ErrorKind, operation string, step int, cause error) *Error {
	return &Error{Kind: kind, Operation: operation, Step: step, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Operation, e.sentinel())
	if e.Step != NoStep {
		msg = fmt.Sprintf("%s at step %d", msg, e.Step)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes the kind sentinel and the cause. An aborted upload also
// matches ErrTransport, since every abort starts with a failed write.
func (e *Error) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Kind == KindProtocolAborted {
		errs = append(errs, ErrTransport)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindDeviceNotFound:
		return ErrDeviceNotFound
	case KindTransport:
		return ErrTransport
	case KindProtocolAborted:
		return ErrProtocolAborted
	case KindBusy:
		return ErrBusy
	default:
		return errors.New(string(e.Kind))
	}
}

// KindOf returns the kind of a sequencer error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var seqErr *Error
	if errors.As(err, &seqErr) {
		return seqErr.Kind
	}
	return ""
}
