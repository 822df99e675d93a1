package reconcile

import (
	"context"
	"errors"
)

var (
	// ErrDeviceUnreachable means the device could not be contacted (dial failure, timeout,
	// server error or an open circuit breaker).
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrDeviceAuth means the device rejected the session credentials.
	ErrDeviceAuth = errors.New("device authentication failed")

	// ErrDeviceProtocol means the device answered with a payload that does not have the
	// expected shape.
	ErrDeviceProtocol = errors.New("device protocol error")

	// ErrDuplicateExternalID means the store already holds a row for the external id.
	ErrDuplicateExternalID = errors.New("duplicate external id")

	// ErrNotFound means no store row matched.
	ErrNotFound = errors.New("record not found")
)

// Class groups errors by how a pass reacts to them.
type Class int

const (
	// ClassRecord affects a single record; the type continues.
	ClassRecord Class = iota
	// ClassTransport aborts the pass.
	ClassTransport
	// ClassShape fails the type; the pass follows the configured Policy.
	ClassShape
	// ClassStore aborts the pass.
	ClassStore
)

func (c Class) String() string {
	switch c {
	case ClassTransport:
		return "transport"
	case ClassShape:
		return "shape"
	case ClassStore:
		return "store"
	default:
		return "record"
	}
}

// Classify maps a type level error onto its Class.
// Errors that carry no device sentinel are treated as store failures.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassRecord
	case errors.Is(err, ErrDeviceUnreachable), errors.Is(err, ErrDeviceAuth):
		return ClassTransport
	case errors.Is(err, ErrDeviceProtocol):
		return ClassShape
	case errors.Is(err, ErrDuplicateExternalID), errors.Is(err, ErrNotFound):
		return ClassRecord
	default:
		return ClassStore
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
