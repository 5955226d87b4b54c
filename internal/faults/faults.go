// Package faults classifies the errors that cross component boundaries so
// the orchestrator and the HTTP layer can map them to retry decisions and
// status codes without inspecting error strings.
package faults

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of a Fault.
type Kind int

const (
	// KindUnknown covers errors that carry no classification.
	KindUnknown Kind = iota

	// KindInvalidInput marks request validation failures.
	KindInvalidInput

	// KindUpstreamUnavailable marks a weather or elevation provider that
	// stayed unreachable after retries.
	KindUpstreamUnavailable

	// KindResourceUnavailable marks database or cache connection exhaustion.
	KindResourceUnavailable

	// KindTimeout marks a per-request deadline expiry.
	KindTimeout

	// KindInconsistency marks internal computation failures (a kernel
	// producing NaN, a malformed matrix) that indicate a bug.
	KindInconsistency
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindUpstreamUnavailable:
		return "upstream unavailable"
	case KindResourceUnavailable:
		return "resource unavailable"
	case KindTimeout:
		return "timeout"
	case KindInconsistency:
		return "internal inconsistency"
	default:
		return "unknown"
	}
}

// FieldError carries a single field-level validation failure for 422 rendering.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Fault is an error carrying a Kind and optional field-level detail.
type Fault struct {
	Kind   Kind
	Msg    string
	Fields []FieldError
	Err    error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Msg, f.Err)
	}
	return f.Msg
}

// Unwrap exposes the wrapped cause for errors.Is and errors.As.
func (f *Fault) Unwrap() error {
	return f.Err
}

// InvalidInput creates a validation fault with field-level detail.
func InvalidInput(msg string, fields ...FieldError) *Fault {
	return &Fault{Kind: KindInvalidInput, Msg: msg, Fields: fields}
}

// UpstreamUnavailable creates a fault for an exhausted external provider.
func UpstreamUnavailable(msg string, err error) *Fault {
	return &Fault{Kind: KindUpstreamUnavailable, Msg: msg, Err: err}
}

// ResourceUnavailable creates a fault for database or cache exhaustion.
func ResourceUnavailable(msg string, err error) *Fault {
	return &Fault{Kind: KindResourceUnavailable, Msg: msg, Err: err}
}

// Timeout creates a fault for a per-request deadline expiry.
func Timeout(msg string, err error) *Fault {
	return &Fault{Kind: KindTimeout, Msg: msg, Err: err}
}

// Inconsistency creates a fault for an internal computation bug.
func Inconsistency(msg string, err error) *Fault {
	return &Fault{Kind: KindInconsistency, Msg: msg, Err: err}
}

// KindOf returns the Kind carried anywhere in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// FieldsOf returns the field-level detail carried anywhere in err's chain.
func FieldsOf(err error) []FieldError {
	var f *Fault
	if errors.As(err, &f) {
		return f.Fields
	}
	return nil
}
