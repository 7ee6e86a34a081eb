package errors

import "fmt"

// Error is a domain error carrying a machine-readable code and
// structured metadata describing the offending inputs.
type Error struct {
	// Code identifies the failure class.
	Code Code
	// Message is the developer-facing description.
	Message string
	// Metadata carries structured context (asset key, price, identity).
	Metadata map[string]string
	// Cause is the wrapped underlying error, if any.
	Cause error
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error wrapping an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is a domain error with the same code.
// This lets sentinel errors compare equal to metadata-carrying copies.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// WithMetadata returns a copy of the error with the given metadata merged in.
// The receiver is not mutated, so package-level sentinels stay clean.
func (e *Error) WithMetadata(metadata map[string]string) *Error {
	if e == nil {
		return nil
	}
	merged := make(map[string]string, len(e.Metadata)+len(metadata))
	for k, v := range e.Metadata {
		merged[k] = v
	}
	for k, v := range metadata {
		merged[k] = v
	}
	return &Error{Code: e.Code, Message: e.Message, Metadata: merged, Cause: e.Cause}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	if e == nil {
		return nil
	}
	return &Error{Code: e.Code, Message: e.Message, Metadata: e.Metadata, Cause: cause}
}
