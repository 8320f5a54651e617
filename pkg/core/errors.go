// Package core holds the shared error taxonomy for the interview client.
package core

import (
	"fmt"
)

// Error represents a classified client error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrAcquisition is a camera/microphone acquisition failure. Non-fatal:
	// the session proceeds with degraded media.
	ErrAcquisition ErrorType = "acquisition_error"
	// ErrChannel is a duplex channel connect failure or unexpected close.
	// Non-fatal to already-captured state; no automatic retry.
	ErrChannel ErrorType = "channel_error"
	// ErrProtocol is an unknown or malformed inbound message. The frame is
	// discarded without state mutation.
	ErrProtocol ErrorType = "protocol_error"
	// ErrCapture is a speech-capture failure; the turn can be re-attempted.
	ErrCapture ErrorType = "capture_error"
	// ErrInvalidRequest is a caller mistake (bad argument, wrong state).
	ErrInvalidRequest ErrorType = "invalid_request_error"
)

// NewAcquisitionError creates a media acquisition error.
func NewAcquisitionError(message string, cause error) *Error {
	return &Error{Type: ErrAcquisition, Message: message, Cause: cause}
}

// NewChannelError creates a duplex channel error.
func NewChannelError(message string, cause error) *Error {
	return &Error{Type: ErrChannel, Message: message, Cause: cause}
}

// NewProtocolError creates a protocol error.
func NewProtocolError(message string) *Error {
	return &Error{Type: ErrProtocol, Message: message}
}

// NewCaptureError creates a speech-capture error.
func NewCaptureError(message string, cause error) *Error {
	return &Error{Type: ErrCapture, Message: message, Cause: cause}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// IsFatal reports whether an error of this type ends the session on its own.
// Per the failure semantics, none of the client error classes do.
func (e *Error) IsFatal() bool {
	return false
}
