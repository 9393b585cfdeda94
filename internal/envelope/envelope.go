// ABOUTME: ResultEnvelope, the gateway's sole output contract
// ABOUTME: Maps pipeline outcomes to statuses, exit codes, and JSON on stdout

package envelope

import (
	"encoding/json"
	"fmt"
	"io"
)

// Status is the enumerated outcome of one gateway invocation.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDenied   Status = "denied"
	StatusInvalid  Status = "invalid_request"
	StatusNotFound Status = "not_found"
	StatusInternal Status = "internal_error"
	StatusTimeout  Status = "timeout"
)

// Code returns the numeric code for a status. The process exit code is the
// same value, so callers can script against either.
func (s Status) Code() int {
	switch s {
	case StatusOK:
		return 0
	case StatusDenied:
		return 1
	case StatusInvalid:
		return 2
	case StatusNotFound:
		return 3
	case StatusInternal:
		return 4
	case StatusTimeout:
		return 5
	default:
		return 4
	}
}

// Envelope is the uniform success/failure wrapper returned to the caller.
// It is created exactly once per invocation and never mutated afterwards.
type Envelope struct {
	Status  Status `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Payload any    `json:"payload"`
}

// New creates an envelope for the given status and message.
func New(status Status, message string) *Envelope {
	return &Envelope{Status: status, Code: status.Code(), Message: message}
}

// Newf creates an envelope with a formatted message.
func Newf(status Status, format string, args ...any) *Envelope {
	return New(status, fmt.Sprintf(format, args...))
}

// Success creates an ok envelope carrying a structured payload.
func Success(message string, payload any) *Envelope {
	e := New(StatusOK, message)
	e.Payload = payload
	return e
}

// Write serializes the envelope as a single JSON document to w.
func (e *Envelope) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(e); err != nil {
		return fmt.Errorf("writing envelope: %w", err)
	}
	return nil
}
