package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means a required credential or setting is absent.
	// No upstream call is attempted once it is detected.
	ErrConfiguration = errors.New("missing configuration")

	// ErrValidation means a required request field is absent.
	ErrValidation = errors.New("missing required field")

	// ErrNoFaceDetected: detection succeeded but returned an empty
	// landmark descriptor. Recoverable with a different image.
	ErrNoFaceDetected = errors.New("no face detected in the image")

	// ErrDetectionFailed: the detector itself reported an error.
	ErrDetectionFailed = errors.New("face detection failed")

	// ErrInvalidSession: the processing service rejected the session id,
	// e.g. it was already closed.
	ErrInvalidSession = errors.New("invalid session")

	// ErrPermissionDenied: local media capture was refused.
	ErrPermissionDenied = errors.New("media capture permission denied")

	// ErrBusy: a lifecycle operation is already in flight or a session is
	// already live. The caller must stop first.
	ErrBusy = errors.New("session operation already in flight")
)

// UpstreamError preserves the processing service's raw payload when it
// reports a non-success sentinel, even on a transport-level 200.
type UpstreamError struct {
	Op     string
	Code   int
	Detail json.RawMessage

	sentinel error
}

func NewUpstreamError(op string, code int, detail []byte, sentinel error) *UpstreamError {
	return &UpstreamError{Op: op, Code: code, Detail: detail, sentinel: sentinel}
}

func (e *UpstreamError) Error() string {
	if e.sentinel != nil {
		return fmt.Sprintf("%s: %v (upstream code %d)", e.Op, e.sentinel, e.Code)
	}
	return fmt.Sprintf("%s: upstream rejected with code %d", e.Op, e.Code)
}

func (e *UpstreamError) Unwrap() error { return e.sentinel }

// TransportError wraps a failure from the real-time transport provider.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }
