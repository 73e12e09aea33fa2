package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"
)

// downloadMarker is implemented by every error type defined in this package
// except TimeoutError (a transport-level condition, not a download error) so
// callers can classify an arbitrary error chain as "one of ours" without a
// type switch per kind.
type downloadMarker interface {
	error
	isDownloadError()
}

// TransportOpenError indicates the HTTP GET used to open a stream failed
// at the transport layer (DNS, connect, TLS, non-2xx, etc).
type TransportOpenError struct {
	Op  string
	Err error
}

func (e *TransportOpenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport open error: %s", e.Op)
	}
	return fmt.Sprintf("transport open error: %s: %v", e.Op, e.Err)
}
func (e *TransportOpenError) Unwrap() error    { return e.Err }
func (e *TransportOpenError) isDownloadError() {}

// WrongMimeError indicates the server responded with a Content-Type other
// than video/x-flv.
type WrongMimeError struct {
	Op  string
	Got string
}

func (e *WrongMimeError) Error() string {
	return fmt.Sprintf("wrong mime error: %s: got %q, want video/x-flv", e.Op, e.Got)
}
func (e *WrongMimeError) isDownloadError() {}

// ShortReadError indicates fewer bytes were available than a fixed-size
// framing field required (file header, tag prefix, tag body, trailing size).
type ShortReadError struct {
	Op   string
	Want int
	Got  int
	Err  error
}

func (e *ShortReadError) Error() string {
	base := fmt.Sprintf("short read error: %s: want %d bytes, got %d", e.Op, e.Want, e.Got)
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}
func (e *ShortReadError) Unwrap() error    { return e.Err }
func (e *ShortReadError) isDownloadError() {}

// MissingMetadataError indicates fewer than two leading metadata tags were
// present, or a leading tag was not kind=0x12.
type MissingMetadataError struct {
	Op string
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("missing metadata error: %s", e.Op)
}
func (e *MissingMetadataError) isDownloadError() {}

// MissingDurationKeyError indicates the first leading metadata tag had no
// "duration" key.
type MissingDurationKeyError struct {
	Op string
}

func (e *MissingDurationKeyError) Error() string {
	return fmt.Sprintf("missing duration key error: %s", e.Op)
}
func (e *MissingDurationKeyError) isDownloadError() {}

// MissingTimeBaseKeyError indicates the second leading metadata tag had no
// "timeBase" key.
type MissingTimeBaseKeyError struct {
	Op string
}

func (e *MissingTimeBaseKeyError) Error() string {
	return fmt.Sprintf("missing timeBase key error: %s", e.Op)
}
func (e *MissingTimeBaseKeyError) isDownloadError() {}

// StopRequestedError indicates a worker observed the cancellation sentinel
// from the coordinator and terminated cooperatively. Not a bug.
type StopRequestedError struct {
	Op string
}

func (e *StopRequestedError) Error() string {
	return fmt.Sprintf("stop requested: %s", e.Op)
}
func (e *StopRequestedError) isDownloadError() {}

// TimeoutError indicates an operation exceeded a deadline or idle timeout.
// The core imposes none itself (§5); this exists for transport
// implementations that layer one on top of net/http.
type TimeoutError struct {
	Op       string
	Duration time.Duration
	Err      error
}

func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (after %s)", e.Op, e.Duration)
	if e.Err != nil {
		return base + ": " + e.Err.Error()
	}
	return base
}
func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTimeout returns true if err is (or wraps) a TimeoutError, a context
// deadline exceeded, or any error type that exposes Timeout() bool and
// returns true.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var te *TimeoutError
	if stdErrors.As(err, &te) {
		return true
	}
	if stdErrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var toErr interface{ Timeout() bool }
	if stdErrors.As(err, &toErr) && toErr.Timeout() {
		return true
	}
	return false
}

// IsDownloadError returns true if the error chain contains any error type
// defined in this package other than TimeoutError.
func IsDownloadError(err error) bool {
	if err == nil {
		return false
	}
	var dm downloadMarker
	return stdErrors.As(err, &dm)
}

// IsRetriable reports whether Keyframe-Resume (§4.4) should try an earlier
// keyframe after this error, rather than failing the part outright.
// TransportOpenError, ShortReadError and TimeoutError represent a premature
// close, a failed reconnect attempt, or a GET that never got headers back in
// time — all three are recoverable by trying the next earlier keyframe.
// WrongMimeError, MissingDurationKeyError, MissingTimeBaseKeyError and
// StopRequestedError are not: the first three indicate the server will never
// serve this stream correctly, the last is cooperative cancellation.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	var toe *TransportOpenError
	if stdErrors.As(err, &toe) {
		return true
	}
	var sre *ShortReadError
	if stdErrors.As(err, &sre) {
		return true
	}
	var te *TimeoutError
	if stdErrors.As(err, &te) {
		return true
	}
	return false
}

// Constructors (encourage contextual wrapping with %w when used by callers).
func NewTransportOpenError(op string, cause error) error {
	return &TransportOpenError{Op: op, Err: cause}
}
func NewWrongMimeError(op, got string) error { return &WrongMimeError{Op: op, Got: got} }
func NewShortReadError(op string, want, got int, cause error) error {
	return &ShortReadError{Op: op, Want: want, Got: got, Err: cause}
}
func NewMissingMetadataError(op string) error    { return &MissingMetadataError{Op: op} }
func NewMissingDurationKeyError(op string) error { return &MissingDurationKeyError{Op: op} }
func NewMissingTimeBaseKeyError(op string) error { return &MissingTimeBaseKeyError{Op: op} }
func NewStopRequestedError(op string) error      { return &StopRequestedError{Op: op} }
func NewTimeoutError(op string, d time.Duration, cause error) error {
	return &TimeoutError{Op: op, Duration: d, Err: cause}
}

// Usage pattern example:
//
//	if _, err := io.ReadFull(r, buf); err != nil {
//	    return NewShortReadError("read.tagPrefix", 11, n, err)
//	}
//
// Keep layering context with fmt.Errorf("...: %w", err).
