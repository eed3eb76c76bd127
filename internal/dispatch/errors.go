package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrUnsupported = errors.New("not supported by provider")
	ErrNotImage    = errors.New("attachment must be a jpg, jpeg or png image")
)

// ErrorKind classifies a send failure.
type ErrorKind string

const (
	KindTransport        ErrorKind = "transport"
	KindTimeout          ErrorKind = "timeout"
	KindProvider         ErrorKind = "provider"
	KindInvalidRecipient ErrorKind = "invalid_recipient"
	KindUnsupported      ErrorKind = "unsupported"
	KindDecode           ErrorKind = "decode"
	KindRender           ErrorKind = "render"
)

// SendError is a per-recipient failure. It is recorded, never fatal.
type SendError struct {
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("send failed (%s, HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("send failed (%s): %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// UploadError means a shared attachment could not be uploaded. Every send of
// the batch depends on it, so it is fatal for the batch.
type UploadError struct {
	Provider   string
	Filename   string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upload %s to %s failed (HTTP %d): %v", e.Filename, e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upload %s to %s failed: %v", e.Filename, e.Provider, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// StatusError is a non-2xx reply from a provider.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Status, e.Body)
}

// NewSendError wraps err with an explicit kind.
func NewSendError(kind ErrorKind, err error) *SendError {
	return &SendError{Kind: kind, Err: err}
}

// AsSendError classifies err. An existing *SendError is returned as is.
func AsSendError(err error) *SendError {
	if err == nil {
		return nil
	}
	var se *SendError
	if errors.As(err, &se) {
		return se
	}
	var st *StatusError
	if errors.As(err, &st) {
		return &SendError{Kind: KindProvider, StatusCode: st.StatusCode, Body: st.Body, Err: err}
	}
	if errors.Is(err, ErrUnsupported) {
		return &SendError{Kind: KindUnsupported, Err: err}
	}
	if isTimeout(err) {
		return &SendError{Kind: KindTimeout, Err: err}
	}
	return &SendError{Kind: KindTransport, Err: err}
}

// NewUploadError wraps err, keeping the HTTP status when there is one.
func NewUploadError(provider, filename string, err error) *UploadError {
	ue := &UploadError{Provider: provider, Filename: filename, Err: err}
	var st *StatusError
	if errors.As(err, &st) {
		ue.StatusCode = st.StatusCode
	}
	return ue
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
