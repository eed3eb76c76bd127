// Package dispatch defines the provider-neutral send contract. Provider
// packages implement Client; the batch dispatcher only ever talks to it.
package dispatch

import (
	"context"
	"errors"
	"time"

	"parent-messenger/internal/roster"
)

// Client sends messages through one provider account.
//
// Send methods never return an error: provider, network and timeout failures
// come back as a Result with Succeeded false and Err set to a *SendError.
// UploadAttachment fails with *UploadError.
type Client interface {
	Name() string
	SendText(ctx context.Context, phone, body string) Result
	SendAttachment(ctx context.Context, phone, body string, ref AttachmentRef) Result
	UploadAttachment(ctx context.Context, a Attachment) (AttachmentRef, error)
}

// AttachmentRef is the provider's handle for an uploaded file.
type AttachmentRef struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	MimeType string `json:"mime_type"`
}

// Result is the outcome of one send attempt.
type Result struct {
	RecipientID string        `json:"recipient_id"`
	Name        string        `json:"name,omitempty"`
	Phone       string        `json:"phone"`
	Provider    string        `json:"provider,omitempty"`
	Succeeded   bool          `json:"succeeded"`
	StatusCode  int           `json:"status_code,omitempty"`
	MessageID   string        `json:"message_id,omitempty"`
	Response    string        `json:"response,omitempty"`
	Err         error         `json:"-"`
	Duration    time.Duration `json:"duration"`
}

// Sent builds a successful result.
func Sent(provider, phone string, status int, messageID, response string) Result {
	return Result{
		Provider:   provider,
		Phone:      phone,
		Succeeded:  true,
		StatusCode: status,
		MessageID:  messageID,
		Response:   response,
	}
}

// Failed builds a failed result. err is converted to a *SendError.
func Failed(provider, phone string, err error) Result {
	if err == nil {
		err = errors.New("unknown failure")
	}
	se := AsSendError(err)
	return Result{
		Provider:   provider,
		Phone:      phone,
		StatusCode: se.StatusCode,
		Response:   se.Body,
		Err:        se,
	}
}

// Router picks the client for a recipient's preferred channel.
type Router struct {
	Default Client
	SMS     Client // nil sends SMS recipients through Default
}

// For returns the client serving ch.
func (r Router) For(ch roster.Channel) Client {
	if ch == roster.SMS && r.SMS != nil {
		return r.SMS
	}
	return r.Default
}
