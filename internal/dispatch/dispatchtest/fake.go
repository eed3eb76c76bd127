// Package dispatchtest provides an in-memory dispatch.Client for tests.
package dispatchtest

import (
	"context"
	"fmt"
	"sync"

	"parent-messenger/internal/dispatch"
)

// Call is one recorded send.
type Call struct {
	Phone string
	Body  string
	Ref   *dispatch.AttachmentRef
}

// Client records every call. Phones listed in FailFor fail with a provider
// error; UploadErr, when set, fails every upload.
type Client struct {
	ProviderName string
	FailFor      map[string]error
	UploadErr    error
	// BeforeSend runs before each send is recorded; tests use it to cancel
	// a batch part-way.
	BeforeSend func(phone string)

	mu      sync.Mutex
	calls   []Call
	uploads []dispatch.Attachment
}

func New(name string) *Client {
	return &Client{ProviderName: name, FailFor: map[string]error{}}
}

func (c *Client) Name() string {
	if c.ProviderName == "" {
		return "fake"
	}
	return c.ProviderName
}

func (c *Client) SendText(ctx context.Context, phone, body string) dispatch.Result {
	return c.send(ctx, Call{Phone: phone, Body: body})
}

func (c *Client) SendAttachment(ctx context.Context, phone, body string, ref dispatch.AttachmentRef) dispatch.Result {
	return c.send(ctx, Call{Phone: phone, Body: body, Ref: &ref})
}

func (c *Client) UploadAttachment(_ context.Context, a dispatch.Attachment) (dispatch.AttachmentRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads = append(c.uploads, a)
	if c.UploadErr != nil {
		return dispatch.AttachmentRef{}, dispatch.NewUploadError(c.Name(), a.Filename, c.UploadErr)
	}
	return dispatch.AttachmentRef{
		ID:       fmt.Sprintf("media-%d", len(c.uploads)),
		Provider: c.Name(),
		MimeType: a.MimeType,
	}, nil
}

func (c *Client) send(ctx context.Context, call Call) dispatch.Result {
	if c.BeforeSend != nil {
		c.BeforeSend(call.Phone)
	}
	c.mu.Lock()
	c.calls = append(c.calls, call)
	err, fail := c.FailFor[call.Phone]
	c.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return dispatch.Failed(c.Name(), call.Phone, ctxErr)
	}
	if fail {
		if err == nil {
			err = &dispatch.StatusError{StatusCode: 500, Status: "500 Internal Server Error", Body: `{"error":"boom"}`}
		}
		return dispatch.Failed(c.Name(), call.Phone, err)
	}
	return dispatch.Sent(c.Name(), call.Phone, 200, "msg-"+call.Phone, `{"ok":true}`)
}

// Calls returns a copy of the recorded sends.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Phones returns the recipients in send order.
func (c *Client) Phones() []string {
	var out []string
	for _, call := range c.Calls() {
		out = append(out, call.Phone)
	}
	return out
}

// Uploads returns a copy of the recorded uploads.
func (c *Client) Uploads() []dispatch.Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]dispatch.Attachment(nil), c.uploads...)
}
