// Package wassenger sends WhatsApp messages through the Wassenger API.
package wassenger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"parent-messenger/internal/config"
	"parent-messenger/internal/dispatch"
)

const providerName = config.ProviderWassenger

type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.WassengerToken == "" {
		return nil, &config.Error{Key: "WASSENGER_API", Reason: "not set"}
	}
	return &Client{
		token:   cfg.WassengerToken,
		baseURL: strings.TrimRight(cfg.WassengerBaseURL, "/"),
		http:    &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

type message struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Media   *media `json:"media,omitempty"`
}

type media struct {
	File string `json:"file"`
}

type messageResponse struct {
	ID         string `json:"id"`
	WAID       string `json:"waId"`
	DeliveryID string `json:"deliveryStatus"`
}

type fileResponse struct {
	ID string `json:"id"`
}

func (c *Client) Name() string { return providerName }

func (c *Client) headers() map[string]string {
	return map[string]string{"Token": c.token}
}

func (c *Client) SendText(ctx context.Context, phone, body string) dispatch.Result {
	return c.send(ctx, message{Phone: phone, Message: body})
}

func (c *Client) SendAttachment(ctx context.Context, phone, body string, ref dispatch.AttachmentRef) dispatch.Result {
	return c.send(ctx, message{Phone: phone, Message: body, Media: &media{File: ref.ID}})
}

func (c *Client) send(ctx context.Context, msg message) dispatch.Result {
	start := time.Now()
	reply, err := dispatch.Request(ctx, c.http, http.MethodPost, c.baseURL+"/v1/messages", msg, c.headers())
	if err != nil {
		res := dispatch.Failed(providerName, msg.Phone, err)
		res.Duration = time.Since(start)
		return res
	}

	var out messageResponse
	if err := json.Unmarshal(reply.Body, &out); err != nil {
		res := dispatch.Failed(providerName, msg.Phone, dispatch.NewSendError(dispatch.KindDecode, err))
		res.StatusCode = reply.StatusCode
		res.Duration = time.Since(start)
		return res
	}
	res := dispatch.Sent(providerName, msg.Phone, reply.StatusCode, out.ID, string(reply.Body))
	res.Duration = time.Since(start)
	return res
}

// UploadAttachment stores the file with Wassenger. The reply is a list of
// stored files; the first one is ours.
func (c *Client) UploadAttachment(ctx context.Context, a dispatch.Attachment) (dispatch.AttachmentRef, error) {
	reply, err := dispatch.Upload(ctx, c.http, c.baseURL+"/v1/files", "file", a, nil, c.headers())
	if err != nil {
		return dispatch.AttachmentRef{}, dispatch.NewUploadError(providerName, a.Filename, err)
	}

	var files []fileResponse
	if err := json.Unmarshal(reply.Body, &files); err != nil {
		return dispatch.AttachmentRef{}, dispatch.NewUploadError(providerName, a.Filename, err)
	}
	if len(files) == 0 || files[0].ID == "" {
		return dispatch.AttachmentRef{}, dispatch.NewUploadError(providerName, a.Filename, fmt.Errorf("no file id in response: %s", reply.Body))
	}
	return dispatch.AttachmentRef{ID: files[0].ID, Provider: providerName, MimeType: a.MimeType}, nil
}
