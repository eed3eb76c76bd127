// Package whatsapp sends through the Meta WhatsApp Cloud API.
package whatsapp

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

const providerName = config.ProviderMeta

type Client struct {
	token         string
	phoneNumberID string
	baseURL       string
	http          *http.Client
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.WhatsAppToken == "" {
		return nil, &config.Error{Key: "WHATSAPP_TOKEN", Reason: "not set"}
	}
	if cfg.PhoneNumberID == "" {
		return nil, &config.Error{Key: "PHONE_NUMBER_ID", Reason: "not set"}
	}
	return &Client{
		token:         cfg.WhatsAppToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       strings.TrimRight(cfg.GraphBaseURL, "/"),
		http:          &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string    `json:"messaging_product"`
	To               string    `json:"to"`
	Type             string    `json:"type"`
	RecipientType    string    `json:"recipient_type,omitempty"`
	Text             *TextObj  `json:"text,omitempty"`
	Image            *MediaObj `json:"image,omitempty"`
	Document         *MediaObj `json:"document,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

type MediaObj struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"` // For documents
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type MediaResponse struct {
	ID string `json:"id"`
}

func (c *Client) Name() string { return providerName }

func (c *Client) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.token}
}

// --- Messaging Methods ---

func (c *Client) SendRawMessage(ctx context.Context, msg GenericMessage) dispatch.Result {
	start := time.Now()
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	reply, err := dispatch.Request(ctx, c.http, http.MethodPost, url, msg, c.headers())
	if err != nil {
		res := dispatch.Failed(providerName, msg.To, err)
		res.Duration = time.Since(start)
		return res
	}

	var out sendResponse
	if err := json.Unmarshal(reply.Body, &out); err != nil {
		res := dispatch.Failed(providerName, msg.To, dispatch.NewSendError(dispatch.KindDecode, err))
		res.StatusCode = reply.StatusCode
		res.Duration = time.Since(start)
		return res
	}
	var id string
	if len(out.Messages) > 0 {
		id = out.Messages[0].ID
	}
	res := dispatch.Sent(providerName, msg.To, reply.StatusCode, id, string(reply.Body))
	res.Duration = time.Since(start)
	return res
}

func (c *Client) SendText(ctx context.Context, phone, body string) dispatch.Result {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               graphNumber(phone),
		Type:             "text",
		Text: &TextObj{
			Body: body,
		},
	}
	res := c.SendRawMessage(ctx, msg)
	res.Phone = phone
	return res
}

// SendAttachment sends an uploaded image, or a document for anything else.
func (c *Client) SendAttachment(ctx context.Context, phone, caption string, ref dispatch.AttachmentRef) dispatch.Result {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               graphNumber(phone),
	}
	media := &MediaObj{ID: ref.ID, Caption: caption}
	if strings.HasPrefix(ref.MimeType, "image/") {
		msg.Type = "image"
		msg.Image = media
	} else {
		msg.Type = "document"
		msg.Document = media
	}
	res := c.SendRawMessage(ctx, msg)
	res.Phone = phone
	return res
}

// --- Media Methods ---

func (c *Client) UploadAttachment(ctx context.Context, a dispatch.Attachment) (dispatch.AttachmentRef, error) {
	url := fmt.Sprintf("%s/%s/media", c.baseURL, c.phoneNumberID)
	fields := map[string]string{"messaging_product": "whatsapp", "type": a.MimeType}

	reply, err := dispatch.Upload(ctx, c.http, url, "file", a, fields, c.headers())
	if err != nil {
		return dispatch.AttachmentRef{}, dispatch.NewUploadError(providerName, a.Filename, err)
	}

	var mediaResp MediaResponse
	if err := json.Unmarshal(reply.Body, &mediaResp); err != nil {
		return dispatch.AttachmentRef{}, dispatch.NewUploadError(providerName, a.Filename, err)
	}
	if mediaResp.ID == "" {
		return dispatch.AttachmentRef{}, dispatch.NewUploadError(providerName, a.Filename, fmt.Errorf("no media id in response: %s", reply.Body))
	}
	return dispatch.AttachmentRef{ID: mediaResp.ID, Provider: providerName, MimeType: a.MimeType}, nil
}

// Graph wants the number without the leading plus.
func graphNumber(phone string) string {
	return strings.TrimPrefix(phone, "+")
}
