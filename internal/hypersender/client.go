// Package hypersender sends WhatsApp text through Hypersender. The API has
// no media upload, so attachments are reported as unsupported.
package hypersender

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"parent-messenger/internal/config"
	"parent-messenger/internal/dispatch"
	"parent-messenger/internal/phone"
)

const providerName = config.ProviderHypersender

type Client struct {
	instanceID string
	token      string
	baseURL    string
	http       *http.Client
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.HypersenderID == "" {
		return nil, &config.Error{Key: "HYPERSENDER_ID", Reason: "not set"}
	}
	if cfg.HypersenderToken == "" {
		return nil, &config.Error{Key: "HYPERSENDER_API", Reason: "not set"}
	}
	return &Client{
		instanceID: cfg.HypersenderID,
		token:      cfg.HypersenderToken,
		baseURL:    strings.TrimRight(cfg.HypersenderBaseURL, "/"),
		http:       &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

type textRequest struct {
	ChatID      string `json:"chatId"`
	Text        string `json:"text"`
	LinkPreview bool   `json:"link_preview"`
}

type textResponse struct {
	ID string `json:"id"`
}

func (c *Client) Name() string { return providerName }

func (c *Client) SendText(ctx context.Context, to, body string) dispatch.Result {
	start := time.Now()
	url := fmt.Sprintf("%s/api/whatsapp/v1/%s/send-text-safe", c.baseURL, c.instanceID)
	payload := textRequest{ChatID: phone.ChatID(to), Text: body, LinkPreview: true}

	reply, err := dispatch.Request(ctx, c.http, http.MethodPost, url, payload, map[string]string{
		"Authorization": "Bearer " + c.token,
	})
	if err != nil {
		res := dispatch.Failed(providerName, to, err)
		res.Duration = time.Since(start)
		return res
	}

	// The body shape varies between plans; a 2xx is what counts.
	var out textResponse
	_ = json.Unmarshal(reply.Body, &out)
	res := dispatch.Sent(providerName, to, reply.StatusCode, out.ID, string(reply.Body))
	res.Duration = time.Since(start)
	return res
}

func (c *Client) SendAttachment(_ context.Context, to, _ string, _ dispatch.AttachmentRef) dispatch.Result {
	return dispatch.Failed(providerName, to, fmt.Errorf("hypersender attachments: %w", dispatch.ErrUnsupported))
}

func (c *Client) UploadAttachment(_ context.Context, a dispatch.Attachment) (dispatch.AttachmentRef, error) {
	return dispatch.AttachmentRef{}, dispatch.NewUploadError(providerName, a.Filename, dispatch.ErrUnsupported)
}
