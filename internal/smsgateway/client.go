// Package smsgateway sends SMS through an HTTP bulk-SMS gateway that takes
// form-encoded requests (the HostPinnacle family of APIs).
package smsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parent-messenger/internal/config"
	"parent-messenger/internal/dispatch"
)

const providerName = config.ProviderSMSGateway

type Client struct {
	endpoint string
	apiKey   string
	senderID string
	userID   string
	password string
	http     *http.Client
}

func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.SMSURL == "" {
		return nil, &config.Error{Key: "SMS_URL", Reason: "not set"}
	}
	if cfg.SMSAPIKey == "" && (cfg.SMSUserID == "" || cfg.SMSPassword == "") {
		return nil, &config.Error{Key: "SMS_KEY", Reason: "either SMS_KEY or SMS_USER_ID and SMS_PASSWORD must be set"}
	}
	return &Client{
		endpoint: cfg.SMSURL,
		apiKey:   cfg.SMSAPIKey,
		senderID: cfg.SMSSenderID,
		userID:   cfg.SMSUserID,
		password: cfg.SMSPassword,
		http:     &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// gatewayResponse covers the JSON reply; gateways answering 200 with
// status "error" are treated as provider failures.
type gatewayResponse struct {
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	TransactionID string `json:"transactionId"`
}

func (c *Client) Name() string { return providerName }

func (c *Client) SendText(ctx context.Context, phone, body string) dispatch.Result {
	start := time.Now()

	form := url.Values{}
	form.Set("mobile", strings.TrimPrefix(phone, "+"))
	form.Set("msg", body)
	form.Set("msgType", "text")
	form.Set("sendMethod", "quick")
	form.Set("duplicatecheck", "true")
	form.Set("output", "json")
	if c.senderID != "" {
		form.Set("senderid", c.senderID)
	}
	if c.userID != "" {
		form.Set("userid", c.userID)
		form.Set("password", c.password)
	}
	headers := map[string]string{"Cache-Control": "no-cache"}
	if c.apiKey != "" {
		headers["apikey"] = c.apiKey
	}

	reply, err := dispatch.PostForm(ctx, c.http, c.endpoint, form.Encode(), headers)
	if err != nil {
		res := dispatch.Failed(providerName, phone, err)
		res.Duration = time.Since(start)
		return res
	}

	var out gatewayResponse
	if err := json.Unmarshal(reply.Body, &out); err == nil && strings.EqualFold(out.Status, "error") {
		se := &dispatch.SendError{Kind: dispatch.KindProvider, StatusCode: reply.StatusCode, Body: string(reply.Body), Err: errors.New(out.Reason)}
		res := dispatch.Failed(providerName, phone, se)
		res.Duration = time.Since(start)
		return res
	}
	res := dispatch.Sent(providerName, phone, reply.StatusCode, out.TransactionID, string(reply.Body))
	res.Duration = time.Since(start)
	return res
}

func (c *Client) SendAttachment(_ context.Context, phone, _ string, _ dispatch.AttachmentRef) dispatch.Result {
	return dispatch.Failed(providerName, phone, dispatch.ErrUnsupported)
}

func (c *Client) UploadAttachment(_ context.Context, a dispatch.Attachment) (dispatch.AttachmentRef, error) {
	return dispatch.AttachmentRef{}, dispatch.NewUploadError(providerName, a.Filename, dispatch.ErrUnsupported)
}
