// Package twilio sends SMS through the Twilio Programmable Messaging API.
package twilio

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parent-messenger/internal/config"
	"parent-messenger/internal/dispatch"
)

const providerName = config.ProviderTwilio

type Client struct {
	endpoint string
	auth     string
	from     string
	http     *http.Client
}

func NewClient(cfg *config.Config) (*Client, error) {
	for _, kv := range [][2]string{
		{"TWILIO_ACCOUNT_SID", cfg.TwilioAccountSID},
		{"TWILIO_AUTH_TOKEN", cfg.TwilioAuthToken},
		{"TWILIO_PHONE_NUMBER", cfg.TwilioFrom},
	} {
		if strings.TrimSpace(kv[1]) == "" {
			return nil, &config.Error{Key: kv[0], Reason: "not set"}
		}
	}
	base := strings.TrimRight(cfg.TwilioBaseURL, "/")
	if base == "" {
		base = config.DefaultTwilioBaseURL
	}
	return &Client{
		endpoint: fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", base, url.PathEscape(cfg.TwilioAccountSID)),
		auth:     "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.TwilioAccountSID+":"+cfg.TwilioAuthToken)),
		from:     cfg.TwilioFrom,
		http:     &http.Client{Timeout: cfg.HTTPTimeout},
	}, nil
}

// messageResponse is the subset of the Message resource we keep.
type messageResponse struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
}

// apiError is the body Twilio returns with a 4xx/5xx status.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (c *Client) Name() string { return providerName }

func (c *Client) SendText(ctx context.Context, phone, body string) dispatch.Result {
	start := time.Now()

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", c.from)
	form.Set("Body", body)

	reply, err := dispatch.PostForm(ctx, c.http, c.endpoint, form.Encode(), map[string]string{
		"Authorization": c.auth,
		"Accept":        "application/json",
	})
	if err != nil {
		res := dispatch.Failed(providerName, phone, describe(err))
		res.Duration = time.Since(start)
		return res
	}

	var out messageResponse
	if err := json.Unmarshal(reply.Body, &out); err != nil || out.SID == "" {
		if err == nil {
			err = errors.New("reply has no message sid")
		}
		se := &dispatch.SendError{Kind: dispatch.KindDecode, StatusCode: reply.StatusCode, Body: string(reply.Body), Err: err}
		res := dispatch.Failed(providerName, phone, se)
		res.Duration = time.Since(start)
		return res
	}
	if out.Status == "failed" || out.Status == "undelivered" {
		msg := out.Status
		if out.ErrorMessage != nil {
			msg = *out.ErrorMessage
		}
		se := &dispatch.SendError{Kind: dispatch.KindProvider, StatusCode: reply.StatusCode, Body: string(reply.Body), Err: errors.New(msg)}
		res := dispatch.Failed(providerName, phone, se)
		res.Duration = time.Since(start)
		return res
	}

	res := dispatch.Sent(providerName, phone, reply.StatusCode, out.SID, string(reply.Body))
	res.Duration = time.Since(start)
	return res
}

// describe turns a Twilio error body into a readable provider error.
func describe(err error) error {
	var st *dispatch.StatusError
	if !errors.As(err, &st) {
		return err
	}
	var ae apiError
	if json.Unmarshal([]byte(st.Body), &ae) != nil || ae.Message == "" {
		return err
	}
	return &dispatch.SendError{
		Kind:       dispatch.KindProvider,
		StatusCode: st.StatusCode,
		Body:       st.Body,
		Err:        fmt.Errorf("twilio error %d: %s", ae.Code, ae.Message),
	}
}

func (c *Client) SendAttachment(_ context.Context, phone, _ string, _ dispatch.AttachmentRef) dispatch.Result {
	return dispatch.Failed(providerName, phone, dispatch.ErrUnsupported)
}

func (c *Client) UploadAttachment(_ context.Context, a dispatch.Attachment) (dispatch.AttachmentRef, error) {
	return dispatch.AttachmentRef{}, dispatch.NewUploadError(providerName, a.Filename, dispatch.ErrUnsupported)
}
