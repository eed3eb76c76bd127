package hypersender

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parent-messenger/internal/config"
	"parent-messenger/internal/dispatch"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.HypersenderID = "inst-1"
	cfg.HypersenderToken = "tok"
	cfg.HypersenderBaseURL = srv.URL
	c, err := NewClient(&cfg)
	require.NoError(t, err)
	return c
}

func TestSendText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/whatsapp/v1/inst-1/send-text-safe", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		var req textRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "919876543210@c.us", req.ChatID)
		assert.Equal(t, "okay", req.Text)
		assert.True(t, req.LinkPreview)
		_, _ = io.WriteString(w, `{"id":"hs-1"}`)
	})

	res := c.SendText(context.Background(), "+919876543210", "okay")
	assert.True(t, res.Succeeded)
	assert.Equal(t, "hs-1", res.MessageID)
}

func TestSendText_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	res := c.SendText(context.Background(), "+919876543210", "okay")
	assert.False(t, res.Succeeded)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestAttachmentsUnsupported(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.UploadAttachment(context.Background(), dispatch.Attachment{Filename: "c.png"})
	var ue *dispatch.UploadError
	require.True(t, errors.As(err, &ue))
	assert.True(t, errors.Is(err, dispatch.ErrUnsupported))

	res := c.SendAttachment(context.Background(), "+919876543210", "x", dispatch.AttachmentRef{})
	var se *dispatch.SendError
	require.True(t, errors.As(res.Err, &se))
	assert.Equal(t, dispatch.KindUnsupported, se.Kind)
}

func TestNewClient_MissingToken(t *testing.T) {
	cfg := config.Default()
	cfg.HypersenderID = "inst-1"
	_, err := NewClient(&cfg)
	var cerr *config.Error
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "HYPERSENDER_API", cerr.Key)
}
