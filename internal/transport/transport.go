// Package transport delivers outbound agent messages to their addresses.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/boltzchat/agents/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Header names carried on outbound requests.
const (
	HeaderSessionID = "X-Session-Id"
	HeaderReplyTo   = "X-Reply-To"
)

// HTTPClient posts JSON messages to HTTP addresses. Sessions travel in the
// X-Session-Id header and trace context is propagated.
type HTTPClient struct {
	client *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.client = c }
}

// New creates an HTTPClient with a 30s per-message timeout.
func New(opts ...Option) *HTTPClient {
	h := &HTTPClient{client: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Post sends v as JSON to address. headers are added to the request. Any
// non-2xx status is an error.
func (h *HTTPClient) Post(ctx context.Context, address string, v interface{}, headers map[string]string) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to %s: %w", address, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("post to %s returned %d: %s", address, resp.StatusCode, string(msg))
	}
	log.Debug().Str("address", address).Int("status", resp.StatusCode).Msg("📨 Message delivered")
	return nil
}

// Send delivers a chat message to address.
func (h *HTTPClient) Send(ctx context.Context, address string, msg models.ChatMessage) error {
	return h.Post(ctx, address, msg, map[string]string{HeaderSessionID: msg.SessionID})
}
