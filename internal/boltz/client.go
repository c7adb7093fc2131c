package boltz

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultEndpoint is the hosted Boltz-2 prediction endpoint.
const DefaultEndpoint = "https://health.api.nvidia.com/v1/biology/mit/boltz2/predict"

// DefaultTimeout bounds a single prediction call.
const DefaultTimeout = 60 * time.Second

var tracer = otel.Tracer("boltzchat/boltz")

// APIError is a non-200 answer from the prediction service. It is a
// per-request failure the user should see, not a crash.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return "Boltz2 API error: " + e.Body
}

// Predictor produces structures for a validated request.
type Predictor interface {
	Predict(ctx context.Context, req *PredictionRequest) (*PredictionResponse, error)
}

var _ Predictor = (*Client)(nil)

// Client calls the Boltz-2 prediction service. One attempt per call, no retries.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the prediction endpoint (proxies, tests).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// NewClient creates a prediction client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Predict sends req and decodes the structures. A non-200 status comes back
// as *APIError; transport and decoding failures are ordinary errors.
func (c *Client) Predict(ctx context.Context, req *PredictionRequest) (*PredictionResponse, error) {
	ctx, span := tracer.Start(ctx, "boltz2.predict")
	defer span.End()
	span.SetAttributes(
		attribute.Int("boltz2.polymers", len(req.Polymers)),
		attribute.Int("boltz2.ligands", len(req.Ligands)),
		attribute.Int("boltz2.diffusion_samples", req.DiffusionSamples),
	)

	log.Info().Int("polymers", len(req.Polymers)).Msg("Looking up Boltz2 prediction")

	payload, err := req.Payload()
	if err != nil {
		return nil, err
	}
	log.Debug().Interface("payload", payload).Msg("Boltz2 payload")

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	log.Info().Str("endpoint", c.endpoint).Msg("Sending request to NVIDIA Boltz2 API...")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "http request failed")
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("Boltz2 API returned an error")
		span.SetStatus(codes.Error, "non-200 response")
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result PredictionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	log.Info().Int("structures", len(result.Structures)).Msg("Successfully received Boltz2 prediction response")
	return &result, nil
}
