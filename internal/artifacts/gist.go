package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultGistEndpoint is the GitHub gist creation endpoint.
const DefaultGistEndpoint = "https://api.github.com/gists"

const gistDescription = "Boltz2-predicted structure"

// GistPublisher uploads each file as its own public GitHub gist.
type GistPublisher struct {
	token    string
	endpoint string
	client   *http.Client
}

var _ Publisher = (*GistPublisher)(nil)

// GistOption configures a GistPublisher.
type GistOption func(*GistPublisher)

// WithGistEndpoint overrides the gist API endpoint.
func WithGistEndpoint(endpoint string) GistOption {
	return func(g *GistPublisher) { g.endpoint = endpoint }
}

// WithGistHTTPClient replaces the HTTP client used for uploads.
func WithGistHTTPClient(c *http.Client) GistOption {
	return func(g *GistPublisher) { g.client = c }
}

// NewGistPublisher creates a publisher authenticating with a GitHub token.
// Uploads carry no client-side timeout; they are bounded by the caller's context.
func NewGistPublisher(token string, opts ...GistOption) *GistPublisher {
	g := &GistPublisher{
		token:    token,
		endpoint: DefaultGistEndpoint,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type gistFile struct {
	Content string `json:"content,omitempty"`
	RawURL  string `json:"raw_url,omitempty"`
}

type gistPayload struct {
	Description string              `json:"description,omitempty"`
	Public      bool                `json:"public"`
	Files       map[string]gistFile `json:"files"`
}

// Publish creates a public gist holding content under filename and returns
// the file's raw URL.
func (g *GistPublisher) Publish(ctx context.Context, filename, content string) (string, error) {
	ctx, span := tracer.Start(ctx, "artifacts.gist.publish")
	defer span.End()
	span.SetAttributes(attribute.String("artifact.filename", filename))

	body, err := json.Marshal(gistPayload{
		Description: gistDescription,
		Public:      true,
		Files:       map[string]gistFile{filename: {Content: content}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gist: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+g.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gist upload failed")
		return "", fmt.Errorf("upload gist: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gist response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		span.SetStatus(codes.Error, "gist rejected")
		return "", fmt.Errorf("gist upload returned %d: %s", resp.StatusCode, string(respBody))
	}

	var created gistPayload
	if err := json.Unmarshal(respBody, &created); err != nil {
		return "", fmt.Errorf("decode gist response: %w", err)
	}
	file, ok := created.Files[filename]
	if !ok || file.RawURL == "" {
		return "", fmt.Errorf("%w: %s", ErrNoURL, filename)
	}

	log.Debug().Str("filename", filename).Str("raw_url", file.RawURL).Msg("📤 Structure published to gist")
	return file.RawURL, nil
}
