// Package extract turns user text into structured objects, either by asking a
// peer extraction agent over HTTP or by calling Gemini directly.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/boltzchat/agents/internal/agent"
	"github.com/boltzchat/agents/internal/transport"
	"github.com/boltzchat/agents/pkg/models"
)

// StructuredOutputPath is where agents receive extracted objects.
const StructuredOutputPath = "/structured-output"

// ── Peer ─────────────────────────────────────────────────────

// Peer forwards prompts to a remote extraction agent. The peer answers
// asynchronously by POSTing a StructuredOutputResponse to the reply address
// with the same X-Session-Id.
type Peer struct {
	address  string
	replyURL string
	client   *transport.HTTPClient
}

var _ agent.Extractor = (*Peer)(nil)

// NewPeer creates a Peer extractor. publicURL is this agent's externally
// reachable base URL.
func NewPeer(address, publicURL string, client *transport.HTTPClient) *Peer {
	return &Peer{
		address:  address,
		replyURL: strings.TrimRight(publicURL, "/") + StructuredOutputPath,
		client:   client,
	}
}

func (p *Peer) Extract(ctx context.Context, sessionID string, prompt models.StructuredOutputPrompt) error {
	log.Debug().Str("peer", p.address).Str("session", sessionID).Msg("Sending structured output prompt to peer")
	return p.client.Post(ctx, p.address, prompt, map[string]string{
		transport.HeaderSessionID: sessionID,
		transport.HeaderReplyTo:   p.replyURL,
	})
}

// ── Gemini ───────────────────────────────────────────────────

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Sink receives extracted objects. *agent.Agent implements it.
type Sink interface {
	HandleStructuredOutput(ctx context.Context, sessionID string, output json.RawMessage) error
}

// generator is the part of *genai.Models the Gemini extractor uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini fills the output schema with a JSON-mode Gemini call and hands the
// object straight to its Sink.
type Gemini struct {
	models generator
	model  string
	sink   Sink
}

var _ agent.Extractor = (*Gemini)(nil)

// GeminiOption configures a Gemini extractor.
type GeminiOption func(*geminiOptions)

type geminiOptions struct {
	model   string
	baseURL string
}

// WithModel sets the Gemini model ID.
func WithModel(model string) GeminiOption {
	return func(o *geminiOptions) { o.model = model }
}

// WithBaseURL points the SDK at a different API host.
func WithBaseURL(url string) GeminiOption {
	return func(o *geminiOptions) { o.baseURL = url }
}

// NewGemini creates a Gemini extractor for the Gemini API.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	o := geminiOptions{model: DefaultGeminiModel}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &Gemini{models: gc.Models, model: o.model}, nil
}

// Bind sets where extracted objects are delivered. It must be called before
// the first Extract.
func (g *Gemini) Bind(sink Sink) { g.sink = sink }

func (g *Gemini) Extract(ctx context.Context, sessionID string, prompt models.StructuredOutputPrompt) error {
	if g.sink == nil {
		return fmt.Errorf("gemini extractor is not bound to an agent")
	}

	config := &genai.GenerateContentConfig{
		Temperature:        genai.Ptr[float32](0),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: prompt.OutputSchema,
	}
	log.Debug().Str("model", g.model).Str("session", sessionID).Msg("Requesting structured output from Gemini")

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt.Prompt), config)
	if err != nil {
		return fmt.Errorf("gemini generate: %w", err)
	}

	output, err := decodeOutput(resp.Text())
	if err != nil {
		return err
	}
	return g.sink.HandleStructuredOutput(ctx, sessionID, output)
}

// decodeOutput accepts the model's JSON text, tolerating a surrounding
// markdown code fence.
func decodeOutput(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	if text == "" {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("gemini returned invalid JSON: %.200s", text)
	}
	return json.RawMessage(text), nil
}
