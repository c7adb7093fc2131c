package boltz

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boltzchat/agents/internal/agent"
	"github.com/boltzchat/agents/internal/artifacts"
	"github.com/boltzchat/agents/internal/metrics"
)

// Responder is the structure agent's domain half: it validates extracted
// requests, runs predictions and publishes the results.
type Responder struct {
	predictor Predictor
	publisher artifacts.Publisher
	metrics   *metrics.Metrics
}

var _ agent.Responder = (*Responder)(nil)

// NewResponder creates a Responder. m may be nil.
func NewResponder(p Predictor, pub artifacts.Publisher, m *metrics.Metrics) *Responder {
	return &Responder{predictor: p, publisher: pub, metrics: m}
}

func (r *Responder) Schema() map[string]interface{} { return Schema() }

func (r *Responder) Prompt(text string) string { return Prompt(text) }

func (r *Responder) Apology() string { return Apology }

// Respond validates output and, when clean, predicts and publishes its
// structures. Issues and service rejections are ordinary replies.
func (r *Responder) Respond(ctx context.Context, output json.RawMessage) (agent.Reply, error) {
	if issues := ValidateJSON(output); len(issues) > 0 {
		log.Info().Int("issues", len(issues)).Msg("⚠️ Request failed validation")
		r.metrics.ValidationIssues(len(issues))
		return agent.Reply{Text: FormatIssues(issues), Outcome: metrics.OutcomeIssues}, nil
	}

	req, err := Coerce(output)
	if err != nil {
		return agent.Reply{}, err
	}
	log.Debug().Interface("request", req).Msg("Validated request model")

	start := time.Now()
	resp, err := r.predictor.Predict(ctx, req)
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		r.metrics.Prediction("rejected", time.Since(start))
		return agent.Reply{Text: FormatRemoteError(apiErr), Outcome: metrics.OutcomeRejected}, nil
	case err != nil:
		r.metrics.Prediction("error", time.Since(start))
		return agent.Reply{}, err
	}
	r.metrics.Prediction("ok", time.Since(start))
	log.Info().Int("structures", len(resp.Structures)).Msg("🔬 Structures found in response")

	text, err := FormatPrediction(ctx, resp, req.OutputFormat, r.publisher)
	if err != nil {
		return agent.Reply{}, err
	}
	return agent.Reply{Text: text}, nil
}
