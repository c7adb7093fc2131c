// Package agent runs conversational turns: it acknowledges chat messages,
// forwards their text to a structured-output extractor and turns the
// extractor's answer into a chat reply through a Responder.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/boltzchat/agents/internal/metrics"
	"github.com/boltzchat/agents/internal/sessions"
	"github.com/boltzchat/agents/pkg/models"
)

var tracer = otel.Tracer("boltzchat/agent")

// Reply is a Responder's answer for one turn.
type Reply struct {
	Text    string
	Outcome string // one of the metrics.Outcome* values; empty means replied
}

// Responder holds the domain half of an agent.
type Responder interface {
	// Schema is the output schema the extractor must fill.
	Schema() map[string]interface{}
	// Prompt wraps user text into extraction instructions.
	Prompt(text string) string
	// Respond turns an extracted object into reply text. A returned error is
	// unexpected and answered with Apology.
	Respond(ctx context.Context, output json.RawMessage) (Reply, error)
	Apology() string
}

// Extractor turns a prompt into a structured object. The object is delivered
// later through Agent.HandleStructuredOutput for the same session.
type Extractor interface {
	Extract(ctx context.Context, sessionID string, prompt models.StructuredOutputPrompt) error
}

// Sender delivers chat messages to an address.
type Sender interface {
	Send(ctx context.Context, address string, msg models.ChatMessage) error
}

// Agent is the turn engine shared by every agent kind. Turns run in their
// own goroutines; the session store is the only state they share.
type Agent struct {
	name      string
	responder Responder
	extractor Extractor
	sessions  sessions.Store
	sender    Sender
	metrics   *metrics.Metrics

	wg sync.WaitGroup
}

// Option configures an Agent.
type Option func(*Agent)

// WithMetrics records turn outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// New assembles an agent.
func New(name string, r Responder, x Extractor, store sessions.Store, sender Sender, opts ...Option) *Agent {
	a := &Agent{
		name:      name,
		responder: r,
		extractor: x,
		sessions:  store,
		sender:    sender,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HandleChat records the message's sender for its session, acknowledges the
// message and forwards each text item to the extractor in the background.
func (a *Agent) HandleChat(ctx context.Context, msg models.ChatMessage) (models.ChatAcknowledgement, error) {
	log.Info().Str("agent", a.name).Str("session", msg.SessionID).Str("sender", msg.Sender).
		Msg("💬 Got a chat message")

	if err := a.sessions.Put(ctx, msg.SessionID, msg.Sender); err != nil {
		return models.ChatAcknowledgement{}, fmt.Errorf("remember sender: %w", err)
	}
	ack := models.NewAcknowledgement(msg)

	a.spawn(ctx, func(ctx context.Context) {
		for _, item := range msg.Content {
			switch item.Type {
			case models.ContentStartSession:
				log.Info().Str("session", msg.SessionID).Str("sender", msg.Sender).Msg("Got a start session message")
			case models.ContentText:
				a.forward(ctx, msg.SessionID, msg.Sender, item.Text)
			default:
				log.Info().Str("session", msg.SessionID).Str("type", string(item.Type)).Msg("Got unexpected content")
			}
		}
	})
	return ack, nil
}

func (a *Agent) forward(ctx context.Context, sessionID, sender, text string) {
	ctx, span := tracer.Start(ctx, "agent.extract")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	log.Debug().Str("session", sessionID).Str("text", text).Msg("Forwarding text to extractor")
	prompt := models.StructuredOutputPrompt{
		Prompt:       a.responder.Prompt(text),
		OutputSchema: a.responder.Schema(),
	}
	if err := a.extractor.Extract(ctx, sessionID, prompt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		log.Error().Err(err).Str("session", sessionID).Msg("❌ Extraction request failed")
		a.metrics.Turn(metrics.OutcomeFailed)
		a.deliver(ctx, sessionID, sender, a.responder.Apology())
	}
}

// HandleStructuredOutput answers the session's sender with the reply built
// from output. When no sender is recorded the output is discarded and
// sessions.ErrSessionNotFound returned.
func (a *Agent) HandleStructuredOutput(ctx context.Context, sessionID string, output json.RawMessage) error {
	sender, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sessions.ErrSessionNotFound) {
			log.Error().Str("session", sessionID).Msg("Discarding message because no session sender found in storage")
			a.metrics.Turn(metrics.OutcomeDiscarded)
		}
		return err
	}
	log.Debug().Str("session", sessionID).RawJSON("output", rawOrNull(output)).Msg("Raw structured output received")

	a.spawn(ctx, func(ctx context.Context) {
		a.respond(ctx, sessionID, sender, output)
	})
	return nil
}

func (a *Agent) respond(ctx context.Context, sessionID, sender string, output json.RawMessage) {
	ctx, span := tracer.Start(ctx, "agent.respond")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", sessionID))

	reply, err := a.safeRespond(ctx, output)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "respond failed")
		log.Error().Err(err).Str("agent", a.name).Str("session", sessionID).Msg("❌ Turn failed")
		a.metrics.Turn(metrics.OutcomeFailed)
		reply = Reply{Text: a.responder.Apology()}
	} else {
		outcome := reply.Outcome
		if outcome == "" {
			outcome = metrics.OutcomeReplied
		}
		a.metrics.Turn(outcome)
	}
	a.deliver(ctx, sessionID, sender, reply.Text)
}

func (a *Agent) safeRespond(ctx context.Context, output json.RawMessage) (reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return a.responder.Respond(ctx, output)
}

func (a *Agent) deliver(ctx context.Context, sessionID, sender, text string) {
	msg := models.NewTextMessage(text, false)
	msg.SessionID = sessionID
	if err := a.sender.Send(ctx, sender, msg); err != nil {
		log.Error().Err(err).Str("session", sessionID).Str("sender", sender).Msg("❌ Failed to deliver reply")
		return
	}
	log.Info().Str("session", sessionID).Msg("📨 Reply sent")
}

// spawn runs fn in its own goroutine with a context detached from the
// inbound request's cancellation.
func (a *Agent) spawn(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(ctx)
	}()
}

// Wait blocks until every in-flight turn has finished or ctx is done.
func (a *Agent) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func rawOrNull(b json.RawMessage) []byte {
	if len(b) == 0 || !json.Valid(b) {
		return []byte("null")
	}
	return b
}
