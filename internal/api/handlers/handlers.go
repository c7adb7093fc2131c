// Package handlers implements the HTTP handlers of an agent server.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/boltzchat/agents/internal/sessions"
	"github.com/boltzchat/agents/internal/transport"
	"github.com/boltzchat/agents/pkg/models"
)

// Agent is the chat surface the handlers drive.
type Agent interface {
	HandleChat(ctx context.Context, msg models.ChatMessage) (models.ChatAcknowledgement, error)
	HandleStructuredOutput(ctx context.Context, sessionID string, output json.RawMessage) error
}

// Handlers holds all handler dependencies.
type Handlers struct {
	Agent Agent
	Card  models.AgentCard
}

// New creates a new Handlers instance.
func New(a Agent, card models.AgentCard) *Handlers {
	return &Handlers{Agent: a, Card: card}
}

// ══════════════════════════════════════════════════════════════
// ── Chat Handlers ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Chat accepts a ChatMessage and answers with its acknowledgement. The reply
// itself is delivered later to the message's sender.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	var msg models.ChatMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(msg.Sender) == "" {
		respondError(w, http.StatusBadRequest, "sender is required")
		return
	}
	if msg.SessionID == "" {
		msg.SessionID = r.Header.Get(transport.HeaderSessionID)
	}
	if msg.SessionID == "" {
		msg.SessionID = uuid.New().String()
	}
	if msg.MsgID == "" {
		msg.MsgID = uuid.New().String()
	}

	ack, err := h.Agent.HandleChat(r.Context(), msg)
	if err != nil {
		log.Error().Err(err).Str("session", msg.SessionID).Msg("Chat message rejected")
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set(transport.HeaderSessionID, msg.SessionID)
	respondJSON(w, http.StatusOK, ack)
}

// StructuredOutput accepts the extractor's answer for the session named in
// the X-Session-Id header.
func (h *Handlers) StructuredOutput(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(transport.HeaderSessionID)
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, transport.HeaderSessionID+" header is required")
		return
	}

	var resp models.StructuredOutputResponse
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.Agent.HandleStructuredOutput(r.Context(), sessionID, resp.Output)
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "unknown session: "+sessionID)
	case err != nil:
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "session_id": sessionID})
	}
}

// ServeAgentCard publishes the agent's card for discovery.
func (h *Handlers) ServeAgentCard(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Card)
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
