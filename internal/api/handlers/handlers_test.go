package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boltzchat/agents/internal/api/handlers"
	"github.com/boltzchat/agents/internal/sessions"
	"github.com/boltzchat/agents/internal/transport"
	"github.com/boltzchat/agents/pkg/models"
)

type fakeAgent struct {
	chats   []models.ChatMessage
	outputs map[string]json.RawMessage
	chatErr error
	outErr  error
}

func (f *fakeAgent) HandleChat(_ context.Context, msg models.ChatMessage) (models.ChatAcknowledgement, error) {
	if f.chatErr != nil {
		return models.ChatAcknowledgement{}, f.chatErr
	}
	f.chats = append(f.chats, msg)
	return models.ChatAcknowledgement{Timestamp: time.Now(), AcknowledgedMsgID: msg.MsgID}, nil
}

func (f *fakeAgent) HandleStructuredOutput(_ context.Context, sessionID string, output json.RawMessage) error {
	if f.outErr != nil {
		return f.outErr
	}
	if f.outputs == nil {
		f.outputs = map[string]json.RawMessage{}
	}
	f.outputs[sessionID] = output
	return nil
}

func TestChat(t *testing.T) {
	a := &fakeAgent{}
	h := handlers.New(a, models.AgentCard{})

	body := `{"msg_id":"m1","session_id":"s1","sender":"http://user","content":[{"type":"text","text":"fold ACDE"}]}`
	w := httptest.NewRecorder()
	h.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)
	var ack models.ChatAcknowledgement
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ack))
	assert.Equal(t, "m1", ack.AcknowledgedMsgID)
	assert.Equal(t, "s1", w.Header().Get(transport.HeaderSessionID))
	require.Len(t, a.chats, 1)
	assert.Equal(t, "fold ACDE", a.chats[0].Text())
}

func TestChat_FillsSessionAndMsgID(t *testing.T) {
	a := &fakeAgent{}
	h := handlers.New(a, models.AgentCard{})

	w := httptest.NewRecorder()
	h.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"sender":"http://user","content":[]}`)))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, a.chats, 1)
	assert.NotEmpty(t, a.chats[0].SessionID)
	assert.NotEmpty(t, a.chats[0].MsgID)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"sender":"http://user","content":[]}`))
	req.Header.Set(transport.HeaderSessionID, "from-header")
	h.Chat(httptest.NewRecorder(), req)
	require.Len(t, a.chats, 2)
	assert.Equal(t, "from-header", a.chats[1].SessionID)
}

func TestChat_BadRequests(t *testing.T) {
	h := handlers.New(&fakeAgent{}, models.AgentCard{})

	for _, body := range []string{`not json`, `{"content":[]}`, `{"sender":"  "}`} {
		w := httptest.NewRecorder()
		h.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestChat_AgentError(t *testing.T) {
	h := handlers.New(&fakeAgent{chatErr: errors.New("redis down")}, models.AgentCard{})
	w := httptest.NewRecorder()
	h.Chat(w, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"sender":"x"}`)))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestStructuredOutput(t *testing.T) {
	a := &fakeAgent{}
	h := handlers.New(a, models.AgentCard{})

	req := httptest.NewRequest(http.MethodPost, "/structured-output", strings.NewReader(`{"output":{"state":"Ohio","year":2020}}`))
	req.Header.Set(transport.HeaderSessionID, "s1")
	w := httptest.NewRecorder()
	h.StructuredOutput(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"state":"Ohio","year":2020}`, string(a.outputs["s1"]))
}

func TestStructuredOutput_Errors(t *testing.T) {
	h := handlers.New(&fakeAgent{}, models.AgentCard{})
	w := httptest.NewRecorder()
	h.StructuredOutput(w, httptest.NewRequest(http.MethodPost, "/structured-output", strings.NewReader(`{"output":{}}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/structured-output", strings.NewReader(`{`))
	req.Header.Set(transport.HeaderSessionID, "s1")
	w = httptest.NewRecorder()
	h.StructuredOutput(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	h = handlers.New(&fakeAgent{outErr: sessions.ErrSessionNotFound}, models.AgentCard{})
	req = httptest.NewRequest(http.MethodPost, "/structured-output", strings.NewReader(`{"output":{}}`))
	req.Header.Set(transport.HeaderSessionID, "gone")
	w = httptest.NewRecorder()
	h.StructuredOutput(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServeAgentCard(t *testing.T) {
	h := handlers.New(&fakeAgent{}, models.AgentCard{Name: "election-agent", URL: "http://localhost:8000"})
	w := httptest.NewRecorder()
	h.ServeAgentCard(w, httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var card models.AgentCard
	require.NoError(t, json.NewDecoder(w.Body).Decode(&card))
	assert.Equal(t, "election-agent", card.Name)
}
