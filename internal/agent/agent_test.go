package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boltzchat/agents/internal/agent"
	"github.com/boltzchat/agents/internal/sessions"
	"github.com/boltzchat/agents/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Fakes ────────────────────────────────────────────────────

type echoResponder struct {
	fail  error
	panic bool
}

func (r *echoResponder) Schema() map[string]interface{} {
	return map[string]interface{}{"title": "Echo"}
}

func (r *echoResponder) Prompt(text string) string { return "extract: " + text }

func (r *echoResponder) Respond(_ context.Context, output json.RawMessage) (agent.Reply, error) {
	if r.panic {
		panic("boom")
	}
	if r.fail != nil {
		return agent.Reply{}, r.fail
	}
	return agent.Reply{Text: "got " + string(output)}, nil
}

func (r *echoResponder) Apology() string { return "Sorry, try again later." }

type recordingExtractor struct {
	mu      sync.Mutex
	prompts []models.StructuredOutputPrompt
	err     error
}

func (x *recordingExtractor) Extract(_ context.Context, _ string, p models.StructuredOutputPrompt) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.prompts = append(x.prompts, p)
	return x.err
}

type sent struct {
	address string
	msg     models.ChatMessage
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sent
}

func (s *recordingSender) Send(_ context.Context, address string, msg models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{address, msg})
	return nil
}

func (s *recordingSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

func wait(t *testing.T, a *agent.Agent) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Wait(ctx))
}

func chat(session, sender string, content ...models.Content) models.ChatMessage {
	return models.ChatMessage{
		Timestamp: time.Now().UTC(),
		MsgID:     "msg-1",
		SessionID: session,
		Sender:    sender,
		Content:   content,
	}
}

// ── Tests ────────────────────────────────────────────────────

func TestHandleChat_AcksAndForwardsText(t *testing.T) {
	x := &recordingExtractor{}
	store := sessions.NewMemoryStore()
	a := agent.New("test", &echoResponder{}, x, store, &recordingSender{})

	ack, err := a.HandleChat(context.Background(), chat("s1", "http://user.local",
		models.Content{Type: models.ContentStartSession},
		models.Content{Type: models.ContentText, Text: "fold insulin"},
		models.Content{Type: models.ContentEndSession},
	))
	require.NoError(t, err)
	assert.Equal(t, "msg-1", ack.AcknowledgedMsgID)
	wait(t, a)

	require.Len(t, x.prompts, 1)
	assert.Equal(t, "extract: fold insulin", x.prompts[0].Prompt)
	assert.Equal(t, "Echo", x.prompts[0].OutputSchema["title"])

	sender, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "http://user.local", sender)
}

func TestHandleChat_ExtractorFailureSendsApology(t *testing.T) {
	snd := &recordingSender{}
	a := agent.New("test", &echoResponder{}, &recordingExtractor{err: errors.New("peer down")},
		sessions.NewMemoryStore(), snd)

	_, err := a.HandleChat(context.Background(), chat("s1", "http://user.local",
		models.Content{Type: models.ContentText, Text: "hi"}))
	require.NoError(t, err)
	wait(t, a)

	out := snd.all()
	require.Len(t, out, 1)
	assert.Equal(t, "Sorry, try again later.", out[0].msg.Text())
}

func TestHandleStructuredOutput_RepliesToSessionSender(t *testing.T) {
	store := sessions.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "s1", "http://user.local"))
	snd := &recordingSender{}
	a := agent.New("test", &echoResponder{}, &recordingExtractor{}, store, snd)

	require.NoError(t, a.HandleStructuredOutput(context.Background(), "s1", json.RawMessage(`{"a":1}`)))
	wait(t, a)

	out := snd.all()
	require.Len(t, out, 1)
	assert.Equal(t, "http://user.local", out[0].address)
	assert.Equal(t, `got {"a":1}`, out[0].msg.Text())
	assert.Equal(t, "s1", out[0].msg.SessionID)
	assert.NotEmpty(t, out[0].msg.MsgID)
}

func TestHandleStructuredOutput_UnknownSessionIsDiscarded(t *testing.T) {
	snd := &recordingSender{}
	a := agent.New("test", &echoResponder{}, &recordingExtractor{}, sessions.NewMemoryStore(), snd)

	err := a.HandleStructuredOutput(context.Background(), "nobody", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
	wait(t, a)
	assert.Empty(t, snd.all())
}

func TestHandleStructuredOutput_ErrorsBecomeApology(t *testing.T) {
	for name, r := range map[string]*echoResponder{
		"error": {fail: errors.New("decode failed")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			store := sessions.NewMemoryStore()
			require.NoError(t, store.Put(context.Background(), "s1", "http://user.local"))
			snd := &recordingSender{}
			a := agent.New("test", r, &recordingExtractor{}, store, snd)

			require.NoError(t, a.HandleStructuredOutput(context.Background(), "s1", json.RawMessage(`{}`)))
			wait(t, a)

			out := snd.all()
			require.Len(t, out, 1)
			assert.Equal(t, "Sorry, try again later.", out[0].msg.Text())
		})
	}
}

func TestHandleStructuredOutput_ConcurrentSessions(t *testing.T) {
	store := sessions.NewMemoryStore()
	snd := &recordingSender{}
	a := agent.New("test", &echoResponder{}, &recordingExtractor{}, store, snd)

	sessionIDs := []string{"a", "b", "c", "d", "e"}
	for _, id := range sessionIDs {
		require.NoError(t, store.Put(context.Background(), id, "http://"+id+".local"))
	}
	for _, id := range sessionIDs {
		require.NoError(t, a.HandleStructuredOutput(context.Background(), id, json.RawMessage(`"`+id+`"`)))
	}
	wait(t, a)

	out := snd.all()
	require.Len(t, out, len(sessionIDs))
	for _, s := range out {
		assert.Equal(t, "http://"+s.msg.SessionID+".local", s.address)
		assert.Equal(t, `got "`+s.msg.SessionID+`"`, s.msg.Text())
	}
}
