package extract

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/boltzchat/agents/pkg/models"
)

type fakeGenerator struct {
	text   string
	err    error
	model  string
	config *genai.GenerateContentConfig
	prompt string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

type recordingSink struct {
	session string
	output  json.RawMessage
}

func (s *recordingSink) HandleStructuredOutput(_ context.Context, sessionID string, output json.RawMessage) error {
	s.session = sessionID
	s.output = output
	return nil
}

func TestGemini_ExtractDeliversToSink(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"state\":\"Georgia\",\"year\":2020}\n```"}
	sink := &recordingSink{}
	g := &Gemini{models: gen, model: "gemini-test"}
	g.Bind(sink)

	schema := map[string]interface{}{"title": "ResultsRequest", "type": "object"}
	err := g.Extract(context.Background(), "s1", models.StructuredOutputPrompt{Prompt: "who won GA in 2020", OutputSchema: schema})
	require.NoError(t, err)

	assert.Equal(t, "gemini-test", gen.model)
	assert.Equal(t, "who won GA in 2020", gen.prompt)
	assert.Equal(t, "application/json", gen.config.ResponseMIMEType)
	assert.Equal(t, schema, gen.config.ResponseJsonSchema)
	assert.Equal(t, "s1", sink.session)
	assert.JSONEq(t, `{"state":"Georgia","year":2020}`, string(sink.output))
}

func TestGemini_ExtractErrors(t *testing.T) {
	g := &Gemini{models: &fakeGenerator{err: errors.New("quota")}, model: "m"}
	err := g.Extract(context.Background(), "s", models.StructuredOutputPrompt{})
	assert.Error(t, err, "unbound extractor")

	g.Bind(&recordingSink{})
	assert.Error(t, g.Extract(context.Background(), "s", models.StructuredOutputPrompt{}))

	g.models = &fakeGenerator{text: "I think the answer is Georgia"}
	assert.Error(t, g.Extract(context.Background(), "s", models.StructuredOutputPrompt{}))
}

func TestDecodeOutput(t *testing.T) {
	out, err := decodeOutput("  ")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out))

	out, err = decodeOutput("```\n{\"a\":1}\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out))
}
