package election

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/boltzchat/agents/internal/agent"
	"github.com/boltzchat/agents/internal/metrics"
)

// Unknown is what the extractor puts in a field it could not fill.
const Unknown = "<UNKNOWN>"

// Reply texts shown to users.
const (
	Apology = "Sorry, I couldn't check the election results. Please try again later."

	msgBothUnknown  = "Please include both a valid U.S. state and presidential election year."
	msgStateUnknown = "Sorry, I couldn't find a valid U.S. state in your query."
	msgYearUnknown  = "Sorry, I couldn't find a valid election year in your query."
)

// ResultsRequest is the extracted question. A zero Year or empty State means
// the extractor could not find one.
type ResultsRequest struct {
	State string
	Year  int
}

// ParseResultsRequest reads the extractor's loosely-typed object. Missing
// fields, the <UNKNOWN> marker and years that are not whole numbers all
// count as unknown.
func ParseResultsRequest(output []byte) ResultsRequest {
	var req ResultsRequest
	if !gjson.ValidBytes(output) {
		return req
	}
	obj := gjson.ParseBytes(output)

	if st := obj.Get("state"); st.Type == gjson.String {
		if s := strings.TrimSpace(st.Str); s != "" && s != Unknown {
			req.State = s
		}
	}

	switch y := obj.Get("year"); y.Type {
	case gjson.Number:
		if !strings.ContainsAny(y.Raw, ".eE") {
			req.Year = int(y.Int())
		}
	case gjson.String:
		if n, err := strconv.Atoi(strings.TrimSpace(y.Str)); err == nil {
			req.Year = n
		}
	}
	if req.Year <= 0 {
		req.Year = 0
	}
	return req
}

// Responder is the election agent's domain half.
type Responder struct {
	store   *Store
	metrics *metrics.Metrics
}

var _ agent.Responder = (*Responder)(nil)

// NewResponder creates a Responder over store. m may be nil.
func NewResponder(store *Store, m *metrics.Metrics) *Responder {
	return &Responder{store: store, metrics: m}
}

func (r *Responder) Schema() map[string]interface{} { return Schema() }

// Prompt passes the user's text through unchanged; the schema carries the
// instructions.
func (r *Responder) Prompt(text string) string { return text }

func (r *Responder) Apology() string { return Apology }

func (r *Responder) Respond(ctx context.Context, output json.RawMessage) (agent.Reply, error) {
	req := ParseResultsRequest(output)
	switch {
	case req.State == "" && req.Year == 0:
		return agent.Reply{Text: msgBothUnknown, Outcome: metrics.OutcomeIssues}, nil
	case req.State == "":
		return agent.Reply{Text: msgStateUnknown, Outcome: metrics.OutcomeIssues}, nil
	case req.Year == 0:
		return agent.Reply{Text: msgYearUnknown, Outcome: metrics.OutcomeIssues}, nil
	}

	res, err := Lookup(ctx, r.store, req.State, req.Year)
	if errors.Is(err, ErrNoResults) {
		r.metrics.Lookup(false)
		return agent.Reply{Text: "No results found for " + TitleCase(req.State) + " in " + strconv.Itoa(req.Year) + "."}, nil
	}
	if err != nil {
		return agent.Reply{}, err
	}
	r.metrics.Lookup(true)
	return agent.Reply{Text: res.Summary()}, nil
}

// Schema is the output schema handed to the extractor.
func Schema() map[string]interface{} {
	return map[string]interface{}{
		"title": "ResultsRequest",
		"type":  "object",
		"properties": map[string]interface{}{
			"state": map[string]interface{}{
				"title":       "State",
				"type":        "string",
				"description": "Full name of the U.S. state the user asks about, or " + Unknown + " if none is given.",
			},
			"year": map[string]interface{}{
				"title":       "Year",
				"type":        "integer",
				"description": "Presidential election year the user asks about. Use 0 if none is given.",
			},
		},
		"required": []interface{}{"state", "year"},
	}
}
