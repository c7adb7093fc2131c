// Package election answers questions about historical U.S. presidential
// election results from a static dataset.
package election

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("boltzchat/election")

// ErrNoResults is returned when the dataset has no returns for the state and year.
var ErrNoResults = errors.New("no results found")

// CandidateResult is one candidate's display-ready returns.
type CandidateResult struct {
	Candidate      string
	Party          string
	CandidateVotes int64
	TotalVotes     int64
}

// Results holds a state's returns for one year, most votes first.
type Results struct {
	State   string
	Year    int
	Results []CandidateResult
}

// Lookup fetches and normalizes the returns for state and year.
func Lookup(ctx context.Context, store *Store, state string, year int) (*Results, error) {
	ctx, span := tracer.Start(ctx, "election.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("election.state", state), attribute.Int("election.year", year))

	log.Info().Str("state", state).Int("year", year).Msg("🔎 Looking up results")
	rows, err := store.Rows(ctx, state, year)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		log.Warn().Str("state", TitleCase(state)).Int("year", year).Msg("No results found")
		return nil, fmt.Errorf("%w for %s in %d", ErrNoResults, state, year)
	}

	res := &Results{State: state, Year: year, Results: make([]CandidateResult, 0, len(rows))}
	for _, r := range rows {
		cr := CandidateResult{
			Candidate:      ReformatName(TitleCase(r.Candidate)),
			Party:          TitleCase(r.Party),
			CandidateVotes: *r.CandidateVotes,
		}
		if r.TotalVotes != nil {
			cr.TotalVotes = *r.TotalVotes
		}
		res.Results = append(res.Results, cr)
	}
	log.Info().Int("results", len(res.Results)).Str("state", TitleCase(state)).Int("year", year).Msg("Parsed results")
	return res, nil
}

// Summary renders the winner line and the numbered vote totals.
func (r *Results) Summary() string {
	winner := r.Results[0]
	var b strings.Builder
	fmt.Fprintf(&b, "%s candidate %s won %s in %d. %s people voted in total.",
		winner.Party, winner.Candidate, TitleCase(r.State), r.Year, humanize.Comma(winner.TotalVotes))
	b.WriteString("\n\nHere are the vote totals:")
	for i, c := range r.Results {
		fmt.Fprintf(&b, "\n%d. %s (%s): %s votes", i+1, c.Candidate, c.Party, humanize.Comma(c.CandidateVotes))
	}
	return b.String()
}

// ReformatName turns "Last, First" into "First Last". Names without a comma
// are only trimmed.
func ReformatName(name string) string {
	if last, first, ok := strings.Cut(name, ","); ok {
		return strings.TrimSpace(first) + " " + strings.TrimSpace(last)
	}
	return strings.TrimSpace(name)
}

// TitleCase upper-cases the first letter of every run of letters and
// lower-cases the rest, so "O'ROURKE, BETO" becomes "O'Rourke, Beto".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && prevLetter:
			b.WriteRune(unicode.ToLower(r))
		case isLetter:
			b.WriteRune(unicode.ToTitle(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = isLetter
	}
	return b.String()
}
