package election

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// sampleCSV is a small extract of the MIT Election Data and Science Lab
// presidential returns, used when no dataset file is configured.
//
//go:embed data/president_sample.csv
var sampleCSV []byte

// SampleData returns a reader over the embedded sample dataset.
func SampleData() io.Reader { return bytes.NewReader(sampleCSV) }

// Row is one candidate's returns in one state and year. CandidateVotes and
// TotalVotes are nil when the dataset has no value.
type Row struct {
	Year           int
	State          string
	Candidate      string
	Party          string
	CandidateVotes *int64
	TotalVotes     *int64
}

var requiredColumns = []string{"year", "state", "candidate", "party_detailed", "candidatevotes"}

// ParseCSV reads rows in the MIT Election Lab column layout. Only the columns
// the agent uses are required; others are ignored.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("dataset is missing column %q", name)
		}
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		year, err := strconv.Atoi(field(rec, "year"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid year %q", line, field(rec, "year"))
		}
		votes, err := parseCount(field(rec, "candidatevotes"))
		if err != nil {
			return nil, fmt.Errorf("line %d: candidatevotes: %w", line, err)
		}
		total, err := parseCount(field(rec, "totalvotes"))
		if err != nil {
			return nil, fmt.Errorf("line %d: totalvotes: %w", line, err)
		}
		rows = append(rows, Row{
			Year:           year,
			State:          field(rec, "state"),
			Candidate:      field(rec, "candidate"),
			Party:          field(rec, "party_detailed"),
			CandidateVotes: votes,
			TotalVotes:     total,
		})
	}
	return rows, nil
}

// parseCount reads a vote count. Empty, NA and NaN mean no value; counts
// written as floats are truncated.
func parseCount(s string) (*int64, error) {
	switch strings.ToUpper(s) {
	case "", "NA", "NAN", "NULL":
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) {
		return nil, fmt.Errorf("invalid count %q", s)
	}
	n := int64(f)
	return &n, nil
}
