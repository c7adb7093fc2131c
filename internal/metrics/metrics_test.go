package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boltzchat/agents/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_RecordsAndServes(t *testing.T) {
	m := metrics.New("boltz2-agent")
	m.Turn(metrics.OutcomeReplied)
	m.Turn(metrics.OutcomeIssues)
	m.ValidationIssues(3)
	m.Prediction("ok", 2*time.Second)
	m.Lookup(true)

	out := scrape(t, m.Handler())
	assert.Contains(t, out, `boltzchat_turns_total{agent="boltz2-agent",outcome="replied"} 1`)
	assert.Contains(t, out, `boltzchat_validation_issues_total{agent="boltz2-agent"} 3`)
	assert.Contains(t, out, `boltzchat_prediction_duration_seconds_count{agent="boltz2-agent",status="ok"} 1`)
	assert.Contains(t, out, `boltzchat_election_lookups_total{agent="boltz2-agent",found="true"} 1`)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics
	m.Turn(metrics.OutcomeFailed)
	m.ValidationIssues(1)
	m.Prediction("error", time.Second)
	m.Lookup(false)

	scrape(t, m.Handler())
}
