package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS results (
	year           INTEGER NOT NULL,
	state          TEXT    NOT NULL,
	state_key      TEXT    NOT NULL,
	candidate      TEXT    NOT NULL,
	party          TEXT    NOT NULL,
	candidatevotes INTEGER,
	totalvotes     INTEGER
);
CREATE INDEX IF NOT EXISTS results_year_state ON results (year, state_key);
`

// Store keeps presidential returns in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the SQLite database at path. ":memory:"
// gives a private in-memory database.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = "election.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create results table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Count returns the number of stored rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// Replace swaps the stored dataset for rows in one transaction.
func (s *Store) Replace(ctx context.Context, rows []Row) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM results`); err != nil {
		return fmt.Errorf("clear results: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO results
		(year, state, state_key, candidate, party, candidatevotes, totalvotes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		if _, err = stmt.ExecContext(ctx, r.Year, r.State, stateKey(r.State), r.Candidate, r.Party,
			nullable(r.CandidateVotes), nullable(r.TotalVotes)); err != nil {
			return fmt.Errorf("insert %d %s %s: %w", r.Year, r.State, r.Candidate, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Info().Int("rows", len(rows)).Msg("🗳️ Election dataset loaded")
	return nil
}

// Load parses a CSV dataset and replaces the stored rows with it.
func (s *Store) Load(ctx context.Context, r io.Reader) error {
	rows, err := ParseCSV(r)
	if err != nil {
		return err
	}
	return s.Replace(ctx, rows)
}

// Rows returns the rows for a state and year that carry a candidate vote
// count, most votes first. State matching ignores case and surrounding space.
func (s *Store) Rows(ctx context.Context, state string, year int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT year, state, candidate, party, candidatevotes, totalvotes
		FROM results
		WHERE year = ? AND state_key = ? AND candidatevotes IS NOT NULL
		ORDER BY candidatevotes DESC, rowid ASC`, year, stateKey(state))
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Row
	for rows.Next() {
		var r Row
		var votes, total sql.NullInt64
		if err := rows.Scan(&r.Year, &r.State, &r.Candidate, &r.Party, &votes, &total); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if votes.Valid {
			r.CandidateVotes = &votes.Int64
		}
		if total.Valid {
			r.TotalVotes = &total.Int64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func stateKey(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

func nullable(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
