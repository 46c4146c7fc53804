package store

// Read side: queries open their own read-only connection so they never
// contend with the writer goroutine's handle.

import (
	"database/sql"
	"fmt"
)

// DefaultRecentPulls is the pull-history page size.
const DefaultRecentPulls = 25

// PullSummary is one row of the pull-history view.
type PullSummary struct {
	PullID      int64
	PullNumber  int
	StartedAt   int64
	EndedAt     int64 // zero when the pull never closed
	Outcome     string
	Encounter   string
	PlayerName  string
	AdviceCount int
}

// Reader is a read-only view of the database file.
type Reader struct {
	db *sql.DB
}

// OpenReadOnly opens a separate read-only connection to the database.
func OpenReadOnly(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database read-only: %w", err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() error { return r.db.Close() }

// RecentPulls returns the last n pulls, newest first, with the player name
// and the number of advice events fired during each.
func (r *Reader) RecentPulls(n int) ([]PullSummary, error) {
	if n <= 0 {
		n = DefaultRecentPulls
	}
	rows, err := r.db.Query(`
		SELECT p.id, p.pull_number, p.started_at,
		       COALESCE(p.ended_at, 0), COALESCE(p.outcome, ''), COALESCE(p.encounter, ''),
		       s.player_name, COUNT(a.id)
		FROM pulls p
		JOIN sessions s ON s.id = p.session_id
		LEFT JOIN advice_events a ON a.pull_id = p.id
		GROUP BY p.id
		ORDER BY p.id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("recent pulls query failed: %w", err)
	}
	defer rows.Close()

	var out []PullSummary
	for rows.Next() {
		var ps PullSummary
		if err := rows.Scan(
			&ps.PullID, &ps.PullNumber, &ps.StartedAt,
			&ps.EndedAt, &ps.Outcome, &ps.Encounter,
			&ps.PlayerName, &ps.AdviceCount,
		); err != nil {
			return nil, fmt.Errorf("recent pulls scan failed: %w", err)
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
