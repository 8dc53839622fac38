package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lotekdan/extguard/internal/browsers"
	"github.com/lotekdan/extguard/internal/discovery"
	"github.com/lotekdan/extguard/internal/enforce"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the enforcement history store.
type DB struct {
	conn *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS verdicts (
        browser TEXT NOT NULL,
        verdict TEXT NOT NULL,
        reason TEXT,
        checked INTEGER NOT NULL,
        present INTEGER NOT NULL,
        read_errors INTEGER NOT NULL,
        timestamp INTEGER NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS verdicts_browser_ts ON verdicts (browser, timestamp)`,
	`CREATE TABLE IF NOT EXISTS cycles (
        id TEXT PRIMARY KEY,
        browser TEXT NOT NULL,
        image TEXT NOT NULL,
        reason TEXT,
        state TEXT NOT NULL,
        armed_at INTEGER NOT NULL,
        closed_at INTEGER,
        killed INTEGER NOT NULL,
        snapshots TEXT
    )`,
	`CREATE TABLE IF NOT EXISTS sweeps (
        exe TEXT NOT NULL,
        killed INTEGER NOT NULL,
        timestamp INTEGER NOT NULL
    )`,
}

// NewDB opens (creating if needed) the SQLite database at path.
func NewDB(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// the monitor, the status CLI and enforcement goroutines share one file
	conn.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// RecordVerdict stores one browser verdict observed at at.
func (d *DB) RecordVerdict(ctx context.Context, scan browsers.Scan, at time.Time) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO verdicts (browser, verdict, reason, checked, present, read_errors, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scan.Browser, scan.Verdict.String(), scan.Reason, scan.Checked, scan.Present, scan.ReadErrors, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert verdict: %w", err)
	}
	return nil
}

// VerdictRow is a stored verdict.
type VerdictRow struct {
	Browser string    `json:"browser"`
	Verdict string    `json:"verdict"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// LatestVerdicts returns the most recent verdict of every browser.
func (d *DB) LatestVerdicts(ctx context.Context) ([]VerdictRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
        SELECT v.browser, v.verdict, COALESCE(v.reason, ''), v.timestamp
        FROM verdicts v
        JOIN (SELECT browser, MAX(timestamp) AS ts FROM verdicts GROUP BY browser) latest
          ON v.browser = latest.browser AND v.timestamp = latest.ts
        ORDER BY v.browser`)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	var out []VerdictRow
	for rows.Next() {
		var r VerdictRow
		var ts int64
		if err := rows.Scan(&r.Browser, &r.Verdict, &r.Reason, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.At = time.UnixMilli(ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordCycle inserts or updates an enforcement cycle.
func (d *DB) RecordCycle(ctx context.Context, c enforce.Cycle) error {
	var closedAt sql.NullInt64
	if !c.ClosedAt.IsZero() {
		closedAt = sql.NullInt64{Int64: c.ClosedAt.UnixMilli(), Valid: true}
	}
	_, err := d.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO cycles (id, browser, image, reason, state, armed_at, closed_at, killed, snapshots) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Browser, c.Image, c.Reason, c.State.String(), c.ArmedAt.UnixMilli(), closedAt, c.Killed, strings.Join(c.Snapshots, "\n"))
	if err != nil {
		return fmt.Errorf("failed to record cycle %s: %w", c.ID, err)
	}
	return nil
}

// RecordSweep stores every executable a sweep ended processes for.
func (d *DB) RecordSweep(ctx context.Context, r discovery.Result) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	now := time.Now().UnixMilli()
	for exe, killed := range r.Killed {
		if killed == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sweeps (exe, killed, timestamp) VALUES (?, ?, ?)`, exe, killed, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert sweep: %w", err)
		}
	}

	return tx.Commit()
}

// Event is one entry of the merged history.
type Event struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	Target string    `json:"target"`
	Detail string    `json:"detail"`
}

// RecentEvents returns the latest limit events across verdicts, cycles and
// sweeps, newest first.
func (d *DB) RecentEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.QueryContext(ctx, `
        SELECT timestamp, 'verdict', browser, verdict || CASE WHEN reason IS NULL OR reason = '' THEN '' ELSE ': ' || reason END FROM verdicts
        UNION ALL
        SELECT armed_at, 'enforcement', browser, state || ', ' || killed || ' process(es) closed' FROM cycles
        UNION ALL
        SELECT timestamp, 'sweep', exe, killed || ' process(es) closed' FROM sweeps
        ORDER BY 1 DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var ts int64
		if err := rows.Scan(&ts, &e.Kind, &e.Target, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.At = time.UnixMilli(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}
