// Package journal records instance events to a sqlite database so session
// histories survive the process and can be inspected with SQL.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/session"
)

// Journal is an append-only event log backed by sqlite.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the journal at path and migrates it to
// the latest schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA journal_mode = WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure journal %s: %w", path, err)
	}
	j := &Journal{db: db, path: path}
	if err := j.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// DB returns the underlying database.
func (j *Journal) DB() *sql.DB { return j.db }

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Record appends one event and updates the session summary row.
func (j *Journal) Record(ctx context.Context, e session.Event) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record: %w", err)
	}
	defer tx.Rollback()

	var state, reason sql.NullString
	var fromRate, toRate sql.NullFloat64
	switch e.Type {
	case session.EventSessionStateChanged:
		state = sql.NullString{String: e.State.String(), Valid: true}
		reason = sql.NullString{String: e.Reason, Valid: e.Reason != ""}
	case session.EventDisplayRefreshRateChanged:
		fromRate = sql.NullFloat64{Float64: float64(e.FromRate), Valid: true}
		toRate = sql.NullFloat64{Float64: float64(e.ToRate), Valid: true}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (event_type, session_id, xr_time_ns, state, reason, from_rate, to_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Type.String(), string(e.Session), e.Time, state, reason, fromRate, toRate,
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if state.Valid {
		lost := sql.NullString{}
		if e.State == session.StateLossPending {
			lost = reason
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (session_id, first_seen_ns, last_state, lost_reason)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(session_id) DO UPDATE SET
			   last_state = excluded.last_state,
			   lost_reason = COALESCE(excluded.lost_reason, sessions.lost_reason),
			   updated_at = CURRENT_TIMESTAMP`,
			string(e.Session), e.Time, state.String, lost,
		); err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
	}
	return tx.Commit()
}

// Run subscribes to inst and records every event until ctx is done or the
// instance is destroyed. Write failures are logged and skipped.
func (j *Journal) Run(ctx context.Context, inst *session.Instance) error {
	id, events := inst.Subscribe()
	defer inst.Unsubscribe(id)
	monitoring.Logf("[journal] recording events to %s", j.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if err := j.Record(ctx, e); err != nil {
				monitoring.Logf("[journal] failed to record %s for %s: %v", e.Type, e.Session, err)
			}
		}
	}
}

// Entry is one recorded event.
type Entry struct {
	ID       int64     `json:"id"`
	Type     string    `json:"type"`
	Session  handle.ID `json:"session"`
	TimeNs   int64     `json:"time_ns"`
	State    string    `json:"state,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	FromRate float64   `json:"from_rate,omitempty"`
	ToRate   float64   `json:"to_rate,omitempty"`
}

// Query filters Events. A zero Query returns the most recent entries.
type Query struct {
	Session handle.ID
	// Limit defaults to 100.
	Limit int
}

// Events returns recorded events, newest first.
func (j *Journal) Events(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT event_id, event_type, session_id, xr_time_ns,
	                 COALESCE(state, ''), COALESCE(reason, ''),
	                 COALESCE(from_rate, 0), COALESCE(to_rate, 0)
	          FROM events`
	args := []interface{}{}
	if q.Session != handle.Nil {
		query += ` WHERE session_id = ?`
		args = append(args, string(q.Session))
	}
	query += ` ORDER BY event_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var sess string
		if err := rows.Scan(&e.ID, &e.Type, &sess, &e.TimeNs, &e.State, &e.Reason, &e.FromRate, &e.ToRate); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Session = handle.ID(sess)
		out = append(out, e)
	}
	return out, rows.Err()
}

// SessionSummary is the journal's view of one session.
type SessionSummary struct {
	Session    handle.ID `json:"session"`
	FirstSeen  int64     `json:"first_seen_ns"`
	LastState  string    `json:"last_state"`
	LostReason string    `json:"lost_reason,omitempty"`
}

// Sessions returns every session the journal has seen, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id, first_seen_ns, last_state, COALESCE(lost_reason, '')
		 FROM sessions ORDER BY first_seen_ns, session_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var s SessionSummary
		var id string
		if err := rows.Scan(&id, &s.FirstSeen, &s.LastState, &s.LostReason); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Session = handle.ID(id)
		out = append(out, s)
	}
	return out, rows.Err()
}
