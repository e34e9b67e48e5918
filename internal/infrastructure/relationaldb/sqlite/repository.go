// Package sqlite provides a SQLite implementation of the WorkspaceCache interface.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/config"
)

const (
	stateDirty   = "dirty"
	stateSavedAt = "saved_at"
)

// timeNow returns the current time (can be mocked in tests).
var timeNow = time.Now

// Repository implements ports.WorkspaceCache using SQLite.
type Repository struct {
	db *sql.DB
}

var _ ports.WorkspaceCache = (*Repository)(nil)

// NewRepository creates a new SQLite repository at path.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Cached events in collection order
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		date_str TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		location_name TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL DEFAULT 0,
		lng REAL NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_events_position ON events(position);

	-- Workspace flags (dirty, saved_at)
	CREATE TABLE IF NOT EXISTS workspace_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Audit log (tracks all actions)
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		event_id TEXT,
		details TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_event ON audit_log(event_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action);
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Load returns the cached snapshot, or nil if Save was never called.
func (r *Repository) Load(ctx context.Context) (*ports.WorkspaceSnapshot, error) {
	state, err := r.readState(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := state[stateSavedAt]; !ok {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, date_str, description, location_name, lat, lng, category
		FROM events
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	snap := &ports.WorkspaceSnapshot{
		Events: []entities.Event{},
		Dirty:  state[stateDirty] == "1",
	}
	for rows.Next() {
		var e entities.Event
		if err := rows.Scan(
			&e.ID,
			&e.Title,
			&e.DateStr,
			&e.Description,
			&e.Location.Name,
			&e.Location.Lat,
			&e.Location.Lng,
			&e.Category,
		); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.IsSaved = true
		snap.Events = append(snap.Events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return snap, nil
}

// Save replaces the cached events and flags in one transaction.
func (r *Repository) Save(ctx context.Context, snap ports.WorkspaceSnapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("clearing events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (id, position, title, date_str, description, location_name, lat, lng, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range snap.Events {
		if _, err := stmt.ExecContext(ctx,
			e.ID, i, e.Title, e.DateStr, e.Description,
			e.Location.Name, e.Location.Lat, e.Location.Lng, e.Category,
		); err != nil {
			return fmt.Errorf("inserting event %s: %w", e.ID, err)
		}
	}

	dirty := "0"
	if snap.Dirty {
		dirty = "1"
	}
	if err := upsertState(ctx, tx, stateDirty, dirty); err != nil {
		return err
	}
	if err := upsertState(ctx, tx, stateSavedAt, timeNow().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Clear removes all cached events and flags. The audit log is kept.
func (r *Repository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events; DELETE FROM workspace_state;`); err != nil {
		return fmt.Errorf("clearing workspace: %w", err)
	}
	return nil
}

func (r *Repository) readState(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM workspace_state`)
	if err != nil {
		return nil, fmt.Errorf("querying workspace state: %w", err)
	}
	defer rows.Close()

	state := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning workspace state: %w", err)
		}
		state[k] = v
	}
	return state, rows.Err()
}

func upsertState(ctx context.Context, tx *sql.Tx, key, value string) error {
	query := `
		INSERT INTO workspace_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := tx.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// LogAction logs an action to the audit log.
func (r *Repository) LogAction(ctx context.Context, action, eventID string, details map[string]any) error {
	var detailsJSON sql.NullString
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshaling details: %w", err)
		}
		detailsJSON = sql.NullString{String: string(data), Valid: true}
	}

	var eventIDPtr sql.NullString
	if eventID != "" {
		eventIDPtr = sql.NullString{String: eventID, Valid: true}
	}

	query := `INSERT INTO audit_log (action, event_id, details) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, action, eventIDPtr, detailsJSON)
	if err != nil {
		return fmt.Errorf("logging action: %w", err)
	}
	return nil
}

// RecentActions returns the newest audit entries first.
func (r *Repository) RecentActions(ctx context.Context, limit int) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, event_id, details, created_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT ?
	`
	return r.queryAuditLog(ctx, query, limit)
}

// FindAuditLog finds audit log entries for a specific event.
func (r *Repository) FindAuditLog(ctx context.Context, eventID string) ([]entities.AuditEntry, error) {
	query := `
		SELECT id, action, event_id, details, created_at
		FROM audit_log
		WHERE event_id = ?
		ORDER BY id DESC
	`
	return r.queryAuditLog(ctx, query, eventID)
}

// queryAuditLog is a helper to execute audit log queries.
func (r *Repository) queryAuditLog(ctx context.Context, query string, args ...any) ([]entities.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []entities.AuditEntry
	for rows.Next() {
		var entry entities.AuditEntry
		var eventID, details sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.Action,
			&eventID,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		entry.EventID = eventID.String

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshaling details: %w", err)
			}
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
