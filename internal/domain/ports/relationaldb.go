package ports

import (
	"context"

	"github.com/ersonp/history-map/internal/domain/entities"
)

// WorkspaceSnapshot is the locally cached state of a session.
type WorkspaceSnapshot struct {
	Events []entities.Event
	Dirty  bool
}

// WorkspaceCache keeps the collection on disk between process runs so
// unsynchronized edits survive a restart.
type WorkspaceCache interface {
	// EnsureSchema creates the database schema if it doesn't exist.
	EnsureSchema(ctx context.Context) error

	// Close closes the database connection.
	Close() error

	// Load returns the cached snapshot, or nil if nothing was saved yet.
	Load(ctx context.Context) (*WorkspaceSnapshot, error)

	// Save replaces the cached snapshot.
	Save(ctx context.Context, snap WorkspaceSnapshot) error

	// Clear removes all cached events and state.
	Clear(ctx context.Context) error

	// LogAction appends an entry to the local journal.
	LogAction(ctx context.Context, action, eventID string, details map[string]any) error

	// RecentActions returns the newest journal entries first.
	RecentActions(ctx context.Context, limit int) ([]entities.AuditEntry, error)

	// FindAuditLog returns the journal entries for one event, newest first.
	FindAuditLog(ctx context.Context, eventID string) ([]entities.AuditEntry, error)
}
