package mocks

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/ports"
)

// WorkspaceCache is an in-memory mock of ports.WorkspaceCache.
type WorkspaceCache struct {
	mu sync.Mutex

	Snapshot *ports.WorkspaceSnapshot
	Journal  []entities.AuditEntry
	Err      error

	SaveCallCount int
}

// NewWorkspaceCache creates an empty mock cache.
func NewWorkspaceCache() *WorkspaceCache {
	return &WorkspaceCache{}
}

// EnsureSchema creates the database schema if it doesn't exist.
func (m *WorkspaceCache) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close closes the database connection.
func (m *WorkspaceCache) Close() error {
	return nil
}

// Load returns the saved snapshot.
func (m *WorkspaceCache) Load(_ context.Context) (*ports.WorkspaceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Snapshot == nil {
		return nil, nil
	}
	snap := *m.Snapshot
	snap.Events = slices.Clone(snap.Events)
	return &snap, nil
}

// Save stores the snapshot.
func (m *WorkspaceCache) Save(_ context.Context, snap ports.WorkspaceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SaveCallCount++
	snap.Events = slices.Clone(snap.Events)
	m.Snapshot = &snap
	return nil
}

// Clear drops the snapshot.
func (m *WorkspaceCache) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Snapshot = nil
	return nil
}

// LogAction appends a journal entry.
func (m *WorkspaceCache) LogAction(_ context.Context, action, eventID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Journal = append(m.Journal, entities.AuditEntry{
		ID:        int64(len(m.Journal) + 1),
		Action:    action,
		EventID:   eventID,
		Details:   details,
		CreatedAt: time.Now(),
	})
	return nil
}

// RecentActions returns the newest entries first.
func (m *WorkspaceCache) RecentActions(_ context.Context, limit int) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := slices.Clone(m.Journal)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// FindAuditLog returns the entries for eventID, newest first.
func (m *WorkspaceCache) FindAuditLog(_ context.Context, eventID string) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.AuditEntry
	for i := len(m.Journal) - 1; i >= 0; i-- {
		if m.Journal[i].EventID == eventID {
			out = append(out, m.Journal[i])
		}
	}
	return out, nil
}

// Actions returns the journaled action names in order.
func (m *WorkspaceCache) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.Journal))
	for i, e := range m.Journal {
		names[i] = e.Action
	}
	return names
}

// Dirty reports the saved dirty flag.
func (m *WorkspaceCache) Dirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Snapshot != nil && m.Snapshot.Dirty
}
