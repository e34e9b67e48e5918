package entities

import "time"

// Audit actions recorded in the local journal.
const (
	ActionLogin      = "login"
	ActionLogout     = "logout"
	ActionAdd        = "add"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionSync       = "sync"
	ActionSyncFailed = "sync_failed"
)

// AuditEntry represents a logged action in the local journal.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	EventID   string         `json:"event_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
