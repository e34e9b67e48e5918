package ports

import (
	"context"

	"github.com/ersonp/history-map/internal/domain/entities"
)

// Session is what survives a restart after login.
type Session struct {
	Config  entities.GitHubConfig `json:"config"`
	Profile *entities.UserProfile `json:"profile,omitempty"`
}

// SessionStore persists the current session.
type SessionStore interface {
	// Load returns the saved session, or nil if there is none.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}
