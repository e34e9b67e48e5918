package ports

import (
	"context"

	"github.com/ersonp/history-map/internal/domain/entities"
)

// DocumentStore persists the event collection as a single remote document.
type DocumentStore interface {
	// FindOrCreate returns the id of the user's events document, creating
	// an empty private one if none exists.
	FindOrCreate(ctx context.Context, token string) (string, error)

	// Read returns the stored events. A missing or empty document yields an
	// empty slice; unreadable content is an error.
	Read(ctx context.Context, token, docID string) ([]entities.Event, error)

	// Write replaces the document content with events.
	Write(ctx context.Context, token, docID string, events []entities.Event) error
}

// IdentityProvider resolves a token to the account that owns it.
type IdentityProvider interface {
	Profile(ctx context.Context, token string) (*entities.UserProfile, error)
}
