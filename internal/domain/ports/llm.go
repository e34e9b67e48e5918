// Package ports defines interfaces for external service communication.
package ports

import (
	"context"

	"github.com/ersonp/history-map/internal/domain/entities"
)

// EventCompleter turns loose input into structured event candidates.
// Returned candidates are unvalidated; callers must check them.
type EventCompleter interface {
	// CompleteNames produces one candidate per recognized event name.
	CompleteNames(ctx context.Context, names []string) ([]entities.Event, error)

	// Search returns events matching a free-text description.
	Search(ctx context.Context, query string) ([]entities.Event, error)
}
