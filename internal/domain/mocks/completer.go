// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"
	"slices"
	"sync"

	"github.com/ersonp/history-map/internal/domain/entities"
)

// EventCompleter is a mock implementation of ports.EventCompleter.
type EventCompleter struct {
	mu sync.Mutex

	// CompleteNames return values
	Events      []entities.Event
	CompleteErr error

	// Search return values
	SearchEvents []entities.Event
	SearchErr    error

	// Block, if set, makes calls wait until it is closed.
	Block chan struct{}

	CompleteCallCount int
	CompleteLastNames []string
	SearchLastQuery   string
}

// CompleteNames returns the configured events or error.
func (m *EventCompleter) CompleteNames(ctx context.Context, names []string) ([]entities.Event, error) {
	m.wait(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CompleteCallCount++
	m.CompleteLastNames = slices.Clone(names)
	if m.CompleteErr != nil {
		return nil, m.CompleteErr
	}
	return slices.Clone(m.Events), nil
}

// Search returns the configured events or error.
func (m *EventCompleter) Search(ctx context.Context, query string) ([]entities.Event, error) {
	m.wait(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SearchLastQuery = query
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return slices.Clone(m.SearchEvents), nil
}

func (m *EventCompleter) wait(ctx context.Context) {
	if m.Block == nil {
		return
	}
	select {
	case <-m.Block:
	case <-ctx.Done():
	}
}
