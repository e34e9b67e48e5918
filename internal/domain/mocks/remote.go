package mocks

import (
	"context"
	"slices"
	"sync"

	"github.com/ersonp/history-map/internal/domain/entities"
)

// DocumentStore is an in-memory mock of ports.DocumentStore.
type DocumentStore struct {
	mu sync.Mutex

	Docs  map[string][]entities.Event
	DocID string // id returned by FindOrCreate

	FindErr  error
	ReadErr  error
	WriteErr error

	// WriteStarted, if set, receives a value when Write begins.
	WriteStarted chan struct{}
	// WriteBlock, if set, makes Write wait until it is closed.
	WriteBlock chan struct{}
	// OnWrite, if set, runs before the write is applied with the 1-based
	// call number; a non-nil result fails that call.
	OnWrite func(ctx context.Context, call int) error

	FindCallCount  int
	WriteCallCount int
	WriteLastToken string

	writesStarted int
}

// NewDocumentStore creates a store holding one document.
func NewDocumentStore(docID string, events []entities.Event) *DocumentStore {
	return &DocumentStore{
		Docs:  map[string][]entities.Event{docID: events},
		DocID: docID,
	}
}

// FindOrCreate returns DocID, creating an empty document if needed.
func (m *DocumentStore) FindOrCreate(_ context.Context, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindCallCount++
	if m.FindErr != nil {
		return "", m.FindErr
	}
	if m.Docs == nil {
		m.Docs = make(map[string][]entities.Event)
	}
	if _, ok := m.Docs[m.DocID]; !ok {
		m.Docs[m.DocID] = []entities.Event{}
	}
	return m.DocID, nil
}

// Read returns the stored events.
func (m *DocumentStore) Read(_ context.Context, _, docID string) ([]entities.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return slices.Clone(m.Docs[docID]), nil
}

// Write replaces the stored events.
func (m *DocumentStore) Write(ctx context.Context, token, docID string, events []entities.Event) error {
	if m.WriteStarted != nil {
		m.WriteStarted <- struct{}{}
	}
	if m.WriteBlock != nil {
		select {
		case <-m.WriteBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.OnWrite != nil {
		m.mu.Lock()
		m.writesStarted++
		call := m.writesStarted
		m.mu.Unlock()
		if err := m.OnWrite(ctx, call); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteCallCount++
	m.WriteLastToken = token
	if m.WriteErr != nil {
		return m.WriteErr
	}
	if m.Docs == nil {
		m.Docs = make(map[string][]entities.Event)
	}
	m.Docs[docID] = slices.Clone(events)
	return nil
}

// SetWriteErr changes the write error under the lock.
func (m *DocumentStore) SetWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteErr = err
}

// Writes returns the number of Write calls.
func (m *DocumentStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.WriteCallCount
}

// Doc returns a copy of a stored document.
func (m *DocumentStore) Doc(docID string) []entities.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Docs[docID])
}

// IdentityProvider is a mock implementation of ports.IdentityProvider.
type IdentityProvider struct {
	User *entities.UserProfile
	Err  error
}

// Profile returns the configured profile or error.
func (m *IdentityProvider) Profile(_ context.Context, _ string) (*entities.UserProfile, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.User, nil
}
