package mocks

import (
	"context"

	"github.com/ersonp/history-map/internal/domain/ports"
)

// SessionStore is an in-memory mock of ports.SessionStore.
type SessionStore struct {
	Session *ports.Session
	Err     error
}

// Load returns the saved session.
func (m *SessionStore) Load(_ context.Context) (*ports.Session, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Session == nil {
		return nil, nil
	}
	s := *m.Session
	return &s, nil
}

// Save stores the session.
func (m *SessionStore) Save(_ context.Context, s ports.Session) error {
	if m.Err != nil {
		return m.Err
	}
	m.Session = &s
	return nil
}

// Clear drops the session.
func (m *SessionStore) Clear(_ context.Context) error {
	if m.Err != nil {
		return m.Err
	}
	m.Session = nil
	return nil
}
