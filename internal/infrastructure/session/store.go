// Package session persists login credentials between runs using diskv.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/peterbourgon/diskv/v3"

	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/config"
)

const sessionKey = "session"

// Store implements ports.SessionStore on a diskv directory. The token is
// written with owner-only permissions.
type Store struct {
	d *diskv.Diskv
}

var _ ports.SessionStore = (*Store)(nil)

// NewStore opens a store rooted at dir.
func NewStore(dir string, cfg config.SessionConfig) (*Store, error) {
	if dir == "" {
		return nil, errors.New("session directory is required")
	}
	return &Store{d: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: cfg.CacheSizeMax,
		PathPerm:     0o700,
		FilePerm:     0o600,
	})}, nil
}

// Load returns the saved session, or nil if there is none.
func (s *Store) Load(_ context.Context) (*ports.Session, error) {
	if !s.d.Has(sessionKey) {
		return nil, nil
	}
	data, err := s.d.Read(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var sess ports.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if !sess.Config.LoggedIn() {
		return nil, nil
	}
	return &sess, nil
}

// Save writes the session.
func (s *Store) Save(_ context.Context, sess ports.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.d.Write(sessionKey, data); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Clear removes the session. Clearing an empty store is not an error.
func (s *Store) Clear(_ context.Context) error {
	if !s.d.Has(sessionKey) {
		return nil
	}
	if err := s.d.Erase(sessionKey); err != nil {
		return fmt.Errorf("erasing session: %w", err)
	}
	return nil
}
