package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/config"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "session")
	s, err := NewStore(dir, config.SessionConfig{CacheSizeMax: 1024})
	require.NoError(t, err)
	return s, dir
}

func TestNewStore_RequiresDir(t *testing.T) {
	_, err := NewStore("", config.SessionConfig{})
	assert.Error(t, err)
}

func TestStore_LoadEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	sess, err := s.Load(t.Context())
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.NoError(t, s.Clear(t.Context()))
}

func TestStore_SaveLoadClear(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := t.Context()
	want := ports.Session{
		Config:  entities.GitHubConfig{Token: "ghp_abc", GistID: "g1"},
		Profile: &entities.UserProfile{Login: "octocat", Name: "The Octocat"},
	}

	require.NoError(t, s.Save(ctx, want))

	// A fresh store on the same directory sees the saved session.
	reopened, err := NewStore(dir, config.SessionConfig{})
	require.NoError(t, err)
	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, *got)

	info, err := os.Stat(filepath.Join(dir, sessionKey))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Clear(ctx))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_IncompleteSessionIsIgnored(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Save(ctx, ports.Session{Config: entities.GitHubConfig{Token: "t"}}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_CorruptSession(t *testing.T) {
	s, dir := newTestStore(t)
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionKey), []byte("{"), 0o600))

	_, err := s.Load(t.Context())
	assert.Error(t, err)
}
