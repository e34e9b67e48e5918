package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/history-map/internal/domain/mocks"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/config"
)

func TestInitHandler_Handle_Success(t *testing.T) {
	tmpDir := t.TempDir()

	var opened string
	handler := NewInitHandler(func(cfg config.SQLiteConfig) (ports.WorkspaceCache, error) {
		opened = cfg.Path
		return mocks.NewWorkspaceCache(), nil
	})

	result, err := handler.Handle(t.Context(), tmpDir)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Contains(t, result.ConfigPath, "config.yaml")
	assert.Equal(t, result.CachePath, opened)
	assert.True(t, config.Exists(tmpDir))
}

func TestInitHandler_Handle_AlreadyInitialized(t *testing.T) {
	tmpDir := t.TempDir()

	err := config.WriteDefault(tmpDir)
	require.NoError(t, err)

	handler := NewInitHandler(nil)

	_, err = handler.Handle(t.Context(), tmpDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already initialized")
}

func TestInitHandler_Handle_SchemaError(t *testing.T) {
	tmpDir := t.TempDir()

	cache := mocks.NewWorkspaceCache()
	cache.Err = errors.New("disk I/O error")
	handler := NewInitHandler(func(config.SQLiteConfig) (ports.WorkspaceCache, error) {
		return cache, nil
	})

	_, err := handler.Handle(t.Context(), tmpDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating cache schema")
	assert.Contains(t, err.Error(), "disk I/O error")
}
