package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/config"
)

// CacheOpener opens the local workspace cache described by cfg.
type CacheOpener func(cfg config.SQLiteConfig) (ports.WorkspaceCache, error)

// InitHandler handles state directory initialization.
type InitHandler struct {
	openCache CacheOpener
}

// NewInitHandler creates a new init handler.
func NewInitHandler(openCache CacheOpener) *InitHandler {
	return &InitHandler{
		openCache: openCache,
	}
}

// InitResult contains the result of initialization.
type InitResult struct {
	ConfigPath string
	CachePath  string
}

// Handle writes the default config into home and creates the cache schema.
func (h *InitHandler) Handle(ctx context.Context, home string) (*InitResult, error) {
	if config.Exists(home) {
		return nil, fmt.Errorf("histmap already initialized in %s", home)
	}

	if err := config.WriteDefault(home); err != nil {
		return nil, fmt.Errorf("writing default config: %w", err)
	}

	cfg, err := config.Load(home)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	cachePath := cfg.SQLitePath(home)
	if h.openCache != nil {
		cache, err := h.openCache(config.SQLiteConfig{Path: cachePath})
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		defer cache.Close()

		if err := cache.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("creating cache schema: %w", err)
		}
	}

	return &InitResult{
		ConfigPath: config.ConfigFilePath(home),
		CachePath:  cachePath,
	}, nil
}
