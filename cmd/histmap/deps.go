package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ersonp/history-map/internal/application/handlers"
	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/infrastructure/config"
	"github.com/ersonp/history-map/internal/infrastructure/gist"
	llm "github.com/ersonp/history-map/internal/infrastructure/llm/openai"
	"github.com/ersonp/history-map/internal/infrastructure/metrics"
	"github.com/ersonp/history-map/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/history-map/internal/infrastructure/session"
)

// Deps holds what commands work with. Infrastructure stays behind the workspace.
type Deps struct {
	Home      string
	Config    *config.Config
	Workspace *handlers.Workspace
	Metrics   *metrics.SyncMetrics // nil unless requested
	Logger    *slog.Logger
}

type depsOptions struct {
	// restore reloads the saved session before fn runs.
	restore bool
	// metrics attaches a Prometheus observer to the workspace.
	metrics bool
}

// withWorkspace loads config and builds the workspace with a restored
// session, then calls fn. Pending changes are written on return unless
// --no-sync is set.
func withWorkspace(ctx context.Context, fn func(*Deps) error) error {
	return withDeps(ctx, depsOptions{restore: true}, func(d *Deps) error {
		if err := fn(d); err != nil {
			return err
		}
		if globalNoSync {
			return nil
		}
		return d.Workspace.Flush(ctx)
	})
}

// withDeps builds all dependencies and handles cleanup.
func withDeps(ctx context.Context, opts depsOptions, fn func(*Deps) error) error {
	home, err := config.ResolveHome(globalHome)
	if err != nil {
		return err
	}

	cfg, err := config.Load(home)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()

	if err := os.MkdirAll(home, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	cache, err := sqlite.NewRepository(config.SQLiteConfig{Path: cfg.SQLitePath(home)})
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer cache.Close()

	if err := cache.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	sessions, err := session.NewStore(cfg.SessionDir(home), cfg.Session)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}

	gistClient, err := gist.NewClient(cfg.GitHub, nil)
	if err != nil {
		return fmt.Errorf("creating gist client: %w", err)
	}

	var completer ports.EventCompleter
	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		logger.Debug("completer unavailable", "error", err)
		completer = unavailableCompleter{err: err}
	} else {
		completer = llmClient
	}

	d := &Deps{
		Home:   home,
		Config: cfg,
		Logger: logger,
	}

	var observer ports.SyncObserver
	if opts.metrics {
		d.Metrics = metrics.NewSyncMetrics()
		observer = d.Metrics
	}

	d.Workspace = handlers.NewWorkspace(handlers.WorkspaceDeps{
		Completer: completer,
		Documents: gistClient,
		Identity:  gistClient,
		Cache:     cache,
		Sessions:  sessions,
		Observer:  observer,
		Logger:    logger,
		SyncDelay: cfg.Sync.Debounce,
		Dedup:     cfg.DedupPolicy(),
	})
	defer d.Workspace.Close()

	if opts.restore {
		if _, err := d.Workspace.Restore(ctx); err != nil {
			return fmt.Errorf("restoring session: %w", err)
		}
	}

	return fn(d)
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if globalVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// unavailableCompleter stands in when no completion provider is configured.
type unavailableCompleter struct {
	err error
}

func (u unavailableCompleter) CompleteNames(context.Context, []string) ([]entities.Event, error) {
	return nil, fmt.Errorf("completion provider not configured: %w", u.err)
}

func (u unavailableCompleter) Search(context.Context, string) ([]entities.Event, error) {
	return nil, fmt.Errorf("completion provider not configured: %w", u.err)
}
