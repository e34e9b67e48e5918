// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/ersonp/history-map/internal/domain/chrono"
	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/domain/services"
	"github.com/ersonp/history-map/internal/infrastructure/parsers"
)

// autoSyncTimeout bounds a write started by the debounce timer.
const autoSyncTimeout = 2 * time.Minute

// ErrNotLoggedIn is returned by operations that need a loaded collection.
var ErrNotLoggedIn = errors.New("not logged in; run 'histmap login' first")

// WorkspaceDeps wires a Workspace. Cache, Sessions and Observer are optional.
type WorkspaceDeps struct {
	Completer ports.EventCompleter
	Documents ports.DocumentStore
	Identity  ports.IdentityProvider
	Cache     ports.WorkspaceCache
	Sessions  ports.SessionStore
	Observer  ports.SyncObserver
	Logger    *slog.Logger

	// SyncDelay is the quiet period before an automatic write.
	SyncDelay time.Duration
	// Dedup applies to batches produced by the completer.
	Dedup services.DedupPolicy
}

// Status summarizes the workspace for display.
type Status struct {
	LoggedIn bool
	Profile  *entities.UserProfile
	GistID   string
	Events   int
	Sync     services.SyncStatus
}

// Workspace is the single owner of the event collection, the sync policy
// and the review slot. All methods are safe for concurrent use.
type Workspace struct {
	deps      WorkspaceDeps
	logger    *slog.Logger
	ingestion *services.IngestionService
	policy    *services.SyncPolicy
	baseCtx   context.Context

	mu         sync.Mutex
	collection *services.Collection // nil until logged in
	account    entities.GitHubConfig
	profile    *entities.UserProfile
}

// NewWorkspace creates a logged-out workspace.
func NewWorkspace(deps WorkspaceDeps) *Workspace {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if deps.Dedup == "" {
		deps.Dedup = services.DedupTitleYear
	}

	w := &Workspace{
		deps:    deps,
		logger:  logger,
		baseCtx: context.Background(),
	}
	w.ingestion = services.NewIngestionService(deps.Completer, logger)
	w.policy = services.NewSyncPolicy(deps.SyncDelay, w.autoSync, deps.Observer)
	return w
}

// Close stops the debounce timer. Pending changes stay in the local cache.
func (w *Workspace) Close() {
	w.policy.Stop()
}

// Login validates the token, resolves the remote document and replaces the
// collection with its content.
func (w *Workspace) Login(ctx context.Context, token string) (*entities.UserProfile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &services.ValidationError{Field: "token", Message: "token is required"}
	}
	if strings.IndexFunc(token, func(r rune) bool { return r > unicode.MaxASCII }) >= 0 {
		return nil, &services.ValidationError{Field: "token", Message: "token contains invalid characters"}
	}

	profile, err := w.deps.Identity.Profile(ctx, token)
	if err != nil {
		return nil, &services.CollaboratorError{Op: "verifying token", Err: err}
	}
	if profile == nil {
		profile = &entities.UserProfile{}
	}

	gistID, err := w.deps.Documents.FindOrCreate(ctx, token)
	if err != nil {
		return nil, &services.CollaboratorError{Op: "locating events gist", Err: err}
	}

	account := entities.GitHubConfig{Token: token, GistID: gistID}
	events, err := w.deps.Documents.Read(ctx, token, gistID)
	if err != nil {
		return nil, &services.CollaboratorError{Op: "reading events gist", Err: err}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.install(account, profile, events, false)
	if w.deps.Sessions != nil {
		if err := w.deps.Sessions.Save(ctx, ports.Session{Config: account, Profile: profile}); err != nil {
			return nil, fmt.Errorf("saving session: %w", err)
		}
	}
	if err := w.persistLocked(ctx); err != nil {
		return nil, err
	}
	w.journal(ctx, entities.ActionLogin, "", map[string]any{"login": profile.Login, "events": len(events)})

	w.logger.Info("logged in", "login", profile.Login, "gist", gistID, "events", len(events))
	return profile, nil
}

// Restore reloads a saved session. Unsynchronized cached changes are kept
// and scheduled for writing; otherwise the remote document is read again.
// It reports false when there is no saved session.
func (w *Workspace) Restore(ctx context.Context) (bool, error) {
	if w.deps.Sessions == nil {
		return false, nil
	}
	sess, err := w.deps.Sessions.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("loading session: %w", err)
	}
	if sess == nil || !sess.Config.LoggedIn() {
		return false, nil
	}

	var snap *ports.WorkspaceSnapshot
	if w.deps.Cache != nil {
		snap, err = w.deps.Cache.Load(ctx)
		if err != nil {
			return false, fmt.Errorf("loading local cache: %w", err)
		}
	}

	if snap != nil && snap.Dirty {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.install(sess.Config, sess.Profile, snap.Events, true)
		w.logger.Info("restored unsynchronized changes", "events", len(snap.Events))
		return true, nil
	}

	events, err := w.deps.Documents.Read(ctx, sess.Config.Token, sess.Config.GistID)
	if err != nil {
		if snap == nil {
			return false, &services.CollaboratorError{Op: "reading events gist", Err: err}
		}
		w.logger.Warn("remote read failed; using local cache", "error", err)
		events = snap.Events
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.install(sess.Config, sess.Profile, events, false)
	if err := w.persistLocked(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Logout forgets the credentials, the collection and any open review.
func (w *Workspace) Logout(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	login := ""
	if w.profile != nil {
		login = w.profile.Login
	}
	w.collection = nil
	w.account = entities.GitHubConfig{}
	w.profile = nil
	w.policy.Reset(false)
	w.ingestion.Discard()

	if w.deps.Sessions != nil {
		if err := w.deps.Sessions.Clear(ctx); err != nil {
			return fmt.Errorf("clearing session: %w", err)
		}
	}
	if w.deps.Cache != nil {
		if err := w.deps.Cache.Clear(ctx); err != nil {
			return fmt.Errorf("clearing local cache: %w", err)
		}
	}
	w.journal(ctx, entities.ActionLogout, "", map[string]any{"login": login})
	w.reportCount(0)
	return nil
}

// AddEvents appends events under the given dedup policy and returns the
// ones actually added.
func (w *Workspace) AddEvents(ctx context.Context, events []entities.Event, policy services.DedupPolicy) ([]entities.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addLocked(ctx, events, policy)
}

// UpdateEvent replaces the event with the same id.
func (w *Workspace) UpdateEvent(ctx context.Context, e entities.Event) (entities.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.collection == nil {
		return entities.Event{}, ErrNotLoggedIn
	}
	updated, err := w.collection.Update(e)
	if err != nil {
		return entities.Event{}, err
	}
	if err := w.mutatedLocked(ctx); err != nil {
		return updated, err
	}
	w.journal(ctx, entities.ActionUpdate, updated.ID, map[string]any{"title": updated.Title})
	return updated, nil
}

// DeleteEvent removes an event by id.
func (w *Workspace) DeleteEvent(ctx context.Context, id string) (entities.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.collection == nil {
		return entities.Event{}, ErrNotLoggedIn
	}
	removed, err := w.collection.Delete(id)
	if err != nil {
		return entities.Event{}, err
	}
	if err := w.mutatedLocked(ctx); err != nil {
		return removed, err
	}
	w.journal(ctx, entities.ActionDelete, removed.ID, map[string]any{"title": removed.Title})
	return removed, nil
}

// Sync writes the collection to the remote document now. It returns
// services.ErrNothingToSync when clean and services.ErrSyncInProgress when
// another write is in flight.
func (w *Workspace) Sync(ctx context.Context) error {
	w.mu.Lock()
	if w.collection == nil || !w.account.LoggedIn() {
		w.mu.Unlock()
		return ErrNotLoggedIn
	}
	gen, err := w.policy.Begin()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	snapshot := w.collection.Events()
	account := w.account
	w.mu.Unlock()

	err = w.deps.Documents.Write(ctx, account.Token, account.GistID, snapshot)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.policy.Finish(gen, err) {
		// Logged out or in again during the write: the outcome belongs to
		// the previous session.
		w.logger.Info("discarding result of superseded write", "events", len(snapshot))
		if err != nil {
			return &services.CollaboratorError{Op: "writing events gist", Err: err}
		}
		return nil
	}
	if err != nil {
		w.journal(ctx, entities.ActionSyncFailed, "", map[string]any{"error": err.Error()})
		return &services.CollaboratorError{Op: "writing events gist", Err: err}
	}
	if perr := w.persistLocked(ctx); perr != nil {
		w.logger.Warn("saving local cache after sync", "error", perr)
	}
	w.journal(ctx, entities.ActionSync, "", map[string]any{"events": len(snapshot)})
	w.logger.Info("synchronized", "events", len(snapshot))
	return nil
}

// Flush writes pending changes, if any. Call it before exiting.
func (w *Workspace) Flush(ctx context.Context) error {
	err := w.Sync(ctx)
	if errors.Is(err, services.ErrNothingToSync) || errors.Is(err, ErrNotLoggedIn) {
		return nil
	}
	return err
}

func (w *Workspace) autoSync() {
	ctx, cancel := context.WithTimeout(w.baseCtx, autoSyncTimeout)
	defer cancel()

	err := w.Sync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNothingToSync),
		errors.Is(err, services.ErrSyncInProgress),
		errors.Is(err, ErrNotLoggedIn):
		w.logger.Debug("automatic sync skipped", "reason", err)
	default:
		w.logger.Warn("automatic sync failed", "error", err)
	}
}

// AnalyzeNames asks the completer for one candidate per name and opens a review.
func (w *Workspace) AnalyzeNames(ctx context.Context, text string) (*services.Review, error) {
	return w.ingestion.AnalyzeNames(ctx, text)
}

// Search asks the completer for events matching a description and opens a review.
func (w *Workspace) Search(ctx context.Context, query string) (*services.Review, error) {
	return w.ingestion.Search(ctx, query)
}

// ImportManual parses field::value records and opens a review.
func (w *Workspace) ImportManual(text string) (*services.Review, error) {
	return w.ingestion.ParseManual(text)
}

// Import parses records in the parser's format and opens a review.
func (w *Workspace) Import(r io.Reader, parser parsers.Parser) (*services.Review, error) {
	return w.ingestion.Import(r, parser)
}

// Review returns the open review.
func (w *Workspace) Review() (*services.Review, error) {
	return w.ingestion.Current()
}

// ToggleCandidate flips the selection of one candidate in the open review.
func (w *Workspace) ToggleCandidate(i int) error {
	return w.ingestion.Toggle(i)
}

// SelectCandidates keeps only the given candidates selected.
func (w *Workspace) SelectCandidates(indices []int) error {
	return w.ingestion.SelectOnly(indices)
}

// ConfirmReview adds the selected candidates and closes the review.
// Completer batches use the configured dedup policy; parsed batches none.
func (w *Workspace) ConfirmReview(ctx context.Context) ([]entities.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.collection == nil {
		return nil, ErrNotLoggedIn
	}
	selected, source, err := w.ingestion.Confirm()
	if err != nil {
		return nil, err
	}
	policy := services.DedupNone
	if source.FromCompleter() {
		policy = w.deps.Dedup
	}
	return w.addLocked(ctx, selected, policy)
}

// DiscardReview closes the review without adding anything.
func (w *Workspace) DiscardReview() {
	w.ingestion.Discard()
}

// Events returns the collection in chronological order.
func (w *Workspace) Events() ([]entities.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.collection == nil {
		return nil, ErrNotLoggedIn
	}
	return w.collection.Events(), nil
}

// Timeline groups the events matching filter by year.
func (w *Workspace) Timeline(filter string) ([]chrono.YearGroup, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.collection == nil {
		return nil, ErrNotLoggedIn
	}
	return chrono.GroupByYear(w.collection.Filter(filter)), nil
}

// Get returns one event by id.
func (w *Workspace) Get(id string) (entities.Event, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.collection == nil {
		return entities.Event{}, ErrNotLoggedIn
	}
	e, ok := w.collection.Get(id)
	if !ok {
		return entities.Event{}, fmt.Errorf("%w: %s", services.ErrEventNotFound, id)
	}
	return e, nil
}

// Select marks an event as the current one.
func (w *Workspace) Select(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.collection == nil {
		return ErrNotLoggedIn
	}
	return w.collection.Select(id)
}

// Selected returns the current event, if any.
func (w *Workspace) Selected() (entities.Event, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.collection == nil {
		return entities.Event{}, false
	}
	return w.collection.Selected()
}

// Status returns the account and sync state.
func (w *Workspace) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := Status{
		LoggedIn: w.collection != nil && w.account.LoggedIn(),
		GistID:   w.account.GistID,
		Sync:     w.policy.Status(),
	}
	if w.profile != nil {
		p := *w.profile
		st.Profile = &p
	}
	if w.collection != nil {
		st.Events = w.collection.Len()
	}
	return st
}

// RecentActions returns the newest journal entries.
func (w *Workspace) RecentActions(ctx context.Context, limit int) ([]entities.AuditEntry, error) {
	if w.deps.Cache == nil {
		return nil, nil
	}
	return w.deps.Cache.RecentActions(ctx, limit)
}

// EventHistory returns the journal entries that touched one event.
func (w *Workspace) EventHistory(ctx context.Context, id string) ([]entities.AuditEntry, error) {
	if w.deps.Cache == nil {
		return nil, nil
	}
	return w.deps.Cache.FindAuditLog(ctx, id)
}

func (w *Workspace) addLocked(ctx context.Context, events []entities.Event, policy services.DedupPolicy) ([]entities.Event, error) {
	if w.collection == nil {
		return nil, ErrNotLoggedIn
	}
	added, err := w.collection.Add(events, policy)
	if err != nil {
		return nil, err
	}
	if skipped := len(events) - len(added); skipped > 0 {
		w.logger.Info("skipped duplicate events", "count", skipped)
	}
	if len(added) == 0 {
		return added, nil
	}
	if err := w.mutatedLocked(ctx); err != nil {
		return added, err
	}
	for _, e := range added {
		w.journal(ctx, entities.ActionAdd, e.ID, map[string]any{"title": e.Title})
	}
	return added, nil
}

// install replaces the collection wholesale. Caller holds mu.
func (w *Workspace) install(account entities.GitHubConfig, profile *entities.UserProfile, events []entities.Event, dirty bool) {
	for _, e := range events {
		if !chrono.Valid(e.DateStr) {
			w.logger.Warn("event has an unreadable date", "id", e.ID, "title", e.Title, "date", e.DateStr)
		}
	}
	w.ingestion.Discard()
	w.collection = services.NewCollection(events)
	w.account = account
	w.profile = profile
	w.policy.Reset(dirty)
	w.reportCount(w.collection.Len())
}

// mutatedLocked marks the collection dirty and saves the cache.
func (w *Workspace) mutatedLocked(ctx context.Context) error {
	w.policy.MarkDirty()
	w.reportCount(w.collection.Len())
	return w.persistLocked(ctx)
}

func (w *Workspace) persistLocked(ctx context.Context) error {
	if w.deps.Cache == nil || w.collection == nil {
		return nil
	}
	snap := ports.WorkspaceSnapshot{
		Events: w.collection.Events(),
		Dirty:  w.policy.State() != services.StateClean,
	}
	if err := w.deps.Cache.Save(ctx, snap); err != nil {
		return fmt.Errorf("saving local cache: %w", err)
	}
	return nil
}

func (w *Workspace) journal(ctx context.Context, action, eventID string, details map[string]any) {
	if w.deps.Cache == nil {
		return
	}
	if err := w.deps.Cache.LogAction(ctx, action, eventID, details); err != nil {
		w.logger.Warn("journal write failed", "action", action, "error", err)
	}
}

func (w *Workspace) reportCount(n int) {
	if w.deps.Observer != nil {
		w.deps.Observer.EventCount(n)
	}
}
