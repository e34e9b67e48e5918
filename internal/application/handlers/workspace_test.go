package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/history-map/internal/domain/entities"
	"github.com/ersonp/history-map/internal/domain/mocks"
	"github.com/ersonp/history-map/internal/domain/ports"
	"github.com/ersonp/history-map/internal/domain/services"
	"github.com/ersonp/history-map/internal/infrastructure/parsers"
)

const testGist = "gist-1"

type testWorkspace struct {
	*Workspace
	completer *mocks.EventCompleter
	docs      *mocks.DocumentStore
	identity  *mocks.IdentityProvider
	cache     *mocks.WorkspaceCache
	sessions  *mocks.SessionStore
	observer  *mocks.SyncObserver
}

func remoteEvents() []entities.Event {
	return []entities.Event{
		{ID: "e2", Title: "Moon landing", DateStr: "1969-07-20"},
		{ID: "e1", Title: "Battle of Hastings", DateStr: "1066-10-14", Location: entities.Location{Lat: 50.9, Lng: 0.5, Name: "Hastings"}},
	}
}

func newTestWorkspace(t *testing.T, delay time.Duration) *testWorkspace {
	t.Helper()
	tw := &testWorkspace{
		completer: &mocks.EventCompleter{},
		docs:      mocks.NewDocumentStore(testGist, remoteEvents()),
		identity:  &mocks.IdentityProvider{User: &entities.UserProfile{Login: "octocat", Name: "The Octocat"}},
		cache:     mocks.NewWorkspaceCache(),
		sessions:  &mocks.SessionStore{},
		observer:  &mocks.SyncObserver{},
	}
	tw.Workspace = NewWorkspace(WorkspaceDeps{
		Completer: tw.completer,
		Documents: tw.docs,
		Identity:  tw.identity,
		Cache:     tw.cache,
		Sessions:  tw.sessions,
		Observer:  tw.observer,
		SyncDelay: delay,
	})
	t.Cleanup(tw.Close)
	return tw
}

func newLoggedInWorkspace(t *testing.T, delay time.Duration) *testWorkspace {
	t.Helper()
	tw := newTestWorkspace(t, delay)
	_, err := tw.Login(t.Context(), "ghp_token")
	require.NoError(t, err)
	return tw
}

func titles(events []entities.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Title
	}
	return out
}

func TestWorkspace_Login(t *testing.T) {
	tw := newTestWorkspace(t, time.Hour)

	profile, err := tw.Login(t.Context(), "  ghp_token \n")
	require.NoError(t, err)
	assert.Equal(t, "The Octocat", profile.DisplayName())

	events, err := tw.Events()
	require.NoError(t, err)
	assert.Equal(t, []string{"Battle of Hastings", "Moon landing"}, titles(events), "loaded events are sorted")
	assert.True(t, events[0].IsSaved)

	st := tw.Status()
	assert.True(t, st.LoggedIn)
	assert.Equal(t, testGist, st.GistID)
	assert.Equal(t, 2, st.Events)
	assert.Equal(t, services.StateClean, st.Sync.State)

	require.NotNil(t, tw.sessions.Session)
	assert.Equal(t, entities.GitHubConfig{Token: "ghp_token", GistID: testGist}, tw.sessions.Session.Config)
	assert.False(t, tw.cache.Dirty())
	assert.Equal(t, []string{entities.ActionLogin}, tw.cache.Actions())
	assert.Equal(t, 2, tw.observer.Count())
}

func TestWorkspace_Login_InvalidToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: "   "},
		{name: "non-ascii", token: "ghp_tökén"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := newTestWorkspace(t, time.Hour)

			_, err := tw.Login(t.Context(), tt.token)
			var verr *services.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "token", verr.Field)
			assert.Equal(t, 0, tw.docs.FindCallCount)
			assert.False(t, tw.Status().LoggedIn)
		})
	}
}

func TestWorkspace_Login_CollaboratorFailure(t *testing.T) {
	tw := newTestWorkspace(t, time.Hour)
	tw.identity.Err = errors.New("401 bad credentials")

	_, err := tw.Login(t.Context(), "ghp_token")
	var cerr *services.CollaboratorError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, err.Error(), "bad credentials")
	assert.Nil(t, tw.sessions.Session)
	assert.False(t, tw.Status().LoggedIn)
}

func TestWorkspace_Login_UnreadableRemote(t *testing.T) {
	tw := newTestWorkspace(t, time.Hour)
	tw.docs.ReadErr = errors.New("invalid character 'x'")

	_, err := tw.Login(t.Context(), "ghp_token")
	require.Error(t, err)
	assert.False(t, tw.Status().LoggedIn, "malformed remote content must not replace the collection")
}

func TestWorkspace_RequiresLogin(t *testing.T) {
	tw := newTestWorkspace(t, time.Hour)
	ctx := t.Context()

	_, err := tw.Events()
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = tw.AddEvents(ctx, []entities.Event{{Title: "A", DateStr: "1"}}, services.DedupNone)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	_, err = tw.DeleteEvent(ctx, "e1")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.ErrorIs(t, tw.Sync(ctx), ErrNotLoggedIn)
	require.NoError(t, tw.Flush(ctx))
}

func TestWorkspace_AddThenSync(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)
	ctx := t.Context()

	added, err := tw.AddEvents(ctx, []entities.Event{{Title: "Qin unification", DateStr: "-221"}}, services.DedupNone)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.NotEmpty(t, added[0].ID)

	st := tw.Status()
	assert.Equal(t, services.StateDirty, st.Sync.State)
	assert.True(t, st.Sync.Scheduled)
	assert.True(t, tw.cache.Dirty())

	selected, ok := tw.Selected()
	require.True(t, ok)
	assert.Equal(t, added[0].ID, selected.ID)

	require.NoError(t, tw.Sync(ctx))
	assert.Equal(t, services.StateClean, tw.Status().Sync.State)
	assert.False(t, tw.cache.Dirty())
	assert.Equal(t, "ghp_token", tw.docs.WriteLastToken)
	assert.Equal(t, []string{"Qin unification", "Battle of Hastings", "Moon landing"}, titles(tw.docs.Doc(testGist)))

	assert.ErrorIs(t, tw.Sync(ctx), services.ErrNothingToSync)
	assert.Equal(t, []string{entities.ActionLogin, entities.ActionAdd, entities.ActionSync}, tw.cache.Actions())
}

func TestWorkspace_AddEvents_InvalidBatchRejected(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)

	_, err := tw.AddEvents(t.Context(), []entities.Event{
		{Title: "Fine", DateStr: "1900"},
		{Title: "Broken", DateStr: "someday"},
	}, services.DedupNone)

	var verr *services.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 2, verr.Record)
	assert.Equal(t, 2, tw.Status().Events)
	assert.Equal(t, services.StateClean, tw.Status().Sync.State)
}

func TestWorkspace_UpdateAndDelete(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)
	ctx := t.Context()

	updated, err := tw.UpdateEvent(ctx, entities.Event{ID: "e2", Title: "Apollo 11", DateStr: "1969-07-20"})
	require.NoError(t, err)
	assert.Equal(t, "e2", updated.ID)

	got, err := tw.Get("e2")
	require.NoError(t, err)
	assert.Equal(t, "Apollo 11", got.Title)

	require.NoError(t, tw.Select("e1"))
	removed, err := tw.DeleteEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Battle of Hastings", removed.Title)
	_, ok := tw.Selected()
	assert.False(t, ok)

	_, err = tw.DeleteEvent(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrEventNotFound)
	_, err = tw.Get("missing")
	assert.ErrorIs(t, err, services.ErrEventNotFound)

	assert.Equal(t, 1, tw.observer.Count())
	assert.Equal(t, []string{entities.ActionLogin, entities.ActionUpdate, entities.ActionDelete}, tw.cache.Actions())

	history, err := tw.EventHistory(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entities.ActionDelete, history[0].Action)
}

func TestWorkspace_SyncFailure(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)
	ctx := t.Context()

	_, err := tw.AddEvents(ctx, []entities.Event{{Title: "A", DateStr: "1"}}, services.DedupNone)
	require.NoError(t, err)

	tw.docs.SetWriteErr(errors.New("502 bad gateway"))
	err = tw.Sync(ctx)
	var cerr *services.CollaboratorError
	require.True(t, errors.As(err, &cerr))

	st := tw.Status()
	assert.Equal(t, services.StateDirty, st.Sync.State)
	assert.True(t, st.Sync.Scheduled, "failure re-arms the timer")
	require.Error(t, st.Sync.LastError)
	assert.True(t, tw.cache.Dirty())
	assert.Contains(t, tw.cache.Actions(), entities.ActionSyncFailed)
	assert.Len(t, tw.docs.Doc(testGist), 2, "remote untouched")

	tw.docs.SetWriteErr(nil)
	require.NoError(t, tw.Sync(ctx))
	st = tw.Status()
	assert.Equal(t, services.StateClean, st.Sync.State)
	assert.NoError(t, st.Sync.LastError)
}

func TestWorkspace_MutationDuringSync(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)
	ctx := t.Context()

	_, err := tw.AddEvents(ctx, []entities.Event{{Title: "A", DateStr: "1"}}, services.DedupNone)
	require.NoError(t, err)

	tw.docs.WriteStarted = make(chan struct{}, 1)
	tw.docs.WriteBlock = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- tw.Sync(ctx) }()
	<-tw.docs.WriteStarted

	assert.Equal(t, services.StateSyncing, tw.Status().Sync.State)
	assert.ErrorIs(t, tw.Sync(ctx), services.ErrSyncInProgress)

	_, err = tw.AddEvents(ctx, []entities.Event{{Title: "B", DateStr: "2"}}, services.DedupNone)
	require.NoError(t, err)
	assert.Equal(t, services.StateSyncing, tw.Status().Sync.State)

	close(tw.docs.WriteBlock)
	require.NoError(t, <-done)

	st := tw.Status()
	assert.Equal(t, services.StateDirty, st.Sync.State, "mutation made during the write is still pending")
	assert.True(t, st.Sync.Scheduled)
	assert.Len(t, tw.docs.Doc(testGist), 3, "the write carried the snapshot taken at its start")
	assert.True(t, tw.cache.Dirty())
}

func TestWorkspace_WriteFromPreviousSessionIsDiscarded(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)
	ctx := t.Context()

	started := make(chan int, 2)
	release := []chan error{make(chan error, 1), make(chan error, 1)}
	tw.docs.OnWrite = func(ctx context.Context, call int) error {
		started <- call
		select {
		case err := <-release[call-1]:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, err := tw.AddEvents(ctx, []entities.Event{{Title: "A", DateStr: "1"}}, services.DedupNone)
	require.NoError(t, err)
	first := make(chan error, 1)
	go func() { first <- tw.Sync(ctx) }()
	require.Equal(t, 1, <-started)

	// Same account again while the first write is still in flight.
	require.NoError(t, tw.Logout(ctx))
	_, err = tw.Login(ctx, "ghp_token")
	require.NoError(t, err)

	_, err = tw.AddEvents(ctx, []entities.Event{{Title: "B", DateStr: "2"}}, services.DedupNone)
	require.NoError(t, err)
	second := make(chan error, 1)
	go func() { second <- tw.Sync(ctx) }()
	require.Equal(t, 2, <-started)

	release[0] <- nil
	require.NoError(t, <-first)
	assert.Equal(t, services.StateSyncing, tw.Status().Sync.State, "old write must not settle the new one")

	release[1] <- errors.New("502 bad gateway")
	var cerr *services.CollaboratorError
	require.ErrorAs(t, <-second, &cerr)

	st := tw.Status()
	assert.Equal(t, services.StateDirty, st.Sync.State)
	assert.Error(t, st.Sync.LastError)
	assert.True(t, tw.cache.Dirty(), "B is still pending locally")
	assert.Equal(t, entities.ActionSyncFailed, tw.cache.Actions()[len(tw.cache.Actions())-1])
}

func TestWorkspace_AutoSyncAfterQuietPeriod(t *testing.T) {
	tw := newLoggedInWorkspace(t, 50*time.Millisecond)
	ctx := t.Context()

	for _, title := range []string{"A", "B", "C"} {
		_, err := tw.AddEvents(ctx, []entities.Event{{Title: title, DateStr: "1"}}, services.DedupNone)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return tw.Status().Sync.State == services.StateClean
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, tw.docs.Writes(), "a burst of mutations produces one write")
	assert.Len(t, tw.docs.Doc(testGist), 5)
}

func TestWorkspace_ConfirmReview_DedupByTitleYear(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)
	tw.completer.Events = []entities.Event{
		{Title: "Battle of Hastings", DateStr: "1066"},
		{Title: "Fall of Constantinople", DateStr: "1453-05-29", Location: entities.Location{Lat: 41.0, Lng: 28.9}},
	}

	review, err := tw.AnalyzeNames(t.Context(), "Battle of Hastings\nFall of Constantinople")
	require.NoError(t, err)
	assert.Equal(t, 2, review.Len())

	added, err := tw.ConfirmReview(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"Fall of Constantinople"}, titles(added))
	assert.Equal(t, 3, tw.Status().Events)

	_, err = tw.Review()
	assert.ErrorIs(t, err, services.ErrNoReview)
}

func TestWorkspace_ConfirmReview_ManualKeepsDuplicates(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)

	review, err := tw.ImportManual("title::Battle of Hastings\ndate::1066\n--\ntitle::Magna Carta\ndate::1215-06-15")
	require.NoError(t, err)
	require.Equal(t, 2, review.Len())

	require.NoError(t, tw.SelectCandidates([]int{0}))
	added, err := tw.ConfirmReview(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"Battle of Hastings"}, titles(added))
	assert.Equal(t, 3, tw.Status().Events)
}

func TestWorkspace_ConfirmReview_NothingSelected(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)

	_, err := tw.Import(strings.NewReader(`[{"title": "X", "dateStr": "1800"}]`), &parsers.JSONParser{})
	require.NoError(t, err)
	require.NoError(t, tw.ToggleCandidate(0))

	added, err := tw.ConfirmReview(t.Context())
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, services.StateClean, tw.Status().Sync.State)
}

func TestWorkspace_DiscardReview(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)

	_, err := tw.ImportManual("title::X\ndate::1800")
	require.NoError(t, err)
	_, err = tw.ImportManual("title::Y\ndate::1801")
	assert.ErrorIs(t, err, services.ErrReviewInProgress)

	tw.DiscardReview()
	_, err = tw.ImportManual("title::Y\ndate::1801")
	require.NoError(t, err)
}

func TestWorkspace_Timeline(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)
	_, err := tw.AddEvents(t.Context(), []entities.Event{
		{Title: "Qin unification", DateStr: "-221"},
		{Title: "Norman coronation", DateStr: "1066-12-25"},
	}, services.DedupNone)
	require.NoError(t, err)

	groups, err := tw.Timeline("")
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "221 BCE", groups[0].Label)
	assert.Equal(t, 1066, groups[1].Year)
	assert.Len(t, groups[1].Events, 2)

	groups, err = tw.Timeline("hastings")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Battle of Hastings", groups[0].Events[0].Title)
}

func TestWorkspace_Restore(t *testing.T) {
	t.Run("no session", func(t *testing.T) {
		tw := newTestWorkspace(t, time.Hour)
		ok, err := tw.Restore(t.Context())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("dirty cache wins over remote", func(t *testing.T) {
		tw := newTestWorkspace(t, time.Hour)
		tw.sessions.Session = &ports.Session{Config: entities.GitHubConfig{Token: "ghp_token", GistID: testGist}}
		tw.cache.Snapshot = &ports.WorkspaceSnapshot{
			Events: []entities.Event{{ID: "local", Title: "Local only", DateStr: "2001"}},
			Dirty:  true,
		}
		tw.docs.ReadErr = errors.New("must not be read")

		ok, err := tw.Restore(t.Context())
		require.NoError(t, err)
		assert.True(t, ok)

		events, err := tw.Events()
		require.NoError(t, err)
		assert.Equal(t, []string{"Local only"}, titles(events))
		st := tw.Status()
		assert.Equal(t, services.StateDirty, st.Sync.State)
		assert.True(t, st.Sync.Scheduled)
	})

	t.Run("clean cache refreshed from remote", func(t *testing.T) {
		tw := newTestWorkspace(t, time.Hour)
		tw.sessions.Session = &ports.Session{Config: entities.GitHubConfig{Token: "ghp_token", GistID: testGist}}
		tw.cache.Snapshot = &ports.WorkspaceSnapshot{Events: []entities.Event{{ID: "old", Title: "Stale", DateStr: "2001"}}}

		ok, err := tw.Restore(t.Context())
		require.NoError(t, err)
		assert.True(t, ok)

		events, err := tw.Events()
		require.NoError(t, err)
		assert.Equal(t, []string{"Battle of Hastings", "Moon landing"}, titles(events))
		assert.Equal(t, services.StateClean, tw.Status().Sync.State)
		assert.Len(t, tw.cache.Snapshot.Events, 2)
	})

	t.Run("remote unavailable falls back to cache", func(t *testing.T) {
		tw := newTestWorkspace(t, time.Hour)
		tw.sessions.Session = &ports.Session{Config: entities.GitHubConfig{Token: "ghp_token", GistID: testGist}}
		tw.cache.Snapshot = &ports.WorkspaceSnapshot{Events: []entities.Event{{ID: "old", Title: "Cached", DateStr: "2001"}}}
		tw.docs.ReadErr = errors.New("network down")

		ok, err := tw.Restore(t.Context())
		require.NoError(t, err)
		assert.True(t, ok)

		events, err := tw.Events()
		require.NoError(t, err)
		assert.Equal(t, []string{"Cached"}, titles(events))
	})
}

func TestWorkspace_Logout(t *testing.T) {
	tw := newLoggedInWorkspace(t, time.Hour)
	_, err := tw.AddEvents(t.Context(), []entities.Event{{Title: "A", DateStr: "1"}}, services.DedupNone)
	require.NoError(t, err)

	require.NoError(t, tw.Logout(t.Context()))

	st := tw.Status()
	assert.False(t, st.LoggedIn)
	assert.Equal(t, services.StateClean, st.Sync.State)
	assert.False(t, st.Sync.Scheduled)
	assert.Nil(t, tw.sessions.Session)
	assert.Nil(t, tw.cache.Snapshot)

	actions, err := tw.RecentActions(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, entities.ActionLogout, actions[0].Action)
	assert.Equal(t, "octocat", actions[0].Details["login"])
}
