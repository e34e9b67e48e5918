package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/history-map/internal/domain/mocks"
)

func newIdlePolicy(observer *mocks.SyncObserver) *SyncPolicy {
	// Long delay: the timer never fires during the test.
	return NewSyncPolicy(time.Hour, func() {}, observer)
}

func TestSyncPolicy_MutationWhileCleanMovesToDirty(t *testing.T) {
	p := newIdlePolicy(nil)
	defer p.Stop()

	assert.Equal(t, StateClean, p.State())
	p.MarkDirty()
	assert.Equal(t, StateDirty, p.State())
	assert.True(t, p.Status().Scheduled)
}

func TestSyncPolicy_BeginGates(t *testing.T) {
	p := newIdlePolicy(nil)
	defer p.Stop()

	_, err := p.Begin()
	assert.ErrorIs(t, err, ErrNothingToSync)

	p.MarkDirty()
	_, err = p.Begin()
	require.NoError(t, err)
	assert.Equal(t, StateSyncing, p.State())
	assert.False(t, p.Status().Scheduled, "starting a write cancels the timer")

	_, err = p.Begin()
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestSyncPolicy_SuccessfulWriteMovesToClean(t *testing.T) {
	obs := &mocks.SyncObserver{}
	p := newIdlePolicy(obs)
	defer p.Stop()

	p.MarkDirty()
	gen, err := p.Begin()
	require.NoError(t, err)
	assert.True(t, p.Finish(gen, nil))

	status := p.Status()
	assert.Equal(t, StateClean, status.State)
	assert.NoError(t, status.LastError)
	assert.False(t, status.LastSynced.IsZero())
	assert.False(t, status.Scheduled)
	assert.Equal(t, []string{"dirty", "syncing", "clean"}, obs.States())
	assert.Equal(t, []error{nil}, obs.Finished())
}

func TestSyncPolicy_FailedWriteReturnsToDirty(t *testing.T) {
	p := newIdlePolicy(nil)
	defer p.Stop()
	writeErr := errors.New("network down")

	p.MarkDirty()
	gen, err := p.Begin()
	require.NoError(t, err)
	assert.True(t, p.Finish(gen, writeErr))

	status := p.Status()
	assert.Equal(t, StateDirty, status.State)
	assert.ErrorIs(t, status.LastError, writeErr)
	assert.True(t, status.Scheduled, "the next attempt is timer driven")

	// A manual retry is allowed right away and clears the error on success.
	gen, err = p.Begin()
	require.NoError(t, err)
	p.Finish(gen, nil)
	assert.Equal(t, StateClean, p.State())
	assert.NoError(t, p.Status().LastError)
}

func TestSyncPolicy_MutationWhileSyncingIsQueued(t *testing.T) {
	p := newIdlePolicy(nil)
	defer p.Stop()

	p.MarkDirty()
	gen, err := p.Begin()
	require.NoError(t, err)

	p.MarkDirty()
	assert.Equal(t, StateSyncing, p.State(), "no transition while a write is in flight")

	p.Finish(gen, nil)
	assert.Equal(t, StateDirty, p.State())
	assert.True(t, p.Status().Scheduled)
}

func TestSyncPolicy_Reset(t *testing.T) {
	p := newIdlePolicy(nil)
	defer p.Stop()

	p.MarkDirty()
	p.Reset(false)
	assert.Equal(t, StateClean, p.State())
	assert.False(t, p.Status().Scheduled)

	p.Reset(true)
	assert.Equal(t, StateDirty, p.State())
	assert.True(t, p.Status().Scheduled)
}

func TestSyncPolicy_FinishWithoutBeginIsIgnored(t *testing.T) {
	p := newIdlePolicy(nil)
	defer p.Stop()

	p.MarkDirty()
	assert.False(t, p.Finish(0, nil))
	assert.Equal(t, StateDirty, p.State())
}

func TestSyncPolicy_WriteSupersededByReset(t *testing.T) {
	p := newIdlePolicy(nil)
	defer p.Stop()

	p.MarkDirty()
	stale, err := p.Begin()
	require.NoError(t, err)

	// New session while the first write is still in flight.
	p.Reset(false)
	p.MarkDirty()
	current, err := p.Begin()
	require.NoError(t, err)

	assert.False(t, p.Finish(stale, nil), "stale write must not settle the current one")
	assert.Equal(t, StateSyncing, p.State())

	writeErr := errors.New("502 bad gateway")
	assert.True(t, p.Finish(current, writeErr))
	assert.Equal(t, StateDirty, p.State())
	assert.ErrorIs(t, p.Status().LastError, writeErr)
}

func TestSyncPolicy_TimerTriggersAfterQuietPeriod(t *testing.T) {
	fired := make(chan struct{}, 4)
	p := NewSyncPolicy(20*time.Millisecond, func() { fired <- struct{}{} }, nil)
	defer p.Stop()

	p.MarkDirty()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("trigger not called")
	}
}
