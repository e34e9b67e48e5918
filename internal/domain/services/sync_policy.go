package services

import (
	"sync"
	"time"

	"github.com/ersonp/history-map/internal/domain/ports"
)

// SyncState is a synchronization state.
type SyncState string

const (
	// StateClean means nothing changed since the last successful write.
	StateClean SyncState = "clean"
	// StateDirty means local changes are waiting to be written.
	StateDirty SyncState = "dirty"
	// StateSyncing means a write is in flight.
	StateSyncing SyncState = "syncing"
)

// DefaultSyncDelay is the quiet period before an automatic write.
const DefaultSyncDelay = 30 * time.Second

// SyncStatus is a point-in-time view of the policy.
type SyncStatus struct {
	State      SyncState
	Scheduled  bool
	LastError  error
	LastSynced time.Time
}

// SyncPolicy is the Clean/Dirty/Syncing state machine with a trailing
// debounce on mutations. It performs no I/O itself: the owner calls Begin
// before writing and Finish with the outcome.
type SyncPolicy struct {
	mu         sync.Mutex
	state      SyncState
	queued     bool // mutated while syncing
	lastErr    error
	lastSynced time.Time
	started    time.Time
	gen        uint64 // bumped by Begin and Reset; identifies the write in flight

	debouncer *Debouncer
	observer  ports.SyncObserver
	now       func() time.Time
}

// NewSyncPolicy creates a clean policy. trigger is called from the debounce
// timer goroutine when an automatic write is due; observer may be nil.
func NewSyncPolicy(delay time.Duration, trigger func(), observer ports.SyncObserver) *SyncPolicy {
	if delay <= 0 {
		delay = DefaultSyncDelay
	}
	return &SyncPolicy{
		state:     StateClean,
		debouncer: NewDebouncer(delay, trigger),
		observer:  observer,
		now:       time.Now,
	}
}

// MarkDirty records a collection mutation.
func (p *SyncPolicy) MarkDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateSyncing {
		p.queued = true
		return
	}
	p.setState(StateDirty)
	p.debouncer.Schedule()
}

// Begin moves Dirty to Syncing and returns a token identifying this write.
// It fails with ErrNothingToSync while clean and ErrSyncInProgress while a
// write is in flight.
func (p *SyncPolicy) Begin() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateClean:
		return 0, ErrNothingToSync
	case StateSyncing:
		return 0, ErrSyncInProgress
	}
	p.debouncer.Cancel()
	p.queued = false
	p.started = p.now()
	p.gen++
	p.setState(StateSyncing)
	return p.gen, nil
}

// Finish ends the write identified by gen. A failure returns to Dirty and
// re-arms the timer; mutations made during the write also leave it Dirty.
// It reports false, changing nothing, when gen is not the write in flight,
// e.g. after a Reset.
func (p *SyncPolicy) Finish(gen uint64, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateSyncing || gen != p.gen {
		return false
	}
	if p.observer != nil {
		p.observer.SyncFinished(p.now().Sub(p.started), err)
	}

	if err != nil {
		p.lastErr = err
		p.setState(StateDirty)
		p.debouncer.Schedule()
		return true
	}

	p.lastErr = nil
	p.lastSynced = p.now()
	if p.queued {
		p.queued = false
		p.setState(StateDirty)
		p.debouncer.Schedule()
		return true
	}
	p.setState(StateClean)
	return true
}

// Reset forces the state after the collection was replaced wholesale:
// clean after a remote load, dirty when restoring unsynchronized local data.
func (p *SyncPolicy) Reset(dirty bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.debouncer.Cancel()
	p.queued = false
	p.lastErr = nil
	p.gen++
	if dirty {
		p.setState(StateDirty)
		p.debouncer.Schedule()
		return
	}
	p.setState(StateClean)
}

// State returns the current state.
func (p *SyncPolicy) State() SyncState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Status returns a snapshot of the policy.
func (p *SyncPolicy) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return SyncStatus{
		State:      p.state,
		Scheduled:  p.debouncer.Pending(),
		LastError:  p.lastErr,
		LastSynced: p.lastSynced,
	}
}

// Stop cancels the timer for good.
func (p *SyncPolicy) Stop() {
	p.debouncer.Stop()
}

func (p *SyncPolicy) setState(s SyncState) {
	if p.state == s {
		return
	}
	p.state = s
	if p.observer != nil {
		p.observer.StateChanged(string(s))
	}
}
