package mocks

import (
	"slices"
	"sync"
	"time"
)

// SyncObserver records notifications from a sync policy.
type SyncObserver struct {
	mu       sync.Mutex
	states   []string
	finished []error
	count    int
}

// StateChanged records a state transition.
func (m *SyncObserver) StateChanged(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

// SyncFinished records a write outcome.
func (m *SyncObserver) SyncFinished(_ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, err)
}

// EventCount records the collection size.
func (m *SyncObserver) EventCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count = n
}

// States returns the recorded transitions.
func (m *SyncObserver) States() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.states)
}

// Finished returns the recorded write outcomes.
func (m *SyncObserver) Finished() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.finished)
}

// Count returns the last reported collection size.
func (m *SyncObserver) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
