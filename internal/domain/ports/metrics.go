package ports

import "time"

// SyncObserver receives synchronization lifecycle notifications.
// Implementations must be safe for concurrent use.
type SyncObserver interface {
	StateChanged(state string)
	SyncFinished(elapsed time.Duration, err error)
	EventCount(n int)
}
