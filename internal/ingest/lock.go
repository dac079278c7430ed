package ingest

import "sync/atomic"

// Lock lets callers refuse to start an ingestion while another is running
// instead of queueing behind it.
type Lock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *Lock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *Lock) Release() {
	l.state.Store(0)
}
