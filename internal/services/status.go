package services

import (
	"slices"
	"sync"
)

// SyncStatus is the connectivity indicator shown to the user.
type SyncStatus string

const (
	StatusConnected SyncStatus = "connected"
	StatusSyncing   SyncStatus = "syncing"
	StatusLocalOnly SyncStatus = "local-only"
)

// StatusTracker holds the current sync status and notifies subscribers on
// every change.
type StatusTracker struct {
	mu        sync.Mutex
	status    SyncStatus
	listeners []func(SyncStatus)
}

func NewStatusTracker(initial SyncStatus) *StatusTracker {
	return &StatusTracker{status: initial}
}

func (t *StatusTracker) Get() SyncStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Set updates the status; listeners run only when it actually changes.
func (t *StatusTracker) Set(s SyncStatus) {
	t.mu.Lock()
	if t.status == s {
		t.mu.Unlock()
		return
	}
	t.status = s
	listeners := slices.Clone(t.listeners)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// Subscribe registers fn for future changes.
func (t *StatusTracker) Subscribe(fn func(SyncStatus)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}
