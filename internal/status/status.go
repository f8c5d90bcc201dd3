// Package status aggregates the app-level loading flag and the most
// recent error into one snapshot the UI can render.
package status

import (
	"sync"
	"time"
)

// AppError is the last error surfaced to the user, with the time it
// arrived so stale banners are distinguishable in logs.
type AppError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the aggregator's externally visible state.
type Snapshot struct {
	Loading bool      `json:"loading"`
	Message string    `json:"message,omitempty"`
	Error   *AppError `json:"error,omitempty"`
}

// Aggregator holds loading and error state. Errors auto-clear after a
// configurable delay; a newer error replaces the pending clear rather
// than stacking a second timer behind it.
type Aggregator struct {
	mu        sync.Mutex
	loading   bool
	message   string
	err       *AppError
	errSeq    uint64
	timer     *time.Timer
	autoClear time.Duration
}

// New creates an aggregator. autoClear <= 0 disables automatic error
// clearing.
func New(autoClear time.Duration) *Aggregator {
	return &Aggregator{autoClear: autoClear}
}

// SetLoading updates the loading flag and its message.
func (a *Aggregator) SetLoading(loading bool, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loading = loading
	a.message = message
	if !loading {
		a.message = ""
	}
}

// ReportError records a new error and restarts the auto-clear countdown.
func (a *Aggregator) ReportError(code, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.err = &AppError{Code: code, Message: message, Timestamp: time.Now()}
	a.errSeq++

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.autoClear <= 0 {
		return
	}
	seq := a.errSeq
	a.timer = time.AfterFunc(a.autoClear, func() {
		a.clearIfCurrent(seq)
	})
}

// clearIfCurrent clears the error only if no newer error replaced it
// while the timer was in flight.
func (a *Aggregator) clearIfCurrent(seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.errSeq != seq {
		return
	}
	a.err = nil
	a.timer = nil
}

// ClearError dismisses the current error immediately.
func (a *Aggregator) ClearError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = nil
	a.errSeq++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

// Snapshot returns a copy of the current state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Snapshot{Loading: a.loading, Message: a.message}
	if a.err != nil {
		e := *a.err
		s.Error = &e
	}
	return s
}
