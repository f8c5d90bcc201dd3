// Package jobs models the two long-running engine operations, data
// preprocessing and model training, as state machines fed by two racing
// inputs: the start command's own response and the engine's push events.
//
// Legal transitions are idle -> running -> {completed, cancelled, error}
// and terminal -> idle via Reset. The first terminal input for a run
// wins; a later one is logged as an anomaly and ignored.
package jobs

import (
	"errors"
	"sync"

	"github.com/lexhq/lex-desktop/internal/logging"
)

// Status is a job's lifecycle state.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
	StatusCancelled
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// IsTerminal reports whether the status ends a run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusError
}

// ErrAlreadyRunning is returned by Start while a run is active. The check
// is synchronous; no engine call is made.
var ErrAlreadyRunning = errors.New("job already running")

// ErrRunActive is returned by Reset while a run is active.
var ErrRunActive = errors.New("cannot reset a running job")

// machine is the shared core of both jobs: the status, the run counter
// that fences off a previous run's late events, and the terminal
// tie-break.
type machine struct {
	name   string
	logger *logging.Logger

	mu     sync.Mutex
	status Status
	run    uint64
}

func newMachine(name string, logger *logging.Logger) machine {
	return machine{name: name, logger: logger}
}

// begin starts a new run. Fails synchronously when one is active.
func (m *machine) begin() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusRunning {
		return 0, ErrAlreadyRunning
	}
	m.run++
	m.status = StatusRunning
	return m.run, nil
}

// isRunning reports whether a run is active. Push events carry no run
// token, so from the event side "this run" means whatever run is current.
func (m *machine) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status == StatusRunning
}

// whileRunning invokes fn under the machine mutex only while a run is
// active. A terminal transition or reset can never interleave between
// the running check and fn, so progress writes cannot land on a machine
// that already left the running state.
func (m *machine) whileRunning(fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusRunning {
		return false
	}
	fn()
	return true
}

// finish applies a terminal outcome for the given run. The first terminal
// input wins; anything after it, or anything from a superseded run, is
// logged and dropped.
func (m *machine) finish(run uint64, to Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusRunning || m.run != run {
		m.logger.Warn().
			Str("job", m.name).
			Str("outcome", to.String()).
			Str("state", m.status.String()).
			Msg("Late terminal outcome ignored")
		return false
	}
	m.status = to
	return true
}

// finishCurrent applies a terminal outcome from a push event, which
// carries no run token and therefore always refers to the current run.
func (m *machine) finishCurrent(to Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusRunning {
		m.logger.Warn().
			Str("job", m.name).
			Str("outcome", to.String()).
			Str("state", m.status.String()).
			Msg("Late terminal outcome ignored")
		return false
	}
	m.status = to
	return true
}

// reset returns a terminal (or idle) machine to idle. The run counter is
// bumped so any event still in flight for the old run can never match.
func (m *machine) reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusRunning {
		return ErrRunActive
	}
	m.status = StatusIdle
	m.run++
	return nil
}

// current returns the status.
func (m *machine) current() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}
