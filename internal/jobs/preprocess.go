package jobs

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lexhq/lex-desktop/internal/bridge"
	"github.com/lexhq/lex-desktop/internal/engine"
	"github.com/lexhq/lex-desktop/internal/events"
	"github.com/lexhq/lex-desktop/internal/logging"
)

// PreprocessSnapshot is the preprocessing job's externally visible state.
// Cancelled and error outcomes stay distinct so the UI never presents a
// user-initiated cancellation as a failure.
type PreprocessSnapshot struct {
	Status   Status
	Progress *events.PreprocessProgress
	Summary  *events.PreprocessSummary
	Err      *events.ErrorPayload
}

// PreprocessJob tracks one cleaning-pipeline run in the engine.
type PreprocessJob struct {
	m      machine
	caller engine.Caller
	logger *logging.Logger
	sub    *bridge.Subscription

	stateMu  sync.Mutex
	progress *events.PreprocessProgress
	summary  *events.PreprocessSummary
	jobErr   *events.ErrorPayload
}

// NewPreprocessJob creates the job and registers its event subscription.
func NewPreprocessJob(caller engine.Caller, br *bridge.Bridge, logger *logging.Logger) *PreprocessJob {
	j := &PreprocessJob{
		m:      newMachine("preprocess", logger),
		caller: caller,
		logger: logger,
	}
	j.sub = br.SubscribeKinds([]events.Kind{
		events.KindPreprocessProgress,
		events.KindPreprocessComplete,
		events.KindPreprocessError,
		events.KindPreprocessCancelled,
	}, j.handleEvent)
	return j
}

// Start begins a preprocessing run on the currently loaded dataset.
// Returns ErrAlreadyRunning, before any engine call, when a run is
// active. The engine command is issued asynchronously; its response and
// the event stream race, and the first terminal input wins.
func (j *PreprocessJob) Start(ctx context.Context) error {
	run, err := j.m.begin()
	if err != nil {
		return err
	}

	j.stateMu.Lock()
	j.progress, j.summary, j.jobErr = nil, nil, nil
	j.stateMu.Unlock()

	j.logger.Info().Msg("Starting preprocessing")
	go func() {
		var result json.RawMessage
		err := j.caller.Call(ctx, "start_preprocessing", nil, &result)
		j.commandSettled(run, result, err)
	}()
	return nil
}

// commandSettled applies the start command's own outcome. The completion
// event usually arrives first and carries the same summary; the command
// result only applies when no terminal input beat it.
func (j *PreprocessJob) commandSettled(run uint64, result json.RawMessage, err error) {
	if err != nil {
		if !j.m.finish(run, StatusError) {
			return
		}
		j.stateMu.Lock()
		j.jobErr = errorPayloadFrom(err)
		j.stateMu.Unlock()
		j.logger.Error().Err(err).Msg("Preprocessing failed to start")
		return
	}

	if len(result) == 0 || string(result) == "null" {
		// Ack-only response; the event stream owns the terminal transition.
		return
	}
	var summary events.PreprocessSummary
	if err := json.Unmarshal(result, &summary); err != nil {
		j.logger.Warn().Err(err).Msg("Unreadable start_preprocessing result, waiting for events")
		return
	}
	if !j.m.finish(run, StatusCompleted) {
		return
	}
	j.stateMu.Lock()
	j.summary = &summary
	j.stateMu.Unlock()
}

// Cancel asks the engine to stop the current run. The job stays running
// until the engine acknowledges with a cancelled event; a completion that
// wins the race against the cancellation is still accepted. Cancel while
// idle is a no-op with no engine call.
func (j *PreprocessJob) Cancel(ctx context.Context) error {
	if !j.m.isRunning() {
		j.logger.Debug().Msg("Cancel ignored, no preprocessing run active")
		return nil
	}
	j.logger.Info().Msg("Requesting preprocessing cancellation")
	return j.caller.Call(ctx, "cancel_preprocessing", nil, nil)
}

// Reset returns a finished job to idle and clears its result. Fails with
// ErrRunActive while running.
func (j *PreprocessJob) Reset() error {
	if err := j.m.reset(); err != nil {
		return err
	}
	j.stateMu.Lock()
	j.progress, j.summary, j.jobErr = nil, nil, nil
	j.stateMu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (j *PreprocessJob) Snapshot() PreprocessSnapshot {
	s := PreprocessSnapshot{Status: j.m.current()}
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	if j.progress != nil {
		p := *j.progress
		s.Progress = &p
	}
	if j.summary != nil {
		sum := *j.summary
		s.Summary = &sum
	}
	if j.jobErr != nil {
		e := *j.jobErr
		s.Err = &e
	}
	return s
}

// Close releases the event subscription.
func (j *PreprocessJob) Close() {
	j.sub.Unsubscribe()
}

func (j *PreprocessJob) handleEvent(kind events.Kind, payload json.RawMessage) {
	switch kind {
	case events.KindPreprocessProgress:
		var p events.PreprocessProgress
		if err := events.Decode(kind, payload, &p); err != nil {
			j.logger.Warn().Err(err).Msg("Dropping malformed progress event")
			return
		}
		j.m.whileRunning(func() {
			j.stateMu.Lock()
			j.progress = &p
			j.stateMu.Unlock()
		})

	case events.KindPreprocessComplete:
		var summary events.PreprocessSummary
		if err := events.Decode(kind, payload, &summary); err != nil {
			j.logger.Warn().Err(err).Msg("Malformed completion payload")
		}
		if !j.m.finishCurrent(StatusCompleted) {
			return
		}
		j.stateMu.Lock()
		j.summary = &summary
		j.stateMu.Unlock()
		j.logger.Info().
			Int("rows_after", summary.RowsAfter).
			Int("issues_resolved", summary.IssuesResolved).
			Msg("Preprocessing complete")

	case events.KindPreprocessError:
		var ep events.ErrorPayload
		if err := events.Decode(kind, payload, &ep); err != nil {
			j.logger.Warn().Err(err).Msg("Malformed error payload")
			ep = events.ErrorPayload{Code: engine.CodeUnknown, Message: "preprocessing failed"}
		}
		if !j.m.finishCurrent(StatusError) {
			return
		}
		j.stateMu.Lock()
		j.jobErr = &ep
		j.stateMu.Unlock()
		j.logger.Error().Str("code", ep.Code).Str("message", ep.Message).Msg("Preprocessing failed")

	case events.KindPreprocessCancelled:
		if j.m.finishCurrent(StatusCancelled) {
			j.logger.Info().Msg("Preprocessing cancelled")
		}
	}
}

// errorPayloadFrom normalizes a command failure into the error shape the
// engine's own error events use.
func errorPayloadFrom(err error) *events.ErrorPayload {
	if engErr, ok := err.(*engine.Error); ok {
		return &events.ErrorPayload{Code: engErr.Code, Message: engErr.Message}
	}
	return &events.ErrorPayload{Code: engine.CodeUnknown, Message: err.Error()}
}
