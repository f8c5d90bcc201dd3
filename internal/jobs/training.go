package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lexhq/lex-desktop/internal/bridge"
	"github.com/lexhq/lex-desktop/internal/engine"
	"github.com/lexhq/lex-desktop/internal/events"
	"github.com/lexhq/lex-desktop/internal/logging"
)

// TrainingConfig is the start_training argument set.
type TrainingConfig struct {
	TargetColumn   string  `json:"target_column"`
	TaskType       string  `json:"task_type,omitempty"`
	TimeBudgetSecs int     `json:"time_budget_secs,omitempty"`
	TestSize       float64 `json:"test_size,omitempty"`
}

// TrainingSnapshot is the training job's externally visible state.
type TrainingSnapshot struct {
	Status   Status
	Progress *events.TrainingProgress
	Result   *events.TrainingComplete
	Err      *events.ErrorPayload
}

// TrainingJob tracks one model-training run in the engine.
type TrainingJob struct {
	m      machine
	caller engine.Caller
	logger *logging.Logger
	sub    *bridge.Subscription

	stateMu  sync.Mutex
	progress *events.TrainingProgress
	result   *events.TrainingComplete
	jobErr   *events.ErrorPayload
}

// NewTrainingJob creates the job and registers its event subscription.
func NewTrainingJob(caller engine.Caller, br *bridge.Bridge, logger *logging.Logger) *TrainingJob {
	j := &TrainingJob{
		m:      newMachine("training", logger),
		caller: caller,
		logger: logger,
	}
	j.sub = br.SubscribeKinds([]events.Kind{
		events.KindTrainingProgress,
		events.KindTrainingComplete,
		events.KindTrainingError,
		events.KindTrainingCancelled,
	}, j.handleEvent)
	return j
}

// Start begins a training run. The target column is required; everything
// else defaults in the engine. Returns ErrAlreadyRunning, before any
// engine call, when a run is active.
func (j *TrainingJob) Start(ctx context.Context, cfg TrainingConfig) error {
	if cfg.TargetColumn == "" {
		return fmt.Errorf("training: target column is required")
	}
	run, err := j.m.begin()
	if err != nil {
		return err
	}

	j.stateMu.Lock()
	j.progress, j.result, j.jobErr = nil, nil, nil
	j.stateMu.Unlock()

	j.logger.Info().Str("target", cfg.TargetColumn).Msg("Starting training")
	go func() {
		var result json.RawMessage
		err := j.caller.Call(ctx, "start_training", cfg, &result)
		j.commandSettled(run, result, err)
	}()
	return nil
}

func (j *TrainingJob) commandSettled(run uint64, result json.RawMessage, err error) {
	if err != nil {
		if !j.m.finish(run, StatusError) {
			return
		}
		j.stateMu.Lock()
		j.jobErr = errorPayloadFrom(err)
		j.stateMu.Unlock()
		j.logger.Error().Err(err).Msg("Training failed to start")
		return
	}

	if len(result) == 0 || string(result) == "null" {
		return
	}
	var tc events.TrainingComplete
	if err := json.Unmarshal(result, &tc); err != nil {
		j.logger.Warn().Err(err).Msg("Unreadable start_training result, waiting for events")
		return
	}
	if !j.m.finish(run, StatusCompleted) {
		return
	}
	j.stateMu.Lock()
	j.result = &tc
	j.stateMu.Unlock()
}

// Cancel asks the engine to stop the current run. State changes only on
// the engine's cancelled event. Cancel while idle is a no-op with no
// engine call.
func (j *TrainingJob) Cancel(ctx context.Context) error {
	if !j.m.isRunning() {
		j.logger.Debug().Msg("Cancel ignored, no training run active")
		return nil
	}
	j.logger.Info().Msg("Requesting training cancellation")
	return j.caller.Call(ctx, "cancel_training", nil, nil)
}

// Reset returns a finished job to idle and clears its result. Fails with
// ErrRunActive while running.
func (j *TrainingJob) Reset() error {
	if err := j.m.reset(); err != nil {
		return err
	}
	j.stateMu.Lock()
	j.progress, j.result, j.jobErr = nil, nil, nil
	j.stateMu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state.
func (j *TrainingJob) Snapshot() TrainingSnapshot {
	s := TrainingSnapshot{Status: j.m.current()}
	j.stateMu.Lock()
	defer j.stateMu.Unlock()
	if j.progress != nil {
		p := *j.progress
		s.Progress = &p
	}
	if j.result != nil {
		r := *j.result
		s.Result = &r
	}
	if j.jobErr != nil {
		e := *j.jobErr
		s.Err = &e
	}
	return s
}

// Close releases the event subscription.
func (j *TrainingJob) Close() {
	j.sub.Unsubscribe()
}

func (j *TrainingJob) handleEvent(kind events.Kind, payload json.RawMessage) {
	switch kind {
	case events.KindTrainingProgress:
		var p events.TrainingProgress
		if err := events.Decode(kind, payload, &p); err != nil {
			j.logger.Warn().Err(err).Msg("Dropping malformed progress event")
			return
		}
		j.m.whileRunning(func() {
			j.stateMu.Lock()
			j.progress = &p
			j.stateMu.Unlock()
		})

	case events.KindTrainingComplete:
		var tc events.TrainingComplete
		if err := events.Decode(kind, payload, &tc); err != nil {
			j.logger.Warn().Err(err).Msg("Malformed completion payload")
		}
		if !j.m.finishCurrent(StatusCompleted) {
			return
		}
		j.stateMu.Lock()
		j.result = &tc
		j.stateMu.Unlock()
		j.logger.Info().
			Str("best_model", tc.BestModelName).
			Float64("test_score", tc.TestScore).
			Msg("Training complete")

	case events.KindTrainingError:
		var ep events.ErrorPayload
		if err := events.Decode(kind, payload, &ep); err != nil {
			j.logger.Warn().Err(err).Msg("Malformed error payload")
			ep = events.ErrorPayload{Code: engine.CodeUnknown, Message: "training failed"}
		}
		if !j.m.finishCurrent(StatusError) {
			return
		}
		j.stateMu.Lock()
		j.jobErr = &ep
		j.stateMu.Unlock()
		j.logger.Error().Str("code", ep.Code).Str("message", ep.Message).Msg("Training failed")

	case events.KindTrainingCancelled:
		if j.m.finishCurrent(StatusCancelled) {
			j.logger.Info().Msg("Training cancelled")
		}
	}
}
