package jobs

import (
	"context"
	"testing"

	"github.com/lexhq/lex-desktop/internal/bridge"
	"github.com/lexhq/lex-desktop/internal/logging"
)

func newTrainingHarness() (*TrainingJob, *fakeCaller, *bridge.Bridge) {
	fc := newFakeCaller()
	br := bridge.New(logging.NewLogger("jobs-test"))
	return NewTrainingJob(fc, br, logging.NewLogger("jobs-test")), fc, br
}

func TestTraining_RequiresTargetColumn(t *testing.T) {
	j, fc, _ := newTrainingHarness()

	if err := j.Start(context.Background(), TrainingConfig{}); err == nil {
		t.Fatal("Expected error for missing target column")
	}
	if len(fc.calls) != 0 {
		t.Errorf("Invalid config reached the engine: %v", fc.calls)
	}
	if s := j.Snapshot(); s.Status != StatusIdle {
		t.Errorf("Failed precondition changed state: %v", s.Status)
	}
}

func TestTraining_ProgressModelCountsRetained(t *testing.T) {
	j, _, br := newTrainingHarness()

	if err := j.Start(context.Background(), TrainingConfig{TargetColumn: "churn"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	br.Dispatch("ml:progress",
		[]byte(`{"stage":"training","progress":0.55,"message":"Training lightgbm","current_model":"lightgbm","models_completed":[3,6]}`))
	br.Dispatch("ml:complete",
		[]byte(`{"best_model_name":"lightgbm","test_score":0.91,"training_time_seconds":42.5}`))

	s := j.Snapshot()
	if s.Status != StatusCompleted {
		t.Fatalf("Expected completed, got %v", s.Status)
	}
	if s.Progress == nil || s.Progress.CurrentModel != "lightgbm" {
		t.Fatalf("Progress not retained: %+v", s.Progress)
	}
	if mc := s.Progress.ModelsCompleted; mc == nil || mc[0] != 3 || mc[1] != 6 {
		t.Errorf("Expected models_completed [3 6], got %v", mc)
	}
	if s.Result == nil || s.Result.BestModelName != "lightgbm" || s.Result.TestScore != 0.91 {
		t.Errorf("Result not populated: %+v", s.Result)
	}
}

func TestTraining_ErrorAndCancelledStayDistinct(t *testing.T) {
	j, _, br := newTrainingHarness()

	if err := j.Start(context.Background(), TrainingConfig{TargetColumn: "price"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	br.Dispatch("ml:cancelled", nil)
	if s := j.Snapshot(); s.Status != StatusCancelled || s.Err != nil {
		t.Fatalf("Cancellation must not look like a failure: %+v", s)
	}

	if err := j.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := j.Start(context.Background(), TrainingConfig{TargetColumn: "price"}); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	br.Dispatch("ml:error", []byte(`{"code":"AI_CLIENT_ERROR","message":"provider unreachable"}`))
	s := j.Snapshot()
	if s.Status != StatusError || s.Err == nil || s.Err.Code != "AI_CLIENT_ERROR" {
		t.Fatalf("Expected distinct error state, got %+v", s)
	}
}

func TestTraining_SecondRunClearsFirstRunsResult(t *testing.T) {
	j, _, br := newTrainingHarness()

	if err := j.Start(context.Background(), TrainingConfig{TargetColumn: "y"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	br.Dispatch("ml:complete", []byte(`{"best_model_name":"ridge","test_score":0.7}`))
	if err := j.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	if err := j.Start(context.Background(), TrainingConfig{TargetColumn: "y"}); err != nil {
		t.Fatalf("Second start failed: %v", err)
	}
	s := j.Snapshot()
	if s.Status != StatusRunning || s.Result != nil || s.Progress != nil {
		t.Errorf("Second run started with stale state: %+v", s)
	}
}

func TestTraining_UnsubscribedJobIgnoresEvents(t *testing.T) {
	j, _, br := newTrainingHarness()

	if err := j.Start(context.Background(), TrainingConfig{TargetColumn: "y"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	j.Close()

	br.Dispatch("ml:complete", []byte(`{"best_model_name":"ridge"}`))
	if s := j.Snapshot(); s.Status != StatusRunning {
		t.Errorf("Closed job still received events: %v", s.Status)
	}
}
