package status

import (
	"testing"
	"time"
)

func TestAggregator_Loading(t *testing.T) {
	a := New(0)

	a.SetLoading(true, "Loading dataset")
	s := a.Snapshot()
	if !s.Loading || s.Message != "Loading dataset" {
		t.Errorf("Unexpected snapshot: %+v", s)
	}

	a.SetLoading(false, "stale message")
	s = a.Snapshot()
	if s.Loading || s.Message != "" {
		t.Errorf("Message should clear when loading ends, got %+v", s)
	}
}

func TestAggregator_ErrorAutoClears(t *testing.T) {
	a := New(50 * time.Millisecond)

	a.ReportError("FILE_NOT_FOUND", "no such file")
	if s := a.Snapshot(); s.Error == nil || s.Error.Code != "FILE_NOT_FOUND" {
		t.Fatalf("Expected error in snapshot, got %+v", s)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.Snapshot().Error == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Error never auto-cleared")
}

func TestAggregator_NewerErrorReplacesPendingClear(t *testing.T) {
	a := New(60 * time.Millisecond)

	a.ReportError("FILE_NOT_FOUND", "first")
	time.Sleep(40 * time.Millisecond)
	a.ReportError("INTERNAL_ERROR", "second")

	// The first error's countdown would expire here. The second error
	// restarted it, so the snapshot must still show the second error.
	time.Sleep(30 * time.Millisecond)
	s := a.Snapshot()
	if s.Error == nil || s.Error.Code != "INTERNAL_ERROR" {
		t.Fatalf("Second error cleared by first error's timer: %+v", s)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a.Snapshot().Error == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("Second error never auto-cleared")
}

func TestAggregator_ManualClearBeatsTimer(t *testing.T) {
	a := New(time.Hour)

	a.ReportError("CANCELLED", "stopped")
	a.ClearError()
	if s := a.Snapshot(); s.Error != nil {
		t.Errorf("Expected no error after manual clear, got %+v", s)
	}
}

func TestAggregator_NoAutoClearWhenDisabled(t *testing.T) {
	a := New(0)

	a.ReportError("INVALID_CONFIG", "bad settings")
	time.Sleep(30 * time.Millisecond)
	if s := a.Snapshot(); s.Error == nil {
		t.Error("Error cleared despite auto-clear being disabled")
	}
}
