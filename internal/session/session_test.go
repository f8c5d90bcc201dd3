package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/lexhq/lex-desktop/internal/bridge"
	"github.com/lexhq/lex-desktop/internal/config"
	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/engine"
	"github.com/lexhq/lex-desktop/internal/events"
	"github.com/lexhq/lex-desktop/internal/logging"
	"github.com/lexhq/lex-desktop/internal/notify"
)

type fakeCaller struct {
	mu      sync.Mutex
	calls   []string
	args    map[string]interface{}
	results map[string]json.RawMessage
	errs    map[string]error
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{
		args:    make(map[string]interface{}),
		results: make(map[string]json.RawMessage),
		errs:    make(map[string]error),
	}
}

func (f *fakeCaller) Call(ctx context.Context, cmd string, args, out interface{}) error {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.args[cmd] = args
	res := f.results[cmd]
	err := f.errs[cmd]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if out != nil && len(res) > 0 {
		return json.Unmarshal(res, out)
	}
	return nil
}

func newTestSession() (*Session, *fakeCaller, *bridge.Bridge) {
	fc := newFakeCaller()
	logger := logging.NewLogger("session-test")
	br := bridge.New(logger)
	notifier := notify.NewNotifier(&notify.Config{Enabled: false}, logger)
	s := newWithCaller(fc, br, config.New(), notifier, logger)
	return s, fc, br
}

func fileLoadedPayload(name string, rows int) []byte {
	p := events.FileLoadedPayload{FileInfo: events.FileInfo{
		Path:        "/data/" + name,
		Name:        name,
		RowCount:    rows,
		ColumnCount: 3,
		Columns: []events.ColumnInfo{
			{Name: "id", DType: "int64"},
			{Name: "age", DType: "float64"},
			{Name: "city", DType: "string"},
		},
	}}
	b, _ := json.Marshal(p)
	return b
}

func TestSession_FileLoadedPrimesState(t *testing.T) {
	s, _, br := newTestSession()

	if s.FileInfo() != nil {
		t.Fatal("Expected no file before the event")
	}

	br.Dispatch("file:loaded", fileLoadedPayload("train.csv", 5000))

	info := s.FileInfo()
	if info == nil || info.Name != "train.csv" || info.RowCount != 5000 {
		t.Fatalf("File info not cached: %+v", info)
	}
	if b := s.RawWindow().Snapshot(); b.TotalRows != 5000 {
		t.Errorf("Raw window not primed with row count: %+v", b)
	}
}

func TestSession_NewFileResetsColumnWidths(t *testing.T) {
	s, _, br := newTestSession()

	br.Dispatch("file:loaded", fileLoadedPayload("a.csv", 100))
	s.RawColumns().SetWidth("age", 140)

	br.Dispatch("file:loaded", fileLoadedPayload("b.csv", 200))
	if _, ok := s.RawColumns().Width("age"); ok {
		t.Error("Column widths survived a dataset change")
	}
}

func TestSession_FileClosedClearsState(t *testing.T) {
	s, _, br := newTestSession()

	br.Dispatch("file:loaded", fileLoadedPayload("a.csv", 100))
	br.Dispatch("file:closed", nil)

	if s.FileInfo() != nil {
		t.Error("File info survived close")
	}
	if b := s.RawWindow().Snapshot(); b.TotalRows != 0 || len(b.Rows) != 0 {
		t.Errorf("Raw window survived close: %+v", b)
	}
}

func TestSession_AppEventsFeedStatus(t *testing.T) {
	s, _, br := newTestSession()

	br.Dispatch("app:loading", []byte(`{"is_loading":true,"message":"Parsing file"}`))
	if st := s.Status(); !st.Loading || st.Message != "Parsing file" {
		t.Fatalf("Loading event not aggregated: %+v", st)
	}

	br.Dispatch("app:error", []byte(`{"code":"FILE_PARSE_ERROR","message":"bad delimiter"}`))
	st := s.Status()
	if st.Error == nil || st.Error.Code != "FILE_PARSE_ERROR" {
		t.Fatalf("Error event not aggregated: %+v", st)
	}

	s.ClearError()
	if st := s.Status(); st.Error != nil {
		t.Error("ClearError did not clear")
	}
}

func TestSession_HistoryDegradesToEmpty(t *testing.T) {
	s, fc, _ := newTestSession()
	fc.errs["get_preprocessing_history"] = errors.New("engine busy")
	fc.errs["get_training_history"] = errors.New("engine busy")

	if got := s.PreprocessingHistory(context.Background()); got != nil {
		t.Errorf("Expected nil history on failure, got %v", got)
	}
	if got := s.TrainingHistory(context.Background()); got != nil {
		t.Errorf("Expected nil training history on failure, got %v", got)
	}
	// Read-only failures must not surface as user-facing errors.
	if st := s.Status(); st.Error != nil {
		t.Errorf("Read-only failure polluted status: %+v", st.Error)
	}
}

func TestSession_HistoryDecodes(t *testing.T) {
	s, fc, _ := newTestSession()
	fc.results["get_preprocessing_history"] = []byte(
		`[{"id":"r1","timestamp":"2026-08-20T10:00:00Z","file_name":"a.csv","summary":{"rows_after":90}}]`)

	entries := s.PreprocessingHistory(context.Background())
	if len(entries) != 1 || entries[0].Summary.RowsAfter != 90 {
		t.Fatalf("History not decoded: %+v", entries)
	}
}

func TestSession_BufferRowsConfigReachesWindows(t *testing.T) {
	fc := newFakeCaller()
	logger := logging.NewLogger("session-test")
	br := bridge.New(logger)
	cfg := config.New()
	cfg.UI.BufferRows = 3
	notifier := notify.NewNotifier(&notify.Config{Enabled: false}, logger)
	s := newWithCaller(fc, br, cfg, notifier, logger)

	s.RawWindow().SetTotal(10000)
	s.RawWindow().FetchWindow(context.Background(), 100, 20)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fc.mu.Lock()
		raw, ok := fc.args["get_rows"]
		fc.mu.Unlock()
		if ok {
			b, _ := json.Marshal(raw)
			if string(b) != `{"start":97,"count":26}` {
				t.Fatalf("Expected configured overscan 3 in the requested range, got %s", b)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Fetch never reached the engine")
}

func TestSession_HistoryCappedAtRetentionLimit(t *testing.T) {
	s, fc, _ := newTestSession()

	entries := make([]HistoryEntry, constants.MaxPreprocessHistoryEntries+5)
	for i := range entries {
		entries[i] = HistoryEntry{ID: "r" + strconv.Itoa(i)}
	}
	b, _ := json.Marshal(entries)
	fc.results["get_preprocessing_history"] = b

	got := s.PreprocessingHistory(context.Background())
	if len(got) != constants.MaxPreprocessHistoryEntries {
		t.Fatalf("Expected %d entries, got %d", constants.MaxPreprocessHistoryEntries, len(got))
	}
	// Newest-first ordering: the cap keeps the head of the list.
	if got[0].ID != "r0" {
		t.Errorf("Cap dropped the newest entries: first is %s", got[0].ID)
	}
}

func TestSession_MutatingFailurePropagatesAndSetsError(t *testing.T) {
	s, fc, _ := newTestSession()
	fc.errs["clear_processed_data"] = &engine.Error{Code: engine.CodeNoDataLoaded, Message: "nothing to clear"}

	err := s.ClearProcessedData(context.Background())
	if err == nil {
		t.Fatal("Expected mutating failure to propagate")
	}
	st := s.Status()
	if st.Error == nil || st.Error.Code != engine.CodeNoDataLoaded {
		t.Fatalf("Mutating failure missing from status: %+v", st.Error)
	}
}

func TestSession_LastResultNullMeansNone(t *testing.T) {
	s, fc, _ := newTestSession()
	fc.results["get_last_preprocessing_result"] = []byte(`null`)

	if got := s.LastPreprocessingResult(context.Background()); got != nil {
		t.Errorf("Expected nil for null result, got %+v", got)
	}
}

func TestSession_AnalysisResultDecodes(t *testing.T) {
	s, fc, _ := newTestSession()
	fc.results["get_analysis_result"] = []byte(`{
		"dataset": "original",
		"generated_at": "2026-08-20T10:00:00Z",
		"duration_ms": 420,
		"summary": {"rows": 1000, "columns": 12, "duplicate_count": 3}
	}`)

	result := s.AnalysisResult(context.Background(), false)
	if result == nil || result.Summary.Rows != 1000 || result.Summary.DuplicateCount != 3 {
		t.Fatalf("Analysis result not decoded: %+v", result)
	}

	fc.mu.Lock()
	raw := fc.args["get_analysis_result"]
	fc.mu.Unlock()
	b, _ := json.Marshal(raw)
	if string(b) != `{"use_processed_data":false}` {
		t.Errorf("Unexpected dataset selector: %s", b)
	}
}

func TestSession_AnalysisResultNullMeansNone(t *testing.T) {
	s, fc, _ := newTestSession()
	fc.results["get_analysis_result"] = []byte(`null`)

	if got := s.AnalysisResult(context.Background(), true); got != nil {
		t.Errorf("Expected nil for null analysis result, got %+v", got)
	}
	// Read-only failures degrade too, without polluting status.
	fc.errs["get_analysis_result"] = errors.New("engine busy")
	if got := s.AnalysisResult(context.Background(), true); got != nil {
		t.Errorf("Expected nil on failure, got %+v", got)
	}
	if st := s.Status(); st.Error != nil {
		t.Errorf("Read-only failure polluted status: %+v", st.Error)
	}
}

func TestSession_RunAnalysisFailurePropagatesAndSetsError(t *testing.T) {
	s, fc, _ := newTestSession()
	fc.errs["run_analysis"] = &engine.Error{Code: engine.CodeNoDataLoaded, Message: "no data loaded"}

	if _, err := s.RunAnalysis(context.Background(), false); err == nil {
		t.Fatal("Expected run failure to propagate")
	}
	st := s.Status()
	if st.Error == nil || st.Error.Code != engine.CodeNoDataLoaded {
		t.Fatalf("Run failure missing from status: %+v", st.Error)
	}
}

func TestSession_ThemeCacheFollowsEvents(t *testing.T) {
	s, fc, br := newTestSession()

	br.Dispatch("settings:theme-changed", []byte(`{"theme":"dark"}`))
	fc.errs["get_theme"] = errors.New("engine busy")
	if got := s.Theme(context.Background()); got != events.ThemeDark {
		t.Errorf("Expected cached dark theme on fetch failure, got %q", got)
	}

	delete(fc.errs, "get_theme")
	fc.results["get_theme"] = []byte(`{"theme":"light"}`)
	if got := s.Theme(context.Background()); got != events.ThemeLight {
		t.Errorf("Expected fetched light theme, got %q", got)
	}
}

func TestSession_KernelStatusFollowsEvents(t *testing.T) {
	s, _, br := newTestSession()

	if k := s.KernelStatus(); k.Status != events.KernelUninitialized {
		t.Fatalf("Expected uninitialized kernel, got %+v", k)
	}
	br.Dispatch("ml:kernel-status", []byte(`{"status":"ready"}`))
	if k := s.KernelStatus(); k.Status != events.KernelReady {
		t.Fatalf("Kernel status event not applied: %+v", k)
	}
}

func TestSession_ValidateAPIKey(t *testing.T) {
	s, fc, _ := newTestSession()
	fc.results["validate_ai_api_key"] = []byte(`true`)

	valid, err := s.ValidateAPIKey(context.Background(), "gemini", "AIza-x")
	if err != nil || !valid {
		t.Fatalf("Expected valid key, got %v %v", valid, err)
	}
}
