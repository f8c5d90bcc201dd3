// Package session wires the engine connection, event bridge, status
// aggregator, job state machines and row windows into one client-facing
// surface. Everything the CLI (or any future frontend) does goes through
// a Session.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lexhq/lex-desktop/internal/bridge"
	"github.com/lexhq/lex-desktop/internal/config"
	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/engine"
	"github.com/lexhq/lex-desktop/internal/events"
	"github.com/lexhq/lex-desktop/internal/grid"
	"github.com/lexhq/lex-desktop/internal/jobs"
	"github.com/lexhq/lex-desktop/internal/logging"
	"github.com/lexhq/lex-desktop/internal/notify"
	"github.com/lexhq/lex-desktop/internal/providers"
	"github.com/lexhq/lex-desktop/internal/status"
)

// HistoryEntry is one archived preprocessing run.
type HistoryEntry struct {
	ID        string                   `json:"id"`
	Timestamp string                   `json:"timestamp"`
	FileName  string                   `json:"file_name"`
	Summary   events.PreprocessSummary `json:"summary"`
}

// TrainingHistoryEntry is one archived training run.
type TrainingHistoryEntry struct {
	ID           string                  `json:"id"`
	Timestamp    string                  `json:"timestamp"`
	TargetColumn string                  `json:"target_column"`
	Result       events.TrainingComplete `json:"result"`
}

// AnalysisSummary aggregates dataset-level figures from an insight run.
type AnalysisSummary struct {
	Rows                   int     `json:"rows"`
	Columns                int     `json:"columns"`
	MemoryBytes            uint64  `json:"memory_bytes"`
	DuplicateCount         int     `json:"duplicate_count"`
	DuplicatePercentage    float64 `json:"duplicate_percentage"`
	TotalMissingCells      int     `json:"total_missing_cells"`
	TotalMissingPercentage float64 `json:"total_missing_percentage"`
}

// AnalysisResult is the engine's dataset insight report. The per-column
// and statistical sections are kept raw; the client renders the summary
// and treats the rest as opaque report content.
type AnalysisResult struct {
	Dataset       string          `json:"dataset"`
	GeneratedAt   string          `json:"generated_at"`
	DurationMs    int64           `json:"duration_ms"`
	Summary       AnalysisSummary `json:"summary"`
	Columns       json.RawMessage `json:"columns,omitempty"`
	Missingness   json.RawMessage `json:"missingness,omitempty"`
	Correlations  json.RawMessage `json:"correlations,omitempty"`
	Associations  json.RawMessage `json:"associations,omitempty"`
	QualityIssues json.RawMessage `json:"quality_issues,omitempty"`
}

// Session is the top-level client state.
type Session struct {
	logger   *logging.Logger
	caller   engine.Caller
	conn     *engine.Conn // nil when constructed over a bare caller
	br       *bridge.Bridge
	status   *status.Aggregator
	notifier *notify.Notifier

	Preprocess *jobs.PreprocessJob
	Training   *jobs.TrainingJob

	rawWindow  *grid.Window
	procWindow *grid.Window
	rawCols    *grid.ColumnState
	procCols   *grid.ColumnState

	validator *providers.Validator

	mu       sync.Mutex
	fileInfo *events.FileInfo
	theme    events.Theme
	kernel   events.KernelStatusPayload

	subs []*bridge.Subscription
}

// New connects to (or launches) the engine and builds a fully wired
// session.
func New(cfg *config.Config, logger *logging.Logger) (*Session, error) {
	br := bridge.New(logger)
	br.SetProgressThrottle(constants.ProgressThrottleInterval)

	socketPath := cfg.Engine.SocketPath
	if socketPath == "" {
		socketPath = engine.DefaultSocketPath()
	}
	conn, err := engine.Ensure(socketPath, cfg.LaunchCommand(), cfg.DialTimeout(), br.Dispatch, logger)
	if err != nil {
		return nil, err
	}

	notifier := notify.NewNotifier(&notify.Config{Enabled: cfg.Notifications.Enabled}, logger)
	s := newWithCaller(conn, br, cfg, notifier, logger)
	s.conn = conn
	s.validator = providers.NewValidator(logger)
	return s, nil
}

// newWithCaller assembles the session over an arbitrary command caller.
// Split out so tests can drive the full wiring with a fake engine.
func newWithCaller(caller engine.Caller, br *bridge.Bridge, cfg *config.Config, notifier *notify.Notifier, logger *logging.Logger) *Session {
	s := &Session{
		logger:   logger,
		caller:   caller,
		br:       br,
		status:   status.New(cfg.ErrorAutoClear()),
		notifier: notifier,
		theme:    events.ThemeSystem,
		kernel:   events.KernelStatusPayload{Status: events.KernelUninitialized},
	}

	s.Preprocess = jobs.NewPreprocessJob(caller, br, logger)
	s.Training = jobs.NewTrainingJob(caller, br, logger)
	s.rawWindow = grid.NewWindow("get_rows", caller, cfg.UI.BufferRows, logger)
	s.procWindow = grid.NewWindow("get_processed_rows", caller, cfg.UI.BufferRows, logger)
	s.rawCols = grid.NewColumnState()
	s.procCols = grid.NewColumnState()

	s.subs = append(s.subs,
		br.SubscribeKinds([]events.Kind{events.KindFileLoaded, events.KindFileClosed}, s.onFileEvent),
		br.SubscribeKinds([]events.Kind{events.KindLoading, events.KindError}, s.onAppEvent),
		br.Subscribe(events.KindThemeChanged, s.onThemeChanged),
		br.Subscribe(events.KindKernelStatus, s.onKernelStatus),
		br.SubscribeKinds([]events.Kind{
			events.KindPreprocessComplete, events.KindPreprocessError,
			events.KindTrainingComplete, events.KindTrainingError,
		}, s.onJobOutcome),
	)
	return s
}

// Close tears down subscriptions, jobs and the engine connection.
func (s *Session) Close() error {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.Preprocess.Close()
	s.Training.Close()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Status returns the aggregated loading/error snapshot.
func (s *Session) Status() status.Snapshot {
	return s.status.Snapshot()
}

// ClearError dismisses the current error banner.
func (s *Session) ClearError() {
	s.status.ClearError()
}

// --- file lifecycle ---

// LoadFile asks the engine to load a dataset. The returned metadata comes
// from the command response; the file:loaded event performs the cache
// invalidation so it applies regardless of which frontend triggered the
// load.
func (s *Session) LoadFile(ctx context.Context, path string) (*events.FileInfo, error) {
	var info events.FileInfo
	if err := s.caller.Call(ctx, "load_file", map[string]string{"path": path}, &info); err != nil {
		s.reportCommandError("load_file", err)
		return nil, err
	}
	return &info, nil
}

// CloseFile closes the current dataset.
func (s *Session) CloseFile(ctx context.Context) error {
	if err := s.caller.Call(ctx, "close_file", nil, nil); err != nil {
		s.reportCommandError("close_file", err)
		return err
	}
	return nil
}

// FileInfo returns the cached metadata for the loaded dataset, nil when
// none is loaded.
func (s *Session) FileInfo() *events.FileInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fileInfo == nil {
		return nil
	}
	info := *s.fileInfo
	return &info
}

// RefreshFileInfo re-reads dataset metadata from the engine. Read-only:
// failures degrade to the cached value.
func (s *Session) RefreshFileInfo(ctx context.Context) *events.FileInfo {
	var info events.FileInfo
	if err := s.caller.Call(ctx, "get_file_info", nil, &info); err != nil {
		s.logger.Warn().Err(err).Msg("File info refresh failed, keeping cached value")
		return s.FileInfo()
	}
	s.mu.Lock()
	s.fileInfo = &info
	s.mu.Unlock()
	out := info
	return &out
}

// ProcessedFileInfo fetches metadata for the preprocessed dataset.
// Read-only: degrades to nil.
func (s *Session) ProcessedFileInfo(ctx context.Context) *events.FileInfo {
	var info events.FileInfo
	if err := s.caller.Call(ctx, "get_processed_file_info", nil, &info); err != nil {
		s.logger.Warn().Err(err).Msg("Processed file info unavailable")
		return nil
	}
	s.procWindow.SetTotal(info.RowCount)
	return &info
}

// ClearProcessedData drops the engine's preprocessed dataset and
// invalidates the processed view.
func (s *Session) ClearProcessedData(ctx context.Context) error {
	if err := s.caller.Call(ctx, "clear_processed_data", nil, nil); err != nil {
		s.reportCommandError("clear_processed_data", err)
		return err
	}
	s.procWindow.Invalidate()
	s.procCols.Reset()
	return nil
}

// --- row windows ---

// RawWindow is the scrolling view over the loaded file.
func (s *Session) RawWindow() *grid.Window { return s.rawWindow }

// ProcessedWindow is the scrolling view over the preprocessed result.
func (s *Session) ProcessedWindow() *grid.Window { return s.procWindow }

// RawColumns holds width overrides for the raw view.
func (s *Session) RawColumns() *grid.ColumnState { return s.rawCols }

// ProcessedColumns holds width overrides for the processed view.
func (s *Session) ProcessedColumns() *grid.ColumnState { return s.procCols }

// --- preprocessing history and results ---

// PreprocessingHistory lists archived runs, newest first, capped at the
// client's retention limit. Read-only: degrades to empty.
func (s *Session) PreprocessingHistory(ctx context.Context) []HistoryEntry {
	var entries []HistoryEntry
	if err := s.caller.Call(ctx, "get_preprocessing_history", nil, &entries); err != nil {
		s.logger.Warn().Err(err).Msg("Preprocessing history unavailable")
		return nil
	}
	if len(entries) > constants.MaxPreprocessHistoryEntries {
		entries = entries[:constants.MaxPreprocessHistoryEntries]
	}
	return entries
}

// ClearPreprocessingHistory wipes the archive.
func (s *Session) ClearPreprocessingHistory(ctx context.Context) error {
	if err := s.caller.Call(ctx, "clear_preprocessing_history", nil, nil); err != nil {
		s.reportCommandError("clear_preprocessing_history", err)
		return err
	}
	return nil
}

// LastPreprocessingResult fetches the most recent summary. Read-only:
// degrades to nil.
func (s *Session) LastPreprocessingResult(ctx context.Context) *events.PreprocessSummary {
	var raw json.RawMessage
	if err := s.caller.Call(ctx, "get_last_preprocessing_result", nil, &raw); err != nil {
		s.logger.Warn().Err(err).Msg("Last preprocessing result unavailable")
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var summary events.PreprocessSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		s.logger.Warn().Err(err).Msg("Unreadable preprocessing result")
		return nil
	}
	return &summary
}

// ClearLastPreprocessingResult drops the stored summary engine-side and
// resets the local job if it is in a terminal state.
func (s *Session) ClearLastPreprocessingResult(ctx context.Context) error {
	if err := s.caller.Call(ctx, "clear_last_preprocessing_result", nil, nil); err != nil {
		s.reportCommandError("clear_last_preprocessing_result", err)
		return err
	}
	if err := s.Preprocess.Reset(); err != nil && err != jobs.ErrRunActive {
		return err
	}
	return nil
}

// --- training history and results ---

// TrainingResult fetches the stored result of the last training run.
// Read-only: degrades to nil.
func (s *Session) TrainingResult(ctx context.Context) *events.TrainingComplete {
	var raw json.RawMessage
	if err := s.caller.Call(ctx, "get_training_result", nil, &raw); err != nil {
		s.logger.Warn().Err(err).Msg("Training result unavailable")
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var result events.TrainingComplete
	if err := json.Unmarshal(raw, &result); err != nil {
		s.logger.Warn().Err(err).Msg("Unreadable training result")
		return nil
	}
	return &result
}

// TrainingHistory lists archived training runs, newest first, capped at
// the client's retention limit. Read-only: degrades to empty.
func (s *Session) TrainingHistory(ctx context.Context) []TrainingHistoryEntry {
	var entries []TrainingHistoryEntry
	if err := s.caller.Call(ctx, "get_training_history", nil, &entries); err != nil {
		s.logger.Warn().Err(err).Msg("Training history unavailable")
		return nil
	}
	if len(entries) > constants.MaxTrainingHistoryEntries {
		entries = entries[:constants.MaxTrainingHistoryEntries]
	}
	return entries
}

// ClearTrainingHistory wipes the training archive.
func (s *Session) ClearTrainingHistory(ctx context.Context) error {
	if err := s.caller.Call(ctx, "clear_training_history", nil, nil); err != nil {
		s.reportCommandError("clear_training_history", err)
		return err
	}
	return nil
}

// --- analysis ---

// RunAnalysis computes the full insight report for the raw or processed
// dataset. Long-running; the engine narrates progress through
// app:loading events, and the result is also cached engine-side for
// later retrieval.
func (s *Session) RunAnalysis(ctx context.Context, processed bool) (*AnalysisResult, error) {
	var result AnalysisResult
	args := map[string]bool{"use_processed_data": processed}
	if err := s.caller.Call(ctx, "run_analysis", args, &result); err != nil {
		s.reportCommandError("run_analysis", err)
		return nil, err
	}
	return &result, nil
}

// AnalysisResult fetches the cached report for the raw or processed
// dataset. Read-only: degrades to nil, and nil also means no analysis
// has run yet.
func (s *Session) AnalysisResult(ctx context.Context, processed bool) *AnalysisResult {
	var raw json.RawMessage
	args := map[string]bool{"use_processed_data": processed}
	if err := s.caller.Call(ctx, "get_analysis_result", args, &raw); err != nil {
		s.logger.Warn().Err(err).Msg("Analysis result unavailable")
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var result AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.logger.Warn().Err(err).Msg("Unreadable analysis result")
		return nil
	}
	return &result
}

// ClearAnalysisResults drops the cached reports for both datasets.
func (s *Session) ClearAnalysisResults(ctx context.Context) error {
	if err := s.caller.Call(ctx, "clear_analysis_results", nil, nil); err != nil {
		s.reportCommandError("clear_analysis_results", err)
		return err
	}
	return nil
}

// --- ML kernel ---

// InitializeKernel starts the engine's ML runtime. Progress arrives via
// kernel status events.
func (s *Session) InitializeKernel(ctx context.Context) error {
	if err := s.caller.Call(ctx, "initialize_ml", nil, nil); err != nil {
		s.reportCommandError("initialize_ml", err)
		return err
	}
	return nil
}

// KernelInitialized asks the engine whether the ML runtime is ready.
// Read-only: degrades to false.
func (s *Session) KernelInitialized(ctx context.Context) bool {
	var ready bool
	if err := s.caller.Call(ctx, "is_ml_initialized", nil, &ready); err != nil {
		s.logger.Warn().Err(err).Msg("Kernel status check failed")
		return false
	}
	return ready
}

// KernelStatus returns the last pushed kernel state.
func (s *Session) KernelStatus() events.KernelStatusPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kernel
}

// --- settings ---

// Theme fetches the stored theme. Read-only: degrades to the cached
// value.
func (s *Session) Theme(ctx context.Context) events.Theme {
	var out struct {
		Theme events.Theme `json:"theme"`
	}
	if err := s.caller.Call(ctx, "get_theme", nil, &out); err != nil {
		s.logger.Warn().Err(err).Msg("Theme fetch failed, using cached value")
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.theme
	}
	s.mu.Lock()
	s.theme = out.Theme
	s.mu.Unlock()
	return out.Theme
}

// SetTheme stores a theme preference.
func (s *Session) SetTheme(ctx context.Context, theme events.Theme) error {
	if err := s.caller.Call(ctx, "set_theme", map[string]events.Theme{"theme": theme}, nil); err != nil {
		s.reportCommandError("set_theme", err)
		return err
	}
	return nil
}

// AIProviderConfig fetches the stored provider configuration with the key
// redacted engine-side. Read-only: degrades to nil.
func (s *Session) AIProviderConfig(ctx context.Context) *providers.Config {
	var raw json.RawMessage
	if err := s.caller.Call(ctx, "get_ai_provider_config", nil, &raw); err != nil {
		s.logger.Warn().Err(err).Msg("AI provider config unavailable")
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var cfg providers.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		s.logger.Warn().Err(err).Msg("Unreadable AI provider config")
		return nil
	}
	return &cfg
}

// ConfigureAIProvider validates the key client-side when a validator is
// wired, then stores the configuration in the engine.
func (s *Session) ConfigureAIProvider(ctx context.Context, cfg providers.Config) error {
	if s.validator != nil {
		if err := s.validator.ValidateKey(ctx, cfg.Provider, cfg.APIKey); err != nil {
			s.reportCommandError("configure_ai_provider", err)
			return err
		}
	}
	if err := s.caller.Call(ctx, "configure_ai_provider", cfg, nil); err != nil {
		s.reportCommandError("configure_ai_provider", err)
		return err
	}
	return nil
}

// ClearAIProvider removes the stored provider configuration.
func (s *Session) ClearAIProvider(ctx context.Context) error {
	if err := s.caller.Call(ctx, "clear_ai_provider", nil, nil); err != nil {
		s.reportCommandError("clear_ai_provider", err)
		return err
	}
	return nil
}

// ValidateAPIKey runs the engine's own key validation, which exercises
// the exact client library the pipelines will use.
func (s *Session) ValidateAPIKey(ctx context.Context, provider, key string) (bool, error) {
	var valid bool
	args := map[string]string{"provider": provider, "api_key": key}
	if err := s.caller.Call(ctx, "validate_ai_api_key", args, &valid); err != nil {
		return false, err
	}
	return valid, nil
}

// --- event handlers ---

func (s *Session) onFileEvent(kind events.Kind, payload json.RawMessage) {
	switch kind {
	case events.KindFileLoaded:
		var p events.FileLoadedPayload
		if err := events.Decode(kind, payload, &p); err != nil {
			s.logger.Warn().Err(err).Msg("Malformed file:loaded payload")
			return
		}
		s.mu.Lock()
		s.fileInfo = &p.FileInfo
		s.mu.Unlock()

		// New dataset identity: both views start from scratch.
		s.rawWindow.Invalidate()
		s.rawWindow.SetTotal(p.FileInfo.RowCount)
		s.rawCols.Reset()
		s.procWindow.Invalidate()
		s.procCols.Reset()
		s.logger.Info().Str("file", p.FileInfo.Name).Int("rows", p.FileInfo.RowCount).Msg("Dataset loaded")

	case events.KindFileClosed:
		s.mu.Lock()
		s.fileInfo = nil
		s.mu.Unlock()
		s.rawWindow.Invalidate()
		s.rawCols.Reset()
		s.procWindow.Invalidate()
		s.procCols.Reset()
		s.logger.Info().Msg("Dataset closed")
	}
}

func (s *Session) onAppEvent(kind events.Kind, payload json.RawMessage) {
	switch kind {
	case events.KindLoading:
		var p events.LoadingPayload
		if err := events.Decode(kind, payload, &p); err != nil {
			s.logger.Warn().Err(err).Msg("Malformed loading payload")
			return
		}
		s.status.SetLoading(p.IsLoading, p.Message)

	case events.KindError:
		var p events.ErrorPayload
		if err := events.Decode(kind, payload, &p); err != nil {
			s.logger.Warn().Err(err).Msg("Malformed error payload")
			return
		}
		s.status.ReportError(p.Code, p.Message)
	}
}

func (s *Session) onThemeChanged(kind events.Kind, payload json.RawMessage) {
	var p events.ThemeChangedPayload
	if err := events.Decode(kind, payload, &p); err != nil {
		s.logger.Warn().Err(err).Msg("Malformed theme payload")
		return
	}
	s.mu.Lock()
	s.theme = p.Theme
	s.mu.Unlock()
}

func (s *Session) onKernelStatus(kind events.Kind, payload json.RawMessage) {
	var p events.KernelStatusPayload
	if err := events.Decode(kind, payload, &p); err != nil {
		s.logger.Warn().Err(err).Msg("Malformed kernel status payload")
		return
	}
	s.mu.Lock()
	s.kernel = p
	s.mu.Unlock()
}

// onJobOutcome mirrors terminal job events into desktop notifications.
func (s *Session) onJobOutcome(kind events.Kind, payload json.RawMessage) {
	if s.notifier == nil {
		return
	}
	switch kind {
	case events.KindPreprocessComplete:
		var summary events.PreprocessSummary
		if events.Decode(kind, payload, &summary) == nil {
			s.notifier.PreprocessComplete(summary.RowsAfter, summary.IssuesResolved)
		}
	case events.KindPreprocessError:
		var p events.ErrorPayload
		if events.Decode(kind, payload, &p) == nil {
			s.notifier.JobFailed("Preprocessing", p.Message)
		}
	case events.KindTrainingComplete:
		var result events.TrainingComplete
		if events.Decode(kind, payload, &result) == nil {
			s.notifier.TrainingComplete(result.BestModelName, result.TestScore)
		}
	case events.KindTrainingError:
		var p events.ErrorPayload
		if events.Decode(kind, payload, &p) == nil {
			s.notifier.JobFailed("Training", p.Message)
		}
	}
}

// reportCommandError mirrors a mutating command failure into the shared
// error state. Engine errors keep their code; transport failures map to
// the unknown code.
func (s *Session) reportCommandError(cmd string, err error) {
	s.logger.Error().Err(err).Str("cmd", cmd).Msg("Command failed")
	if engErr, ok := err.(*engine.Error); ok {
		s.status.ReportError(engErr.Code, engErr.Message)
		return
	}
	s.status.ReportError(engine.CodeUnknown, err.Error())
}
