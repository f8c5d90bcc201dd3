package events

import (
	"encoding/json"
	"fmt"
)

// ColumnInfo describes one column of a loaded dataset.
type ColumnInfo struct {
	Name      string  `json:"name"`
	DType     string  `json:"dtype"`
	NullCount int     `json:"null_count"`
	Width     float64 `json:"width"`
}

// FileInfo is the metadata the engine reports for a loaded (or processed)
// dataset. It is carried by the file:loaded event and returned by
// get_file_info / get_processed_file_info.
type FileInfo struct {
	Path        string       `json:"path"`
	Name        string       `json:"name"`
	SizeBytes   int64        `json:"size_bytes"`
	RowCount    int          `json:"row_count"`
	ColumnCount int          `json:"column_count"`
	Columns     []ColumnInfo `json:"columns"`
}

// FileLoadedPayload is the payload of file:loaded.
type FileLoadedPayload struct {
	FileInfo FileInfo `json:"file_info"`
}

// LoadingPayload is the payload of app:loading.
type LoadingPayload struct {
	IsLoading bool   `json:"is_loading"`
	Message   string `json:"message,omitempty"`
}

// ErrorPayload is the payload of app:error, preprocessing:error and
// ml:error: a stable code plus a human-readable message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PreprocessStage is one phase of the engine's cleaning pipeline.
// The set is closed; progress events always carry one of these.
type PreprocessStage string

const (
	StageInitializing    PreprocessStage = "initializing"
	StageProfiling       PreprocessStage = "profiling"
	StageQualityAnalysis PreprocessStage = "quality_analysis"
	StageTypeCorrection  PreprocessStage = "type_correction"
	StageDecisionMaking  PreprocessStage = "decision_making"
	StageCleaning        PreprocessStage = "cleaning"
	StageImputation      PreprocessStage = "imputation"
	StageOutlierHandling PreprocessStage = "outlier_handling"
	StageReportGen       PreprocessStage = "report_generation"
	StageComplete        PreprocessStage = "complete"
	StageCancelled       PreprocessStage = "cancelled"
	StageFailed          PreprocessStage = "failed"
)

// DisplayName returns a human-readable stage label.
func (s PreprocessStage) DisplayName() string {
	switch s {
	case StageInitializing:
		return "Initializing"
	case StageProfiling:
		return "Profiling Dataset"
	case StageQualityAnalysis:
		return "Analyzing Quality"
	case StageTypeCorrection:
		return "Correcting Types"
	case StageDecisionMaking:
		return "Making Decisions"
	case StageCleaning:
		return "Cleaning Data"
	case StageImputation:
		return "Imputing Values"
	case StageOutlierHandling:
		return "Handling Outliers"
	case StageReportGen:
		return "Generating Reports"
	case StageComplete:
		return "Complete"
	case StageCancelled:
		return "Cancelled"
	case StageFailed:
		return "Failed"
	}
	return string(s)
}

// PreprocessProgress is the payload of preprocessing:progress.
// Each update supersedes the previous one; updates are never merged.
type PreprocessProgress struct {
	Stage          PreprocessStage `json:"stage"`
	SubStage       string          `json:"sub_stage,omitempty"`
	Progress       float64         `json:"progress"`
	StageProgress  float64         `json:"stage_progress"`
	Message        string          `json:"message"`
	ItemsProcessed *int            `json:"items_processed,omitempty"`
	ItemsTotal     *int            `json:"items_total,omitempty"`
}

// PreprocessAction is one action the pipeline took, for the summary report.
type PreprocessAction struct {
	Action string `json:"action"`
	Column string `json:"column,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// PreprocessSummary is the payload of preprocessing:complete.
type PreprocessSummary struct {
	DurationMs int64 `json:"duration_ms"`

	RowsBefore  int `json:"rows_before"`
	RowsAfter   int `json:"rows_after"`
	RowsRemoved int `json:"rows_removed"`

	ColumnsBefore  int `json:"columns_before"`
	ColumnsAfter   int `json:"columns_after"`
	ColumnsRemoved int `json:"columns_removed"`

	IssuesFound    int     `json:"issues_found"`
	IssuesResolved int     `json:"issues_resolved"`
	QualityBefore  float64 `json:"data_quality_score_before"`
	QualityAfter   float64 `json:"data_quality_score_after"`

	Actions  []PreprocessAction `json:"actions,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

// TrainingStage is one phase of the engine's training pipeline.
type TrainingStage string

const (
	TrainStageInitializing   TrainingStage = "initializing"
	TrainStagePreprocessing  TrainingStage = "preprocessing"
	TrainStageAlgoSelection  TrainingStage = "algorithm_selection"
	TrainStageTraining       TrainingStage = "training"
	TrainStageEvaluation     TrainingStage = "evaluation"
	TrainStageExplainability TrainingStage = "explainability"
	TrainStageComplete       TrainingStage = "complete"
	TrainStageFailed         TrainingStage = "failed"
	TrainStageCancelled      TrainingStage = "cancelled"
)

// DisplayName returns a human-readable stage label.
func (s TrainingStage) DisplayName() string {
	switch s {
	case TrainStageInitializing:
		return "Initializing"
	case TrainStagePreprocessing:
		return "Preparing Features"
	case TrainStageAlgoSelection:
		return "Selecting Algorithms"
	case TrainStageTraining:
		return "Training Models"
	case TrainStageEvaluation:
		return "Evaluating"
	case TrainStageExplainability:
		return "Explaining"
	case TrainStageComplete:
		return "Complete"
	case TrainStageFailed:
		return "Failed"
	case TrainStageCancelled:
		return "Cancelled"
	}
	return string(s)
}

// TrainingProgress is the payload of ml:progress. The engine serializes
// models_completed as a [done, total] pair.
type TrainingProgress struct {
	Stage           TrainingStage `json:"stage"`
	Progress        float64       `json:"progress"`
	Message         string        `json:"message"`
	CurrentModel    string        `json:"current_model,omitempty"`
	ModelsCompleted *[2]int       `json:"models_completed,omitempty"`
}

// TrainingComplete is the payload of ml:complete.
type TrainingComplete struct {
	BestModelName       string  `json:"best_model_name"`
	TestScore           float64 `json:"test_score"`
	TrainingTimeSeconds float64 `json:"training_time_seconds"`
}

// KernelState reports the ML runtime's lifecycle.
type KernelState string

const (
	KernelUninitialized KernelState = "uninitialized"
	KernelInitializing  KernelState = "initializing"
	KernelReady         KernelState = "ready"
	KernelError         KernelState = "error"
)

// KernelStatusPayload is the payload of ml:kernel-status.
type KernelStatusPayload struct {
	Status  KernelState `json:"status"`
	Message string      `json:"message,omitempty"`
}

// Theme is the UI theme preference held by the engine's settings store.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ThemeChangedPayload is the payload of settings:theme-changed.
type ThemeChangedPayload struct {
	Theme Theme `json:"theme"`
}

// Decode unmarshals a raw event payload into out, reporting the channel
// name on failure so malformed payloads are attributable in logs.
func Decode(kind Kind, payload json.RawMessage, out interface{}) error {
	if len(payload) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return nil
}
