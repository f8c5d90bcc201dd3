// Package constants centralizes shared tuning values for lexdesk.
package constants

import (
	"time"
)

// Application identity
const (
	// AppName - application display name, used in notifications and CLI help
	AppName = "Lex"

	// BinaryName - name of the installed binary
	BinaryName = "lexdesk"
)

// Windowed row fetching
const (
	// BufferRows - rows fetched above and below the visible viewport.
	// A fetch for (visibleIndex, visibleCount) expands to
	// [visibleIndex-BufferRows, visibleIndex+visibleCount+BufferRows).
	BufferRows = 10

	// MaxRowFetch - upper bound on rows per get_rows/get_processed_rows call.
	// Keeps single responses well under the scanner line limit.
	MaxRowFetch = 2000
)

// Engine connection
const (
	// EngineDialTimeout - how long to wait for the engine socket to accept
	EngineDialTimeout = 5 * time.Second

	// EngineCallTimeout - default deadline for a single command round-trip.
	// Long-running operations (preprocessing, training) report through
	// events instead, so their start commands return quickly.
	EngineCallTimeout = 30 * time.Second

	// EngineMaxFrame - maximum size of a single protocol frame (16 MB).
	// Row batches dominate frame size; 2000 rows of wide data fit easily.
	EngineMaxFrame = 16 * 1024 * 1024
)

// UI state timings
const (
	// ErrorAutoClearDefault - how long a global error stays visible before
	// auto-clearing. Zero disables auto-clear.
	ErrorAutoClearDefault = 10 * time.Second

	// ProgressThrottleInterval - minimum spacing between forwarded progress
	// events per channel. Terminal events are never throttled.
	ProgressThrottleInterval = 100 * time.Millisecond
)

// History limits, mirrored from the engine's own caps.
const (
	MaxPreprocessHistoryEntries = 20
	MaxTrainingHistoryEntries   = 20
)
