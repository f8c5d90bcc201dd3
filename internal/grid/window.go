// Package grid maintains buffered row windows for virtualized scrolling
// over datasets that live in the engine.
//
// A Window holds one contiguous fetched range. Scroll callbacks compute a
// buffered range around the visible rows; an exact match against the last
// requested range suppresses the call, a per-request sequence token keeps
// slow responses from overwriting newer ones, and a generation counter
// drops responses that raced a dataset change.
package grid

import (
	"context"
	"sync"

	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/engine"
	"github.com/lexhq/lex-desktop/internal/logging"
)

// Row is one dataset row as the engine serializes it.
type Row []interface{}

// RowsResponse is the engine's reply to a windowed row fetch. TotalRows
// is authoritative on every response; the cache never assumes it is
// static.
type RowsResponse struct {
	Rows      []Row `json:"rows"`
	Start     int   `json:"start"`
	TotalRows int   `json:"total_rows"`
}

// Buffer is the externally visible window state.
type Buffer struct {
	Rows         []Row
	VisibleStart int
	TotalRows    int
}

type fetchArgs struct {
	Start int `json:"start"`
	Count int `json:"count"`
}

// Window caches one contiguous range of rows behind a fetch command. The
// raw and processed views are two instances differing only in command
// name.
type Window struct {
	cmd      string
	caller   engine.Caller
	logger   *logging.Logger
	overscan int
	maxFetch int

	mu           sync.Mutex
	rows         []Row
	visibleStart int
	totalRows    int
	lastReq      *fetchArgs
	seq          uint64
	generation   uint64
}

// NewWindow creates a window over the given fetch command
// (get_rows or get_processed_rows). overscan is the extra row count
// fetched on each side of the visible range; zero is valid and fetches
// exactly the visible rows, negative selects the default.
func NewWindow(cmd string, caller engine.Caller, overscan int, logger *logging.Logger) *Window {
	if overscan < 0 {
		overscan = constants.BufferRows
	}
	return &Window{
		cmd:      cmd,
		caller:   caller,
		logger:   logger,
		overscan: overscan,
		maxFetch: constants.MaxRowFetch,
	}
}

// SetTotal primes the row count from dataset metadata so the first fetch
// can clamp before any response has arrived.
func (w *Window) SetTotal(total int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.totalRows = total
}

// FetchWindow requests the buffered range around the visible rows. The
// call returns immediately; the buffer updates when the response lands.
// An exact repeat of the last requested range issues no engine call.
func (w *Window) FetchWindow(ctx context.Context, visibleIndex, visibleCount int) {
	start := visibleIndex - w.overscan
	if start < 0 {
		start = 0
	}
	count := visibleCount + 2*w.overscan
	if count > w.maxFetch {
		count = w.maxFetch
	}

	w.mu.Lock()
	if w.totalRows > 0 {
		if start >= w.totalRows {
			start = w.totalRows - 1
		}
		if start+count > w.totalRows {
			count = w.totalRows - start
		}
	}
	if count <= 0 {
		w.mu.Unlock()
		return
	}
	req := fetchArgs{Start: start, Count: count}
	if w.lastReq != nil && *w.lastReq == req {
		w.mu.Unlock()
		return
	}
	w.lastReq = &req
	w.seq++
	token := w.seq
	gen := w.generation
	w.mu.Unlock()

	go func() {
		var resp RowsResponse
		err := w.caller.Call(ctx, w.cmd, req, &resp)
		w.apply(token, gen, req, &resp, err)
	}()
}

// apply installs a fetch response, replacing the buffer wholesale. Stale
// tokens and superseded generations are dropped; partial ranges are never
// merged.
func (w *Window) apply(token, gen uint64, req fetchArgs, resp *RowsResponse, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.generation {
		return
	}
	if token != w.seq {
		w.logger.Debug().
			Str("cmd", w.cmd).
			Int("start", req.Start).
			Msg("Dropping superseded row fetch")
		return
	}
	if err != nil {
		// Degrade without touching the buffer, and forget the memo so the
		// next scroll event retries instead of being suppressed.
		w.logger.Warn().Err(err).Str("cmd", w.cmd).Int("start", req.Start).Msg("Row fetch failed")
		w.lastReq = nil
		return
	}

	w.rows = resp.Rows
	w.visibleStart = resp.Start
	w.totalRows = resp.TotalRows
}

// Invalidate discards the buffer and memo when the dataset identity
// changes. Responses still in flight for the old dataset can never apply.
func (w *Window) Invalidate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = nil
	w.visibleStart = 0
	w.totalRows = 0
	w.lastReq = nil
	w.generation++
}

// Snapshot returns a copy of the buffer state. The row slice is shared;
// callers must not mutate it.
func (w *Window) Snapshot() Buffer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Buffer{Rows: w.rows, VisibleStart: w.visibleStart, TotalRows: w.totalRows}
}
