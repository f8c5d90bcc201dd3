package grid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lexhq/lex-desktop/internal/logging"
)

// pendingFetch is one in-flight fetch the test resolves by hand, so
// response ordering is fully scripted.
type pendingFetch struct {
	args  fetchArgs
	reply chan RowsResponse
	fail  chan error
}

type scriptedCaller struct {
	requests chan *pendingFetch
}

func newScriptedCaller() *scriptedCaller {
	return &scriptedCaller{requests: make(chan *pendingFetch, 16)}
}

func (c *scriptedCaller) Call(ctx context.Context, cmd string, args, out interface{}) error {
	p := &pendingFetch{
		args:  args.(fetchArgs),
		reply: make(chan RowsResponse, 1),
		fail:  make(chan error, 1),
	}
	c.requests <- p
	select {
	case r := <-p.reply:
		*out.(*RowsResponse) = r
		return nil
	case err := <-p.fail:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *scriptedCaller) next(t *testing.T) *pendingFetch {
	t.Helper()
	select {
	case p := <-c.requests:
		return p
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for a fetch request")
		return nil
	}
}

func (c *scriptedCaller) expectNone(t *testing.T) {
	t.Helper()
	select {
	case p := <-c.requests:
		t.Fatalf("Unexpected fetch request: %+v", p.args)
	case <-time.After(50 * time.Millisecond):
	}
}

func rowsFor(args fetchArgs, total int) RowsResponse {
	rows := make([]Row, args.Count)
	for i := range rows {
		rows[i] = Row{args.Start + i}
	}
	return RowsResponse{Rows: rows, Start: args.Start, TotalRows: total}
}

func waitForBuffer(t *testing.T, w *Window, cond func(Buffer) bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond(w.Snapshot()) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("%s (buffer: %+v)", msg, w.Snapshot())
}

func newTestWindow() (*Window, *scriptedCaller) {
	sc := newScriptedCaller()
	w := NewWindow("get_rows", sc, -1, logging.NewLogger("grid-test"))
	w.SetTotal(10000)
	return w, sc
}

func TestWindow_BufferedRange(t *testing.T) {
	w, sc := newTestWindow()

	w.FetchWindow(context.Background(), 100, 20)
	p := sc.next(t)
	if p.args.Start != 90 || p.args.Count != 40 {
		t.Fatalf("Expected range (90,40), got %+v", p.args)
	}
	p.reply <- rowsFor(p.args, 10000)

	waitForBuffer(t, w, func(b Buffer) bool { return len(b.Rows) == 40 && b.VisibleStart == 90 },
		"buffer never updated")
}

func TestWindow_ConfiguredOverscanChangesRange(t *testing.T) {
	sc := newScriptedCaller()
	w := NewWindow("get_rows", sc, 3, logging.NewLogger("grid-test"))
	w.SetTotal(10000)

	w.FetchWindow(context.Background(), 100, 20)
	p := sc.next(t)
	if p.args.Start != 97 || p.args.Count != 26 {
		t.Fatalf("Expected range (97,26) for overscan 3, got %+v", p.args)
	}

	// Zero overscan fetches exactly the visible rows.
	sc2 := newScriptedCaller()
	w2 := NewWindow("get_rows", sc2, 0, logging.NewLogger("grid-test"))
	w2.SetTotal(10000)
	w2.FetchWindow(context.Background(), 100, 20)
	if q := sc2.next(t); q.args.Start != 100 || q.args.Count != 20 {
		t.Fatalf("Expected range (100,20) for overscan 0, got %+v", q.args)
	}
}

func TestWindow_TopOfDatasetClampsToZero(t *testing.T) {
	w, sc := newTestWindow()

	w.FetchWindow(context.Background(), 3, 20)
	p := sc.next(t)
	if p.args.Start != 0 {
		t.Errorf("Expected start clamped to 0, got %d", p.args.Start)
	}
}

func TestWindow_ClampsToTotalRows(t *testing.T) {
	w, sc := newTestWindow()
	w.SetTotal(100)

	w.FetchWindow(context.Background(), 95, 20)
	p := sc.next(t)
	if p.args.Start+p.args.Count > 100 {
		t.Errorf("Range (%d,%d) exceeds total rows 100", p.args.Start, p.args.Count)
	}
}

func TestWindow_IdenticalRangeIssuesOneCall(t *testing.T) {
	w, sc := newTestWindow()

	w.FetchWindow(context.Background(), 100, 20)
	w.FetchWindow(context.Background(), 100, 20)

	p := sc.next(t)
	p.reply <- rowsFor(p.args, 10000)
	sc.expectNone(t)
}

func TestWindow_StaleResponseNeverReverts(t *testing.T) {
	w, sc := newTestWindow()

	w.FetchWindow(context.Background(), 100, 20)
	first := sc.next(t)
	w.FetchWindow(context.Background(), 500, 20)
	second := sc.next(t)

	// The newer request resolves first; the older one lands late.
	second.reply <- rowsFor(second.args, 10000)
	waitForBuffer(t, w, func(b Buffer) bool { return b.VisibleStart == 490 },
		"second response never applied")
	first.reply <- rowsFor(first.args, 10000)

	time.Sleep(50 * time.Millisecond)
	if b := w.Snapshot(); b.VisibleStart != 490 {
		t.Fatalf("Stale response reverted the buffer to %d", b.VisibleStart)
	}
}

func TestWindow_InvalidateDropsInFlightAndMemo(t *testing.T) {
	w, sc := newTestWindow()

	w.FetchWindow(context.Background(), 100, 20)
	p := sc.next(t)
	w.Invalidate()
	p.reply <- rowsFor(p.args, 10000)

	time.Sleep(50 * time.Millisecond)
	if b := w.Snapshot(); len(b.Rows) != 0 || b.TotalRows != 0 {
		t.Fatalf("Response for a dead generation applied: %+v", b)
	}

	// Memo is gone too: the same range must fetch again.
	w.SetTotal(10000)
	w.FetchWindow(context.Background(), 100, 20)
	if q := sc.next(t); q.args.Start != 90 {
		t.Errorf("Expected re-fetch of range 90, got %+v", q.args)
	}
}

func TestWindow_FetchFailureKeepsBufferAndRetries(t *testing.T) {
	w, sc := newTestWindow()

	w.FetchWindow(context.Background(), 100, 20)
	p := sc.next(t)
	p.reply <- rowsFor(p.args, 10000)
	waitForBuffer(t, w, func(b Buffer) bool { return len(b.Rows) == 40 }, "seed fetch never applied")

	w.FetchWindow(context.Background(), 500, 20)
	q := sc.next(t)
	q.fail <- errors.New("engine unavailable")

	// Buffer unchanged, and the failed range is retryable.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		w.FetchWindow(context.Background(), 500, 20)
		select {
		case r := <-sc.requests:
			if r.args.Start != 490 {
				t.Fatalf("Unexpected retry range %+v", r.args)
			}
			if b := w.Snapshot(); b.VisibleStart != 90 {
				t.Fatalf("Failed fetch disturbed the buffer: %+v", b)
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("Failed range was never retried")
}

func TestColumnState_WidthsSurviveUntilReset(t *testing.T) {
	c := NewColumnState()

	c.SetWidth("age", 120)
	if w, ok := c.Width("age"); !ok || w != 120 {
		t.Fatalf("Width not stored: %v %v", w, ok)
	}
	if _, ok := c.Width("income"); ok {
		t.Error("Unset column reported a width")
	}

	c.Reset()
	if _, ok := c.Width("age"); ok {
		t.Error("Width survived dataset reset")
	}
}
