package progress

import (
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/lexhq/lex-desktop/internal/events"
)

// PreprocessUI renders a preprocessing run as two mpb bars: overall
// pipeline progress and the current stage's own progress.
type PreprocessUI struct {
	progress   *mpb.Progress
	overall    *mpb.Bar
	stage      *mpb.Bar
	stageName  atomic.Value // string
	message    atomic.Value // string
	isTerminal bool
}

// NewPreprocessUI creates the two-bar display. On a non-terminal stderr
// the bars render to io.Discard.
func NewPreprocessUI() *PreprocessUI {
	u := &PreprocessUI{isTerminal: term.IsTerminal(int(os.Stderr.Fd()))}
	u.stageName.Store("Initializing")
	u.message.Store("")

	var p *mpb.Progress
	if u.isTerminal {
		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(60),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	u.progress = p

	u.overall = p.New(100,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Name("Overall", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
		),
	)
	u.stage = p.New(100,
		mpb.BarStyle().Lbound("[").Filler("█").Tip("█").Padding("░").Rbound("]"),
		mpb.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				return u.stageName.Load().(string)
			}, decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
			decor.Name("  "),
			decor.Any(func(decor.Statistics) string {
				return u.message.Load().(string)
			}, decor.WCSyncSpace),
		),
	)
	return u
}

// Update applies a preprocessing progress event.
func (u *PreprocessUI) Update(p *events.PreprocessProgress) {
	u.stageName.Store(p.Stage.DisplayName())
	u.message.Store(p.Message)

	// mpb freezes a bar once it reaches its total; hold both at 99 until
	// the run actually ends so a new stage can restart from zero.
	u.overall.SetCurrent(clampPercent(p.Progress))
	u.stage.SetCurrent(clampPercent(p.StageProgress))
}

// Done completes both bars and waits for the final render.
func (u *PreprocessUI) Done() {
	u.overall.SetCurrent(100)
	u.stage.SetCurrent(100)
	u.progress.Wait()
}

// Abort tears the bars down without completing them, for failed or
// cancelled runs.
func (u *PreprocessUI) Abort() {
	u.overall.Abort(true)
	u.stage.Abort(true)
	u.progress.Wait()
}

// Writer returns a writer that prints safely above the bars.
func (u *PreprocessUI) Writer() io.Writer {
	if u.isTerminal {
		return u.progress
	}
	return os.Stderr
}

// IsTerminal reports whether bars are being rendered.
func (u *PreprocessUI) IsTerminal() bool {
	return u.isTerminal
}

func clampPercent(fraction float64) int64 {
	current := int64(fraction * 100)
	if current > 99 {
		current = 99
	}
	if current < 0 {
		current = 0
	}
	return current
}
