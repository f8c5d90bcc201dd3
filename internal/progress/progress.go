// Package progress renders job progress in the terminal: a single bar
// for training runs and a two-bar (overall plus stage) display for
// preprocessing runs. Bars render only when stderr is a terminal.
package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/lexhq/lex-desktop/internal/events"
)

// TrainingBar is a single percent bar whose description tracks the
// current training stage and model.
type TrainingBar struct {
	bar        *progressbar.ProgressBar
	isTerminal bool
}

// NewTrainingBar creates the bar. On a non-terminal stderr it renders
// nothing; structured logs carry the progress instead.
func NewTrainingBar() *TrainingBar {
	t := &TrainingBar{isTerminal: term.IsTerminal(int(os.Stderr.Fd()))}
	if !t.isTerminal {
		return t
	}
	t.bar = progressbar.NewOptions64(100,
		progressbar.OptionSetDescription("Initializing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
	return t
}

// Update applies a training progress event.
func (t *TrainingBar) Update(p *events.TrainingProgress) {
	if t.bar == nil {
		return
	}
	desc := p.Stage.DisplayName()
	if p.CurrentModel != "" {
		desc = fmt.Sprintf("%s (%s)", desc, p.CurrentModel)
	}
	if p.ModelsCompleted != nil {
		desc = fmt.Sprintf("%s [%d/%d]", desc, p.ModelsCompleted[0], p.ModelsCompleted[1])
	}
	t.bar.Describe(desc)
	current := int64(p.Progress * 100)
	if current > 99 {
		current = 99
	}
	_ = t.bar.Set64(current)
}

// Finish completes the bar.
func (t *TrainingBar) Finish() {
	if t.bar != nil {
		_ = t.bar.Set64(100)
	}
}

// IsTerminal reports whether bars are being rendered.
func (t *TrainingBar) IsTerminal() bool {
	return t.isTerminal
}
