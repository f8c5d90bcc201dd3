package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/events"
	"github.com/lexhq/lex-desktop/internal/jobs"
	"github.com/lexhq/lex-desktop/internal/progress"
	"github.com/lexhq/lex-desktop/internal/session"
)

func newPreprocessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preprocess",
		Short: "Run and inspect the data cleaning pipeline",
	}
	cmd.AddCommand(newPreprocessRunCmd())
	cmd.AddCommand(newPreprocessResultCmd())
	cmd.AddCommand(newPreprocessClearCmd())
	cmd.AddCommand(newPreprocessHistoryCmd())
	cmd.AddCommand(newPreprocessClearHistoryCmd())
	cmd.AddCommand(newPreprocessClearDataCmd())
	return cmd
}

func newPreprocessRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Clean the loaded dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			// Ctrl-C requests cancellation; the run ends when the engine
			// acknowledges, not when the signal arrives.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := s.Preprocess.Start(context.Background()); err != nil {
				return err
			}

			ui := progress.NewPreprocessUI()
			cancelRequested := false
			for {
				snap := s.Preprocess.Snapshot()
				if snap.Progress != nil {
					ui.Update(snap.Progress)
				}
				if snap.Status.IsTerminal() {
					return finishPreprocess(ui, snap)
				}
				select {
				case <-ctx.Done():
					if !cancelRequested {
						cancelRequested = true
						fmt.Fprintln(ui.Writer(), "Cancelling...")
						cancelCtx, cancel := context.WithTimeout(context.Background(), constants.EngineCallTimeout)
						err := s.Preprocess.Cancel(cancelCtx)
						cancel()
						if err != nil {
							logger.Warn().Err(err).Msg("Cancel request failed")
						}
					}
					time.Sleep(100 * time.Millisecond)
				case <-time.After(100 * time.Millisecond):
				}
			}
		},
	}
}

func finishPreprocess(ui *progress.PreprocessUI, snap jobs.PreprocessSnapshot) error {
	switch snap.Status {
	case jobs.StatusCompleted:
		ui.Done()
		printSummary(snap.Summary)
		return nil
	case jobs.StatusCancelled:
		ui.Abort()
		fmt.Println("Preprocessing cancelled.")
		return nil
	default:
		ui.Abort()
		if snap.Err != nil {
			return fmt.Errorf("preprocessing failed: %s (%s)", snap.Err.Message, snap.Err.Code)
		}
		return fmt.Errorf("preprocessing failed")
	}
}

func printSummary(sum *events.PreprocessSummary) {
	if sum == nil {
		fmt.Println("Preprocessing complete.")
		return
	}
	fmt.Printf("Preprocessing complete in %.1fs\n", float64(sum.DurationMs)/1000)
	fmt.Printf("  Rows:    %d -> %d (%d removed)\n", sum.RowsBefore, sum.RowsAfter, sum.RowsRemoved)
	fmt.Printf("  Columns: %d -> %d (%d removed)\n", sum.ColumnsBefore, sum.ColumnsAfter, sum.ColumnsRemoved)
	fmt.Printf("  Issues:  %d found, %d resolved\n", sum.IssuesFound, sum.IssuesResolved)
	fmt.Printf("  Quality: %.2f -> %.2f\n", sum.QualityBefore, sum.QualityAfter)
	for _, w := range sum.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func newPreprocessResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result",
		Short: "Show the last preprocessing summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			sum := s.LastPreprocessingResult(ctx)
			if sum == nil {
				fmt.Println("No preprocessing result stored.")
				return nil
			}
			printSummary(sum)
			return nil
		},
	}
}

func newPreprocessClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard the last preprocessing summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()
			return s.ClearLastPreprocessingResult(ctx)
		},
	}
}

func newPreprocessHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List archived preprocessing runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			entries := s.PreprocessingHistory(ctx)
			if len(entries) == 0 {
				fmt.Println("No preprocessing history.")
				return nil
			}
			printPreprocessHistory(entries)
			return nil
		},
	}
}

func printPreprocessHistory(entries []session.HistoryEntry) {
	for _, e := range entries {
		fmt.Printf("%s  %s  rows %d->%d  quality %.2f->%.2f\n",
			e.Timestamp, e.FileName,
			e.Summary.RowsBefore, e.Summary.RowsAfter,
			e.Summary.QualityBefore, e.Summary.QualityAfter)
	}
}

func newPreprocessClearHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-history",
		Short: "Delete all archived preprocessing runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()
			return s.ClearPreprocessingHistory(ctx)
		},
	}
}

func newPreprocessClearDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-data",
		Short: "Drop the preprocessed dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()
			return s.ClearProcessedData(ctx)
		},
	}
}
