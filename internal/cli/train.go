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
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train models and inspect results",
	}
	cmd.AddCommand(newTrainRunCmd())
	cmd.AddCommand(newTrainResultCmd())
	cmd.AddCommand(newTrainHistoryCmd())
	cmd.AddCommand(newTrainClearHistoryCmd())
	return cmd
}

func newTrainRunCmd() *cobra.Command {
	var cfg jobs.TrainingConfig
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Train models against a target column",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			// The ML runtime warms up lazily; make sure it is ready before
			// the run starts so kernel startup time doesn't count against
			// the training budget.
			initCtx, cancelInit := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancelInit()
			if !s.KernelInitialized(initCtx) {
				fmt.Println("Initializing ML runtime...")
				if err := s.InitializeKernel(initCtx); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := s.Training.Start(context.Background(), cfg); err != nil {
				return err
			}

			bar := progress.NewTrainingBar()
			cancelRequested := false
			for {
				snap := s.Training.Snapshot()
				if snap.Progress != nil {
					bar.Update(snap.Progress)
				}
				if snap.Status.IsTerminal() {
					return finishTraining(bar, snap)
				}
				select {
				case <-ctx.Done():
					if !cancelRequested {
						cancelRequested = true
						fmt.Println("\nCancelling...")
						cancelCtx, cancel := context.WithTimeout(context.Background(), constants.EngineCallTimeout)
						err := s.Training.Cancel(cancelCtx)
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
	cmd.Flags().StringVar(&cfg.TargetColumn, "target", "", "Target column to predict (required)")
	cmd.Flags().StringVar(&cfg.TaskType, "task", "", "Task type: classification or regression (default: auto)")
	cmd.Flags().IntVar(&cfg.TimeBudgetSecs, "budget", 0, "Training time budget in seconds (default: engine decides)")
	cmd.Flags().Float64Var(&cfg.TestSize, "test-size", 0, "Test split fraction (default: engine decides)")
	cmd.MarkFlagRequired("target")
	return cmd
}

func finishTraining(bar *progress.TrainingBar, snap jobs.TrainingSnapshot) error {
	switch snap.Status {
	case jobs.StatusCompleted:
		bar.Finish()
		printTrainingResult(snap.Result)
		return nil
	case jobs.StatusCancelled:
		fmt.Println("Training cancelled.")
		return nil
	default:
		if snap.Err != nil {
			return fmt.Errorf("training failed: %s (%s)", snap.Err.Message, snap.Err.Code)
		}
		return fmt.Errorf("training failed")
	}
}

func printTrainingResult(result *events.TrainingComplete) {
	if result == nil {
		fmt.Println("Training complete.")
		return
	}
	fmt.Printf("Training complete in %.1fs\n", result.TrainingTimeSeconds)
	fmt.Printf("  Best model: %s\n", result.BestModelName)
	fmt.Printf("  Test score: %.4f\n", result.TestScore)
}

func newTrainResultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result",
		Short: "Show the last training result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			result := s.TrainingResult(ctx)
			if result == nil {
				fmt.Println("No training result stored.")
				return nil
			}
			printTrainingResult(result)
			return nil
		},
	}
}

func newTrainHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List archived training runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			entries := s.TrainingHistory(ctx)
			if len(entries) == 0 {
				fmt.Println("No training history.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  target=%s  %s  score=%.4f\n",
					e.Timestamp, e.TargetColumn, e.Result.BestModelName, e.Result.TestScore)
			}
			return nil
		},
	}
}

func newTrainClearHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-history",
		Short: "Delete all archived training runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()
			return s.ClearTrainingHistory(ctx)
		},
	}
}

func newMLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ml",
		Short: "Manage the engine's ML runtime",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize the ML runtime",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()
			if err := s.InitializeKernel(ctx); err != nil {
				return err
			}
			fmt.Println("ML runtime initialization requested.")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show ML runtime status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()
			if s.KernelInitialized(ctx) {
				fmt.Println("ML runtime: ready")
			} else {
				fmt.Println("ML runtime: not initialized")
			}
			return nil
		},
	})
	return cmd
}
