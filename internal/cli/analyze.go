package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/session"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute and inspect dataset insight reports",
	}
	cmd.AddCommand(newAnalyzeRunCmd())
	cmd.AddCommand(newAnalyzeResultCmd())
	cmd.AddCommand(newAnalyzeClearCmd())
	return cmd
}

func newAnalyzeRunCmd() *cobra.Command {
	var processed bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Profile the dataset and compute statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			// Analysis time grows with the dataset; no client timeout.
			fmt.Println("Running analysis...")
			result, err := s.RunAnalysis(cmd.Context(), processed)
			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}
			printAnalysis(result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&processed, "processed", false, "Analyze the preprocessed dataset instead")
	return cmd
}

func newAnalyzeResultCmd() *cobra.Command {
	var processed bool
	cmd := &cobra.Command{
		Use:   "result",
		Short: "Show the cached insight report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			result := s.AnalysisResult(ctx, processed)
			if result == nil {
				fmt.Println("No analysis result cached.")
				return nil
			}
			printAnalysis(result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&processed, "processed", false, "Show the preprocessed dataset's report")
	return cmd
}

func newAnalyzeClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard the cached insight reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()
			return s.ClearAnalysisResults(ctx)
		},
	}
}

func printAnalysis(result *session.AnalysisResult) {
	sum := result.Summary
	fmt.Printf("Analysis of the %s dataset (%.1fs, generated %s)\n",
		result.Dataset, float64(result.DurationMs)/1000, result.GeneratedAt)
	fmt.Printf("  Shape:      %d rows x %d columns\n", sum.Rows, sum.Columns)
	fmt.Printf("  Memory:     %d bytes\n", sum.MemoryBytes)
	fmt.Printf("  Duplicates: %d (%.1f%%)\n", sum.DuplicateCount, sum.DuplicatePercentage)
	fmt.Printf("  Missing:    %d cells (%.1f%%)\n", sum.TotalMissingCells, sum.TotalMissingPercentage)
}
