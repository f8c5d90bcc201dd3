package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/events"
)

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Load a dataset into the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			info, err := s.LoadFile(ctx, args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			printFileInfo(info)
			return nil
		},
	}
}

func newCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the loaded dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			if err := s.CloseFile(ctx); err != nil {
				return err
			}
			fmt.Println("Dataset closed.")
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	var processed bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show metadata for the loaded (or processed) dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			var info *events.FileInfo
			if processed {
				info = s.ProcessedFileInfo(ctx)
			} else {
				info = s.RefreshFileInfo(ctx)
			}
			if info == nil {
				fmt.Println("No dataset available.")
				return nil
			}
			printFileInfo(info)
			return nil
		},
	}
	cmd.Flags().BoolVar(&processed, "processed", false, "Show the preprocessed dataset instead")
	return cmd
}

func newRowsCmd() *cobra.Command {
	var (
		start     int
		count     int
		processed bool
	)
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Print a window of dataset rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			w := s.RawWindow()
			if processed {
				w = s.ProcessedWindow()
				s.ProcessedFileInfo(ctx) // primes total rows
			} else {
				s.RefreshFileInfo(ctx)
				if info := s.FileInfo(); info != nil {
					w.SetTotal(info.RowCount)
				}
			}

			w.FetchWindow(ctx, start, count)
			deadline := time.Now().Add(constants.EngineCallTimeout)
			for time.Now().Before(deadline) {
				if b := w.Snapshot(); len(b.Rows) > 0 {
					for i, row := range b.Rows {
						fmt.Printf("%6d  %v\n", b.VisibleStart+i, row)
					}
					fmt.Printf("(%d rows total)\n", b.TotalRows)
					return nil
				}
				time.Sleep(20 * time.Millisecond)
			}
			return fmt.Errorf("no rows received")
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "First visible row index")
	cmd.Flags().IntVar(&count, "count", 20, "Visible row count")
	cmd.Flags().BoolVar(&processed, "processed", false, "Read from the preprocessed dataset")
	return cmd
}

func printFileInfo(info *events.FileInfo) {
	fmt.Printf("%s  (%d rows, %d columns, %d bytes)\n", info.Name, info.RowCount, info.ColumnCount, info.SizeBytes)
	for _, col := range info.Columns {
		fmt.Printf("  %-24s %-10s nulls=%d\n", col.Name, col.DType, col.NullCount)
	}
}
