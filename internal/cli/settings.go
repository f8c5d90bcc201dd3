package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexhq/lex-desktop/internal/constants"
	"github.com/lexhq/lex-desktop/internal/events"
	"github.com/lexhq/lex-desktop/internal/providers"
)

func newThemeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "theme [light|dark|system]",
		Short: "Show or set the UI theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			if len(args) == 0 {
				fmt.Println(s.Theme(ctx))
				return nil
			}

			theme := events.Theme(args[0])
			switch theme {
			case events.ThemeLight, events.ThemeDark, events.ThemeSystem:
			default:
				return fmt.Errorf("invalid theme %q (light, dark or system)", args[0])
			}
			if err := s.SetTheme(ctx, theme); err != nil {
				return err
			}
			fmt.Printf("Theme set to %s.\n", theme)
			return nil
		},
	}
	return cmd
}

func newProviderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage the AI provider used by the cleaning pipeline",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the configured AI provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			cfg := s.AIProviderConfig(ctx)
			if cfg == nil {
				fmt.Println("No AI provider configured.")
				return nil
			}
			fmt.Printf("provider: %s\n", cfg.Provider)
			if cfg.Model != "" {
				fmt.Printf("model:    %s\n", cfg.Model)
			}
			return nil
		},
	})

	var model string
	setCmd := &cobra.Command{
		Use:   "set <provider> <api-key>",
		Short: "Configure the AI provider (validates the key first)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			cfg := providers.Config{Provider: args[0], APIKey: args[1], Model: model}
			if err := s.ConfigureAIProvider(ctx, cfg); err != nil {
				return err
			}
			fmt.Printf("AI provider set to %s.\n", cfg.Provider)
			return nil
		},
	}
	setCmd.Flags().StringVar(&model, "model", "", "Model identifier (default: provider's default)")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the AI provider configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()
			if err := s.ClearAIProvider(ctx); err != nil {
				return err
			}
			fmt.Println("AI provider cleared.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <provider> <api-key>",
		Short: "Check an API key against the engine's client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			valid, err := s.ValidateAPIKey(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			if valid {
				fmt.Println("Key is valid.")
				return nil
			}
			return fmt.Errorf("key rejected by %s", args[0])
		},
	})

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show engine and session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession()
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.EngineCallTimeout)
			defer cancel()

			if info := s.RefreshFileInfo(ctx); info != nil {
				fmt.Printf("dataset:    %s (%d rows)\n", info.Name, info.RowCount)
			} else {
				fmt.Println("dataset:    none")
			}

			fmt.Printf("preprocess: %s\n", s.Preprocess.Snapshot().Status)
			fmt.Printf("training:   %s\n", s.Training.Snapshot().Status)

			if s.KernelInitialized(ctx) {
				fmt.Println("ml runtime: ready")
			} else {
				fmt.Println("ml runtime: not initialized")
			}

			st := s.Status()
			if st.Loading {
				fmt.Printf("loading:    %s\n", st.Message)
			}
			if st.Error != nil {
				fmt.Printf("error:      [%s] %s\n", st.Error.Code, st.Error.Message)
			}
			return nil
		},
	}
}
