package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"learningpulse/internal/util"
	"learningpulse/services/pulse/internal/app"
	"learningpulse/services/pulse/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "pulsectl",
		Short:         "Inspect and edit local LearningPulse state",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.ConfigPath, "config file path")

	root.AddCommand(newLoginCmd(&configPath))
	root.AddCommand(newRegisterCmd(&configPath))
	root.AddCommand(newLogoutCmd(&configPath))
	root.AddCommand(newWhoamiCmd(&configPath))
	root.AddCommand(newAvatarCmd(&configPath))
	root.AddCommand(newCoursesCmd(&configPath))
	root.AddCommand(newInstructorCmd(&configPath))
	root.AddCommand(newLearningCmd(&configPath))
	root.AddCommand(newHistoryCmd(&configPath))
	root.AddCommand(newReviewsCmd(&configPath))
	root.AddCommand(newRecommendCmd(&configPath))
	root.AddCommand(newProfileCmd(&configPath))
	root.AddCommand(newThemeCmd(&configPath))
	root.AddCommand(newOnboardingCmd(&configPath))
	return root
}

// withApp restores state from the configured store, runs fn and drains
// pending writes before returning.
func withApp(cmd *cobra.Command, configPath string, fn func(ctx context.Context, a *app.App) error) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := util.InitLogger(cfg.LogLevel, cmd.ErrOrStderr())
	appCfg, err := cfg.AppConfig(logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, appCfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if closeErr := a.Close(closeCtx); closeErr != nil && err == nil {
			err = fmt.Errorf("save state: %w", closeErr)
		}
	}()
	if err := a.Restore(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

// requireSession fails unless someone is signed in.
func requireSession(a *app.App) error {
	if _, ok := a.Session().User(); !ok {
		return fmt.Errorf("%w: run pulsectl login first", app.ErrNotAuthenticated)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
