package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"learningpulse/pkg/domain"
	"learningpulse/services/pulse/internal/app"
)

func newLearningCmd(configPath *string) *cobra.Command {
	learning := &cobra.Command{Use: "learning", Short: "Manage the learning list"}

	var status string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved courses, optionally by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.LearningStatus(status)
			if filter != "" && !filter.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				counts := a.Learning().Counts()
				for _, s := range domain.LearningStatuses {
					_, _ = fmt.Fprintf(out, "%s: %d  ", s, counts[s])
				}
				_, _ = fmt.Fprintln(out)
				for _, item := range a.Learning().Filter(filter) {
					_, _ = fmt.Fprintf(out, "%-4s %-12s %s\n", item.Key, item.Status, item.Title)
				}
				return nil
			})
		},
	}
	listCmd.Flags().StringVar(&status, "status", "", "Saved, In Progress or Completed")

	toggleCmd := &cobra.Command{
		Use:   "toggle <key>",
		Short: "Save a course, or remove it when already saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				res, err := a.ToggleLearning(ctx, args[0])
				if err != nil {
					return err
				}
				if res.Saved {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", res.Item.Title)
				} else {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				}
				return nil
			})
		},
	}

	advanceCmd := &cobra.Command{
		Use:   "advance <key>",
		Short: "Move a saved course to its next status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				item, err := a.AdvanceLearning(args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", item.Title, item.Status)
				return nil
			})
		},
	}

	learning.AddCommand(listCmd, toggleCmd, advanceCmd)
	return learning
}

func newHistoryCmd(configPath *string) *cobra.Command {
	history := &cobra.Command{Use: "history", Short: "Show or clear recently viewed courses"}
	history.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List recently viewed courses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				printCourses(cmd.OutOrStdout(), a.History().Items())
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Forget every viewed course",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				a.History().Clear()
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "history cleared")
				return nil
			})
		},
	})
	return history
}

func newReviewsCmd(configPath *string) *cobra.Command {
	reviews := &cobra.Command{Use: "reviews", Short: "Manage your course reviews"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your reviews",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				all := a.Reviews().All()
				keys := make([]string, 0, len(all))
				for k := range all {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					r := all[k]
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-4s %d/5  %s\n", k, r.Rating, r.Text)
				}
				return nil
			})
		},
	}

	var text string
	setCmd := &cobra.Command{
		Use:   "set <key> <rating>",
		Short: "Write or replace your review of a course",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid rating %q", args[1])
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				if _, err := a.SaveReview(ctx, args[0], text, rating); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "review saved for %s\n", args[0])
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&text, "text", "", "review text")

	rmCmd := &cobra.Command{
		Use:   "rm <key>",
		Short: "Delete your review of a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				a.Reviews().Remove(args[0])
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "review removed for %s\n", args[0])
				return nil
			})
		},
	}

	reviews.AddCommand(listCmd, setCmd, rmCmd)
	return reviews
}

func newRecommendCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend",
		Short: "Suggest courses from your learning list and history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				recs, err := a.Recommendations(ctx)
				if err != nil {
					return err
				}
				if recs.Hint != "" {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), recs.Hint)
					return nil
				}
				printCourses(cmd.OutOrStdout(), recs.Courses)
				return nil
			})
		},
	}
}

func newProfileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show profile statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				if err := requireSession(a); err != nil {
					return err
				}
				profile := a.Profile()
				if profile.User != nil {
					u := *profile.User
					u.Token = ""
					profile.User = &u
				}
				return printJSON(cmd.OutOrStdout(), profile)
			})
		},
	}
}

func newThemeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "theme [dark|light|toggle]",
		Short: "Show or change the color theme",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				prefs := a.Preferences()
				switch {
				case len(args) == 0:
				case args[0] == "toggle":
					prefs.ToggleTheme()
				default:
					if err := prefs.SetTheme(domain.Theme(args[0])); err != nil {
						return err
					}
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "theme: %s\n", prefs.Theme())
				return nil
			})
		},
	}
}

func newOnboardingCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "onboarding [done|reset]",
		Short: "Show or change whether onboarding was seen",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				prefs := a.Preferences()
				if len(args) == 1 {
					switch args[0] {
					case "done":
						prefs.MarkOnboardingSeen()
					case "reset":
						prefs.ResetOnboarding()
					default:
						return fmt.Errorf("unknown onboarding action %q", args[0])
					}
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "onboarding seen: %t\n", prefs.OnboardingSeen())
				return nil
			})
		},
	}
}
