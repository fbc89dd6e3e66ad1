package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"learningpulse/pkg/catalog"
	"learningpulse/pkg/domain"
	"learningpulse/services/pulse/internal/app"
)

func newCoursesCmd(configPath *string) *cobra.Command {
	courses := &cobra.Command{Use: "courses", Short: "Browse the course catalog"}

	var subject string
	var limit int
	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search courses by title, subject or instructor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app.App) error {
				found, err := a.Search(ctx, query, subject, limit)
				if err != nil {
					return err
				}
				printCourses(cmd.OutOrStdout(), found)
				return nil
			})
		},
	}
	searchCmd.Flags().StringVar(&subject, "subject", catalog.AllSubjects, "subject filter")
	searchCmd.Flags().IntVar(&limit, "limit", catalog.DefaultSearchLimit, "maximum results")

	var trendingLimit int
	trendingCmd := &cobra.Command{
		Use:   "trending",
		Short: "Show a sample of trending courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app.App) error {
				found, err := a.Trending(ctx, trendingLimit)
				if err != nil {
					return err
				}
				printCourses(cmd.OutOrStdout(), found)
				return nil
			})
		},
	}
	trendingCmd.Flags().IntVar(&trendingLimit, "limit", catalog.DefaultTrendingLimit, "maximum results")

	showCmd := &cobra.Command{
		Use:   "show <key>",
		Short: "Show course details and record the view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app.App) error {
				details, err := a.CourseDetails(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), details)
			})
		},
	}

	courses.AddCommand(searchCmd, trendingCmd, showCmd)
	return courses
}

func newInstructorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "instructor <id>",
		Short: "Show an instructor and their courses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid instructor id %q", args[0])
			}
			return withApp(cmd, *configPath, func(ctx context.Context, a *app.App) error {
				details, err := a.Instructor(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), details)
			})
		},
	}
}

func printCourses(w io.Writer, courses []domain.Course) {
	if len(courses) == 0 {
		_, _ = fmt.Fprintln(w, "no courses found")
		return
	}
	for _, c := range courses {
		_, _ = fmt.Fprintf(w, "%-4s %-10s %.1f  %s (%s)\n", c.Key, c.Subject, c.Rating, c.Title, c.Instructor)
	}
}
