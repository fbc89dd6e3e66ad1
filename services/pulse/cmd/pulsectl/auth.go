package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"learningpulse/pkg/domain"
	"learningpulse/services/pulse/internal/app"
)

func newLoginCmd(configPath *string) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email-or-username>",
		Short: "Sign in with a local or remote account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app.App) error {
				user, err := a.Login(ctx, domain.Credentials{Identifier: args[0], Password: password})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s <%s>\n", user.Name, user.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd(configPath *string) *cobra.Command {
	var reg domain.Registration
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a local account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(ctx context.Context, a *app.App) error {
				user, err := a.Register(ctx, reg)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "registered %s <%s>\n", user.Name, user.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "display name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "email address")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (at least 6 characters)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLogoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				a.Logout()
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "signed out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				user, ok := a.Session().User()
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
					return nil
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "%s <%s>\n", user.Name, user.Email)
				_, _ = fmt.Fprintf(out, "id: %s\nusername: %s\n", user.ID, user.Username)
				if user.Avatar != "" {
					_, _ = fmt.Fprintf(out, "avatar: %s\n", user.Avatar)
				}
				return nil
			})
		},
	}
}

func newAvatarCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <symbol>",
		Short: "Set the avatar symbol of the signed-in user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, *configPath, func(_ context.Context, a *app.App) error {
				user, err := a.UpdateAvatar(args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "avatar set to %s\n", user.Avatar)
				return nil
			})
		},
	}
}
