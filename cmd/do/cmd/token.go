package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/habits/internal/app"
	"github.com/templui/habits/internal/config"
	"github.com/templui/habits/internal/logger"
)

// TokenCmd mints a session token for local API testing, creating the user if needed.
func TokenCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Print a bearer token for the given user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(cfg.IsDevelopment(), "")

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.AuthService.AuthenticateOAuth(cmd.Context(), args[0], name, "cli")
			if err != nil {
				return fmt.Errorf("failed to resolve user: %w", err)
			}

			token, err := a.AuthService.GenerateJWT(user)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name for a newly created user")
	return cmd
}
