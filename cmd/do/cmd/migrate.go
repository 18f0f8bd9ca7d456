package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/templui/habits/internal/config"
	"github.com/templui/habits/internal/db"
	"github.com/templui/habits/internal/logger"
)

func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, database, err := openDB()
				if err != nil {
					return err
				}
				defer database.Close()

				return db.RunMigrations(cmd.Context(), database.DB, cfg.DBDriver)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, database, err := openDB()
				if err != nil {
					return err
				}
				defer database.Close()

				return db.MigrateDown(cmd.Context(), database.DB, cfg.DBDriver)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, database, err := openDB()
				if err != nil {
					return err
				}
				defer database.Close()

				statuses, err := db.Status(cmd.Context(), database.DB, cfg.DBDriver)
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tAPPLIED\tFILE")
				for _, s := range statuses {
					fmt.Fprintf(tw, "%d\t%t\t%s\n", s.Version, s.Applied, s.Path)
				}
				return tw.Flush()
			},
		},
	)

	return cmd
}

func openDB() (*config.Config, *sqlx.DB, error) {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), "")

	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, database, nil
}
