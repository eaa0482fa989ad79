package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/benharcourt/catbox-quiz/internal/config"
	"github.com/benharcourt/catbox-quiz/internal/store"
)

// newMigrateCmd applies the database schema and exits, for use in a deploy
// step ahead of `serve`, or to bootstrap a fresh database file by hand.
func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			_ = godotenv.Load(envFile)

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			db, err := store.Open(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
			}
			defer db.Close()

			if err := db.Migrate(); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s\n", cfg.DatabasePath)
			return nil
		},
	}
}
