package main

import (
	"errors"
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/equiplens/internal/config"
	"github.com/kiranshivaraju/equiplens/internal/store"
)

func newMigrateCmd() *cobra.Command {
	var databaseURL, dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := databaseConfig(databaseURL)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = db.MigrationsDir
			}
			if err := store.RunMigrations(db.URL, dir); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Migrations applied from", dir)
			return nil
		},
	}
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default $DATABASE_URL)")
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default $MIGRATIONS_DIR)")
	return cmd
}

// databaseConfig reads the database settings from the environment. A
// non-empty override replaces DATABASE_URL.
func databaseConfig(override string) (config.DatabaseConfig, error) {
	var db config.DatabaseConfig
	if err := cleanenv.ReadEnv(&db); err != nil {
		return db, fmt.Errorf("reading environment: %w", err)
	}
	if override != "" {
		db.URL = override
	}
	if db.URL == "" {
		return db, errors.New("DATABASE_URL is required (or pass --database-url)")
	}
	return db, nil
}
