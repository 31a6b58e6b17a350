package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/mmstr/mmstr/internal/config"
	"github.com/mmstr/mmstr/internal/database"
	"github.com/mmstr/mmstr/internal/store"
)

// MigrateCommand returns the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema",
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			db, err := database.NewDB(cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := store.Migrate(context.Background(), db); err != nil {
				return err
			}

			fmt.Println("Schema applied")
			return nil
		},
	}
}
