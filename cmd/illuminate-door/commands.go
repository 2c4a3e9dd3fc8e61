package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/petro31/illuminate-door/internal/activity"
	"github.com/petro31/illuminate-door/internal/infrastructure/config"
	"github.com/petro31/illuminate-door/internal/infrastructure/database"
	"github.com/petro31/illuminate-door/migrations"
)

func newRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the door automations (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd.Context(), resolveConfigPath(*configPath))
		},
	}
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := resolveConfigPath(*configPath)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: OK (backend %s)\n", path, cfg.Host.Backend)
			for _, a := range cfg.Automations {
				fmt.Fprintf(out, "  %s: sensor %s, %d entities, restore after %v, sundown %t\n",
					automationName(a), a.Sensor, len(a.TurnOn), a.RestoreAfter(), a.UseSundown())
			}
			return nil
		},
	}
}

func newActivityCmd(configPath *string) *cobra.Command {
	var (
		automation string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent automation activity from the local log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigPath(*configPath))
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return errors.New("activity log is disabled (database.enabled is false)")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			db, err := openActivityDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Read-only command

			entries, err := activity.NewSQLiteRepository(db.DB).List(ctx, automation, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tAUTOMATION\tKIND\tENTITY\tSTATE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime), e.Automation, e.Kind, e.EntityID, e.State)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&automation, "automation", "a", "", "Only show this automation")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show")

	return cmd
}

// openActivityDB opens the SQLite database and applies migrations.
func openActivityDB(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
