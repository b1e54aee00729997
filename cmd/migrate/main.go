package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"condominio.app/internal/config"
	"condominio.app/internal/migrate"
	"condominio.app/internal/obs"
	"condominio.app/ops/migrations"
)

func main() {
	var (
		dsn     string
		timeout = 60 * time.Second
	)
	log := obs.InitLogger(obs.LogConfig{Env: envOr("LOG_ENV", "dev"), Level: envOr("LOG_LEVEL", "info"), Service: "condo-migrate"})
	defer func() { _ = obs.Sync() }()

	var (
		db  *sql.DB
		mgr *migrate.Manager
	)
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Schema migrations and demo seeds for the condominium database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				var err error
				if dsn, err = config.DatabaseDSN(); err != nil {
					return err
				}
			}
			var err error
			db, err = sql.Open("pgx", dsn)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			mgr = migrate.NewManager(db, migrations.FS,
				migrate.WithDirs(migrations.MigrationsDir, migrations.SeedsDir),
				migrate.WithLogger(log))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if db != nil {
				return db.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (default: DATABASE_URL or DB_* env)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "Timeout for the whole command")

	withTimeout := func(cmd *cobra.Command) (context.Context, context.CancelFunc) {
		return context.WithTimeout(cmd.Context(), timeout)
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			applied, err := mgr.Up(ctx)
			if err != nil {
				return err
			}
			printList(cmd, "applied", applied)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			name, err := mgr.Down(ctx)
			if errors.Is(err, migrate.ErrNoMigrations) {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", name)
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			entries, err := mgr.Status(ctx)
			if err != nil {
				return err
			}
			for _, e := range entries {
				mark := "pending"
				if e.Applied {
					mark = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", mark, e.Name)
			}
			return nil
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Load demo data (each seed file runs once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			applied, err := mgr.Seed(ctx)
			if err != nil {
				return err
			}
			printList(cmd, "seeded", applied)
			return nil
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		log.Error("migrate failed", zap.Error(err))
		_ = obs.Sync()
		os.Exit(1)
	}
}

func printList(cmd *cobra.Command, verb string, names []string) {
	if len(names) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
		return
	}
	for _, n := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, n)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
