package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joshua-takyi/venuebook/internal/config"
	"github.com/joshua-takyi/venuebook/internal/connect"
	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/joshua-takyi/venuebook/supabase"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func migrateCmd() *cobra.Command {
	var (
		timeout      time.Duration
		supabaseMode bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the bookings table and the mongo indexes",
		Long: `Bootstraps the stores that are configured:

  DATABASE_URL  bookings table with the unique stripe_payment_id index
  MONGODB_URI   unique and TTL indexes for bookings and stripe_events

With --supabase, DATABASE_URL points at the Supabase database and the files
under supabase/migrations are applied instead of creating the table.

Both run concurrently and the command fails if either does.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runMigrate(ctx, cmd, cfg, supabaseMode)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline for the migration")
	cmd.Flags().BoolVar(&supabaseMode, "supabase", false, "apply the Supabase migrations over DATABASE_URL")
	return cmd
}

func runMigrate(ctx context.Context, cmd *cobra.Command, cfg *config.ToolConfig, supabaseMode bool) error {
	if cfg.DatabaseURL == "" && cfg.MongoDBURI == "" {
		return fmt.Errorf("nothing to migrate: set DATABASE_URL and/or MONGODB_URI")
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.DatabaseURL != "" {
		g.Go(func() error {
			pool, err := connect.PostgresConnect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if supabaseMode {
				logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
				applied, err := supabase.Apply(ctx, pool, supabase.Migrations, logger)
				if err != nil {
					return fmt.Errorf("supabase: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "supabase: %d migrations applied\n", len(applied))
				return nil
			}
			if err := models.PostgresNewRepo(pool).EnsureSchema(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "postgres: bookings schema ready")
			return nil
		})
	}

	if cfg.MongoDBURI != "" {
		g.Go(func() error {
			client, err := connect.MongoDBConnect(ctx, cfg.MongoDBURI, cfg.MongoDBPassword)
			if err != nil {
				return err
			}
			defer client.Disconnect(context.Background())
			if err := models.MongodbNewRepo(client, cfg.MongoDBName).EnsureIndexes(ctx); err != nil {
				return fmt.Errorf("mongo: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mongo: indexes ready in %s\n", cfg.MongoDBName)
			return nil
		})
	}

	return g.Wait()
}
