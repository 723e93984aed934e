package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gstbill/internal/audit"
	"github.com/smallbiznis/gstbill/internal/auth"
	"github.com/smallbiznis/gstbill/internal/clock"
	"github.com/smallbiznis/gstbill/internal/config"
	"github.com/smallbiznis/gstbill/internal/invoice"
	"github.com/smallbiznis/gstbill/internal/migration"
	"github.com/smallbiznis/gstbill/internal/observability"
	"github.com/smallbiznis/gstbill/internal/providers"
	"github.com/smallbiznis/gstbill/internal/ratelimit"
	"github.com/smallbiznis/gstbill/internal/scheduler"
	"github.com/smallbiznis/gstbill/internal/server"
	"github.com/smallbiznis/gstbill/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const startStopTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations, the HTTP API and the overdue sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				clock.Module,
				migration.Module,
				server.Module,
				scheduler.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				config.Module,
				observability.Module,
				db.Module,
				migration.Module,
				fx.NopLogger,
			)
			return runAndStop(cmd.Context(), app, nil)
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run every scheduled job once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sched *scheduler.Scheduler
			app := fx.New(
				config.Module,
				observability.Module,
				fx.Provide(RegisterSnowflake),
				db.Module,
				clock.Module,
				audit.Module,
				providers.Module,
				ratelimit.Module,
				invoice.Module,
				fx.Provide(scheduler.ProvideConfig, scheduler.New),
				fx.Populate(&sched),
				fx.NopLogger,
			)
			return runAndStop(cmd.Context(), app, func(ctx context.Context) error {
				return sched.RunOnce(ctx)
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user, for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(userID)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			tokens, err := auth.NewTokenManager(config.Load(), clock.SystemClock{})
			if err != nil {
				return err
			}
			token, err := tokens.Issue(id, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (snowflake)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runAndStop(parent context.Context, app *fx.App, fn func(context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}

	startCtx, cancel := context.WithTimeout(parent, startStopTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	var runErr error
	if fn != nil {
		runErr = fn(parent)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), startStopTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
