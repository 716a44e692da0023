// Command sync is the sync engine CLI.
//
// Usage:
//
//	sports2-sync run roster --team 12
//	sports2-sync run full --team 12 --user coach@example.edu
//	sports2-sync scheduled live_stats --workers 4
//	sports2-sync request schedule --team 12
//	sports2-sync credentials set --team 12 --username u --password p --provider-team abc --season s25 --verify
//	sports2-sync credentials remove --team 12
//	sports2-sync logs --team 12 --limit 5
//	sports2-sync cleanup
//	sports2-sync migrate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lleo5301/sports2-backend-sub005/internal/app"
	"github.com/lleo5301/sports2-backend-sub005/internal/config"
	"github.com/lleo5301/sports2-backend-sub005/internal/credential"
	"github.com/lleo5301/sports2-backend-sub005/internal/db"
	"github.com/lleo5301/sports2-backend-sub005/internal/listener"
	"github.com/lleo5301/sports2-backend-sub005/internal/maintenance"
	"github.com/lleo5301/sports2-backend-sub005/internal/syncer"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "sports2-sync",
		Short:        "Team data sync engine CLI",
		SilenceUsage: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(scheduledCmd())
	root.AddCommand(requestCmd())
	root.AddCommand(credentialsCmd())
	root.AddCommand(logsCmd())
	root.AddCommand(cleanupCmd())
	root.AddCommand(migrateCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var (
		teamID int64
		userID string
	)
	cmd := &cobra.Command{
		Use:       "run <type>",
		Short:     "Run one synchronizer, or \"full\", for a team",
		Long:      "Sync types: " + strings.Join(append(syncer.Types(), syncer.TypeFull), ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: append(syncer.Types(), syncer.TypeFull),
		RunE: func(cmd *cobra.Command, args []string) error {
			if teamID <= 0 {
				return fmt.Errorf("--team is required")
			}
			return withEngine(func(ctx context.Context, cfg *config.Config, engine *app.App) error {
				if args[0] == syncer.TypeFull || args[0] == "all" {
					all, err := engine.Syncer.SyncAll(ctx, teamID, userID)
					if all != nil {
						printJSON(all)
					}
					return err
				}
				res, err := engine.Syncer.Sync(ctx, args[0], teamID, userID)
				if res != nil {
					printJSON(res)
				}
				return err
			})
		},
	}
	cmd.Flags().Int64Var(&teamID, "team", 0, "Local team id")
	cmd.Flags().StringVar(&userID, "user", "cli", "Initiator recorded on the sync log")
	return cmd
}

func scheduledCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "scheduled <type>",
		Short: "Run a sync type for every linked team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, cfg *config.Config, engine *app.App) error {
				mcfg := maintenance.FromConfig(cfg)
				if workers > 0 {
					mcfg.Workers = workers
				}
				result := maintenance.ScheduledSync(ctx, engine.Store, engine.Syncer, args[0], mcfg, logger)
				for _, e := range result.Errors {
					logger.Error("team sync error", "error", e)
				}
				if result.Failed > 0 {
					return fmt.Errorf("%d of %d teams failed", result.Failed, result.Teams)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent teams (default SCHEDULED_SYNC_WORKERS)")
	return cmd
}

func requestCmd() *cobra.Command {
	var (
		teamID int64
		userID string
	)
	cmd := &cobra.Command{
		Use:   "request [type]",
		Short: "Queue a sync for the API server's listener (default full)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if teamID <= 0 {
				return fmt.Errorf("--team is required")
			}
			req := listener.SyncRequest{TeamID: teamID, UserID: userID}
			if len(args) == 1 {
				req.SyncType = args[0]
			}
			return withEngine(func(ctx context.Context, cfg *config.Config, engine *app.App) error {
				if err := listener.Publish(ctx, engine.Pool, req); err != nil {
					return err
				}
				logger.Info("Sync requested", "team_id", teamID, "sync_type", req.SyncType)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&teamID, "team", 0, "Local team id")
	cmd.Flags().StringVar(&userID, "user", "cli", "Initiator recorded on the sync log")
	return cmd
}

// --------------------------------------------------------------------------
// credentials command
// --------------------------------------------------------------------------

func credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage a team's provider credentials",
	}
	cmd.AddCommand(credentialsSetCmd())
	cmd.AddCommand(credentialsRemoveCmd())
	return cmd
}

func credentialsSetCmd() *cobra.Command {
	var (
		teamID int64
		s      credential.Settings
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store encrypted credentials and provider ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			if teamID <= 0 {
				return fmt.Errorf("--team is required")
			}
			if s.Password == "" && s.APIKey == "" {
				s.Password = os.Getenv("PRESTO_PASSWORD")
			}
			return withEngine(func(ctx context.Context, cfg *config.Config, engine *app.App) error {
				if err := engine.Credentials.Configure(ctx, teamID, s); err != nil {
					return err
				}
				logger.Info("Credentials saved", "team_id", teamID, "provider_team_id", s.ProviderTeamID, "verified", s.Verify)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&teamID, "team", 0, "Local team id")
	cmd.Flags().StringVar(&s.Username, "username", "", "Provider username")
	cmd.Flags().StringVar(&s.Password, "password", "", "Provider password (default $PRESTO_PASSWORD)")
	cmd.Flags().StringVar(&s.APIKey, "api-key", "", "Provider API key, instead of username and password")
	cmd.Flags().StringVar(&s.ProviderTeamID, "provider-team", "", "Provider team id")
	cmd.Flags().StringVar(&s.SeasonID, "season", "", "Provider season id")
	cmd.Flags().BoolVar(&s.Verify, "verify", false, "Log in before saving")
	return cmd
}

func credentialsRemoveCmd() *cobra.Command {
	var teamID int64
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete a team's credentials and provider ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			if teamID <= 0 {
				return fmt.Errorf("--team is required")
			}
			return withEngine(func(ctx context.Context, cfg *config.Config, engine *app.App) error {
				return engine.Credentials.Disconnect(ctx, teamID)
			})
		},
	}
	cmd.Flags().Int64Var(&teamID, "team", 0, "Local team id")
	return cmd
}

// --------------------------------------------------------------------------
// logs, cleanup, migrate
// --------------------------------------------------------------------------

func logsCmd() *cobra.Command {
	var (
		teamID int64
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show a team's recent sync logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			if teamID <= 0 {
				return fmt.Errorf("--team is required")
			}
			return withEngine(func(ctx context.Context, cfg *config.Config, engine *app.App) error {
				logs, err := engine.Store.ListSyncLogs(ctx, teamID, limit)
				if err != nil {
					return err
				}
				printJSON(logs)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&teamID, "team", 0, "Local team id")
	cmd.Flags().IntVar(&limit, "limit", 20, "Max rows")
	return cmd
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Close stale sync logs and purge expired ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, cfg *config.Config, engine *app.App) error {
				maintenance.Cleanup(ctx, engine.Store, maintenance.FromConfig(cfg), logger)
				return nil
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.DatabaseURL, logger)
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withEngine handles config loading, wiring, and context cancellation.
func withEngine(fn func(ctx context.Context, cfg *config.Config, engine *app.App) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	engine, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(ctx, cfg, engine)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
