package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/tribute/internal/cache"
	"github.com/xxxsen/tribute/internal/config"
	"github.com/xxxsen/tribute/internal/db"
	"github.com/xxxsen/tribute/internal/job"
	"github.com/xxxsen/tribute/internal/pkg/guesttoken"
	"github.com/xxxsen/tribute/internal/repo"
	"github.com/xxxsen/tribute/internal/schedule"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "tribute",
		Short: "tribute share-link backend",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run tribute server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			sqlDB, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer func() { _ = sqlDB.Close() }()
			if err := db.ApplyMigrations(sqlDB); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, sqlDB)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			sqlDB, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer func() { _ = sqlDB.Close() }()
			if err := db.ApplyMigrations(sqlDB); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	reconcileCmd := &cobra.Command{
		Use:   "reconcile",
		Short: "replay pending cache invalidations once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			sqlDB, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer func() { _ = sqlDB.Close() }()
			invalidations := repo.NewInvalidationRepo(sqlDB)
			client := newRedisClient(cfg)
			if client != nil {
				defer func() { _ = client.Close() }()
			}
			coord := cache.NewCoordinator(newTagStore(cfg, client), invalidations)
			return schedule.RunOnce(cmd.Context(), job.NewInvalidationReconcileJob(invalidations, coord, cfg.Reconcile.BatchSize))
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "guest token utilities",
	}
	inspectCmd := &cobra.Command{
		Use:   "inspect <token>",
		Short: "verify a guest token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			codec, err := guesttoken.NewCodec([]byte(cfg.GuestToken.Secret))
			if err != nil {
				return err
			}
			claims, err := codec.Verify(args[0])
			if err != nil {
				return fmt.Errorf("verify token: %w", err)
			}
			out, err := json.MarshalIndent(map[string]interface{}{
				"share_link_id": claims.ShareLinkID,
				"bound":         claims.Fingerprint != "",
				"issued_at":     time.Unix(claims.IssuedUnix(), 0).UTC().Format(time.RFC3339),
				"expires_at":    time.Unix(claims.ExpiresUnix(), 0).UTC().Format(time.RFC3339),
			}, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	tokenCmd.AddCommand(inspectCmd)

	rootCmd.AddCommand(runCmd, migrateCmd, reconcileCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}
