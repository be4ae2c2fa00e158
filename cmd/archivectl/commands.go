package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/sound-archive/pkg/soundarchive"
	"github.com/tendant/sound-archive/pkg/soundarchive/config"
	"github.com/tendant/sound-archive/pkg/soundarchive/repo/postgres"
)

// operator is the principal maintenance commands act as.
var operator = soundarchive.Principal{ID: "archivectl", Role: soundarchive.RoleAdmin, Authenticated: true}

func loadService(ctx context.Context) (*config.ServerConfig, soundarchive.Service, error) {
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	svc, _, err := cfg.BuildService(ctx, soundarchive.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, fmt.Errorf("build service: %w", err)
	}
	return cfg, svc, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|down|version|force> [version]",
		Short: "Apply or roll back the database schema",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.WithEnv())
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if !cfg.UsesPostgres() {
				return errors.New("DATABASE_URL must point at Postgres to run migrations")
			}
			return postgres.Migrate(slog.Default(), cfg.Database.URL, args[0], args[1:]...)
		},
	}
}

// NewReconcileCommand creates the reconcile command
func NewReconcileCommand() *cobra.Command {
	var opts soundarchive.ReconcileOptions

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Find stored objects no record references",
		Long: `Lists every object under the audio, image and video prefixes and reports those
no content record points at. With --delete the orphans are removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, svc, err := loadService(ctx)
			if err != nil {
				return err
			}
			report, err := svc.Reconcile(ctx, opts)
			if err != nil {
				return fmt.Errorf("reconcile: %w", err)
			}
			return printJSON(cmd, report)
		},
	}

	cmd.Flags().BoolVar(&opts.Delete, "delete", false, "Delete the orphans found")
	cmd.Flags().DurationVar(&opts.MinAge, "min-age", 24*time.Hour, "Skip objects newer than this")
	return cmd
}

// NewEnsureBucketCommand creates the ensure-bucket command
func NewEnsureBucketCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-bucket",
		Short: "Create the media bucket if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, svc, err := loadService(ctx)
			if err != nil {
				return err
			}
			if err := svc.EnsureBucket(ctx, operator); err != nil {
				return fmt.Errorf("ensure bucket: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bucket %q ready\n", cfg.Storage.Bucket)
			return nil
		},
	}
}

// NewHealthCommand creates the health command
func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the bucket and the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, svc, err := loadService(ctx)
			if err != nil {
				return err
			}
			report := svc.Health(ctx)
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Healthy() {
				return errors.New("issues detected")
			}
			return nil
		},
	}
}
