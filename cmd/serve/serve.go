// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"context"
	"fmt"
	"os"

	"github.com/go-co-op/gocron/v2"
	daemon "github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"
	"github.com/stratastor/logger"

	"github.com/stratastor/pgbranch/config"
	"github.com/stratastor/pgbranch/internal/constants"
	"github.com/stratastor/pgbranch/pkg/engine"
	"github.com/stratastor/pgbranch/pkg/lifecycle"
	"github.com/stratastor/pgbranch/pkg/server"
)

var detached bool

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the read-only status API (and optional snapshot retention)",
		Run:   runServe,
	}

	cmd.Flags().BoolVarP(&detached, "detach", "d", false, "Run as a daemon")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) {
	rc := config.GetConfig()
	pidFile := constants.PgbranchPIDFilePath

	if err := lifecycle.EnsureSingleInstance(pidFile); err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}

	if detached {
		ctx := &daemon.Context{
			PidFileName: pidFile,
			PidFilePerm: 0644,
			LogFileName: rc.Logs.Path,
			LogFilePerm: 0640,
			WorkDir:     "/",
			Umask:       027,
			Args:        []string{"pgbranch", "serve"},
		}

		d, err := ctx.Reborn()
		if err != nil {
			fmt.Printf("Failed to start daemon: %v\n", err)
			os.Exit(1)
		}

		if d != nil {
			fmt.Println("pgbranch is running as a daemon")
			return
		}
		defer ctx.Release()
	}

	startServer()
}

func startServer() {
	cfg := config.GetConfig()

	l, err := logger.NewTag(config.NewLoggerConfig(cfg), "serve")
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	mgr, err := engine.Bootstrap(cfg)
	if err != nil {
		fmt.Printf("Failed to start engine: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lifecycle.RegisterContextCanceller(cancel)
	lifecycle.RegisterShutdownHook(func() {
		if err := server.Shutdown(ctx); err != nil {
			fmt.Printf("Error during server shutdown: %v\n", err)
		}
	})

	if cfg.Retention.Enabled {
		scheduler, err := startRetention(ctx, mgr, l)
		if err != nil {
			fmt.Printf("Failed to start retention scheduler: %v\n", err)
			os.Exit(1)
		}
		lifecycle.RegisterShutdownHook(func() {
			if err := scheduler.Shutdown(); err != nil {
				l.Warn("Retention scheduler shutdown", "err", err)
			}
		})
	}

	go lifecycle.HandleSignals(ctx)

	fmt.Printf("Starting pgbranch server on port %d\n", cfg.Server.Port)
	if err := server.Start(ctx, mgr, cfg.Server.Port); err != nil {
		fmt.Printf("Failed to start server: %v", err)
	}
}

// startRetention schedules periodic snapshot pruning.
func startRetention(ctx context.Context, mgr *engine.Manager, l logger.Logger) (gocron.Scheduler, error) {
	cfg := config.GetConfig()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.RetentionInterval()),
		gocron.NewTask(func() {
			result, err := mgr.PruneAllSnapshots(ctx)
			if err != nil {
				l.Warn("Snapshot retention pass failed", "err", err)
				return
			}
			l.Info("Snapshot retention pass",
				"pruned", len(result.Pruned), "skipped", len(result.Skipped))
		}),
		gocron.WithName("snapshot-retention"),
	)
	if err != nil {
		return nil, err
	}

	scheduler.Start()
	return scheduler, nil
}
