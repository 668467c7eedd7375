package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	appLog "uoacal/internal/log"
	"uoacal/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve [file]",
	Short: "Serve the timetable over HTTP and refresh it on a schedule",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("invalid timezone, using local time", err, "timezone", cfg.Timezone)
	}

	appLog.Info("uoacal starting",
		"version", version,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src := sourceFor(cfg, args)
	srv := web.NewServer(cfg, src.Load, encoderFor(cfg))

	if err := srv.Refresh(ctx); err != nil {
		// Keep serving; /api/refresh or the next tick may succeed.
		appLog.Error("initial refresh failed", err)
	}

	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc(cfg.RefreshCron, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, cfg.CaptureTimeout()*2)
		defer cancel()
		if err := srv.Refresh(refreshCtx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshCron, err)
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	err = web.StartServer(ctx, cfg, srv)
	appLog.Info("uoacal exiting")
	return err
}
