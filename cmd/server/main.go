package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playbook/outreach/internal/api"
	"github.com/playbook/outreach/internal/app"
	"github.com/playbook/outreach/internal/config"
	"github.com/playbook/outreach/internal/worker"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		app.NewLogger(config.LoggingConfig{}).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg.Logging)
	if err := cfg.Validate(); err != nil {
		log.Error("config rejected", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	var bucket api.BucketHeader
	if rt.S3 != nil {
		bucket = rt.S3
	}
	server := api.NewServer(cfg.Server, api.Deps{
		Outreach: rt.Outreach,
		Archive:  rt.Archive,
		Health:   api.NewHealthChecker(rt.DB, rt.Redis, bucket, cfg.Archive.S3Bucket),
		Logger:   log,
	})

	// Recovery runs in-process so a single-binary deployment never leaks
	// quota to abandoned queued messages.
	recovery := worker.NewQueueRecoveryWorker(rt.Outreach, cfg.Scheduler.RecoveryInterval(), cfg.Outreach.StaleQueuedAfter(), log)
	go recovery.Start(ctx)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info("starting server", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	log.Info("shutting down")
	cancel()

	// In-flight runs finish their current send; the write timeout bounds
	// how long that can take.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", "error", err)
	}
	log.Info("server stopped")
}
