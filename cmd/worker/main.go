package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/playbook/outreach/internal/app"
	"github.com/playbook/outreach/internal/config"
	"github.com/playbook/outreach/internal/pkg/distlock"
	"github.com/playbook/outreach/internal/worker"
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		app.NewLogger(config.LoggingConfig{}).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg.Logging).With("process", "worker")
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

	recovery := worker.NewQueueRecoveryWorker(rt.Outreach, cfg.Scheduler.RecoveryInterval(), cfg.Outreach.StaleQueuedAfter(), log)
	go recovery.Start(ctx)
	log.Info("queue recovery started")

	var scheduler *worker.CampaignScheduler
	if cfg.Scheduler.Enabled {
		locks := distlock.NewFactory(rt.Redis, rt.DB, cfg.Scheduler.LockTTL())
		scheduler = worker.NewCampaignScheduler(rt.Outreach, locks, cfg.Scheduler.Interval(), cfg.Scheduler.MaxEmailsPerRun, log)
		if err := scheduler.Start(ctx); err != nil {
			log.Error("scheduler start failed", "error", err)
			os.Exit(1)
		}
	} else {
		log.Info("scheduler disabled; only recovering stale messages")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker")
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()
	log.Info("worker stopped")
}
