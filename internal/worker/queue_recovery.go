package worker

import (
	"context"
	"time"

	"github.com/playbook/outreach/internal/pkg/logger"
	"github.com/playbook/outreach/internal/pkg/metrics"
)

// =============================================================================
// QUEUE RECOVERY WORKER
// =============================================================================
// A message sits in 'queued' only between the coach claim and the transport
// result. If the process dies in that window the row would block the coach
// forever and hold a unit of daily quota. This worker fails such rows once
// they are older than the stale age, which frees both.

const (
	// DefaultRecoveryInterval is how often we scan for abandoned messages.
	DefaultRecoveryInterval = 5 * time.Minute

	// DefaultStaleAge is how long a message can stay queued before it is
	// considered abandoned. It must exceed the send timeout.
	DefaultStaleAge = 15 * time.Minute
)

// StaleRecoverer is the part of the outreach service the worker drives.
type StaleRecoverer interface {
	RecoverStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// QueueRecoveryWorker periodically fails abandoned queued messages.
type QueueRecoveryWorker struct {
	svc      StaleRecoverer
	interval time.Duration
	staleAge time.Duration
	log      *logger.Logger
}

// NewQueueRecoveryWorker creates a recovery worker. Zero durations take the
// defaults.
func NewQueueRecoveryWorker(svc StaleRecoverer, interval, staleAge time.Duration, l *logger.Logger) *QueueRecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleAge
	}
	if l == nil {
		l = logger.Default()
	}
	return &QueueRecoveryWorker{
		svc:      svc,
		interval: interval,
		staleAge: staleAge,
		log:      l.With("component", "queue_recovery"),
	}
}

// Start runs the recovery loop. It blocks until ctx is cancelled.
func (qr *QueueRecoveryWorker) Start(ctx context.Context) {
	qr.log.Info("queue recovery starting", "interval", qr.interval.String(), "stale_age", qr.staleAge.String())

	ticker := time.NewTicker(qr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			qr.log.Info("queue recovery stopping")
			return
		case <-ticker.C:
			qr.RecoverOnce(ctx)
		}
	}
}

// RecoverOnce performs a single sweep and returns the number of messages
// failed.
func (qr *QueueRecoveryWorker) RecoverOnce(ctx context.Context) int {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := qr.svc.RecoverStale(queryCtx, qr.staleAge)
	if err != nil {
		qr.log.Error("recover stale messages", "error", err)
		return 0
	}
	if n > 0 {
		metrics.RecoveredTotal.Add(float64(n))
		qr.log.Warn("failed abandoned queued messages", "count", n)
	}
	return n
}
