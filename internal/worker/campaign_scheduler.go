package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/pkg/distlock"
	"github.com/playbook/outreach/internal/pkg/logger"
	"github.com/playbook/outreach/internal/service/outreach"
)

// =============================================================================
// CAMPAIGN SCHEDULER WORKER
// =============================================================================
// Every tick the scheduler lists active campaigns and drives one send run per
// campaign. Each run happens under a per-campaign lock so replicas never run
// the same campaign concurrently. The daily quota is enforced by the
// repository, so a second run that slips past the lock still cannot
// overspend.

const (
	// DefaultSchedulerPollInterval is used when no interval is configured.
	DefaultSchedulerPollInterval = time.Hour

	// DefaultLockTTL bounds how long a crashed worker can block a campaign.
	DefaultLockTTL = 30 * time.Minute
)

// CampaignRunner is the part of the outreach service the scheduler drives.
type CampaignRunner interface {
	ListActiveCampaigns(ctx context.Context) ([]domain.Campaign, error)
	Run(ctx context.Context, campaignID string, maxEmails int) (*outreach.RunResult, error)
}

// CampaignScheduler periodically runs every active campaign.
type CampaignScheduler struct {
	runner       CampaignRunner
	locks        distlock.Factory
	pollInterval time.Duration
	maxEmails    int
	log          *logger.Logger

	// Stats
	runsCompleted int64
	emailsSent    int64
	errors        int64

	// Control
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewCampaignScheduler creates a scheduler. A nil lock factory falls back to
// an in-process lock table.
func NewCampaignScheduler(runner CampaignRunner, locks distlock.Factory, pollInterval time.Duration, maxEmails int, l *logger.Logger) *CampaignScheduler {
	if locks == nil {
		locks = distlock.NewFactory(nil, nil, DefaultLockTTL)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultSchedulerPollInterval
	}
	if l == nil {
		l = logger.Default()
	}
	return &CampaignScheduler{
		runner:       runner,
		locks:        locks,
		pollInterval: pollInterval,
		maxEmails:    maxEmails,
		log:          l.With("component", "scheduler"),
	}
}

// Start begins the polling loop. The first pass runs immediately.
func (cs *CampaignScheduler) Start(ctx context.Context) error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	cs.running = true
	ctx, cs.cancel = context.WithCancel(ctx)
	cs.mu.Unlock()

	cs.log.Info("scheduler starting", "interval", cs.pollInterval.String(), "max_emails_per_run", cs.maxEmails)

	cs.wg.Add(1)
	go cs.schedulerLoop(ctx)
	return nil
}

// Stop cancels the loop and waits for an in-flight pass to return.
func (cs *CampaignScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	cs.mu.Unlock()

	cs.cancel()
	cs.wg.Wait()
	cs.log.Info("scheduler stopped",
		"runs", atomic.LoadInt64(&cs.runsCompleted),
		"emails_sent", atomic.LoadInt64(&cs.emailsSent),
		"errors", atomic.LoadInt64(&cs.errors))
}

func (cs *CampaignScheduler) schedulerLoop(ctx context.Context) {
	defer cs.wg.Done()

	cs.RunOnce(ctx)

	ticker := time.NewTicker(cs.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs.RunOnce(ctx)
		}
	}
}

// RunOnce runs every active campaign once and returns the number of emails
// sent across them.
func (cs *CampaignScheduler) RunOnce(ctx context.Context) int {
	campaigns, err := cs.runner.ListActiveCampaigns(ctx)
	if err != nil {
		atomic.AddInt64(&cs.errors, 1)
		cs.log.Error("list active campaigns", "error", err)
		return 0
	}

	sent := 0
	for _, c := range campaigns {
		if ctx.Err() != nil {
			break
		}
		sent += cs.runCampaign(ctx, c.ID)
	}
	return sent
}

func (cs *CampaignScheduler) runCampaign(ctx context.Context, campaignID string) int {
	log := cs.log.With("campaign_id", campaignID)

	lock := cs.locks("campaign:" + campaignID)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		atomic.AddInt64(&cs.errors, 1)
		log.Error("acquire campaign lock", "error", err)
		return 0
	}
	if !acquired {
		log.Info("campaign already running elsewhere")
		return 0
	}
	// Release on a fresh context so a shutdown still frees the lock.
	defer lock.Release(context.WithoutCancel(ctx))

	res, err := cs.runner.Run(ctx, campaignID, cs.maxEmails)
	if err != nil {
		atomic.AddInt64(&cs.errors, 1)
		log.Error("campaign run failed", "error", err)
		return 0
	}
	atomic.AddInt64(&cs.runsCompleted, 1)
	atomic.AddInt64(&cs.emailsSent, int64(res.EmailsSent))
	if len(res.Errors) > 0 {
		log.Warn("campaign run had send errors", "errors", len(res.Errors), "emails_sent", res.EmailsSent)
	}
	return res.EmailsSent
}

// Stats returns counters since the scheduler was created.
func (cs *CampaignScheduler) Stats() (runs, emailsSent, errs int64) {
	return atomic.LoadInt64(&cs.runsCompleted), atomic.LoadInt64(&cs.emailsSent), atomic.LoadInt64(&cs.errors)
}
