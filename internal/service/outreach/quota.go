package outreach

import (
	"context"
	"fmt"
	"time"

	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/pkg/clock"
)

// QuotaStatus is a read of today's counter against the campaign limit.
type QuotaStatus struct {
	Allowed   bool `json:"allowed"`
	SentToday int  `json:"sentToday"`
	Limit     int  `json:"limit"`
}

// Available is the number of sends left today.
func (q QuotaStatus) Available() int {
	if n := q.Limit - q.SentToday; n > 0 {
		return n
	}
	return 0
}

// Reservation is one held slot of a day's quota.
type Reservation struct {
	CampaignID string
	Day        time.Time
}

// QuotaTracker enforces the per-campaign daily limit and keeps the lifetime
// counter in step with it.
type QuotaTracker struct {
	repo  Repository
	clock clock.Clock
}

// NewQuotaTracker creates a tracker over repo using clk for the calendar day.
func NewQuotaTracker(repo Repository, clk clock.Clock) *QuotaTracker {
	return &QuotaTracker{repo: repo, clock: clk}
}

// Check creates today's log lazily and reports whether another send is
// allowed.
func (q *QuotaTracker) Check(ctx context.Context, c *domain.Campaign) (QuotaStatus, error) {
	log, err := q.repo.EnsureDailyLog(ctx, c.ID, domain.Day(q.clock.Now()))
	if err != nil {
		return QuotaStatus{}, fmt.Errorf("ensure daily log: %w", err)
	}
	return QuotaStatus{
		Allowed:   log.EmailsSent < c.DailyEmailLimit,
		SentToday: log.EmailsSent,
		Limit:     c.DailyEmailLimit,
	}, nil
}

// Reserve takes one slot of today's quota, incrementing the day and
// lifetime counters together. It returns nil when the limit is reached.
func (q *QuotaTracker) Reserve(ctx context.Context, c *domain.Campaign) (*Reservation, error) {
	day := domain.Day(q.clock.Now())
	if _, err := q.repo.EnsureDailyLog(ctx, c.ID, day); err != nil {
		return nil, fmt.Errorf("ensure daily log: %w", err)
	}
	ok, err := q.repo.ReserveDailySend(ctx, c.ID, day)
	if err != nil {
		return nil, fmt.Errorf("reserve daily send: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &Reservation{CampaignID: c.ID, Day: day}, nil
}

// Release returns a slot taken by Reserve. Used when the send it was held
// for did not happen.
func (q *QuotaTracker) Release(ctx context.Context, r *Reservation) error {
	if r == nil {
		return nil
	}
	if err := q.repo.ReleaseDailySend(ctx, r.CampaignID, r.Day); err != nil {
		return fmt.Errorf("release daily send: %w", err)
	}
	return nil
}
