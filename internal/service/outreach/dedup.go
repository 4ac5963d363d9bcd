package outreach

import (
	"context"
	"fmt"

	"github.com/playbook/outreach/internal/domain"
)

// DedupGuard keeps at most one queued or sent email per coach per campaign.
// Failed attempts do not block a retry.
type DedupGuard struct {
	repo Repository
}

// NewDedupGuard creates a guard over repo.
func NewDedupGuard(repo Repository) *DedupGuard {
	return &DedupGuard{repo: repo}
}

// AlreadyContacted reports whether a queued or sent email exists for the
// coach in the campaign.
func (g *DedupGuard) AlreadyContacted(ctx context.Context, campaignID, coachID string) (bool, error) {
	ok, err := g.repo.HasActiveMessage(ctx, campaignID, coachID, domain.MessageEmail)
	if err != nil {
		return false, fmt.Errorf("check contacted: %w", err)
	}
	return ok, nil
}

// Claim records m as queued. It returns false if another attempt holds the
// coach; the existence check and the insert are a single atomic write.
func (g *DedupGuard) Claim(ctx context.Context, m *domain.Message) (bool, error) {
	ok, err := g.repo.CreateQueuedMessage(ctx, m)
	if err != nil {
		return false, fmt.Errorf("create queued message: %w", err)
	}
	return ok, nil
}
