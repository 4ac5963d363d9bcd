package outreach

import (
	"context"
	"fmt"

	"github.com/playbook/outreach/internal/domain"
)

// RecipientSelector picks coaches a campaign has never messaged.
type RecipientSelector struct {
	repo Repository
}

// NewRecipientSelector creates a selector over repo.
func NewRecipientSelector(repo Repository) *RecipientSelector {
	return &RecipientSelector{repo: repo}
}

// Select returns at most limit coaches that match the campaign's filters
// and have no message of any status for the campaign. The order is stable
// for a given coach set. Zero eligible coaches is an empty result.
func (s *RecipientSelector) Select(ctx context.Context, c *domain.Campaign, limit int) ([]domain.Coach, error) {
	if limit <= 0 {
		return nil, nil
	}
	coaches, err := s.repo.ListUncontactedCoaches(ctx, c.ID, FilterFor(c), limit)
	if err != nil {
		return nil, fmt.Errorf("select recipients: %w", err)
	}
	return coaches, nil
}

// Remaining is the number of coaches in the campaign's universe not yet
// contacted, floored at zero. contacted counts distinct coaches with any
// message; extra is subtracted on top (sends made since contacted was
// measured).
func Remaining(total, contacted, extra int) int {
	if r := total - contacted - extra; r > 0 {
		return r
	}
	return 0
}
