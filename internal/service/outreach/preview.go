package outreach

import (
	"context"
	"fmt"

	"github.com/playbook/outreach/internal/domain"
)

// Preview is a rendered email for one coach, not sent.
type Preview struct {
	CampaignID string `json:"campaignId"`
	CoachID    string `json:"coachId"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	// Unresolved lists placeholders left in the output because the key is
	// not part of the template variable schema.
	Unresolved []string `json:"unresolved"`
	// UnknownVariables lists glossary entries that are not schema keys.
	UnknownVariables []string `json:"unknownVariables"`
	AlreadyContacted bool     `json:"alreadyContacted"`
}

// Preview renders the campaign's email template for a coach.
func (s *Service) Preview(ctx context.Context, campaignID, coachID string) (*Preview, error) {
	if campaignID == "" || coachID == "" {
		return nil, validationError("campaignId and coachId are required")
	}
	c, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.GetAthlete(ctx, c.AthleteID)
	if err != nil {
		return nil, err
	}
	t, err := s.repo.GetTemplate(ctx, c.ID, domain.MessageEmail)
	if err != nil {
		return nil, err
	}
	coach, err := s.repo.GetCoach(ctx, coachID)
	if err != nil {
		return nil, err
	}
	contacted, err := s.dedup.AlreadyContacted(ctx, c.ID, coach.ID)
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}

	vars := BuildContext(a, coach)
	p := &Preview{
		CampaignID:       c.ID,
		CoachID:          coach.ID,
		To:               coach.Email,
		Subject:          Render(t.Subject, vars),
		Body:             Render(t.Body, vars),
		Unresolved:       []string{},
		UnknownVariables: []string{},
		AlreadyContacted: contacted,
	}
	seen := map[string]bool{}
	for _, k := range append(Placeholders(p.Subject), Placeholders(p.Body)...) {
		if !seen[k] {
			seen[k] = true
			p.Unresolved = append(p.Unresolved, k)
		}
	}
	for _, v := range t.Variables {
		if _, ok := vars[v]; !ok {
			p.UnknownVariables = append(p.UnknownVariables, v)
		}
	}
	return p, nil
}
