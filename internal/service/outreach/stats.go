package outreach

import (
	"context"
	"fmt"
	"math"

	"github.com/playbook/outreach/internal/domain"
)

// DailyCount is one day of the stats breakdown.
type DailyCount struct {
	Date       string `json:"date"`
	EmailsSent int    `json:"emailsSent"`
	DMsSent    int    `json:"dmsSent"`
}

// Stats aggregates a campaign's outreach.
type Stats struct {
	CampaignID      string       `json:"campaignId"`
	Status          string       `json:"status"`
	DailyEmailLimit int          `json:"dailyEmailLimit"`
	TotalSent       int          `json:"totalSent"`
	Daily           []DailyCount `json:"daily"`
	ResponseCount   int          `json:"responseCount"`
	ResponseRate    float64      `json:"responseRate"`
}

// Stats returns totals for a campaign.
func (s *Service) Stats(ctx context.Context, campaignID string) (*Stats, error) {
	if campaignID == "" {
		return nil, validationError("campaignId is required")
	}
	c, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sent, err := s.repo.CountSentMessages(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count sent messages: %w", err)
	}
	logs, err := s.repo.ListDailyLogs(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}
	responses, err := s.repo.CountResponses(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count responses: %w", err)
	}

	st := &Stats{
		CampaignID:      c.ID,
		Status:          string(c.Status),
		DailyEmailLimit: c.DailyEmailLimit,
		TotalSent:       sent,
		Daily:           make([]DailyCount, 0, len(logs)),
		ResponseCount:   responses,
		ResponseRate:    ResponseRate(responses, sent),
	}
	for _, l := range logs {
		st.Daily = append(st.Daily, DailyCount{
			Date:       l.Date.Format("2006-01-02"),
			EmailsSent: l.EmailsSent,
			DMsSent:    l.DMsSent,
		})
	}
	return st, nil
}

// ResponseRate is responses/sent as a percentage with two decimals.
func ResponseRate(responses, sent int) float64 {
	if sent <= 0 {
		return 0
	}
	return math.Round(float64(responses)/float64(sent)*100*100) / 100
}

// ListResponses returns replies for a campaign and/or coach, newest first.
func (s *Service) ListResponses(ctx context.Context, f ResponseFilter) ([]domain.Response, error) {
	if f.CampaignID == "" && f.CoachID == "" {
		return nil, validationError("campaignId or coachId is required")
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 500
	}
	out, err := s.repo.ListResponses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	if out == nil {
		out = []domain.Response{}
	}
	return out, nil
}
