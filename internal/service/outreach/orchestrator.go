package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/events"
	"github.com/playbook/outreach/internal/pkg/metrics"
	"github.com/playbook/outreach/internal/service/sending"
)

// SendError is one per-coach failure inside a run.
type SendError struct {
	Coach string `json:"coach"`
	Error string `json:"error"`
}

// RunResult aggregates one run.
type RunResult struct {
	CampaignID   string      `json:"campaignId"`
	EmailsSent   int         `json:"emailsSent"`
	Errors       []SendError `json:"errors"`
	Remaining    int         `json:"remaining"`
	SentCoachIDs []string    `json:"sentCoachIds"`
	// Skipped counts candidates passed over at send time because another
	// run claimed them first.
	Skipped int `json:"skipped"`
}

type attemptOutcome int

const (
	outcomeSent attemptOutcome = iota
	outcomeFailed
	outcomeDuplicate
	outcomeQuotaExhausted
)

// Run sends up to maxEmails templated emails for a campaign, one coach at a
// time with pacing between attempts. Missing campaign, athlete or email
// template fail the run before any send; per-coach transport failures are
// collected in the result and never fail the run.
func (s *Service) Run(ctx context.Context, campaignID string, maxEmails int) (*RunResult, error) {
	if campaignID == "" {
		return nil, validationError("campaignId is required")
	}
	if maxEmails < 0 {
		return nil, validationError("maxEmails must not be negative")
	}

	campaign, err := s.repo.GetCampaign(ctx, campaignID)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("precondition_failed").Inc()
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	athlete, err := s.repo.GetAthlete(ctx, campaign.AthleteID)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("precondition_failed").Inc()
		return nil, fmt.Errorf("load athlete: %w", err)
	}
	tmpl, err := s.repo.GetTemplate(ctx, campaign.ID, domain.MessageEmail)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("precondition_failed").Inc()
		return nil, fmt.Errorf("load email template: %w", err)
	}

	log := s.log.With("campaign_id", campaign.ID)
	result := &RunResult{CampaignID: campaign.ID, Errors: []SendError{}, SentCoachIDs: []string{}}

	total, err := s.repo.CountCoaches(ctx, FilterFor(campaign))
	if err != nil {
		return nil, fmt.Errorf("count coaches: %w", err)
	}
	contacted, err := s.repo.CountContactedCoaches(ctx, campaign.ID)
	if err != nil {
		return nil, fmt.Errorf("count contacted coaches: %w", err)
	}
	finish := func() *RunResult {
		result.Remaining = Remaining(total, contacted, result.EmailsSent)
		metrics.RunsTotal.WithLabelValues("completed").Inc()
		return result
	}

	if !campaign.IsActive() {
		log.Info("campaign not active, nothing to send", "status", campaign.Status)
		return finish(), nil
	}

	quota, err := s.quota.Check(ctx, campaign)
	if err != nil {
		return nil, err
	}
	emailsToSend := min(maxEmails, quota.Available())
	if emailsToSend == 0 {
		log.Info("no sends available", "max_emails", maxEmails, "sent_today", quota.SentToday, "daily_limit", quota.Limit)
		return finish(), nil
	}

	candidates, err := s.selector.Select(ctx, campaign, emailsToSend)
	if err != nil {
		return nil, err
	}
	log.Info("run started", "emails_to_send", emailsToSend, "candidates", len(candidates))

loop:
	for i := range candidates {
		if result.EmailsSent >= emailsToSend {
			break
		}
		coach := &candidates[i]

		if err := s.pacer.Wait(ctx); err != nil {
			log.Warn("pacer stopped run", "error", err)
			result.Errors = append(result.Errors, SendError{Coach: coach.ID, Error: err.Error()})
			break
		}

		outcome, sendErr := s.attempt(ctx, campaign, athlete, tmpl, coach)
		switch outcome {
		case outcomeSent:
			result.EmailsSent++
			result.SentCoachIDs = append(result.SentCoachIDs, coach.ID)
		case outcomeFailed:
			result.Errors = append(result.Errors, SendError{Coach: coach.ID, Error: sendErr.Error()})
		case outcomeDuplicate:
			result.Skipped++
		case outcomeQuotaExhausted:
			log.Info("daily limit reached mid-run", "sent", result.EmailsSent)
			break loop
		}
	}

	finish()
	log.Info("run finished", "emails_sent", result.EmailsSent, "errors", len(result.Errors), "skipped", result.Skipped, "remaining", result.Remaining)
	return result, nil
}

// attempt renders, re-validates and sends one email. The dedup check and
// quota reservation are repeated here because another run may have touched
// the coach or the day's counter since selection.
func (s *Service) attempt(ctx context.Context, c *domain.Campaign, a *domain.Athlete, t *domain.Template, coach *domain.Coach) (attemptOutcome, error) {
	vars := BuildContext(a, coach)
	subject := Render(t.Subject, vars)
	body := Render(t.Body, vars)

	contacted, err := s.dedup.AlreadyContacted(ctx, c.ID, coach.ID)
	if err != nil {
		return outcomeFailed, err
	}
	if contacted {
		metrics.SkippedTotal.WithLabelValues("dedup").Inc()
		return outcomeDuplicate, nil
	}

	reservation, err := s.quota.Reserve(ctx, c)
	if err != nil {
		return outcomeFailed, err
	}
	if reservation == nil {
		metrics.SkippedTotal.WithLabelValues("quota").Inc()
		return outcomeQuotaExhausted, nil
	}

	now := s.clock.Now()
	msg := &domain.Message{
		ID:         uuid.NewString(),
		CampaignID: c.ID,
		CoachID:    coach.ID,
		AthleteID:  a.ID,
		Type:       domain.MessageEmail,
		Channel:    s.sender.Name(),
		ToAddress:  coach.Email,
		Subject:    subject,
		Body:       body,
		Status:     domain.MessageQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	claimed, err := s.dedup.Claim(ctx, msg)
	if err != nil || !claimed {
		if relErr := s.quota.Release(ctx, reservation); relErr != nil {
			s.log.Error("release quota", "campaign_id", c.ID, "error", relErr)
		}
		if err != nil {
			return outcomeFailed, err
		}
		metrics.SkippedTotal.WithLabelValues("dedup").Inc()
		return outcomeDuplicate, nil
	}

	res, sendErr := s.transport(ctx, c, a, msg)
	if sendErr != nil {
		if err := s.repo.MarkMessageFailed(ctx, msg.ID, sendErr.Error()); err != nil {
			s.log.Error("mark message failed", "message_id", msg.ID, "error", err)
		}
		if err := s.quota.Release(ctx, reservation); err != nil {
			s.log.Error("release quota", "campaign_id", c.ID, "error", err)
		}
		s.log.Warn("send failed", "campaign_id", c.ID, "coach_id", coach.ID, "error", sendErr)
		s.publish(ctx, events.MessageFailed, msg, sendErr.Error())
		return outcomeFailed, sendErr
	}

	if err := s.recordSent(ctx, msg.ID, res.ProviderMessageID); err != nil {
		// The coach has the email; the queued row keeps dedup blocking them
		// until recovery resolves it.
		s.log.Error("sent but not recorded", "campaign_id", c.ID, "coach_id", coach.ID, "message_id", msg.ID, "provider_message_id", res.ProviderMessageID, "error", err)
		return outcomeFailed, fmt.Errorf("sent but not recorded: %w", err)
	}
	msg.ProviderMessageID = res.ProviderMessageID
	s.log.Info("email sent", "campaign_id", c.ID, "coach_id", coach.ID, "to_address", coach.Email, "provider_message_id", res.ProviderMessageID)
	s.publish(ctx, events.MessageSent, msg, "")
	return outcomeSent, nil
}

const (
	markSentAttempts = 3
	markSentBackoff  = 200 * time.Millisecond
)

// recordSent marks a delivered message sent. It ignores run cancellation:
// once the provider has accepted the email the row must not be left queued,
// or stale recovery would release the quota it consumed.
func (s *Service) recordSent(ctx context.Context, id, providerMessageID string) error {
	ctx = context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= markSentAttempts; attempt++ {
		if err = s.repo.MarkMessageSent(ctx, id, providerMessageID, s.clock.Now()); err == nil {
			return nil
		}
		if attempt < markSentAttempts {
			s.log.Warn("record sent message", "message_id", id, "attempt", attempt, "error", err)
			_ = s.clock.Sleep(ctx, time.Duration(attempt)*markSentBackoff)
		}
	}
	return err
}

// transport calls the sender under the per-send timeout.
func (s *Service) transport(ctx context.Context, c *domain.Campaign, a *domain.Athlete, m *domain.Message) (*sending.Result, error) {
	fromName := s.settings.FromName
	if fromName == "" {
		fromName = a.FullName()
	}
	email := &sending.Email{
		To:        m.ToAddress,
		FromEmail: s.settings.FromEmail,
		FromName:  fromName,
		ReplyTo:   s.settings.ReplyTo,
		Subject:   m.Subject,
		Text:      m.Body,
		Tags: map[string]string{
			"campaign_id": c.ID,
			"coach_id":    m.CoachID,
			"message_id":  m.ID,
		},
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.settings.SendTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.sender.Send(sendCtx, email)
	metrics.ObserveSend(s.sender.Name(), err == nil, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timed out after %s", sending.ErrTransport, s.settings.SendTimeout)
		}
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("%w: provider returned no result", sending.ErrTransport)
	}
	return res, nil
}

func (s *Service) publish(ctx context.Context, t events.EventType, m *domain.Message, errText string) {
	s.events.Publish(ctx, events.Event{
		Type:       t,
		CampaignID: m.CampaignID,
		AthleteID:  m.AthleteID,
		CoachID:    m.CoachID,
		MessageID:  m.ID,
		Provider:   m.Channel,
		Error:      errText,
		OccurredAt: s.clock.Now(),
	})
}
