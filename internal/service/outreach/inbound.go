package outreach

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/events"
	"github.com/playbook/outreach/internal/pkg/metrics"
)

// InboundResult is the outcome of an inbound webhook event.
type InboundResult struct {
	// Ignored is true for event types that are not inbound email.
	Ignored    bool   `json:"-"`
	ResponseID string `json:"responseId,omitempty"`
	Forwarded  bool   `json:"forwarded"`
}

// HandleInbound reconciles a coach reply to the campaign and athlete it
// answers, records it, and forwards it to the athlete's parent or guardian.
// Forwarding failures are logged; the recorded response stands.
func (s *Service) HandleInbound(ctx context.Context, ev domain.InboundEvent) (*InboundResult, error) {
	if !s.inbound[ev.Type] {
		metrics.InboundTotal.WithLabelValues("ignored").Inc()
		s.log.Debug("inbound event ignored", "type", ev.Type)
		return &InboundResult{Ignored: true}, nil
	}

	in := ev.Data
	var missing []string
	if strings.TrimSpace(in.FromEmail) == "" {
		missing = append(missing, "from_email")
	}
	if strings.TrimSpace(in.ToEmail) == "" {
		missing = append(missing, "to_email")
	}
	if strings.TrimSpace(in.Body) == "" {
		missing = append(missing, "body")
	}
	if len(missing) > 0 {
		metrics.InboundTotal.WithLabelValues("invalid").Inc()
		return nil, validationError("missing required fields: %s", strings.Join(missing, ", "))
	}

	fromEmail, fromName := parseSender(in.FromEmail)
	if in.FromName != "" {
		fromName = in.FromName
	}

	msg, err := s.resolveInbound(ctx, fromEmail, in.InReplyTo)
	if err != nil {
		if errors.Is(err, ErrUnresolvedInbound) {
			metrics.InboundTotal.WithLabelValues("unresolved").Inc()
			s.log.Warn("inbound reply unresolved", "from_email", fromEmail, "in_reply_to", in.InReplyTo)
		} else {
			metrics.InboundTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	athlete, err := s.repo.GetAthlete(ctx, msg.AthleteID)
	if err != nil {
		metrics.InboundTotal.WithLabelValues("unresolved").Inc()
		return nil, fmt.Errorf("load athlete: %w", err)
	}
	coach, err := s.repo.GetCoachByEmail(ctx, fromEmail)
	if err != nil {
		metrics.InboundTotal.WithLabelValues("unresolved").Inc()
		return nil, fmt.Errorf("load coach by sender: %w", err)
	}

	resp := &domain.Response{
		ID:         uuid.NewString(),
		CampaignID: msg.CampaignID,
		AthleteID:  athlete.ID,
		CoachID:    coach.ID,
		MessageID:  msg.ID,
		FromEmail:  fromEmail,
		FromName:   fromName,
		Subject:    in.Subject,
		Body:       in.Body,
		ReceivedAt: s.clock.Now(),
	}
	if err := s.repo.CreateResponse(ctx, resp); err != nil {
		metrics.InboundTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create response: %w", err)
	}
	metrics.InboundTotal.WithLabelValues("recorded").Inc()

	log := s.log.With("campaign_id", resp.CampaignID, "response_id", resp.ID)
	log.Info("coach reply recorded", "coach_id", coach.ID)
	s.events.Publish(ctx, events.Event{
		Type:       events.ResponseReceived,
		CampaignID: resp.CampaignID,
		AthleteID:  resp.AthleteID,
		CoachID:    resp.CoachID,
		MessageID:  resp.MessageID,
		ResponseID: resp.ID,
		OccurredAt: resp.ReceivedAt,
	})

	result := &InboundResult{ResponseID: resp.ID}
	if athlete.ParentEmail == "" {
		return result, nil
	}

	fwdCtx, cancel := context.WithTimeout(ctx, s.settings.SendTimeout)
	defer cancel()
	if err := s.forwarder.Forward(fwdCtx, athlete, coach, resp); err != nil {
		metrics.ForwardsTotal.WithLabelValues("failed").Inc()
		log.Error("forward to parent failed", "parent_email", athlete.ParentEmail, "error", err)
		return result, nil
	}
	metrics.ForwardsTotal.WithLabelValues("sent").Inc()

	if err := s.repo.MarkResponseForwarded(ctx, resp.ID, athlete.ParentEmail, s.clock.Now()); err != nil {
		log.Error("record forward", "error", err)
		return result, nil
	}
	result.Forwarded = true
	return result, nil
}

// resolveInbound finds the sent message a reply answers: first by the
// In-Reply-To reference, then by the latest email sent to the sender.
func (s *Service) resolveInbound(ctx context.Context, fromEmail, inReplyTo string) (*domain.Message, error) {
	for _, ref := range replyRefs(inReplyTo) {
		m, err := s.repo.FindMessageByProviderID(ctx, ref)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("find message by provider id: %w", err)
		}
	}

	m, err := s.repo.LatestSentMessageTo(ctx, fromEmail, domain.MessageEmail)
	if err == nil {
		return m, nil
	}
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("reply from %s: %w", fromEmail, ErrUnresolvedInbound)
	}
	return nil, fmt.Errorf("find latest sent message: %w", err)
}

// replyRefs normalises an In-Reply-To value into provider id candidates:
// the bare id without angle brackets, then its local part.
func replyRefs(inReplyTo string) []string {
	ref := strings.Trim(strings.TrimSpace(inReplyTo), "<>")
	if ref == "" {
		return nil
	}
	refs := []string{ref}
	if at := strings.Index(ref, "@"); at > 0 {
		refs = append(refs, ref[:at])
	}
	return refs
}

// parseSender accepts "Name <addr>" or a bare address.
func parseSender(raw string) (email, name string) {
	raw = strings.TrimSpace(raw)
	if addr, err := mail.ParseAddress(raw); err == nil {
		return strings.ToLower(addr.Address), addr.Name
	}
	return strings.ToLower(raw), ""
}
