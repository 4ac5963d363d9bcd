package outreach

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/events"
	"github.com/playbook/outreach/internal/pkg/clock"
	"github.com/playbook/outreach/internal/pkg/logger"
	"github.com/playbook/outreach/internal/service/sending"
)

// Settings are the static knobs of the outreach service.
type Settings struct {
	FromEmail            string
	FromName             string
	ReplyTo              string
	DefaultMaxEmails     int
	SendTimeout          time.Duration
	ForwardSubjectPrefix string
	InboundEventTypes    []string
}

// Service implements the outreach engine. All public methods are safe for
// concurrent use if the underlying repository is.
type Service struct {
	repo     Repository
	sender   sending.Sender
	settings Settings

	pacer  Pacer
	clock  clock.Clock
	events events.Publisher
	log    *logger.Logger

	selector  *RecipientSelector
	quota     *QuotaTracker
	dedup     *DedupGuard
	forwarder *Forwarder
	inbound   map[string]bool
}

// Option configures a Service.
type Option func(*Service)

// WithPacer replaces the default one-second interval pacer.
func WithPacer(p Pacer) Option { return func(s *Service) { s.pacer = p } }

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(s *Service) { s.clock = c } }

// WithEvents sets the event publisher.
func WithEvents(p events.Publisher) Option { return func(s *Service) { s.events = p } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.log = l } }

// NewService creates an outreach service.
func NewService(repo Repository, sender sending.Sender, settings Settings, opts ...Option) (*Service, error) {
	if settings.DefaultMaxEmails <= 0 {
		settings.DefaultMaxEmails = 10
	}
	if settings.SendTimeout <= 0 {
		settings.SendTimeout = 15 * time.Second
	}
	if len(settings.InboundEventTypes) == 0 {
		settings.InboundEventTypes = []string{"email.received", "inbound.email", "inbound_email"}
	}

	s := &Service{
		repo:     repo,
		sender:   sender,
		settings: settings,
		clock:    clock.Real{},
		events:   events.Noop{},
		log:      logger.New(os.Stderr, logger.INFO, true),
	}
	for _, o := range opts {
		o(s)
	}
	if s.pacer == nil {
		s.pacer = NewIntervalPacer(time.Second, s.clock)
	}
	s.log = s.log.With("component", "outreach")

	forwarder, err := NewForwarder(sender, settings.FromEmail, settings.FromName, settings.ForwardSubjectPrefix)
	if err != nil {
		return nil, fmt.Errorf("forward template: %w", err)
	}
	s.forwarder = forwarder
	s.selector = NewRecipientSelector(repo)
	s.quota = NewQuotaTracker(repo, s.clock)
	s.dedup = NewDedupGuard(repo)
	s.inbound = make(map[string]bool, len(settings.InboundEventTypes))
	for _, t := range settings.InboundEventTypes {
		s.inbound[t] = true
	}
	return s, nil
}

// DefaultMaxEmails is the per-run cap used when a caller gives none.
func (s *Service) DefaultMaxEmails() int { return s.settings.DefaultMaxEmails }

// GetCampaign returns a campaign.
func (s *Service) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	if id == "" {
		return nil, validationError("campaignId is required")
	}
	return s.repo.GetCampaign(ctx, id)
}

// ListActiveCampaigns returns every active campaign.
func (s *Service) ListActiveCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	return s.repo.ListActiveCampaigns(ctx)
}

// UpdateCampaign applies an operator change to status and/or daily limit.
func (s *Service) UpdateCampaign(ctx context.Context, id string, u CampaignUpdate) (*domain.Campaign, error) {
	if id == "" {
		return nil, validationError("campaignId is required")
	}
	if u.Status == nil && u.DailyEmailLimit == nil {
		return nil, validationError("nothing to update")
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, validationError("status must be active or paused")
	}
	if u.DailyEmailLimit != nil && *u.DailyEmailLimit < 0 {
		return nil, validationError("dailyEmailLimit must not be negative")
	}
	c, err := s.repo.UpdateCampaign(ctx, id, u)
	if err != nil {
		return nil, err
	}
	s.log.Info("campaign updated", "campaign_id", id, "status", c.Status, "daily_email_limit", c.DailyEmailLimit)
	return c, nil
}

// RecoverStale fails queued messages older than maxAge and releases their
// quota. A queued message that old means the process died between claiming
// the coach and recording the transport result.
func (s *Service) RecoverStale(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := s.clock.Now().Add(-maxAge)
	failed, err := s.repo.FailStaleQueued(ctx, cutoff, "abandoned: no transport result")
	if err != nil {
		return 0, fmt.Errorf("recover stale messages: %w", err)
	}
	for _, m := range failed {
		s.log.Warn("stale queued message failed", "campaign_id", m.CampaignID, "coach_id", m.CoachID, "message_id", m.ID)
		s.events.Publish(ctx, events.Event{
			Type:       events.MessageFailed,
			CampaignID: m.CampaignID,
			AthleteID:  m.AthleteID,
			CoachID:    m.CoachID,
			MessageID:  m.ID,
			Error:      "abandoned",
			OccurredAt: s.clock.Now(),
		})
	}
	return len(failed), nil
}
