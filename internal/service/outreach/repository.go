package outreach

import (
	"context"
	"time"

	"github.com/playbook/outreach/internal/domain"
)

// Repository defines the data access contract for the outreach engine.
// Implementations must be safe for concurrent use. Lookups return
// ErrNotFound when the row does not exist.
type Repository interface {
	GetCampaign(ctx context.Context, id string) (*domain.Campaign, error)
	// ListActiveCampaigns returns every campaign with status active, ordered by id.
	ListActiveCampaigns(ctx context.Context) ([]domain.Campaign, error)
	UpdateCampaign(ctx context.Context, id string, u CampaignUpdate) (*domain.Campaign, error)

	GetAthlete(ctx context.Context, id string) (*domain.Athlete, error)
	// GetTemplate returns the campaign's template for the given message type.
	GetTemplate(ctx context.Context, campaignID string, t domain.MessageType) (*domain.Template, error)

	GetCoach(ctx context.Context, id string) (*domain.Coach, error)
	// GetCoachByEmail matches case-insensitively.
	GetCoachByEmail(ctx context.Context, email string) (*domain.Coach, error)
	CountCoaches(ctx context.Context, f CoachFilter) (int, error)
	// ListUncontactedCoaches returns coaches matching f that have no message
	// of any status for the campaign, ordered by coach id, at most limit rows.
	ListUncontactedCoaches(ctx context.Context, campaignID string, f CoachFilter, limit int) ([]domain.Coach, error)
	// CountContactedCoaches counts distinct coaches with any message for the campaign.
	CountContactedCoaches(ctx context.Context, campaignID string) (int, error)

	// HasActiveMessage reports whether a queued or sent message exists for
	// the (campaign, coach, type) triple.
	HasActiveMessage(ctx context.Context, campaignID, coachID string, t domain.MessageType) (bool, error)
	// CreateQueuedMessage inserts m unless an active message already exists
	// for its (campaign, coach, type) triple, in which case it returns false.
	// The check and insert are one atomic step.
	CreateQueuedMessage(ctx context.Context, m *domain.Message) (bool, error)
	// MarkMessageSent and MarkMessageFailed only transition queued messages.
	MarkMessageSent(ctx context.Context, id, providerMessageID string, sentAt time.Time) error
	MarkMessageFailed(ctx context.Context, id, reason string) error
	FindMessageByProviderID(ctx context.Context, providerMessageID string) (*domain.Message, error)
	// LatestSentMessageTo returns the most recently sent message of type t
	// addressed to email.
	LatestSentMessageTo(ctx context.Context, email string, t domain.MessageType) (*domain.Message, error)
	// FailStaleQueued marks queued messages created before cutoff as failed
	// and releases their daily reservations. It returns the messages it failed.
	FailStaleQueued(ctx context.Context, cutoff time.Time, reason string) ([]domain.Message, error)
	CountSentMessages(ctx context.Context, campaignID string) (int, error)

	// EnsureDailyLog creates the (campaign, day) log with zero counts if it
	// does not exist and returns the current row. Safe under concurrent
	// first access.
	EnsureDailyLog(ctx context.Context, campaignID string, day time.Time) (*domain.DailyLog, error)
	// ReserveDailySend increments the day's emails_sent and the campaign's
	// lifetime counter in one step, only if emails_sent is below the
	// campaign's daily limit. It returns false when the limit is reached.
	ReserveDailySend(ctx context.Context, campaignID string, day time.Time) (bool, error)
	// ReleaseDailySend undoes one reservation.
	ReleaseDailySend(ctx context.Context, campaignID string, day time.Time) error
	// ListDailyLogs returns the campaign's logs, newest day first.
	ListDailyLogs(ctx context.Context, campaignID string) ([]domain.DailyLog, error)

	CreateResponse(ctx context.Context, r *domain.Response) error
	// MarkResponseForwarded sets forwarding metadata if it is not already set.
	MarkResponseForwarded(ctx context.Context, id, forwardedTo string, at time.Time) error
	// ListResponses returns matching responses, most recently received first.
	ListResponses(ctx context.Context, f ResponseFilter) ([]domain.Response, error)
	CountResponses(ctx context.Context, campaignID string) (int, error)
}

// CoachFilter restricts the coach universe. Empty slices match everything.
type CoachFilter struct {
	Divisions []string
	States    []string
}

// FilterFor returns the recipient filter configured on a campaign.
func FilterFor(c *domain.Campaign) CoachFilter {
	return CoachFilter{Divisions: c.TargetDivisions, States: c.TargetStates}
}

// ResponseFilter selects responses. At least one field must be set.
type ResponseFilter struct {
	CampaignID string
	CoachID    string
	Limit      int
}

// CampaignUpdate holds the operator-mutable campaign fields. Nil fields are
// not applied.
type CampaignUpdate struct {
	Status          *domain.CampaignStatus
	DailyEmailLimit *int
}
