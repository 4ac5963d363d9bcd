package domain

import "time"

// MessageStatus enumerates the lifecycle of a single send attempt. A message
// is created queued and transitions to sent or failed exactly once.
type MessageStatus string

const (
	MessageQueued MessageStatus = "queued"
	MessageSent   MessageStatus = "sent"
	MessageFailed MessageStatus = "failed"
)

// Message is one recorded send attempt to one coach.
type Message struct {
	ID                string        `json:"id" db:"id"`
	CampaignID        string        `json:"campaign_id" db:"campaign_id"`
	CoachID           string        `json:"coach_id" db:"coach_id"`
	AthleteID         string        `json:"athlete_id" db:"athlete_id"`
	Type              MessageType   `json:"type" db:"type"`
	Channel           string        `json:"channel" db:"channel"`
	ToAddress         string        `json:"to_address" db:"to_address"`
	Subject           string        `json:"subject" db:"subject"`
	Body              string        `json:"body" db:"body"`
	Status            MessageStatus `json:"status" db:"status"`
	ProviderMessageID string        `json:"provider_message_id,omitempty" db:"provider_message_id"`
	Error             string        `json:"error,omitempty" db:"error"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	SentAt            *time.Time    `json:"sent_at,omitempty" db:"sent_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true once the message has resolved to sent or failed.
func (m *Message) IsTerminal() bool {
	return m.Status == MessageSent || m.Status == MessageFailed
}

// DailyLog is the per-campaign, per-day send counter. Date is truncated to
// the UTC calendar day.
type DailyLog struct {
	CampaignID string    `json:"campaign_id" db:"campaign_id"`
	Date       time.Time `json:"date" db:"log_date"`
	EmailsSent int       `json:"emails_sent" db:"emails_sent"`
	DMsSent    int       `json:"dms_sent" db:"dms_sent"`
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
