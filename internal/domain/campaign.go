package domain

import (
	"time"
)

// CampaignStatus enumerates the states an outreach campaign can be in.
type CampaignStatus string

const (
	CampaignActive CampaignStatus = "active"
	CampaignPaused CampaignStatus = "paused"
)

// Valid reports whether s is a known campaign status.
func (s CampaignStatus) Valid() bool {
	return s == CampaignActive || s == CampaignPaused
}

// MessageType is the outreach channel a template or message belongs to.
type MessageType string

const (
	MessageEmail MessageType = "email"
	MessageDM    MessageType = "dm"
)

// Campaign is one athlete's recruiting outreach effort. Counters are mutated
// by send runs; status and daily limit are mutated by operators.
type Campaign struct {
	ID              string         `json:"id" db:"id"`
	AthleteID       string         `json:"athlete_id" db:"athlete_id"`
	Name            string         `json:"name" db:"name"`
	Status          CampaignStatus `json:"status" db:"status"`
	DailyEmailLimit int            `json:"daily_email_limit" db:"daily_email_limit"`
	TotalEmailsSent int            `json:"total_emails_sent" db:"total_emails_sent"`

	// Optional recipient filters. Empty means every coach is eligible.
	TargetDivisions []string `json:"target_divisions,omitempty" db:"target_divisions"`
	TargetStates    []string `json:"target_states,omitempty" db:"target_states"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive returns true if runs may send for this campaign.
func (c *Campaign) IsActive() bool {
	return c.Status == CampaignActive
}

// Template holds the subject and body patterns for one campaign and message
// type. Variables is the declared glossary of placeholder names.
type Template struct {
	ID         string      `json:"id" db:"id"`
	CampaignID string      `json:"campaign_id" db:"campaign_id"`
	Type       MessageType `json:"type" db:"type"`
	Name       string      `json:"name" db:"name"`
	Subject    string      `json:"subject" db:"subject"`
	Body       string      `json:"body" db:"body"`
	Variables  []string    `json:"variables" db:"variables"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}
