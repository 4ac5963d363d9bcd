package domain

import "time"

// Response is one inbound reply from a coach. Only the forwarding metadata
// is ever updated, and only once.
type Response struct {
	ID          string     `json:"id" db:"id"`
	CampaignID  string     `json:"campaign_id" db:"campaign_id"`
	AthleteID   string     `json:"athlete_id" db:"athlete_id"`
	CoachID     string     `json:"coach_id" db:"coach_id"`
	MessageID   string     `json:"message_id,omitempty" db:"message_id"`
	FromEmail   string     `json:"from_email" db:"from_email"`
	FromName    string     `json:"from_name" db:"from_name"`
	Subject     string     `json:"subject" db:"subject"`
	Body        string     `json:"body" db:"body"`
	ReceivedAt  time.Time  `json:"received_at" db:"received_at"`
	ForwardedAt *time.Time `json:"forwarded_at,omitempty" db:"forwarded_at"`
	ForwardedTo string     `json:"forwarded_to,omitempty" db:"forwarded_to"`
}

// InboundEvent is the provider-shaped inbound webhook payload.
type InboundEvent struct {
	Type string       `json:"type"`
	Data InboundEmail `json:"data"`
}

// InboundEmail is the data section of an inbound-email notification.
type InboundEmail struct {
	FromEmail string `json:"from_email"`
	FromName  string `json:"from_name,omitempty"`
	ToEmail   string `json:"to_email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	InReplyTo string `json:"in_reply_to,omitempty"`
}
