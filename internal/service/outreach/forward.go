package outreach

import (
	"context"
	"fmt"

	"github.com/osteele/liquid"
	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/service/sending"
)

const forwardBodyTemplate = `Hi {{ parent_name | default: "there" }},

{{ coach_name }}{% if school != "" %} ({{ coach_title | default: "Coach" }}, {{ school }}){% endif %} replied to {{ athlete_first_name }}'s recruiting email.

From: {{ from }}
Subject: {{ subject }}
Received: {{ received_at }}

----------------------------------------
{{ body }}
----------------------------------------

Reply to the coach directly at {{ from_email }}.
`

// Forwarder relays a coach reply to the athlete's parent or guardian.
type Forwarder struct {
	sender    sending.Sender
	fromEmail string
	fromName  string
	prefix    string
	body      *liquid.Template
}

// NewForwarder compiles the forward template.
func NewForwarder(sender sending.Sender, fromEmail, fromName, subjectPrefix string) (*Forwarder, error) {
	engine := liquid.NewEngine()
	tpl, err := engine.ParseString(forwardBodyTemplate)
	if err != nil {
		return nil, err
	}
	return &Forwarder{
		sender:    sender,
		fromEmail: fromEmail,
		fromName:  fromName,
		prefix:    subjectPrefix,
		body:      tpl,
	}, nil
}

// Compose builds the forward email without sending it.
func (f *Forwarder) Compose(a *domain.Athlete, c *domain.Coach, r *domain.Response) (*sending.Email, error) {
	from := r.FromEmail
	if r.FromName != "" {
		from = fmt.Sprintf("%s <%s>", r.FromName, r.FromEmail)
	}
	text, err := f.body.RenderString(map[string]any{
		"parent_name":        a.ParentName,
		"athlete_first_name": a.FirstName,
		"coach_name":         coachDisplayName(c, r),
		"coach_title":        c.Title,
		"school":             c.School,
		"from":               from,
		"from_email":         r.FromEmail,
		"subject":            r.Subject,
		"received_at":        r.ReceivedAt.UTC().Format("Jan 2, 2006 3:04 PM MST"),
		"body":               r.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("render forward body: %w", err)
	}

	subject := r.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	return &sending.Email{
		To:        a.ParentEmail,
		FromEmail: f.fromEmail,
		FromName:  f.fromName,
		ReplyTo:   r.FromEmail,
		Subject:   f.prefix + subject,
		Text:      text,
		Tags: map[string]string{
			"campaign_id": r.CampaignID,
			"response_id": r.ID,
		},
	}, nil
}

// Forward composes and sends the forward.
func (f *Forwarder) Forward(ctx context.Context, a *domain.Athlete, c *domain.Coach, r *domain.Response) error {
	email, err := f.Compose(a, c, r)
	if err != nil {
		return err
	}
	if _, err := f.sender.Send(ctx, email); err != nil {
		return err
	}
	return nil
}

func coachDisplayName(c *domain.Coach, r *domain.Response) string {
	if name := c.FullName(); name != "" {
		return name
	}
	if r.FromName != "" {
		return r.FromName
	}
	return r.FromEmail
}
