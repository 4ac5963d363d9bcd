package sending

import (
	"context"

	"github.com/resend/resend-go/v2"
)

// ResendSender sends through the Resend API.
type ResendSender struct {
	client *resend.Client
}

// NewResendSender creates a sender authenticated with apiKey.
func NewResendSender(apiKey string) *ResendSender {
	return &ResendSender{client: resend.NewClient(apiKey)}
}

// NewResendSenderWithClient wraps an existing client.
func NewResendSenderWithClient(client *resend.Client) *ResendSender {
	return &ResendSender{client: client}
}

func (s *ResendSender) Name() string { return "resend" }

// Send delivers e through Resend.
func (s *ResendSender) Send(ctx context.Context, e *Email) (*Result, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	params := &resend.SendEmailRequest{
		From:    e.From(),
		To:      []string{e.To},
		Subject: e.Subject,
		Text:    e.Text,
		Html:    e.HTML,
		ReplyTo: e.ReplyTo,
		Headers: e.Headers,
	}
	for k, v := range e.Tags {
		params.Tags = append(params.Tags, resend.Tag{Name: k, Value: v})
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return nil, transportErr("resend", "send email", err)
	}
	return &Result{Provider: "resend", ProviderMessageID: sent.Id}, nil
}
