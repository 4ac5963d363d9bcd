package sending

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/playbook/outreach/internal/pkg/httpretry"
)

// SparkPostSender sends through the SparkPost Transmissions API.
type SparkPostSender struct {
	apiKey  string
	baseURL string
	client  httpretry.Doer
}

// NewSparkPostSender targets baseURL (e.g. https://api.sparkpost.com/api/v1).
func NewSparkPostSender(apiKey, baseURL string, client httpretry.Doer) *SparkPostSender {
	return &SparkPostSender{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *SparkPostSender) Name() string { return "sparkpost" }

type sparkPostTransmission struct {
	Recipients []sparkPostRecipient `json:"recipients"`
	Content    sparkPostContent     `json:"content"`
	Metadata   map[string]string    `json:"metadata,omitempty"`
	Options    map[string]bool      `json:"options"`
}

type sparkPostRecipient struct {
	Address struct {
		Email string `json:"email"`
	} `json:"address"`
}

type sparkPostContent struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
	} `json:"from"`
	Subject string            `json:"subject"`
	Text    string            `json:"text,omitempty"`
	HTML    string            `json:"html,omitempty"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Send delivers e as a one-recipient transmission.
func (s *SparkPostSender) Send(ctx context.Context, e *Email) (*Result, error) {
	if s.apiKey == "" {
		return nil, transportErr("sparkpost", "api key not configured", nil)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}

	var rcpt sparkPostRecipient
	rcpt.Address.Email = e.To
	t := sparkPostTransmission{
		Recipients: []sparkPostRecipient{rcpt},
		Metadata:   e.Tags,
		// Coach outreach is one-to-one correspondence; no tracking pixels.
		Options: map[string]bool{"open_tracking": false, "click_tracking": false, "transactional": true},
	}
	t.Content.From.Email = e.FromEmail
	t.Content.From.Name = e.FromName
	t.Content.Subject = e.Subject
	t.Content.Text = e.Text
	t.Content.HTML = e.HTML
	t.Content.ReplyTo = e.ReplyTo
	t.Content.Headers = e.Headers

	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal transmission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transmissions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportErr("sparkpost", "request failed", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return nil, statusErr("sparkpost", resp.StatusCode, body)
	}

	var out struct {
		Results struct {
			ID            string `json:"id"`
			TotalRejected int    `json:"total_rejected_recipients"`
			TotalAccepted int    `json:"total_accepted_recipients"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, transportErr("sparkpost", "decode response", err)
	}
	if out.Results.TotalRejected > 0 && out.Results.TotalAccepted == 0 {
		return nil, transportErr("sparkpost", "recipient rejected", nil)
	}
	return &Result{Provider: "sparkpost", ProviderMessageID: out.Results.ID}, nil
}
