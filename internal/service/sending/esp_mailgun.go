package sending

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/playbook/outreach/internal/pkg/httpretry"
)

// MailgunSender sends through the Mailgun Messages API.
type MailgunSender struct {
	apiKey  string
	domain  string
	baseURL string
	client  httpretry.Doer
}

// NewMailgunSender targets the given sending domain.
func NewMailgunSender(apiKey, domain, baseURL string, client httpretry.Doer) *MailgunSender {
	return &MailgunSender{
		apiKey:  apiKey,
		domain:  domain,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (s *MailgunSender) Name() string { return "mailgun" }

// Send delivers e as a form-encoded message.
func (s *MailgunSender) Send(ctx context.Context, e *Email) (*Result, error) {
	if s.apiKey == "" || s.domain == "" {
		return nil, transportErr("mailgun", "api key or domain not configured", nil)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("from", e.From())
	form.Set("to", e.To)
	form.Set("subject", e.Subject)
	if e.Text != "" {
		form.Set("text", e.Text)
	}
	if e.HTML != "" {
		form.Set("html", e.HTML)
	}
	if e.ReplyTo != "" {
		form.Set("h:Reply-To", e.ReplyTo)
	}
	for k, v := range e.Headers {
		form.Set("h:"+k, v)
	}
	for k, v := range e.Tags {
		form.Set("v:"+k, v)
	}
	form.Set("o:tracking", "no")

	endpoint := fmt.Sprintf("%s/%s/messages", s.baseURL, s.domain)
	encoded := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportErr("mailgun", "request failed", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return nil, statusErr("mailgun", resp.StatusCode, body)
	}

	var out struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, transportErr("mailgun", "decode response", err)
	}
	return &Result{Provider: "mailgun", ProviderMessageID: strings.Trim(out.ID, "<>")}, nil
}
