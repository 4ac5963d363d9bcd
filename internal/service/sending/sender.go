// Package sending delivers single outreach emails through an ESP.
//
// Each ESP (SES, SparkPost, Mailgun, Resend) implements Sender. Provider
// rejections and network failures come back as errors wrapping
// ErrTransport; callers treat them as per-recipient failures.
package sending

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTransport marks any failure to hand a message to the provider.
var ErrTransport = errors.New("transport failure")

// Email is one outbound message.
type Email struct {
	To        string
	FromEmail string
	FromName  string
	ReplyTo   string
	Subject   string
	Text      string
	HTML      string
	Headers   map[string]string
	// Tags are provider metadata (campaign_id, coach_id, message_id).
	Tags map[string]string
}

// From renders the From header value.
func (e *Email) From() string {
	if e.FromName == "" {
		return e.FromEmail
	}
	return fmt.Sprintf("%s <%s>", e.FromName, e.FromEmail)
}

func (e *Email) validate() error {
	if strings.TrimSpace(e.To) == "" {
		return transportErr("", "recipient address is empty", nil)
	}
	if e.FromEmail == "" {
		return transportErr("", "sender address is empty", nil)
	}
	return nil
}

// Result is the provider's acceptance of a message.
type Result struct {
	Provider          string
	ProviderMessageID string
}

// Sender sends a single email. Implementations must be safe for concurrent
// use and must honor ctx cancellation.
type Sender interface {
	Send(ctx context.Context, e *Email) (*Result, error)
	Name() string
}

// TransportError carries the provider name and, for HTTP APIs, the status.
type TransportError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrTransport, e.Err}
	}
	return []error{ErrTransport}
}

func transportErr(provider, msg string, err error) error {
	return &TransportError{Provider: provider, Message: msg, Err: err}
}

func statusErr(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	if msg == "" {
		msg = "provider rejected message"
	}
	return &TransportError{Provider: provider, StatusCode: status, Message: msg}
}
