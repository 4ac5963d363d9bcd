package sending

import (
	"context"

	"github.com/google/uuid"
	"github.com/playbook/outreach/internal/pkg/logger"
)

// LogSender accepts every message and only logs it. It backs local
// development and dry runs.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a LogSender writing to l.
func NewLogSender(l *logger.Logger) *LogSender {
	return &LogSender{log: l.With("component", "log_sender")}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(ctx context.Context, e *Email) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, transportErr("log", "context done", err)
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	id := "log-" + uuid.NewString()
	s.log.Info("email accepted", "to_address", e.To, "subject", e.Subject, "provider_message_id", id)
	return &Result{Provider: "log", ProviderMessageID: id}, nil
}
