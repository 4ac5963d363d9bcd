package sending

import (
	"context"
	"fmt"
	"net/http"

	"github.com/playbook/outreach/internal/config"
	"github.com/playbook/outreach/internal/pkg/httpretry"
	"github.com/playbook/outreach/internal/pkg/logger"
)

// NewFromConfig builds the Sender selected by outreach.provider.
func NewFromConfig(ctx context.Context, cfg *config.Config, l *logger.Logger) (Sender, error) {
	switch cfg.Outreach.Provider {
	case "ses":
		return NewSESSender(ctx, cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region, cfg.SES.ConfigurationSet)
	case "sparkpost":
		client := httpretry.New(&http.Client{Timeout: cfg.SparkPost.Timeout()}, 2)
		return NewSparkPostSender(cfg.SparkPost.APIKey, cfg.SparkPost.BaseURL, client), nil
	case "mailgun":
		client := httpretry.New(&http.Client{Timeout: cfg.Mailgun.Timeout()}, 2)
		return NewMailgunSender(cfg.Mailgun.APIKey, cfg.Mailgun.Domain, cfg.Mailgun.BaseURL, client), nil
	case "resend":
		if cfg.Resend.APIKey == "" {
			return nil, fmt.Errorf("resend: api key not configured")
		}
		return NewResendSender(cfg.Resend.APIKey), nil
	case "log", "":
		return NewLogSender(l), nil
	}
	return nil, fmt.Errorf("unknown outreach provider %q", cfg.Outreach.Provider)
}
