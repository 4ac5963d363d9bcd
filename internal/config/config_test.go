package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "127.0.0.1"

storage:
  type: memory

outreach:
  provider: sparkpost
  from_email: "recruiting@playbook.test"
  default_max_emails: 25
  send_interval_millis: 250
  send_timeout_seconds: 5

sparkpost:
  api_key: "sp-key"
  timeout_seconds: 45

scheduler:
  enabled: true
  interval_seconds: 600

logging:
  level: debug
  redact_pii: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, "memory", cfg.Storage.Type)

	assert.Equal(t, "sparkpost", cfg.Outreach.Provider)
	assert.Equal(t, 25, cfg.Outreach.DefaultMaxEmails)
	assert.Equal(t, 250*time.Millisecond, cfg.Outreach.SendInterval())
	assert.Equal(t, 5*time.Second, cfg.Outreach.SendTimeout())

	assert.Equal(t, "sp-key", cfg.SparkPost.APIKey)
	assert.Equal(t, 45*time.Second, cfg.SparkPost.Timeout())
	assert.Equal(t, "https://api.sparkpost.com/api/v1", cfg.SparkPost.BaseURL)

	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.Interval())
	assert.Equal(t, 25, cfg.Scheduler.MaxEmailsPerRun, "scheduler cap follows the outreach default")

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Redact())
	require.NoError(t, cfg.Validate())
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 0\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "log", cfg.Outreach.Provider)
	assert.Equal(t, DevFromEmail, cfg.Outreach.FromEmail)
	assert.Equal(t, 10, cfg.Outreach.DefaultMaxEmails)
	assert.Equal(t, time.Second, cfg.Outreach.SendInterval())
	assert.Equal(t, 15*time.Second, cfg.Outreach.SendTimeout())
	assert.Equal(t, 15*time.Minute, cfg.Outreach.StaleQueuedAfter())
	assert.ElementsMatch(t, []string{"email.received", "inbound.email", "inbound_email"}, cfg.Outreach.InboundEventTypes)
	assert.True(t, cfg.Logging.Redact())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/outreach?sslmode=disable")
	t.Setenv("OUTREACH_PROVIDER", "resend")
	t.Setenv("OUTREACH_FROM_EMAIL", "team@playbook.test")
	t.Setenv("RESEND_API_KEY", "re_test")
	t.Setenv("PORT", "7070")
	t.Setenv("SCHEDULER_ENABLED", "true")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@localhost/outreach?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, "resend", cfg.Outreach.Provider)
	assert.Equal(t, "re_test", cfg.Resend.APIKey)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.True(t, cfg.Scheduler.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")

	cfg.Storage.Type = "memory"
	cfg.Outreach.Provider = "carrier-pigeon"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")

	cfg.Outreach.Provider = "ses"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from_email must be set for provider ses")

	cfg.Outreach.Provider = "log"
	require.NoError(t, cfg.Validate())

	cfg.Outreach.FromEmail = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from_email is required")
}

func TestLoadFromEnv_ProviderOverrideNeedsSender(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "memory")
	t.Setenv("OUTREACH_PROVIDER", "mailgun")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "from_email must be set for provider mailgun")
}
