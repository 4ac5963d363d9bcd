package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the outreach server and worker.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Outreach  OutreachConfig  `yaml:"outreach"`
	SES       SESConfig       `yaml:"ses"`
	SparkPost SparkPostConfig `yaml:"sparkpost"`
	Mailgun   MailgunConfig   `yaml:"mailgun"`
	Resend    ResendConfig    `yaml:"resend"`
	Events    EventsConfig    `yaml:"events"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
// WriteTimeoutSeconds must cover a full run: one paced send per second.
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	CORSOrigins         []string `yaml:"cors_origins"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	host := c.Host
	if h := os.Getenv("SERVER_HOST"); h != "" {
		host = h
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

// ReadTimeout returns the configured read timeout as a duration
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the configured write timeout as a duration
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL                    string `yaml:"url"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	MigrationsDir          string `yaml:"migrations_dir"`
}

// ConnMaxLifetime returns the configured connection lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMinutes) * time.Minute
}

// RedisConfig holds the optional Redis connection used for the shared
// provider rate gate and scheduler locks.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig selects the repository backend: "postgres" or "memory".
// SeedFile is a JSON fixture loaded into the memory backend at startup.
type StorageConfig struct {
	Type     string `yaml:"type"`
	SeedFile string `yaml:"seed_file"`
}

// OutreachConfig holds send-run behaviour.
type OutreachConfig struct {
	// Provider selects the mail transport: ses, sparkpost, mailgun, resend or log.
	Provider              string   `yaml:"provider"`
	FromEmail             string   `yaml:"from_email"`
	FromName              string   `yaml:"from_name"`
	ReplyTo               string   `yaml:"reply_to"`
	DefaultMaxEmails      int      `yaml:"default_max_emails"`
	SendIntervalMillis    int      `yaml:"send_interval_millis"`
	SendTimeoutSeconds    int      `yaml:"send_timeout_seconds"`
	ProviderRatePerSecond int      `yaml:"provider_rate_per_second"`
	StaleQueuedMinutes    int      `yaml:"stale_queued_minutes"`
	ForwardSubjectPrefix  string   `yaml:"forward_subject_prefix"`
	InboundEventTypes     []string `yaml:"inbound_event_types"`
}

// SendInterval returns the fixed delay before each send attempt.
func (c OutreachConfig) SendInterval() time.Duration {
	return time.Duration(c.SendIntervalMillis) * time.Millisecond
}

// SendTimeout bounds a single transport call.
func (c OutreachConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// StaleQueuedAfter is the age at which a queued message is considered abandoned.
func (c OutreachConfig) StaleQueuedAfter() time.Duration {
	return time.Duration(c.StaleQueuedMinutes) * time.Minute
}

// SESConfig holds AWS SES credentials. ConfigurationSet is attached to
// every SendEmail call when set.
type SESConfig struct {
	AccessKey        string `yaml:"access_key"`
	SecretKey        string `yaml:"secret_key"`
	Region           string `yaml:"region"`
	ConfigurationSet string `yaml:"configuration_set"`
}

// SparkPostConfig holds SparkPost API configuration
type SparkPostConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c SparkPostConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MailgunConfig holds Mailgun API configuration
type MailgunConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Domain         string `yaml:"domain"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c MailgunConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ResendConfig holds Resend API configuration
type ResendConfig struct {
	APIKey string `yaml:"api_key"`
}

// EventsConfig configures the outreach event publisher. An empty queue URL
// disables publishing.
type EventsConfig struct {
	SQSQueueURL string `yaml:"sqs_queue_url"`
	Region      string `yaml:"region"`
}

// ArchiveConfig configures raw inbound payload archival. An empty bucket
// disables it.
type ArchiveConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
}

// SchedulerConfig controls the worker's periodic runs.
type SchedulerConfig struct {
	Enabled                 bool `yaml:"enabled"`
	IntervalSeconds         int  `yaml:"interval_seconds"`
	MaxEmailsPerRun         int  `yaml:"max_emails_per_run"`
	RecoveryIntervalSeconds int  `yaml:"recovery_interval_seconds"`
	LockTTLMinutes          int  `yaml:"lock_ttl_minutes"`
}

// Interval returns the scheduler tick as a duration
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RecoveryInterval returns the stale-queued sweep interval as a duration
func (c SchedulerConfig) RecoveryInterval() time.Duration {
	return time.Duration(c.RecoveryIntervalSeconds) * time.Second
}

// LockTTL returns the per-campaign run lock TTL as a duration
func (c SchedulerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLMinutes) * time.Minute
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on. It defaults to true.
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file, then applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// DevFromEmail is the sender address the log provider falls back to. Real
// transports must be given a verified address.
const DevFromEmail = "outreach@localhost"

// Default returns a configuration with every default applied, for use when
// no config file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 300
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMinutes == 0 {
		cfg.Database.ConnMaxLifetimeMinutes = 30
	}
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "postgres"
	}
	if cfg.Outreach.Provider == "" {
		cfg.Outreach.Provider = "log"
	}
	if cfg.Outreach.FromEmail == "" && cfg.Outreach.Provider == "log" {
		cfg.Outreach.FromEmail = DevFromEmail
	}
	if cfg.Outreach.DefaultMaxEmails == 0 {
		cfg.Outreach.DefaultMaxEmails = 10
	}
	if cfg.Outreach.SendIntervalMillis == 0 {
		cfg.Outreach.SendIntervalMillis = 1000
	}
	if cfg.Outreach.SendTimeoutSeconds == 0 {
		cfg.Outreach.SendTimeoutSeconds = 15
	}
	if cfg.Outreach.StaleQueuedMinutes == 0 {
		cfg.Outreach.StaleQueuedMinutes = 15
	}
	if cfg.Outreach.ForwardSubjectPrefix == "" {
		cfg.Outreach.ForwardSubjectPrefix = "Coach reply: "
	}
	if len(cfg.Outreach.InboundEventTypes) == 0 {
		cfg.Outreach.InboundEventTypes = []string{"email.received", "inbound.email", "inbound_email"}
	}
	if cfg.SES.Region == "" {
		cfg.SES.Region = "us-east-1"
	}
	if cfg.SparkPost.BaseURL == "" {
		cfg.SparkPost.BaseURL = "https://api.sparkpost.com/api/v1"
	}
	if cfg.SparkPost.TimeoutSeconds == 0 {
		cfg.SparkPost.TimeoutSeconds = 30
	}
	if cfg.Mailgun.BaseURL == "" {
		cfg.Mailgun.BaseURL = "https://api.mailgun.net/v3"
	}
	if cfg.Mailgun.TimeoutSeconds == 0 {
		cfg.Mailgun.TimeoutSeconds = 30
	}
	if cfg.Events.Region == "" {
		cfg.Events.Region = cfg.SES.Region
	}
	if cfg.Archive.Region == "" {
		cfg.Archive.Region = cfg.SES.Region
	}
	if cfg.Archive.Prefix == "" {
		cfg.Archive.Prefix = "inbound/"
	}
	if cfg.Scheduler.IntervalSeconds == 0 {
		cfg.Scheduler.IntervalSeconds = 3600
	}
	if cfg.Scheduler.MaxEmailsPerRun == 0 {
		cfg.Scheduler.MaxEmailsPerRun = cfg.Outreach.DefaultMaxEmails
	}
	if cfg.Scheduler.RecoveryIntervalSeconds == 0 {
		cfg.Scheduler.RecoveryIntervalSeconds = 300
	}
	if cfg.Scheduler.LockTTLMinutes == 0 {
		cfg.Scheduler.LockTTLMinutes = 30
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks settings that have no sensible default.
func (cfg *Config) Validate() error {
	var problems []string
	switch cfg.Storage.Type {
	case "postgres":
		if cfg.Database.URL == "" {
			problems = append(problems, "database.url is required for postgres storage")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("storage.type %q is not one of postgres, memory", cfg.Storage.Type))
	}
	switch cfg.Outreach.Provider {
	case "ses", "sparkpost", "mailgun", "resend", "log":
	default:
		problems = append(problems, fmt.Sprintf("outreach.provider %q is not supported", cfg.Outreach.Provider))
	}
	switch {
	case cfg.Outreach.FromEmail == "":
		problems = append(problems, "outreach.from_email is required")
	case cfg.Outreach.Provider != "log" && cfg.Outreach.FromEmail == DevFromEmail:
		problems = append(problems, fmt.Sprintf("outreach.from_email must be set for provider %s", cfg.Outreach.Provider))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadFromEnv loads .env (if present), then the YAML file at path (if
// present), then applies environment overrides.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := Load(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	overrideString(&cfg.Database.URL, "DATABASE_URL")
	overrideString(&cfg.Redis.URL, "REDIS_URL")
	overrideString(&cfg.Storage.Type, "STORAGE_TYPE")
	overrideString(&cfg.Storage.SeedFile, "SEED_FILE")
	overrideString(&cfg.Outreach.Provider, "OUTREACH_PROVIDER")
	overrideString(&cfg.Outreach.FromEmail, "OUTREACH_FROM_EMAIL")
	overrideString(&cfg.Outreach.FromName, "OUTREACH_FROM_NAME")
	overrideString(&cfg.Outreach.ReplyTo, "OUTREACH_REPLY_TO")
	overrideString(&cfg.SES.AccessKey, "AWS_SES_ACCESS_KEY")
	overrideString(&cfg.SES.SecretKey, "AWS_SES_SECRET_KEY")
	overrideString(&cfg.SES.Region, "AWS_SES_REGION")
	overrideString(&cfg.SparkPost.APIKey, "SPARKPOST_API_KEY")
	overrideString(&cfg.SparkPost.BaseURL, "SPARKPOST_BASE_URL")
	overrideString(&cfg.Mailgun.APIKey, "MAILGUN_API_KEY")
	overrideString(&cfg.Mailgun.Domain, "MAILGUN_DOMAIN")
	overrideString(&cfg.Mailgun.BaseURL, "MAILGUN_BASE_URL")
	overrideString(&cfg.Resend.APIKey, "RESEND_API_KEY")
	overrideString(&cfg.Events.SQSQueueURL, "EVENTS_SQS_QUEUE_URL")
	overrideString(&cfg.Archive.S3Bucket, "ARCHIVE_S3_BUCKET")
	overrideString(&cfg.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		cfg.Scheduler.Enabled = v == "true" || v == "1"
	}

	return cfg, nil
}

func overrideString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}
