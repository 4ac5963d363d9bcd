// Package app wires the configured storage, transport and AWS clients into
// an outreach service. The server and worker binaries share it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/playbook/outreach/internal/archive"
	"github.com/playbook/outreach/internal/config"
	"github.com/playbook/outreach/internal/events"
	"github.com/playbook/outreach/internal/pkg/clock"
	"github.com/playbook/outreach/internal/pkg/logger"
	"github.com/playbook/outreach/internal/repository/memory"
	"github.com/playbook/outreach/internal/repository/postgres"
	"github.com/playbook/outreach/internal/service/outreach"
	"github.com/playbook/outreach/internal/service/sending"
	"github.com/redis/go-redis/v9"
)

// Runtime holds every long-lived dependency. Optional ones are nil when not
// configured.
type Runtime struct {
	Config   *config.Config
	Log      *logger.Logger
	DB       *sql.DB
	Redis    *redis.Client
	S3       *s3.Client
	Archive  archive.Archiver
	Outreach *outreach.Service

	publisher *events.SQSPublisher
}

// NewLogger builds the process logger from the logging section and makes it
// the package default.
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	logger.SetLevel(logger.ParseLevel(cfg.Level))
	logger.SetRedactPII(cfg.Redact())
	return logger.New(os.Stderr, logger.ParseLevel(cfg.Level), cfg.Redact())
}

// New connects to everything cfg names. On error, whatever was opened is
// closed again.
func New(ctx context.Context, cfg *config.Config, l *logger.Logger) (_ *Runtime, err error) {
	rt := &Runtime{Config: cfg, Log: l, Archive: archive.Noop{}}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	repo, err := rt.openRepository(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.URL != "" {
		opts, perr := redis.ParseURL(cfg.Redis.URL)
		if perr != nil {
			opts = &redis.Options{Addr: cfg.Redis.URL}
		}
		rt.Redis = redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		perr = rt.Redis.Ping(pingCtx).Err()
		cancel()
		if perr != nil {
			l.Warn("redis unavailable, continuing without shared rate gate", "error", perr)
			rt.Redis.Close()
			rt.Redis = nil
		} else {
			l.Info("connected to redis")
		}
	}

	publisher := events.Publisher(events.Noop{})
	if cfg.Events.SQSQueueURL != "" || cfg.Archive.S3Bucket != "" {
		awsCfg, aerr := loadAWSConfig(ctx, cfg)
		if aerr != nil {
			return nil, aerr
		}
		if cfg.Events.SQSQueueURL != "" {
			sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) { o.Region = cfg.Events.Region })
			rt.publisher = events.NewSQSPublisher(sqsClient, cfg.Events.SQSQueueURL, l)
			publisher = rt.publisher
			l.Info("publishing outreach events to sqs", "queue_url", cfg.Events.SQSQueueURL)
		}
		if cfg.Archive.S3Bucket != "" {
			rt.S3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.Region = cfg.Archive.Region })
			rt.Archive = archive.NewS3Archiver(rt.S3, cfg.Archive.S3Bucket, cfg.Archive.Prefix)
			l.Info("archiving inbound payloads to s3", "bucket", cfg.Archive.S3Bucket)
		}
	}

	sender, err := sending.NewFromConfig(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("mail transport: %w", err)
	}

	clk := clock.Real{}
	pacer := outreach.Chain{outreach.NewIntervalPacer(cfg.Outreach.SendInterval(), clk)}
	if rt.Redis != nil && cfg.Outreach.ProviderRatePerSecond > 0 {
		pacer = append(pacer, outreach.NewRedisPacer(rt.Redis, sender.Name(), cfg.Outreach.ProviderRatePerSecond, clk))
	}

	rt.Outreach, err = outreach.NewService(repo, sender, outreach.Settings{
		FromEmail:            cfg.Outreach.FromEmail,
		FromName:             cfg.Outreach.FromName,
		ReplyTo:              cfg.Outreach.ReplyTo,
		DefaultMaxEmails:     cfg.Outreach.DefaultMaxEmails,
		SendTimeout:          cfg.Outreach.SendTimeout(),
		ForwardSubjectPrefix: cfg.Outreach.ForwardSubjectPrefix,
		InboundEventTypes:    cfg.Outreach.InboundEventTypes,
	},
		outreach.WithPacer(pacer),
		outreach.WithClock(clk),
		outreach.WithEvents(publisher),
		outreach.WithLogger(l),
	)
	if err != nil {
		return nil, err
	}
	l.Info("outreach service ready", "storage", cfg.Storage.Type, "provider", sender.Name())
	return rt, nil
}

func (rt *Runtime) openRepository(ctx context.Context) (outreach.Repository, error) {
	cfg := rt.Config
	switch cfg.Storage.Type {
	case "memory":
		if cfg.Storage.SeedFile == "" {
			rt.Log.Warn("memory storage without a seed file; nothing to send")
			return memory.New(), nil
		}
		repo, err := memory.LoadSeed(cfg.Storage.SeedFile)
		if err != nil {
			return nil, err
		}
		rt.Log.Info("memory storage seeded", "file", cfg.Storage.SeedFile)
		return repo, nil
	case "postgres":
		db, err := OpenDB(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		rt.DB = db
		rt.Log.Info("connected to database", "host", dbHost(cfg.Database.URL))
		return postgres.NewRepo(db), nil
	}
	return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
}

// OpenDB opens and pings a PostgreSQL pool.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime())
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// loadAWSConfig uses the static SES keys when present and the default
// credential chain otherwise.
func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SES.Region)}
	if cfg.SES.AccessKey != "" && cfg.SES.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.SES.AccessKey, cfg.SES.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

// dbHost returns the host part of a connection URL for logging.
func dbHost(dsn string) string {
	at := strings.Index(dsn, "@")
	if at < 0 {
		return "(unknown)"
	}
	rest := dsn[at+1:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		rest = rest[:slash]
	}
	return rest
}

// Close flushes pending events and closes connections.
func (rt *Runtime) Close() {
	if rt.publisher != nil {
		rt.publisher.Close()
	}
	if rt.Redis != nil {
		rt.Redis.Close()
	}
	if rt.DB != nil {
		rt.DB.Close()
	}
}
