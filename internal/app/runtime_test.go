package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/playbook/outreach/internal/config"
	"github.com/playbook/outreach/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `{
  "athletes": [{"id": "a1", "first_name": "Jordan", "last_name": "Reyes", "parent_email": "maria@example.com"}],
  "campaigns": [{"id": "c1", "athlete_id": "a1", "daily_email_limit": 5}],
  "templates": [{"id": "t1", "campaign_id": "c1", "subject": "Hi", "body": "Coach {{coach_last_name}}"}],
  "coaches": [{"id": "k1", "last_name": "Smith", "email": "smith@college.edu"}]
}`

func TestNew_MemoryStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o600))

	cfg := config.Default()
	cfg.Storage.Type = "memory"
	cfg.Storage.SeedFile = path
	cfg.Outreach.SendIntervalMillis = 1

	rt, err := New(context.Background(), cfg, logger.New(io.Discard, logger.ERROR, true))
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.DB)
	assert.Nil(t, rt.Redis)
	assert.Nil(t, rt.S3)
	require.NotNil(t, rt.Outreach)

	res, err := rt.Outreach.Run(context.Background(), "c1", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EmailsSent)
	assert.Equal(t, []string{"k1"}, res.SentCoachIDs)
}

func TestNew_Errors(t *testing.T) {
	quiet := logger.New(io.Discard, logger.ERROR, true)

	cfg := config.Default()
	cfg.Storage.Type = "sqlite"
	_, err := New(context.Background(), cfg, quiet)
	assert.ErrorContains(t, err, "unknown storage type")

	cfg = config.Default()
	cfg.Storage.Type = "memory"
	cfg.Storage.SeedFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = New(context.Background(), cfg, quiet)
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Storage.Type = "memory"
	cfg.Outreach.Provider = "carrier-pigeon"
	_, err = New(context.Background(), cfg, quiet)
	assert.ErrorContains(t, err, "mail transport")
}

func TestDBHost(t *testing.T) {
	assert.Equal(t, "db.internal:5432", dbHost("postgres://u:p@db.internal:5432/outreach?sslmode=disable"))
	assert.Equal(t, "(unknown)", dbHost("host=localhost"))
}
