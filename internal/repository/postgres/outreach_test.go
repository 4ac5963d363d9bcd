package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/service/outreach"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*Repo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return NewRepo(db), mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

var (
	ts  = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	day = domain.Day(ts)
)

var campaignCols = []string{
	"id", "athlete_id", "name", "status", "daily_email_limit", "total_emails_sent",
	"target_divisions", "target_states", "created_at", "updated_at",
}

// =============================================================================
// CAMPAIGNS, ATHLETES, TEMPLATES
// =============================================================================

func TestGetCampaign(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectQuery("FROM campaigns WHERE id").
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow("c1", "a1", "Fall", "active", 25, 7, "{D1,D2}", "{}", ts, ts))

	c, err := repo.GetCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignActive, c.Status)
	assert.Equal(t, 25, c.DailyEmailLimit)
	assert.Equal(t, []string{"D1", "D2"}, c.TargetDivisions)
	assert.Empty(t, c.TargetStates)
}

func TestGetCampaign_NotFound(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectQuery("FROM campaigns WHERE id").WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetCampaign(context.Background(), "nope")
	assert.ErrorIs(t, err, outreach.ErrNotFound)
}

func TestUpdateCampaign(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	status := domain.CampaignPaused
	limit := 5
	mock.ExpectQuery(`UPDATE campaigns SET status = \$1, daily_email_limit = \$2, updated_at = NOW\(\) WHERE id = \$3`).
		WithArgs(domain.CampaignPaused, 5, "c1").
		WillReturnRows(sqlmock.NewRows(campaignCols).
			AddRow("c1", "a1", "Fall", "paused", 5, 7, "{}", "{}", ts, ts))

	c, err := repo.UpdateCampaign(context.Background(), "c1", outreach.CampaignUpdate{Status: &status, DailyEmailLimit: &limit})
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignPaused, c.Status)

	mock.ExpectQuery("UPDATE campaigns SET daily_email_limit").
		WithArgs(5, "gone").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.UpdateCampaign(context.Background(), "gone", outreach.CampaignUpdate{DailyEmailLimit: &limit})
	assert.ErrorIs(t, err, outreach.ErrNotFound)
}

func TestGetAthlete_DecodesStats(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectQuery("FROM athletes").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "first_name", "last_name", "email", "phone", "parent_name", "parent_email",
			"sport", "position", "grad_year", "height", "weight", "gpa", "high_school", "city", "state",
			"highlight_url", "stats", "created_at",
		}).AddRow("a1", "Jordan", "Reyes", "j@example.com", "", "Maria", "maria@example.com",
			"Football", "QB", 2027, "6'2\"", "195", "3.8", "Westlake", "Austin", "TX",
			"", []byte(`{"forty_yard_dash": 4.52}`), ts))

	a, err := repo.GetAthlete(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 2027, a.GradYear)
	require.NotNil(t, a.Stats.FortyYardDash)
	assert.Equal(t, 4.52, *a.Stats.FortyYardDash)
	assert.Nil(t, a.Stats.Squat)
}

func TestGetTemplate_NotFound(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectQuery("FROM templates").WithArgs("c1", domain.MessageEmail).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetTemplate(context.Background(), "c1", domain.MessageEmail)
	assert.ErrorIs(t, err, outreach.ErrNotFound)
}

// =============================================================================
// COACHES
// =============================================================================

func TestListUncontactedCoaches(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectQuery("NOT EXISTS").
		WithArgs("c1", sqlmock.AnyArg(), sqlmock.AnyArg(), 2).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "first_name", "last_name", "email", "title", "school", "division", "state", "created_at",
		}).
			AddRow("k1", "Pat", "Smith", "pat@state.edu", "HC", "State", "D1", "TX", ts).
			AddRow("k2", "Lee", "Park", "lee@tech.edu", "OC", "Tech", "D1", "OH", ts))

	got, err := repo.ListUncontactedCoaches(context.Background(), "c1", outreach.CoachFilter{Divisions: []string{" D1 "}}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "k1", got[0].ID)
}

func TestLowered(t *testing.T) {
	assert.Equal(t, []string{"d1", "fcs"}, []string(lowered([]string{" D1", "FCS "})))
	assert.Empty(t, lowered(nil))
}

func TestCountContactedCoaches(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectQuery(`COUNT\(DISTINCT coach_id\)`).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	n, err := repo.CountContactedCoaches(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

// =============================================================================
// MESSAGES
// =============================================================================

func queuedMessage() *domain.Message {
	return &domain.Message{
		ID: "m1", CampaignID: "c1", CoachID: "k1", AthleteID: "a1", Type: domain.MessageEmail,
		Channel: "ses", ToAddress: "pat@state.edu", Subject: "s", Body: "b", CreatedAt: ts,
	}
}

func TestCreateQueuedMessage(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectExec(`ON CONFLICT \(campaign_id, coach_id, type\) WHERE status <> 'failed' DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.CreateQueuedMessage(context.Background(), queuedMessage())
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec("INSERT INTO messages").WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.CreateQueuedMessage(context.Background(), queuedMessage())
	require.NoError(t, err)
	assert.False(t, ok, "conflict means another attempt holds the coach")
}

func TestMarkMessageSent_OnlyQueued(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectExec("SET status = 'sent'").
		WithArgs("m1", "pm-1", ts).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkMessageSent(context.Background(), "m1", "pm-1", ts)
	assert.ErrorIs(t, err, outreach.ErrNotFound)
}

var messageCols = []string{
	"id", "campaign_id", "coach_id", "athlete_id", "type", "channel", "to_address", "subject", "body",
	"status", "provider_message_id", "error", "created_at", "sent_at", "updated_at",
}

func TestLatestSentMessageTo(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectQuery(`lower\(to_address\) = lower\(\$1\)`).
		WithArgs("pat@state.edu", domain.MessageEmail).
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow("m1", "c1", "k1", "a1", "email", "ses", "pat@state.edu", "s", "b", "sent", "pm-1", "", ts, ts, ts))

	m, err := repo.LatestSentMessageTo(context.Background(), "pat@state.edu", domain.MessageEmail)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageSent, m.Status)
	require.NotNil(t, m.SentAt)
	assert.True(t, m.SentAt.Equal(ts))
}

func TestFailStaleQueued(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	cutoff := ts.Add(-15 * time.Minute)
	mock.ExpectBegin()
	mock.ExpectQuery("SET status = 'failed'").
		WithArgs(cutoff, "abandoned").
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow("m1", "c1", "k1", "a1", "email", "ses", "pat@state.edu", "s", "b", "failed", "", "abandoned", ts.Add(-time.Hour), nil, ts))
	mock.ExpectExec("UPDATE daily_logs SET emails_sent = emails_sent - 1").
		WithArgs("c1", day).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("total_emails_sent - 1").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	failed, err := repo.FailStaleQueued(context.Background(), cutoff, "abandoned")
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Nil(t, failed[0].SentAt)
}

// =============================================================================
// DAILY QUOTA
// =============================================================================

func TestEnsureDailyLog(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectQuery("INSERT INTO daily_logs").
		WithArgs("c1", day).
		WillReturnRows(sqlmock.NewRows([]string{"campaign_id", "log_date", "emails_sent", "dms_sent"}).
			AddRow("c1", day, 3, 0))

	l, err := repo.EnsureDailyLog(context.Background(), "c1", day)
	require.NoError(t, err)
	assert.Equal(t, 3, l.EmailsSent)
}

func TestReserveDailySend(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(`d.emails_sent < c.daily_email_limit`).
		WithArgs("c1", day).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("total_emails_sent = total_emails_sent \\+ 1").
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.ReserveDailySend(context.Background(), "c1", day)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReserveDailySend_LimitReached(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE daily_logs d").
		WithArgs("c1", day).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ok, err := repo.ReserveDailySend(context.Background(), "c1", day)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseDailySend_NothingHeld(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("emails_sent > 0").
		WithArgs("c1", day).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.ReleaseDailySend(context.Background(), "c1", day))
}

// =============================================================================
// RESPONSES
// =============================================================================

func TestListResponses(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectQuery(`WHERE campaign_id = \$1 AND coach_id = \$2 ORDER BY received_at DESC LIMIT \$3`).
		WithArgs("c1", "k1", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "campaign_id", "athlete_id", "coach_id", "message_id", "from_email", "from_name",
			"subject", "body", "received_at", "forwarded_at", "forwarded_to",
		}).
			AddRow("r2", "c1", "a1", "k1", "m1", "pat@state.edu", "Pat", "Re", "yes", ts, ts, "maria@example.com").
			AddRow("r1", "c1", "a1", "k1", "", "pat@state.edu", "Pat", "Re", "hi", ts.Add(-time.Hour), nil, ""))

	got, err := repo.ListResponses(context.Background(), outreach.ResponseFilter{CampaignID: "c1", CoachID: "k1", Limit: 50})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].ForwardedAt)
	assert.Nil(t, got[1].ForwardedAt)
}

func TestMarkResponseForwarded(t *testing.T) {
	repo, mock, done := setupTestDB(t)
	defer done()

	mock.ExpectExec("COALESCE\\(forwarded_at").
		WithArgs("r1", ts, "maria@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkResponseForwarded(context.Background(), "r1", "maria@example.com", ts))

	mock.ExpectExec("UPDATE responses").
		WithArgs("r9", ts, "maria@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkResponseForwarded(context.Background(), "r9", "maria@example.com", ts)
	assert.ErrorIs(t, err, outreach.ErrNotFound)
}
