package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/playbook/outreach/internal/domain"
)

// EnsureDailyLog upserts the (campaign, day) row. The no-op DO UPDATE makes
// RETURNING yield the existing row on conflict.
func (r *Repo) EnsureDailyLog(ctx context.Context, campaignID string, day time.Time) (*domain.DailyLog, error) {
	l := &domain.DailyLog{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO daily_logs (campaign_id, log_date, emails_sent, dms_sent)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (campaign_id, log_date) DO UPDATE SET campaign_id = EXCLUDED.campaign_id
		RETURNING campaign_id, log_date, emails_sent, dms_sent
	`, campaignID, day).Scan(&l.CampaignID, &l.Date, &l.EmailsSent, &l.DMsSent)
	if err != nil {
		return nil, fmt.Errorf("ensure daily log: %w", err)
	}
	return l, nil
}

// ReserveDailySend increments the day counter only while it is below the
// campaign limit. Concurrent reservations serialise on the daily_logs row
// lock and re-check the condition.
func (r *Repo) ReserveDailySend(ctx context.Context, campaignID string, day time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		UPDATE daily_logs d
		SET emails_sent = d.emails_sent + 1
		FROM campaigns c
		WHERE d.campaign_id = $1 AND d.log_date = $2
		  AND c.id = d.campaign_id
		  AND d.emails_sent < c.daily_email_limit
	`, campaignID, day)
	if err != nil {
		return false, fmt.Errorf("reserve daily send: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET total_emails_sent = total_emails_sent + 1, updated_at = NOW()
		WHERE id = $1
	`, campaignID); err != nil {
		return false, fmt.Errorf("increment campaign total: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (r *Repo) ReleaseDailySend(ctx context.Context, campaignID string, day time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := releaseDaily(ctx, tx, campaignID, day); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func releaseDaily(ctx context.Context, tx *sql.Tx, campaignID string, day time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE daily_logs SET emails_sent = emails_sent - 1
		WHERE campaign_id = $1 AND log_date = $2 AND emails_sent > 0
	`, campaignID, day)
	if err != nil {
		return fmt.Errorf("release daily send: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE campaigns SET total_emails_sent = total_emails_sent - 1, updated_at = NOW()
		WHERE id = $1 AND total_emails_sent > 0
	`, campaignID); err != nil {
		return fmt.Errorf("decrement campaign total: %w", err)
	}
	return nil
}

func (r *Repo) ListDailyLogs(ctx context.Context, campaignID string) ([]domain.DailyLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT campaign_id, log_date, emails_sent, dms_sent
		FROM daily_logs
		WHERE campaign_id = $1
		ORDER BY log_date DESC
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyLog
	for rows.Next() {
		var l domain.DailyLog
		if err := rows.Scan(&l.CampaignID, &l.Date, &l.EmailsSent, &l.DMsSent); err != nil {
			return nil, fmt.Errorf("scan daily log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
