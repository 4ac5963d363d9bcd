package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/service/outreach"
)

const messageColumns = `id, campaign_id, coach_id, athlete_id, type, channel, to_address, subject, body,
		       status, provider_message_id, error, created_at, sent_at, updated_at`

func scanMessage(s rowScanner) (*domain.Message, error) {
	m := &domain.Message{}
	var sentAt sql.NullTime
	err := s.Scan(
		&m.ID, &m.CampaignID, &m.CoachID, &m.AthleteID, &m.Type, &m.Channel, &m.ToAddress, &m.Subject, &m.Body,
		&m.Status, &m.ProviderMessageID, &m.Error, &m.CreatedAt, &sentAt, &m.UpdatedAt,
	)
	if sentAt.Valid {
		t := sentAt.Time
		m.SentAt = &t
	}
	return m, err
}

func (r *Repo) HasActiveMessage(ctx context.Context, campaignID, coachID string, t domain.MessageType) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
		    SELECT 1 FROM messages
		    WHERE campaign_id = $1 AND coach_id = $2 AND type = $3 AND status <> 'failed'
		)
	`, campaignID, coachID, t).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active message: %w", err)
	}
	return exists, nil
}

// CreateQueuedMessage relies on messages_active_uniq, the partial unique
// index on (campaign_id, coach_id, type) WHERE status <> 'failed'.
func (r *Repo) CreateQueuedMessage(ctx context.Context, m *domain.Message) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages
			(id, campaign_id, coach_id, athlete_id, type, channel, to_address, subject, body,
			 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'queued', $10, $10)
		ON CONFLICT (campaign_id, coach_id, type) WHERE status <> 'failed' DO NOTHING
	`, m.ID, m.CampaignID, m.CoachID, m.AthleteID, m.Type, m.Channel, m.ToAddress, m.Subject, m.Body, m.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert queued message: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *Repo) MarkMessageSent(ctx context.Context, id, providerMessageID string, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'sent', provider_message_id = $2, sent_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'queued'
	`, id, providerMessageID, sentAt)
	if err != nil {
		return fmt.Errorf("mark message sent: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return outreach.NotFound("queued message", id)
	}
	return nil
}

func (r *Repo) MarkMessageFailed(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'queued'
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark message failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return outreach.NotFound("queued message", id)
	}
	return nil
}

func (r *Repo) FindMessageByProviderID(ctx context.Context, providerMessageID string) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE provider_message_id = $1 AND provider_message_id <> ''
		ORDER BY created_at DESC
		LIMIT 1
	`, providerMessageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outreach.NotFound("message", providerMessageID)
	}
	if err != nil {
		return nil, fmt.Errorf("find message by provider id: %w", err)
	}
	return m, nil
}

func (r *Repo) LatestSentMessageTo(ctx context.Context, email string, t domain.MessageType) (*domain.Message, error) {
	m, err := scanMessage(r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE lower(to_address) = lower($1) AND type = $2 AND status = 'sent'
		ORDER BY sent_at DESC
		LIMIT 1
	`, email, t))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outreach.NotFound("sent message to", email)
	}
	if err != nil {
		return nil, fmt.Errorf("latest sent message: %w", err)
	}
	return m, nil
}

// FailStaleQueued fails abandoned queued messages and gives back the quota
// each one reserved, in one transaction.
func (r *Repo) FailStaleQueued(ctx context.Context, cutoff time.Time, reason string) ([]domain.Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		UPDATE messages
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE status = 'queued' AND created_at < $1
		RETURNING `+messageColumns,
		cutoff, reason)
	if err != nil {
		return nil, fmt.Errorf("fail stale messages: %w", err)
	}
	var failed []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan message: %w", err)
		}
		failed = append(failed, *m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, m := range failed {
		if err := releaseDaily(ctx, tx, m.CampaignID, domain.Day(m.CreatedAt)); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return failed, nil
}

func (r *Repo) CountSentMessages(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE campaign_id = $1 AND status = 'sent'`, campaignID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count sent messages: %w", err)
	}
	return n, nil
}
