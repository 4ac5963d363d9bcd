package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/service/outreach"
)

func (r *Repo) CreateResponse(ctx context.Context, resp *domain.Response) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO responses
			(id, campaign_id, athlete_id, coach_id, message_id, from_email, from_name,
			 subject, body, received_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
	`, resp.ID, resp.CampaignID, resp.AthleteID, resp.CoachID, resp.MessageID, resp.FromEmail, resp.FromName,
		resp.Subject, resp.Body, resp.ReceivedAt)
	if err != nil {
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

func (r *Repo) MarkResponseForwarded(ctx context.Context, id, forwardedTo string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE responses
		SET forwarded_at = COALESCE(forwarded_at, $2),
		    forwarded_to = CASE WHEN forwarded_at IS NULL THEN $3 ELSE forwarded_to END
		WHERE id = $1
	`, id, at, forwardedTo)
	if err != nil {
		return fmt.Errorf("mark response forwarded: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return outreach.NotFound("response", id)
	}
	return nil
}

func (r *Repo) ListResponses(ctx context.Context, f outreach.ResponseFilter) ([]domain.Response, error) {
	where := []string{}
	args := []any{}
	if f.CampaignID != "" {
		args = append(args, f.CampaignID)
		where = append(where, fmt.Sprintf("campaign_id = $%d", len(args)))
	}
	if f.CoachID != "" {
		args = append(args, f.CoachID)
		where = append(where, fmt.Sprintf("coach_id = $%d", len(args)))
	}
	q := `
		SELECT id, campaign_id, athlete_id, coach_id, COALESCE(message_id, ''), from_email, from_name,
		       subject, body, received_at, forwarded_at, forwarded_to
		FROM responses`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY received_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var out []domain.Response
	for rows.Next() {
		var resp domain.Response
		var fwdAt sql.NullTime
		if err := rows.Scan(
			&resp.ID, &resp.CampaignID, &resp.AthleteID, &resp.CoachID, &resp.MessageID, &resp.FromEmail, &resp.FromName,
			&resp.Subject, &resp.Body, &resp.ReceivedAt, &fwdAt, &resp.ForwardedTo,
		); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		if fwdAt.Valid {
			t := fwdAt.Time
			resp.ForwardedAt = &t
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (r *Repo) CountResponses(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM responses WHERE campaign_id = $1`, campaignID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return n, nil
}
