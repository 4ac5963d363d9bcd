// Package postgres implements outreach.Repository on PostgreSQL using
// database/sql and lib/pq. Atomic guarantees the service depends on are
// carried by conditional UPDATEs and the partial unique index on messages.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/service/outreach"
)

// Repo implements outreach.Repository against PostgreSQL.
type Repo struct{ db *sql.DB }

var _ outreach.Repository = (*Repo)(nil)

// NewRepo creates a Postgres-backed outreach repository.
func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

const campaignColumns = `id, athlete_id, name, status, daily_email_limit, total_emails_sent,
		       target_divisions, target_states, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(s rowScanner) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := s.Scan(
		&c.ID, &c.AthleteID, &c.Name, &c.Status, &c.DailyEmailLimit, &c.TotalEmailsSent,
		pq.Array(&c.TargetDivisions), pq.Array(&c.TargetStates), &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *Repo) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outreach.NotFound("campaign", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *Repo) ListActiveCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE status = $1 ORDER BY id`, domain.CampaignActive)
	if err != nil {
		return nil, fmt.Errorf("list active campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateCampaign(ctx context.Context, id string, u outreach.CampaignUpdate) (*domain.Campaign, error) {
	sets := []string{}
	args := []any{}
	idx := 1
	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.DailyEmailLimit != nil {
		add("daily_email_limit", *u.DailyEmailLimit)
	}
	if len(sets) == 0 {
		return r.GetCampaign(ctx, id)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	q := fmt.Sprintf(`UPDATE campaigns SET %s WHERE id = $%d RETURNING `+campaignColumns,
		strings.Join(sets, ", "), idx)
	c, err := scanCampaign(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outreach.NotFound("campaign", id)
	}
	if err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	return c, nil
}

func (r *Repo) GetAthlete(ctx context.Context, id string) (*domain.Athlete, error) {
	a := &domain.Athlete{}
	var stats []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, phone, parent_name, parent_email,
		       sport, position, grad_year, height, weight, gpa, high_school, city, state,
		       highlight_url, stats, created_at
		FROM athletes
		WHERE id = $1
	`, id).Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.Phone, &a.ParentName, &a.ParentEmail,
		&a.Sport, &a.Position, &a.GradYear, &a.Height, &a.Weight, &a.GPA, &a.HighSchool, &a.City, &a.State,
		&a.HighlightURL, &stats, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outreach.NotFound("athlete", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get athlete: %w", err)
	}
	if len(stats) > 0 {
		if err := json.Unmarshal(stats, &a.Stats); err != nil {
			return nil, fmt.Errorf("decode athlete stats: %w", err)
		}
	}
	return a, nil
}

func (r *Repo) GetTemplate(ctx context.Context, campaignID string, t domain.MessageType) (*domain.Template, error) {
	tpl := &domain.Template{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, campaign_id, type, name, subject, body, variables, created_at, updated_at
		FROM templates
		WHERE campaign_id = $1 AND type = $2
	`, campaignID, t).Scan(
		&tpl.ID, &tpl.CampaignID, &tpl.Type, &tpl.Name, &tpl.Subject, &tpl.Body,
		pq.Array(&tpl.Variables), &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outreach.NotFound("template", campaignID+"/"+string(t))
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}
