package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/service/outreach"
)

const coachColumns = `k.id, k.first_name, k.last_name, k.email, k.title, k.school, k.division, k.state, k.created_at`

// coachFilterSQL matches case-insensitively; an empty array disables the
// condition. Placeholders are $div and $st.
func coachFilterSQL(div, st int) string {
	return fmt.Sprintf(`(cardinality($%[1]d::text[]) = 0 OR lower(k.division) = ANY($%[1]d::text[]))
		  AND (cardinality($%[2]d::text[]) = 0 OR lower(k.state) = ANY($%[2]d::text[]))`, div, st)
}

func lowered(in []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

func scanCoach(s rowScanner) (*domain.Coach, error) {
	c := &domain.Coach{}
	err := s.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Title, &c.School, &c.Division, &c.State, &c.CreatedAt)
	return c, err
}

func (r *Repo) GetCoach(ctx context.Context, id string) (*domain.Coach, error) {
	c, err := scanCoach(r.db.QueryRowContext(ctx,
		`SELECT `+coachColumns+` FROM coaches k WHERE k.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outreach.NotFound("coach", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get coach: %w", err)
	}
	return c, nil
}

func (r *Repo) GetCoachByEmail(ctx context.Context, email string) (*domain.Coach, error) {
	c, err := scanCoach(r.db.QueryRowContext(ctx,
		`SELECT `+coachColumns+` FROM coaches k WHERE lower(k.email) = lower($1) ORDER BY k.id LIMIT 1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outreach.NotFound("coach", email)
	}
	if err != nil {
		return nil, fmt.Errorf("get coach by email: %w", err)
	}
	return c, nil
}

func (r *Repo) CountCoaches(ctx context.Context, f outreach.CoachFilter) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coaches k WHERE `+coachFilterSQL(1, 2),
		lowered(f.Divisions), lowered(f.States),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count coaches: %w", err)
	}
	return n, nil
}

func (r *Repo) ListUncontactedCoaches(ctx context.Context, campaignID string, f outreach.CoachFilter, limit int) ([]domain.Coach, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+coachColumns+`
		FROM coaches k
		WHERE `+coachFilterSQL(2, 3)+`
		  AND NOT EXISTS (
		      SELECT 1 FROM messages m
		      WHERE m.campaign_id = $1 AND m.coach_id = k.id
		  )
		ORDER BY k.id
		LIMIT $4
	`, campaignID, lowered(f.Divisions), lowered(f.States), limit)
	if err != nil {
		return nil, fmt.Errorf("list uncontacted coaches: %w", err)
	}
	defer rows.Close()

	var out []domain.Coach
	for rows.Next() {
		c, err := scanCoach(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coach: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repo) CountContactedCoaches(ctx context.Context, campaignID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT coach_id) FROM messages WHERE campaign_id = $1`, campaignID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count contacted coaches: %w", err)
	}
	return n, nil
}
