package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/playbook/outreach/internal/domain"
)

// Seed is the fixture format accepted by LoadSeed. Field names follow the
// domain JSON tags.
type Seed struct {
	Campaigns []domain.Campaign `json:"campaigns"`
	Athletes  []domain.Athlete  `json:"athletes"`
	Coaches   []domain.Coach    `json:"coaches"`
	Templates []domain.Template `json:"templates"`
}

// Apply inserts every seeded row.
func (r *Repo) Apply(s Seed) {
	now := time.Now().UTC()
	for _, c := range s.Campaigns {
		if c.Status == "" {
			c.Status = domain.CampaignActive
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt, c.UpdatedAt = now, now
		}
		r.PutCampaign(c)
	}
	for _, a := range s.Athletes {
		r.PutAthlete(a)
	}
	for _, c := range s.Coaches {
		r.PutCoach(c)
	}
	for _, t := range s.Templates {
		if t.Type == "" {
			t.Type = domain.MessageEmail
		}
		r.PutTemplate(t)
	}
}

// LoadSeed reads a JSON fixture file into a new repository.
func LoadSeed(path string) (*Repo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var s Seed
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	r := New()
	r.Apply(s)
	return r, nil
}
