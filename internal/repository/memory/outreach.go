// Package memory is a concurrency-safe in-memory implementation of
// outreach.Repository. It backs local development (storage.type: memory)
// and service tests. Every method holds a single mutex, which gives the
// same atomicity the Postgres repository gets from conditional writes.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/service/outreach"
)

type dayKey struct {
	campaignID string
	day        time.Time
}

// Repo implements outreach.Repository.
type Repo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	athletes  map[string]*domain.Athlete
	coaches   map[string]*domain.Coach
	templates map[string]*domain.Template // keyed by campaign id + "/" + type
	messages  []*domain.Message
	logs      map[dayKey]*domain.DailyLog
	responses []*domain.Response
}

var _ outreach.Repository = (*Repo)(nil)

// New returns an empty repository.
func New() *Repo {
	return &Repo{
		campaigns: make(map[string]*domain.Campaign),
		athletes:  make(map[string]*domain.Athlete),
		coaches:   make(map[string]*domain.Coach),
		templates: make(map[string]*domain.Template),
		logs:      make(map[dayKey]*domain.DailyLog),
	}
}

// PutCampaign inserts or replaces a campaign.
func (r *Repo) PutCampaign(c domain.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = &c
}

// PutAthlete inserts or replaces an athlete.
func (r *Repo) PutAthlete(a domain.Athlete) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.athletes[a.ID] = &a
}

// PutCoach inserts or replaces a coach.
func (r *Repo) PutCoach(c domain.Coach) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coaches[c.ID] = &c
}

// PutTemplate inserts or replaces the template for its campaign and type.
func (r *Repo) PutTemplate(t domain.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.CampaignID+"/"+string(t.Type)] = &t
}

// PutMessage inserts a message as-is, bypassing the dedup check.
func (r *Repo) PutMessage(m domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, &m)
}

// SetDailySent sets the day's emails_sent counter.
func (r *Repo) SetDailySent(campaignID string, day time.Time, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := dayKey{campaignID, domain.Day(day)}
	r.logs[k] = &domain.DailyLog{CampaignID: campaignID, Date: k.day, EmailsSent: n}
}

// Messages returns a snapshot of every message for a campaign in insert order.
func (r *Repo) Messages(campaignID string) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.CampaignID == campaignID {
			out = append(out, *m)
		}
	}
	return out
}

// Responses returns a snapshot of every stored response.
func (r *Repo) Responses() []domain.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Response, 0, len(r.responses))
	for _, resp := range r.responses {
		out = append(out, *resp)
	}
	return out
}

func (r *Repo) GetCampaign(_ context.Context, id string) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, outreach.NotFound("campaign", id)
	}
	cp := *c
	return &cp, nil
}

func (r *Repo) ListActiveCampaigns(_ context.Context) ([]domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.campaigns {
		if c.IsActive() {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repo) UpdateCampaign(_ context.Context, id string, u outreach.CampaignUpdate) (*domain.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, outreach.NotFound("campaign", id)
	}
	if u.Status != nil {
		c.Status = *u.Status
	}
	if u.DailyEmailLimit != nil {
		c.DailyEmailLimit = *u.DailyEmailLimit
	}
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (r *Repo) GetAthlete(_ context.Context, id string) (*domain.Athlete, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.athletes[id]
	if !ok {
		return nil, outreach.NotFound("athlete", id)
	}
	cp := *a
	return &cp, nil
}

func (r *Repo) GetTemplate(_ context.Context, campaignID string, t domain.MessageType) (*domain.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tpl, ok := r.templates[campaignID+"/"+string(t)]
	if !ok {
		return nil, outreach.NotFound("template", campaignID+"/"+string(t))
	}
	cp := *tpl
	return &cp, nil
}

func (r *Repo) GetCoach(_ context.Context, id string) (*domain.Coach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coaches[id]
	if !ok {
		return nil, outreach.NotFound("coach", id)
	}
	cp := *c
	return &cp, nil
}

func (r *Repo) GetCoachByEmail(_ context.Context, email string) (*domain.Coach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.sortedCoaches() {
		if strings.EqualFold(c.Email, email) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, outreach.NotFound("coach", email)
}

func (r *Repo) CountCoaches(_ context.Context, f outreach.CoachFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.coaches {
		if matches(c, f) {
			n++
		}
	}
	return n, nil
}

func (r *Repo) ListUncontactedCoaches(_ context.Context, campaignID string, f outreach.CoachFilter, limit int) ([]domain.Coach, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	contacted := map[string]bool{}
	for _, m := range r.messages {
		if m.CampaignID == campaignID {
			contacted[m.CoachID] = true
		}
	}
	var out []domain.Coach
	for _, c := range r.sortedCoaches() {
		if len(out) >= limit {
			break
		}
		if !contacted[c.ID] && matches(c, f) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *Repo) CountContactedCoaches(_ context.Context, campaignID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	for _, m := range r.messages {
		if m.CampaignID == campaignID {
			seen[m.CoachID] = true
		}
	}
	return len(seen), nil
}

func (r *Repo) HasActiveMessage(_ context.Context, campaignID, coachID string, t domain.MessageType) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeExists(campaignID, coachID, t), nil
}

func (r *Repo) CreateQueuedMessage(_ context.Context, m *domain.Message) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeExists(m.CampaignID, m.CoachID, m.Type) {
		return false, nil
	}
	cp := *m
	cp.Status = domain.MessageQueued
	r.messages = append(r.messages, &cp)
	return true, nil
}

func (r *Repo) MarkMessageSent(_ context.Context, id, providerMessageID string, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.queued(id)
	if m == nil {
		return outreach.NotFound("queued message", id)
	}
	m.Status = domain.MessageSent
	m.ProviderMessageID = providerMessageID
	at := sentAt
	m.SentAt = &at
	m.UpdatedAt = sentAt
	return nil
}

func (r *Repo) MarkMessageFailed(_ context.Context, id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.queued(id)
	if m == nil {
		return outreach.NotFound("queued message", id)
	}
	m.Status = domain.MessageFailed
	m.Error = reason
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Repo) FindMessageByProviderID(_ context.Context, providerMessageID string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var newest *domain.Message
	for _, m := range r.messages {
		if providerMessageID == "" || m.ProviderMessageID != providerMessageID {
			continue
		}
		if newest == nil || !m.CreatedAt.Before(newest.CreatedAt) {
			newest = m
		}
	}
	if newest == nil {
		return nil, outreach.NotFound("message", providerMessageID)
	}
	cp := *newest
	return &cp, nil
}

func (r *Repo) LatestSentMessageTo(_ context.Context, email string, t domain.MessageType) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.Message
	for _, m := range r.messages {
		if m.Status != domain.MessageSent || m.Type != t || !strings.EqualFold(m.ToAddress, email) || m.SentAt == nil {
			continue
		}
		if best == nil || m.SentAt.After(*best.SentAt) {
			best = m
		}
	}
	if best == nil {
		return nil, outreach.NotFound("sent message to", email)
	}
	cp := *best
	return &cp, nil
}

func (r *Repo) FailStaleQueued(_ context.Context, cutoff time.Time, reason string) ([]domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Message
	for _, m := range r.messages {
		if m.Status != domain.MessageQueued || !m.CreatedAt.Before(cutoff) {
			continue
		}
		m.Status = domain.MessageFailed
		m.Error = reason
		if l, ok := r.logs[dayKey{m.CampaignID, domain.Day(m.CreatedAt)}]; ok && l.EmailsSent > 0 {
			l.EmailsSent--
			if c, ok := r.campaigns[m.CampaignID]; ok && c.TotalEmailsSent > 0 {
				c.TotalEmailsSent--
			}
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *Repo) CountSentMessages(_ context.Context, campaignID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.CampaignID == campaignID && m.Status == domain.MessageSent {
			n++
		}
	}
	return n, nil
}

func (r *Repo) EnsureDailyLog(_ context.Context, campaignID string, day time.Time) (*domain.DailyLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := dayKey{campaignID, domain.Day(day)}
	l, ok := r.logs[k]
	if !ok {
		l = &domain.DailyLog{CampaignID: campaignID, Date: k.day}
		r.logs[k] = l
	}
	cp := *l
	return &cp, nil
}

func (r *Repo) ReserveDailySend(_ context.Context, campaignID string, day time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[campaignID]
	if !ok {
		return false, outreach.NotFound("campaign", campaignID)
	}
	l, ok := r.logs[dayKey{campaignID, domain.Day(day)}]
	if !ok || l.EmailsSent >= c.DailyEmailLimit {
		return false, nil
	}
	l.EmailsSent++
	c.TotalEmailsSent++
	return true, nil
}

func (r *Repo) ReleaseDailySend(_ context.Context, campaignID string, day time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[dayKey{campaignID, domain.Day(day)}]
	if !ok || l.EmailsSent == 0 {
		return nil
	}
	l.EmailsSent--
	if c, ok := r.campaigns[campaignID]; ok && c.TotalEmailsSent > 0 {
		c.TotalEmailsSent--
	}
	return nil
}

func (r *Repo) ListDailyLogs(_ context.Context, campaignID string) ([]domain.DailyLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.DailyLog
	for k, l := range r.logs {
		if k.campaignID == campaignID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *Repo) CreateResponse(_ context.Context, resp *domain.Response) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *resp
	r.responses = append(r.responses, &cp)
	return nil
}

func (r *Repo) MarkResponseForwarded(_ context.Context, id, forwardedTo string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resp := range r.responses {
		if resp.ID != id {
			continue
		}
		if resp.ForwardedAt == nil {
			t := at
			resp.ForwardedAt = &t
			resp.ForwardedTo = forwardedTo
		}
		return nil
	}
	return outreach.NotFound("response", id)
}

func (r *Repo) ListResponses(_ context.Context, f outreach.ResponseFilter) ([]domain.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Response
	for _, resp := range r.responses {
		if f.CampaignID != "" && resp.CampaignID != f.CampaignID {
			continue
		}
		if f.CoachID != "" && resp.CoachID != f.CoachID {
			continue
		}
		out = append(out, *resp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *Repo) CountResponses(_ context.Context, campaignID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, resp := range r.responses {
		if resp.CampaignID == campaignID {
			n++
		}
	}
	return n, nil
}

// activeExists must be called with mu held.
func (r *Repo) activeExists(campaignID, coachID string, t domain.MessageType) bool {
	for _, m := range r.messages {
		if m.CampaignID == campaignID && m.CoachID == coachID && m.Type == t && m.Status != domain.MessageFailed {
			return true
		}
	}
	return false
}

// queued must be called with mu held.
func (r *Repo) queued(id string) *domain.Message {
	for _, m := range r.messages {
		if m.ID == id && m.Status == domain.MessageQueued {
			return m
		}
	}
	return nil
}

// sortedCoaches must be called with mu held.
func (r *Repo) sortedCoaches() []*domain.Coach {
	out := make([]*domain.Coach, 0, len(r.coaches))
	for _, c := range r.coaches {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func matches(c *domain.Coach, f outreach.CoachFilter) bool {
	return inFold(f.Divisions, c.Division) && inFold(f.States, c.State)
}

func inFold(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
