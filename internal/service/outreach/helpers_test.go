package outreach_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/events"
	"github.com/playbook/outreach/internal/pkg/clock"
	"github.com/playbook/outreach/internal/pkg/logger"
	"github.com/playbook/outreach/internal/repository/memory"
	"github.com/playbook/outreach/internal/service/outreach"
	"github.com/playbook/outreach/internal/service/sending"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

// fakeSender records every email and fails or blocks for chosen recipients.
type fakeSender struct {
	mu      sync.Mutex
	sent    []sending.Email
	failFor map[string]bool
	block   map[string]bool
	n       int
	// onSend runs after each accepted email.
	onSend func()
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: map[string]bool{}, block: map[string]bool{}}
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, e *sending.Email) (*sending.Result, error) {
	f.mu.Lock()
	fail, block := f.failFor[e.To], f.block[e.To]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, &sending.TransportError{Provider: "fake", StatusCode: 550, Message: "mailbox unavailable"}
	}

	f.mu.Lock()
	f.n++
	f.sent = append(f.sent, *e)
	id := fmt.Sprintf("fake-%d", f.n)
	hook := f.onSend
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &sending.Result{Provider: "fake", ProviderMessageID: id}, nil
}

func (f *fakeSender) emails() []sending.Email {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sending.Email(nil), f.sent...)
}

func (f *fakeSender) sentTo(to string) []sending.Email {
	var out []sending.Email
	for _, e := range f.emails() {
		if strings.EqualFold(e.To, to) {
			out = append(out, e)
		}
	}
	return out
}

// recorder captures published events.
type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, e)
}

func (r *recorder) ofType(t events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.evs {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	repo   *memory.Repo
	sender *fakeSender
	clock  *clock.Manual
	events *recorder
	svc    *outreach.Service
}

const (
	testTemplateSubject = "{{athlete_name}} - {{position}} - Class of {{grad_year}}"
	testTemplateBody    = "Coach {{coach_last_name}}, I am interested in {{school}}. Film: {{highlight_url}}"
)

func coachID(i int) string { return fmt.Sprintf("coach-%02d", i) }

func coachEmail(i int) string { return fmt.Sprintf("coach%02d@college.edu", i) }

// newFixture seeds campaign c1 for athlete a1 with the given daily limit
// and numCoaches coaches.
func newFixture(t *testing.T, limit, numCoaches int, opts ...outreach.Option) *fixture {
	t.Helper()

	repo := memory.New()
	repo.PutAthlete(domain.Athlete{
		ID:           "a1",
		FirstName:    "Jordan",
		LastName:     "Reyes",
		Email:        "jordan@example.com",
		ParentName:   "Maria Reyes",
		ParentEmail:  "maria@example.com",
		Sport:        "Football",
		Position:     "QB",
		GradYear:     2027,
		HighlightURL: "https://film.example.com/jordan",
	})
	repo.PutCampaign(domain.Campaign{ID: "c1", AthleteID: "a1", Name: "Fall", Status: domain.CampaignActive, DailyEmailLimit: limit})
	repo.PutTemplate(domain.Template{
		ID:         "t1",
		CampaignID: "c1",
		Type:       domain.MessageEmail,
		Subject:    testTemplateSubject,
		Body:       testTemplateBody,
		Variables:  []string{"athlete_name", "position", "grad_year", "coach_last_name", "school", "highlight_url"},
	})
	for i := 1; i <= numCoaches; i++ {
		repo.PutCoach(domain.Coach{
			ID:        coachID(i),
			FirstName: "Pat",
			LastName:  fmt.Sprintf("Smith%d", i),
			Email:     coachEmail(i),
			Title:     "Head Coach",
			School:    fmt.Sprintf("State %d", i),
			Division:  "D1",
			State:     "TX",
		})
	}

	f := &fixture{repo: repo, sender: newFakeSender(), clock: clock.NewManual(start), events: &recorder{}}
	base := []outreach.Option{
		outreach.WithClock(f.clock),
		outreach.WithPacer(outreach.NewIntervalPacer(time.Second, f.clock)),
		outreach.WithEvents(f.events),
		outreach.WithLogger(logger.New(io.Discard, logger.DEBUG, true)),
	}
	svc, err := outreach.NewService(repo, f.sender, outreach.Settings{
		FromEmail:            "outreach@playbook.example",
		ReplyTo:              "replies@playbook.example",
		DefaultMaxEmails:     10,
		SendTimeout:          50 * time.Millisecond,
		ForwardSubjectPrefix: "Coach reply: ",
	}, append(base, opts...)...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) messages(status domain.MessageStatus) []domain.Message {
	var out []domain.Message
	for _, m := range f.repo.Messages("c1") {
		if status == "" || m.Status == status {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) sentToday(t *testing.T) int {
	t.Helper()
	l, err := f.repo.EnsureDailyLog(context.Background(), "c1", f.clock.Now())
	require.NoError(t, err)
	return l.EmailsSent
}

// errPacer fails the n-th Wait call.
type errPacer struct {
	calls, failAt int
}

func (p *errPacer) Wait(context.Context) error {
	p.calls++
	if p.calls == p.failAt {
		return errors.New("pacer closed")
	}
	return nil
}
