package outreach_test

import (
	"testing"

	"github.com/playbook/outreach/internal/domain"
	"github.com/playbook/outreach/internal/service/outreach"
	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		vars    map[string]string
		want    string
	}{
		{
			name:    "substitutes known keys",
			pattern: "Hi {{coach_name}} from {{school}}",
			vars:    map[string]string{"coach_name": "Pat Smith", "school": "State"},
			want:    "Hi Pat Smith from State",
		},
		{
			name:    "absent key stays verbatim",
			pattern: "Hi {{coach_name}}, {{mystery}}",
			vars:    map[string]string{"coach_name": "Pat"},
			want:    "Hi Pat, {{mystery}}",
		},
		{
			name:    "present but empty key is replaced",
			pattern: "GPA: {{gpa}}.",
			vars:    map[string]string{"gpa": ""},
			want:    "GPA: .",
		},
		{
			name:    "non word identifiers are not tokens",
			pattern: "{{ coach_name }} {{coach-name}} {coach_name}",
			vars:    map[string]string{"coach_name": "Pat"},
			want:    "{{ coach_name }} {{coach-name}} {coach_name}",
		},
		{
			name:    "values are not rescanned",
			pattern: "{{a}}",
			vars:    map[string]string{"a": "{{b}}", "b": "nope"},
			want:    "{{b}}",
		},
		{
			name:    "repeated tokens",
			pattern: "{{x}}{{x}}",
			vars:    map[string]string{"x": "1"},
			want:    "11",
		},
		{
			name:    "nil map leaves everything",
			pattern: "{{x}}",
			want:    "{{x}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outreach.Render(tt.pattern, tt.vars))
		})
	}
}

func TestRender_Idempotent(t *testing.T) {
	vars := outreach.BuildContext(&domain.Athlete{FirstName: "Jordan", LastName: "Reyes"}, &domain.Coach{LastName: "Smith"})
	pattern := "{{athlete_name}} to Coach {{coach_last_name}} {{unknown_key}}"

	once := outreach.Render(pattern, vars)
	assert.Equal(t, once, outreach.Render(once, vars))
	assert.Equal(t, "Jordan Reyes to Coach Smith {{unknown_key}}", once)
}

func TestRender_FullContextLeavesNoTokens(t *testing.T) {
	vars := outreach.BuildContext(&domain.Athlete{}, &domain.Coach{})
	var pattern string
	for _, k := range outreach.ContextKeys() {
		pattern += "{{" + k + "}} "
	}
	out := outreach.Render(pattern, vars)
	assert.Empty(t, outreach.Placeholders(out))
}

func TestPlaceholders(t *testing.T) {
	got := outreach.Placeholders("{{b}} {{a}} {{b}} {{ c }}")
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Empty(t, outreach.Placeholders("no tokens"))
}
