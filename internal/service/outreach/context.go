package outreach

import (
	"sort"
	"strconv"

	"github.com/playbook/outreach/internal/domain"
)

// contextKeys is the full template variable schema. BuildContext always
// emits every key, blank when the source field is empty.
var contextKeys = []string{
	"athlete_first_name", "athlete_last_name", "athlete_name",
	"athlete_email", "athlete_phone", "parent_name", "parent_email",
	"sport", "position", "grad_year", "height", "weight", "gpa",
	"high_school", "city", "state", "location", "highlight_url",
	"forty_yard_dash", "shuttle", "vertical_jump", "broad_jump",
	"bench_press", "squat", "points_per_game", "rebounds", "assists", "batting_avg",
	"coach_first_name", "coach_last_name", "coach_name", "coach_title",
	"school", "division", "coach_state",
}

// ContextKeys returns the sorted template variable schema.
func ContextKeys() []string {
	out := append([]string(nil), contextKeys...)
	sort.Strings(out)
	return out
}

// BuildContext projects an athlete and coach into the flat variable map
// templates are rendered with.
func BuildContext(a *domain.Athlete, c *domain.Coach) map[string]string {
	vars := make(map[string]string, len(contextKeys))
	for _, k := range contextKeys {
		vars[k] = ""
	}

	if a != nil {
		vars["athlete_first_name"] = a.FirstName
		vars["athlete_last_name"] = a.LastName
		vars["athlete_name"] = a.FullName()
		vars["athlete_email"] = a.Email
		vars["athlete_phone"] = a.Phone
		vars["parent_name"] = a.ParentName
		vars["parent_email"] = a.ParentEmail
		vars["sport"] = a.Sport
		vars["position"] = a.Position
		if a.GradYear > 0 {
			vars["grad_year"] = strconv.Itoa(a.GradYear)
		}
		vars["height"] = a.Height
		vars["weight"] = a.Weight
		vars["gpa"] = a.GPA
		vars["high_school"] = a.HighSchool
		vars["city"] = a.City
		vars["state"] = a.State
		vars["location"] = location(a.City, a.State)
		vars["highlight_url"] = a.HighlightURL

		s := a.Stats
		vars["forty_yard_dash"] = stat(s.FortyYardDash)
		vars["shuttle"] = stat(s.Shuttle)
		vars["vertical_jump"] = stat(s.VerticalJump)
		vars["broad_jump"] = stat(s.BroadJump)
		vars["bench_press"] = stat(s.BenchPress)
		vars["squat"] = stat(s.Squat)
		vars["points_per_game"] = stat(s.PointsPerGame)
		vars["rebounds"] = stat(s.Rebounds)
		vars["assists"] = stat(s.Assists)
		vars["batting_avg"] = stat(s.BattingAvg)
	}

	if c != nil {
		vars["coach_first_name"] = c.FirstName
		vars["coach_last_name"] = c.LastName
		vars["coach_name"] = c.FullName()
		vars["coach_title"] = c.Title
		vars["school"] = c.School
		vars["division"] = c.Division
		vars["coach_state"] = c.State
	}
	return vars
}

func stat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func location(city, state string) string {
	switch {
	case city == "":
		return state
	case state == "":
		return city
	}
	return city + ", " + state
}
