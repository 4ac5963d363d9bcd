package domain

import "time"

// Athlete is the recruiting subject a campaign sends on behalf of.
type Athlete struct {
	ID           string       `json:"id" db:"id"`
	FirstName    string       `json:"first_name" db:"first_name"`
	LastName     string       `json:"last_name" db:"last_name"`
	Email        string       `json:"email" db:"email"`
	Phone        string       `json:"phone" db:"phone"`
	ParentName   string       `json:"parent_name" db:"parent_name"`
	ParentEmail  string       `json:"parent_email" db:"parent_email"`
	Sport        string       `json:"sport" db:"sport"`
	Position     string       `json:"position" db:"position"`
	GradYear     int          `json:"grad_year" db:"grad_year"`
	Height       string       `json:"height" db:"height"`
	Weight       string       `json:"weight" db:"weight"`
	GPA          string       `json:"gpa" db:"gpa"`
	HighSchool   string       `json:"high_school" db:"high_school"`
	City         string       `json:"city" db:"city"`
	State        string       `json:"state" db:"state"`
	HighlightURL string       `json:"highlight_url" db:"highlight_url"`
	Stats        AthleteStats `json:"stats" db:"stats"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// FullName joins first and last name, skipping blanks.
func (a *Athlete) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// AthleteStats holds per-metric performance numbers. Each metric is optional
// and independent of the others; nil means not recorded.
type AthleteStats struct {
	FortyYardDash *float64 `json:"forty_yard_dash,omitempty"`
	Shuttle       *float64 `json:"shuttle,omitempty"`
	VerticalJump  *float64 `json:"vertical_jump,omitempty"`
	BroadJump     *float64 `json:"broad_jump,omitempty"`
	BenchPress    *float64 `json:"bench_press,omitempty"`
	Squat         *float64 `json:"squat,omitempty"`
	PointsPerGame *float64 `json:"points_per_game,omitempty"`
	Rebounds      *float64 `json:"rebounds,omitempty"`
	Assists       *float64 `json:"assists,omitempty"`
	BattingAvg    *float64 `json:"batting_avg,omitempty"`
}

// Coach is a recruitment target. Coaches are shared across campaigns.
type Coach struct {
	ID        string    `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	Title     string    `json:"title" db:"title"`
	School    string    `json:"school" db:"school"`
	Division  string    `json:"division" db:"division"`
	State     string    `json:"state" db:"state"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// FullName joins first and last name, skipping blanks.
func (c *Coach) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
