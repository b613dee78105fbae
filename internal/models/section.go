package models

import "time"

// DefaultMaxHoursPerDay applies when a section's daily cap is unset.
const DefaultMaxHoursPerDay = 5

// Section is a student cohort slice identified by name within (year, department).
type Section struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Year           int       `db:"year" json:"year"`
	DepartmentID   string    `db:"department_id" json:"department_id"`
	MaxHoursPerDay *int      `db:"max_hours_per_day" json:"max_hours_per_day"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// DailyCap returns the effective per-day class limit. An unset cap defaults
// to DefaultMaxHoursPerDay; a stored zero forbids classes on every day.
func (s Section) DailyCap() int {
	switch {
	case s.MaxHoursPerDay == nil:
		return DefaultMaxHoursPerDay
	case *s.MaxHoursPerDay < 0:
		return 0
	default:
		return *s.MaxHoursPerDay
	}
}
