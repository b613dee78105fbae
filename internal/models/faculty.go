package models

import "time"

// Faculty is a teaching staff member. MaxHours is advisory and only feeds reports.
type Faculty struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	MaxHours     int       `db:"max_hours" json:"max_hours"`
	Email        *string   `db:"email" json:"email,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FacultyUnavailability blocks a faculty member at one (day, start time) slot.
type FacultyUnavailability struct {
	ID        string `db:"id" json:"id"`
	FacultyID string `db:"faculty_id" json:"faculty_id"`
	Day       string `db:"day" json:"day"`
	StartTime string `db:"start_time" json:"start_time"`
}
