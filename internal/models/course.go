package models

import "time"

// Course is taught identically to every section of its (year, department) cohort.
type Course struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Type         string    `db:"type" json:"type"`
	Credits      *int      `db:"credits" json:"credits,omitempty"`
	Year         int       `db:"year" json:"year"`
	Semester     int       `db:"semester" json:"semester"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	FacultyID    *string   `db:"faculty_id" json:"faculty_id,omitempty"`
	HoursPerWeek int       `db:"hours_per_week" json:"hours_per_week"`
	IsFixed      bool      `db:"is_fixed" json:"is_fixed"`
	FixedDay     *string   `db:"fixed_day" json:"fixed_day,omitempty"`
	FixedSlot    *string   `db:"fixed_slot" json:"fixed_slot,omitempty"`
	FixedRoomID  *string   `db:"fixed_room_id" json:"fixed_room_id,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// HasFixedTriple reports whether all three fixed placement fields are set.
func (c Course) HasFixedTriple() bool {
	return c.IsFixed && c.FixedDay != nil && *c.FixedDay != "" &&
		c.FixedSlot != nil && *c.FixedSlot != "" &&
		c.FixedRoomID != nil && *c.FixedRoomID != ""
}
