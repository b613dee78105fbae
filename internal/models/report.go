package models

// FacultyLoad counts scheduled entries against a faculty member's advisory maximum.
type FacultyLoad struct {
	FacultyID   string `db:"faculty_id" json:"faculty_id"`
	FacultyName string `db:"faculty_name" json:"faculty_name"`
	MaxHours    int    `db:"max_hours" json:"max_hours"`
	Assigned    int    `db:"assigned" json:"assigned"`
}

// RoomUsage counts scheduled entries per classroom.
type RoomUsage struct {
	RoomID   string `db:"room_id" json:"room_id"`
	RoomName string `db:"room_name" json:"room_name"`
	Assigned int    `db:"assigned" json:"assigned"`
}
