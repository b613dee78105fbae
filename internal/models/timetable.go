package models

import "time"

// TimetableEntry is one scheduled lesson instance.
type TimetableEntry struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	SectionID string    `db:"section_id" json:"section_id"`
	FacultyID *string   `db:"faculty_id" json:"faculty_id,omitempty"`
	RoomID    string    `db:"room_id" json:"room_id"`
	Day       string    `db:"day" json:"day"`
	StartTime string    `db:"start_time" json:"start_time"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TimetableEntryDetail joins an entry with the names used by views and exports.
type TimetableEntryDetail struct {
	TimetableEntry
	CourseName   string  `db:"course_name" json:"course_name"`
	SectionName  string  `db:"section_name" json:"section_name"`
	FacultyName  *string `db:"faculty_name" json:"faculty_name,omitempty"`
	RoomName     string  `db:"room_name" json:"room_name"`
	Year         int     `db:"year" json:"year"`
	Semester     int     `db:"semester" json:"semester"`
	DepartmentID string  `db:"department_id" json:"department_id"`
}

// TimetableFilter narrows timetable listings.
type TimetableFilter struct {
	SectionID string
	FacultyID string
	RoomID    string
	Day       string
}

// ScheduleConflict describes an existing entry that blocks a proposed placement.
type ScheduleConflict struct {
	EntryID   string `json:"entry_id"`
	CourseID  string `json:"course_id"`
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	Dimension string `json:"dimension"`
	Message   string `json:"message"`
}
