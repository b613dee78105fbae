package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// GenerationStats summarises one solver run.
type GenerationStats struct {
	RunID        string   `json:"run_id"`
	SolverStatus string   `json:"solver_status"`
	WallTimeMs   int64    `json:"wall_time_ms"`
	Branches     int64    `json:"branches"`
	Conflicts    int64    `json:"conflicts"`
	Variables    int      `json:"variables"`
	Constraints  int      `json:"constraints"`
	Warnings     []string `json:"warnings,omitempty"`
}

// GenerateTimetableResponse is returned by a successful generation.
type GenerateTimetableResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Entries    int             `json:"entries"`
	ExportFile string          `json:"export_file,omitempty"`
	Stats      GenerationStats `json:"stats"`
}

// TimetableQuery carries list filters from the query string.
type TimetableQuery struct {
	SectionID string `form:"sectionId"`
	FacultyID string `form:"facultyId"`
	RoomID    string `form:"roomId"`
	Day       string `form:"day"`
}

// TimetableListResponse wraps stored entries.
type TimetableListResponse struct {
	Entries []models.TimetableEntryDetail `json:"entries"`
	Total   int                           `json:"total"`
}

// MoveEntryRequest proposes a new (day, start) for one entry.
type MoveEntryRequest struct {
	Day       string `json:"day" validate:"required,oneof=Mon Tue Wed Thu Fri"`
	StartTime string `json:"startTime" validate:"required,oneof=09 11 01 03"`
}

// MoveCheckResponse reports whether a move would collide with another entry.
type MoveCheckResponse struct {
	Conflict  bool                      `json:"conflict"`
	Reason    string                    `json:"reason,omitempty"`
	Conflicts []models.ScheduleConflict `json:"conflicts,omitempty"`
}

// MoveEntryResponse is returned after a move is applied.
type MoveEntryResponse struct {
	Entry models.TimetableEntryDetail `json:"entry"`
}

// ExportLinkResponse exposes a signed download link for the last artifact.
type ExportLinkResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	RunID     string    `json:"run_id"`
}

// FacultyLoadItem is one faculty row of the load report.
type FacultyLoadItem struct {
	models.FacultyLoad
	Load       float64 `json:"load"`
	Overloaded bool    `json:"overloaded"`
}

// FacultyLoadReport lists assigned hours against advisory maximums.
type FacultyLoadReport struct {
	Items       []FacultyLoadItem `json:"items"`
	GeneratedAt time.Time         `json:"generated_at"`
	Cached      bool              `json:"-"`
}

// RoomUtilizationItem is one room row of the utilization report.
type RoomUtilizationItem struct {
	models.RoomUsage
	Slots       int     `json:"slots"`
	Utilization float64 `json:"utilization"`
}

// RoomUtilizationReport lists the share of weekly slots each room is booked.
type RoomUtilizationReport struct {
	Items       []RoomUtilizationItem `json:"items"`
	GeneratedAt time.Time             `json:"generated_at"`
	Cached      bool                  `json:"-"`
}
