package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// FacultyRepository reads faculty members and their unavailability.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository builds repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// ListAll returns every faculty member.
func (r *FacultyRepository) ListAll(ctx context.Context) ([]models.Faculty, error) {
	const query = `SELECT id, name, department_id, max_hours, email, created_at, updated_at
FROM faculty ORDER BY created_at ASC, id ASC`
	var faculty []models.Faculty
	if err := r.db.SelectContext(ctx, &faculty, query); err != nil {
		return nil, fmt.Errorf("list faculty: %w", err)
	}
	return faculty, nil
}

// ListUnavailability returns every blocked (faculty, day, start) triple.
func (r *FacultyRepository) ListUnavailability(ctx context.Context) ([]models.FacultyUnavailability, error) {
	const query = `SELECT id, faculty_id, day, start_time FROM faculty_unavailability ORDER BY faculty_id ASC, day ASC, start_time ASC`
	var rows []models.FacultyUnavailability
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list faculty unavailability: %w", err)
	}
	return rows, nil
}

// IsUnavailable reports whether the faculty member is blocked at (day, start).
func (r *FacultyRepository) IsUnavailable(ctx context.Context, facultyID, day, start string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM faculty_unavailability WHERE faculty_id = $1 AND day = $2 AND start_time = $3)`
	var blocked bool
	if err := r.db.GetContext(ctx, &blocked, query, facultyID, day, start); err != nil {
		return false, fmt.Errorf("check faculty unavailability: %w", err)
	}
	return blocked, nil
}
