package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ErrSectionNotFound is returned when a section id does not exist.
var ErrSectionNotFound = errors.New("section not found")

// SectionRepository reads sections.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository builds repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// ListAll returns every section with its stored daily cap.
func (r *SectionRepository) ListAll(ctx context.Context) ([]models.Section, error) {
	const query = `SELECT id, name, year, department_id, max_hours_per_day, created_at, updated_at
FROM sections ORDER BY year ASC, department_id ASC, name ASC`
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query); err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	return sections, nil
}

// FindByID returns one section.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, name, year, department_id, max_hours_per_day, created_at, updated_at
FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSectionNotFound
		}
		return nil, fmt.Errorf("find section: %w", err)
	}
	return &section, nil
}
