package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ErrEntryNotFound is returned when a timetable entry id does not exist.
var ErrEntryNotFound = errors.New("timetable entry not found")

const timetableDetailSelect = `SELECT t.id, t.course_id, t.section_id, t.faculty_id, t.room_id, t.day, t.start_time, t.created_at,
    c.name AS course_name, s.name AS section_name, f.name AS faculty_name, r.name AS room_name,
    c.year, c.semester, c.department_id
FROM timetable_entries t
JOIN courses c ON c.id = t.course_id
JOIN sections s ON s.id = t.section_id
JOIN classrooms r ON r.id = t.room_id
LEFT JOIN faculty f ON f.id = t.faculty_id`

const timetableOrder = ` ORDER BY CASE t.day WHEN 'Mon' THEN 1 WHEN 'Tue' THEN 2 WHEN 'Wed' THEN 3 WHEN 'Thu' THEN 4 WHEN 'Fri' THEN 5 ELSE 6 END,
    CASE t.start_time WHEN '09' THEN 1 WHEN '11' THEN 2 WHEN '01' THEN 3 WHEN '03' THEN 4 ELSE 5 END, s.name ASC`

// TimetableRepository stores generated timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository builds repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ReplaceAll swaps the stored timetable for entries inside one transaction.
// Nothing changes unless every insert succeeds.
func (r *TimetableRepository) ReplaceAll(ctx context.Context, entries []models.TimetableEntry) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace timetable: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM timetable_entries`); err != nil {
		return fmt.Errorf("clear timetable: %w", err)
	}

	const insert = `INSERT INTO timetable_entries (id, course_id, section_id, faculty_id, room_id, day, start_time, created_at)
VALUES (:id, :course_id, :section_id, :faculty_id, :room_id, :day, :start_time, :created_at)`

	now := time.Now().UTC()
	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, insert, entry); err != nil {
			return fmt.Errorf("insert timetable entry %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit timetable: %w", err)
	}
	return nil
}

// List returns entries joined with their display names.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntryDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.SectionID != "" {
		conditions = append(conditions, fmt.Sprintf("t.section_id = $%d", len(args)+1))
		args = append(args, filter.SectionID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("t.faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("t.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.Day != "" {
		conditions = append(conditions, fmt.Sprintf("t.day = $%d", len(args)+1))
		args = append(args, filter.Day)
	}

	query := timetableDetailSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += timetableOrder

	var entries []models.TimetableEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable: %w", err)
	}
	return entries, nil
}

// FindByID returns one entry with display names.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntryDetail, error) {
	var entry models.TimetableEntryDetail
	if err := r.db.GetContext(ctx, &entry, timetableDetailSelect+" WHERE t.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("find timetable entry: %w", err)
	}
	return &entry, nil
}

// ListAtSlot returns every entry scheduled at (day, start).
func (r *TimetableRepository) ListAtSlot(ctx context.Context, day, start string) ([]models.TimetableEntryDetail, error) {
	var entries []models.TimetableEntryDetail
	query := timetableDetailSelect + " WHERE t.day = $1 AND t.start_time = $2" + timetableOrder
	if err := r.db.SelectContext(ctx, &entries, query, day, start); err != nil {
		return nil, fmt.Errorf("list timetable slot: %w", err)
	}
	return entries, nil
}

// CountSectionDay counts the entries of a section on one day.
func (r *TimetableRepository) CountSectionDay(ctx context.Context, sectionID, day string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM timetable_entries WHERE section_id = $1 AND day = $2`, sectionID, day); err != nil {
		return 0, fmt.Errorf("count section day: %w", err)
	}
	return count, nil
}

// UpdateSlot moves an entry to (day, start).
func (r *TimetableRepository) UpdateSlot(ctx context.Context, id, day, start string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE timetable_entries SET day = $1, start_time = $2 WHERE id = $3`, day, start, id)
	if err != nil {
		return fmt.Errorf("move timetable entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("move timetable entry rows: %w", err)
	}
	if affected == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// FacultyLoad counts entries per faculty member, including idle ones.
func (r *TimetableRepository) FacultyLoad(ctx context.Context) ([]models.FacultyLoad, error) {
	const query = `SELECT f.id AS faculty_id, f.name AS faculty_name, f.max_hours, COUNT(t.id) AS assigned
FROM faculty f LEFT JOIN timetable_entries t ON t.faculty_id = f.id
GROUP BY f.id, f.name, f.max_hours ORDER BY f.name ASC`
	var rows []models.FacultyLoad
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("faculty load: %w", err)
	}
	return rows, nil
}

// RoomUsage counts entries per classroom, including idle ones.
func (r *TimetableRepository) RoomUsage(ctx context.Context) ([]models.RoomUsage, error) {
	const query = `SELECT r.id AS room_id, r.name AS room_name, COUNT(t.id) AS assigned
FROM classrooms r LEFT JOIN timetable_entries t ON t.room_id = r.id
GROUP BY r.id, r.name ORDER BY r.name ASC`
	var rows []models.RoomUsage
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("room usage: %w", err)
	}
	return rows, nil
}
