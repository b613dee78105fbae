package scheduler

import (
	"strconv"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/cpsat"
)

// NoFaculty is written in exports for courses without a faculty member.
const NoFaculty = "N/A"

// ExportHeaders is the column order of the tabular export.
var ExportHeaders = []string{"course", "section", "faculty", "room", "day", "start_time", "year", "semester"}

// ExportRow is one line of the tabular export.
type ExportRow struct {
	Course    string
	Section   string
	Faculty   string
	Room      string
	Day       string
	StartTime string
	Year      int
	Semester  int
}

// Record returns the row in ExportHeaders order.
func (r ExportRow) Record() []string {
	return []string{r.Course, r.Section, r.Faculty, r.Room, r.Day, r.StartTime, strconv.Itoa(r.Year), strconv.Itoa(r.Semester)}
}

// Map returns the row keyed by ExportHeaders.
func (r ExportRow) Map() map[string]string {
	record := r.Record()
	out := make(map[string]string, len(ExportHeaders))
	for i, h := range ExportHeaders {
		out[h] = record[i]
	}
	return out
}

// Materialize emits one entry per variable set true in resp, in arena order.
func (m *Model) Materialize(resp *cpsat.Response) []models.TimetableEntry {
	if resp == nil || !resp.Status.HasSolution() {
		return nil
	}
	var entries []models.TimetableEntry
	for _, p := range m.pairs {
		course := m.snap.Courses[p.Course]
		for slot := 0; slot < NumSlots; slot++ {
			for r := 0; r < m.rooms; r++ {
				if !resp.Value(m.at(p, slot, r)) {
					continue
				}
				s := SlotAt(slot)
				entries = append(entries, models.TimetableEntry{
					CourseID:  course.ID,
					SectionID: m.sectionID(p),
					FacultyID: copyString(course.FacultyID),
					RoomID:    m.snap.Rooms[r].ID,
					Day:       s.Day,
					StartTime: s.Start,
				})
			}
		}
	}
	return entries
}

// ExportRows resolves entry references to the names used in exports.
func ExportRows(snap *Snapshot, entries []models.TimetableEntry) []ExportRow {
	rows := make([]ExportRow, 0, len(entries))
	for _, e := range entries {
		row := ExportRow{Course: e.CourseID, Section: e.SectionID, Faculty: NoFaculty, Room: e.RoomID, Day: e.Day, StartTime: e.StartTime}
		if c, ok := snap.CourseByID(e.CourseID); ok {
			row.Course = c.Name
			row.Year = c.Year
			row.Semester = c.Semester
		}
		if s, ok := snap.SectionByID(e.SectionID); ok {
			row.Section = s.Name
		}
		if e.FacultyID != nil {
			if f, ok := snap.FacultyByID(*e.FacultyID); ok {
				row.Faculty = f.Name
			}
		}
		if r, ok := snap.RoomByID(e.RoomID); ok {
			row.Room = r.Name
		}
		rows = append(rows, row)
	}
	return rows
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
