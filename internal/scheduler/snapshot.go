package scheduler

import "github.com/noah-isme/sma-timetable-api/internal/models"

type cohortKey struct {
	Year         int
	DepartmentID string
}

// Snapshot is the read-only input of one generation run.
type Snapshot struct {
	Courses        []models.Course
	Faculty        []models.Faculty
	Rooms          []models.Classroom
	Sections       []models.Section
	Unavailability []models.FacultyUnavailability

	cohorts   map[cohortKey][]int
	facultyBy map[string]int
	roomBy    map[string]int
	courseBy  map[string]int
	section   map[string]int
	blocked   map[string]map[int]struct{}
}

// NewSnapshot indexes the collections once for the run.
func NewSnapshot(courses []models.Course, faculty []models.Faculty, rooms []models.Classroom, sections []models.Section, unavailability []models.FacultyUnavailability) *Snapshot {
	s := &Snapshot{
		Courses:        courses,
		Faculty:        faculty,
		Rooms:          rooms,
		Sections:       sections,
		Unavailability: unavailability,
		cohorts:        make(map[cohortKey][]int),
		facultyBy:      make(map[string]int, len(faculty)),
		roomBy:         make(map[string]int, len(rooms)),
		courseBy:       make(map[string]int, len(courses)),
		section:        make(map[string]int, len(sections)),
		blocked:        make(map[string]map[int]struct{}),
	}
	for i, sec := range sections {
		key := cohortKey{Year: sec.Year, DepartmentID: sec.DepartmentID}
		s.cohorts[key] = append(s.cohorts[key], i)
		s.section[sec.ID] = i
	}
	for i, f := range faculty {
		s.facultyBy[f.ID] = i
	}
	for i, r := range rooms {
		s.roomBy[r.ID] = i
	}
	for i, c := range courses {
		s.courseBy[c.ID] = i
	}
	for _, u := range unavailability {
		idx, ok := SlotIndex(u.Day, u.StartTime)
		if !ok {
			continue
		}
		set, exists := s.blocked[u.FacultyID]
		if !exists {
			set = make(map[int]struct{})
			s.blocked[u.FacultyID] = set
		}
		set[idx] = struct{}{}
	}
	return s
}

// Missing lists the empty required collections.
func (s *Snapshot) Missing() []string {
	var missing []string
	if len(s.Courses) == 0 {
		missing = append(missing, "courses")
	}
	if len(s.Faculty) == 0 {
		missing = append(missing, "faculty")
	}
	if len(s.Rooms) == 0 {
		missing = append(missing, "rooms")
	}
	if len(s.Sections) == 0 {
		missing = append(missing, "sections")
	}
	return missing
}

// SectionsFor returns the indices of sections in the given cohort, in input order.
func (s *Snapshot) SectionsFor(year int, departmentID string) []int {
	return s.cohorts[cohortKey{Year: year, DepartmentID: departmentID}]
}

// RoomIndex resolves a room id.
func (s *Snapshot) RoomIndex(id string) (int, bool) {
	i, ok := s.roomBy[id]
	return i, ok
}

// FacultyByID resolves a faculty member.
func (s *Snapshot) FacultyByID(id string) (models.Faculty, bool) {
	i, ok := s.facultyBy[id]
	if !ok {
		return models.Faculty{}, false
	}
	return s.Faculty[i], true
}

// CourseByID resolves a course.
func (s *Snapshot) CourseByID(id string) (models.Course, bool) {
	i, ok := s.courseBy[id]
	if !ok {
		return models.Course{}, false
	}
	return s.Courses[i], true
}

// SectionByID resolves a section.
func (s *Snapshot) SectionByID(id string) (models.Section, bool) {
	i, ok := s.section[id]
	if !ok {
		return models.Section{}, false
	}
	return s.Sections[i], true
}

// RoomByID resolves a classroom.
func (s *Snapshot) RoomByID(id string) (models.Classroom, bool) {
	i, ok := s.roomBy[id]
	if !ok {
		return models.Classroom{}, false
	}
	return s.Rooms[i], true
}

// Unavailable reports whether the faculty member is blocked at the slot.
func (s *Snapshot) Unavailable(facultyID string, slot int) bool {
	_, blocked := s.blocked[facultyID][slot]
	return blocked
}

// BlockedSlots returns the blocked slot indices of a faculty member.
func (s *Snapshot) BlockedSlots(facultyID string) []int {
	set := s.blocked[facultyID]
	out := make([]int, 0, len(set))
	for idx := 0; idx < NumSlots; idx++ {
		if _, ok := set[idx]; ok {
			out = append(out, idx)
		}
	}
	return out
}
