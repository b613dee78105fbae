// Package scheduler turns a snapshot of courses, faculty, rooms and sections
// into a boolean constraint model and reads solved models back as timetable
// entries.
package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/cpsat"
)

// ErrEmptyInput is returned by Build when a required collection is empty.
var ErrEmptyInput = errors.New("courses, faculty, rooms and sections are required")

// Constraint kinds recorded by the builder.
const (
	KindFixed           = "fixed"
	KindUnavailable     = "unavailable"
	KindWeeklyHours     = "weekly_hours"
	KindRoom            = "room"
	KindFaculty         = "faculty"
	KindSection         = "section"
	KindDailyCap        = "daily_cap"
	KindSectionCapacity = "section_capacity"
	KindFacultyCapacity = "faculty_capacity"
	KindGlobalCapacity  = "global_capacity"
	KindSlotCapacity    = "slot_capacity"
)

// VarKey addresses one decision variable by arena indices.
type VarKey struct {
	Course  int
	Section int
	Slot    int
	Room    int
}

type pairKey struct {
	Course  int
	Section int
}

// Pair is a (course, relevant section) combination owning a contiguous block
// of NumSlots*rooms variables laid out slot-major.
type Pair struct {
	Course  int
	Section int
	First   cpsat.BoolVar
	Hours   int
}

// Model is the built constraint model together with its arena.
type Model struct {
	CP *cpsat.Model

	snap     *Snapshot
	rooms    int
	pairs    []Pair
	pairIdx  map[pairKey]int
	kinds    map[string]int
	warnings []string
}

// Build constructs the variables and all hard constraints for the snapshot.
// It reads nothing outside the snapshot.
func Build(snap *Snapshot) (*Model, error) {
	if snap == nil {
		return nil, ErrEmptyInput
	}
	if missing := snap.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrEmptyInput, strings.Join(missing, ", "))
	}

	m := &Model{
		CP:      cpsat.NewModel(),
		snap:    snap,
		rooms:   len(snap.Rooms),
		pairIdx: make(map[pairKey]int),
		kinds:   make(map[string]int),
	}
	m.createVariables()
	m.addFixed()
	m.addUnavailability()
	m.addWeeklyHours()
	m.addRoomExclusivity()
	m.addFacultyExclusivity()
	m.addSectionExclusivity()
	m.addDailyCaps()
	m.addCapacityBounds()
	return m, nil
}

func (m *Model) createVariables() {
	for ci, course := range m.snap.Courses {
		hours := course.HoursPerWeek
		if hours < 0 {
			m.warn("course %s has negative hours_per_week %d, treated as 0", course.ID, hours)
			hours = 0
		}
		if course.FacultyID != nil && *course.FacultyID != "" {
			if _, ok := m.snap.FacultyByID(*course.FacultyID); !ok {
				m.warn("course %s references unknown faculty %s", course.ID, *course.FacultyID)
			}
		}
		sections := m.snap.SectionsFor(course.Year, course.DepartmentID)
		if len(sections) == 0 {
			m.warn("course %s has no sections for year %d department %s", course.ID, course.Year, course.DepartmentID)
			continue
		}
		for _, si := range sections {
			p := Pair{Course: ci, Section: si, Hours: hours, First: cpsat.BoolVar(m.CP.NumVars())}
			for slot := 0; slot < NumSlots; slot++ {
				for r := 0; r < m.rooms; r++ {
					m.CP.NewBoolVar(fmt.Sprintf("c%d_s%d_%s_r%d", ci, si, SlotAt(slot).Key(), r))
				}
			}
			m.pairIdx[pairKey{Course: ci, Section: si}] = len(m.pairs)
			m.pairs = append(m.pairs, p)
		}
	}
}

func (m *Model) at(p Pair, slot, room int) cpsat.BoolVar {
	return p.First + cpsat.BoolVar(slot*m.rooms+room)
}

func (m *Model) block(p Pair) []cpsat.BoolVar {
	size := NumSlots * m.rooms
	vars := make([]cpsat.BoolVar, size)
	for i := range vars {
		vars[i] = p.First + cpsat.BoolVar(i)
	}
	return vars
}

func (m *Model) addFixed() {
	for ci, course := range m.snap.Courses {
		if !course.IsFixed {
			continue
		}
		if !course.HasFixedTriple() {
			m.warn("fixed course %s has an incomplete fixed day/slot/room, placement skipped", course.ID)
			continue
		}
		slot, ok := SlotIndex(*course.FixedDay, *course.FixedSlot)
		if !ok {
			m.warn("fixed course %s has slot %s_%s outside the grid, placement skipped", course.ID, *course.FixedDay, *course.FixedSlot)
			continue
		}
		room, ok := m.snap.RoomIndex(*course.FixedRoomID)
		if !ok {
			m.warn("fixed course %s references unknown room %s, placement skipped", course.ID, *course.FixedRoomID)
			continue
		}
		for _, p := range m.pairsOfCourse(ci) {
			m.CP.Fix(m.at(p, slot, room), true)
			m.kinds[KindFixed]++
		}
	}
}

func (m *Model) addUnavailability() {
	for ci, course := range m.snap.Courses {
		facultyID := courseFaculty(course)
		if facultyID == "" {
			continue
		}
		blocked := m.snap.BlockedSlots(facultyID)
		if len(blocked) == 0 {
			continue
		}
		for _, p := range m.pairsOfCourse(ci) {
			for _, slot := range blocked {
				for r := 0; r < m.rooms; r++ {
					m.CP.Fix(m.at(p, slot, r), false)
				}
				m.kinds[KindUnavailable]++
			}
		}
	}
}

func (m *Model) addWeeklyHours() {
	for _, p := range m.pairs {
		m.CP.AddExactly(fmt.Sprintf("hours[%s/%s]", m.courseID(p), m.sectionID(p)), m.block(p), p.Hours)
		m.kinds[KindWeeklyHours]++
	}
}

func (m *Model) addRoomExclusivity() {
	for slot := 0; slot < NumSlots; slot++ {
		for r := 0; r < m.rooms; r++ {
			vars := make([]cpsat.BoolVar, 0, len(m.pairs))
			for _, p := range m.pairs {
				vars = append(vars, m.at(p, slot, r))
			}
			if len(vars) <= 1 {
				continue
			}
			m.CP.AddAtMost(fmt.Sprintf("room[%s@%s]", m.snap.Rooms[r].ID, SlotAt(slot).Key()), vars, 1)
			m.kinds[KindRoom]++
		}
	}
}

func (m *Model) addFacultyExclusivity() {
	for _, group := range m.facultyGroups() {
		for slot := 0; slot < NumSlots; slot++ {
			var vars []cpsat.BoolVar
			for _, p := range group.pairs {
				for r := 0; r < m.rooms; r++ {
					vars = append(vars, m.at(p, slot, r))
				}
			}
			if len(vars) <= 1 {
				continue
			}
			m.CP.AddAtMost(fmt.Sprintf("faculty[%s@%s]", group.facultyID, SlotAt(slot).Key()), vars, 1)
			m.kinds[KindFaculty]++
		}
	}
}

// addSectionExclusivity walks every course of the section's cohort, not only
// the pairs already attached to the section.
func (m *Model) addSectionExclusivity() {
	for si, section := range m.snap.Sections {
		pairs := m.sectionPairs(si, section)
		for slot := 0; slot < NumSlots; slot++ {
			var vars []cpsat.BoolVar
			for _, p := range pairs {
				for r := 0; r < m.rooms; r++ {
					vars = append(vars, m.at(p, slot, r))
				}
			}
			if len(vars) <= 1 {
				continue
			}
			m.CP.AddAtMost(fmt.Sprintf("section[%s@%s]", section.ID, SlotAt(slot).Key()), vars, 1)
			m.kinds[KindSection]++
		}
	}
}

func (m *Model) addDailyCaps() {
	for si, section := range m.snap.Sections {
		pairs := m.sectionPairs(si, section)
		if len(pairs) == 0 {
			continue
		}
		limit := section.DailyCap()
		for d, day := range Days() {
			var vars []cpsat.BoolVar
			for _, p := range pairs {
				for period := 0; period < SlotsPerDay; period++ {
					slot := d*SlotsPerDay + period
					for r := 0; r < m.rooms; r++ {
						vars = append(vars, m.at(p, slot, r))
					}
				}
			}
			m.CP.AddAtMost(fmt.Sprintf("daily[%s@%s]", section.ID, day), vars, limit)
			m.kinds[KindDailyCap]++
		}
	}
}

// addCapacityBounds adds weekly totals implied by the per-slot constraints.
// They leave the feasible set unchanged and expose overloads before search.
func (m *Model) addCapacityBounds() {
	for si, section := range m.snap.Sections {
		pairs := m.sectionPairs(si, section)
		if len(pairs) == 0 {
			continue
		}
		perDay := section.DailyCap()
		if perDay > SlotsPerDay {
			perDay = SlotsPerDay
		}
		m.CP.AddAtMost(fmt.Sprintf("section-week[%s]", section.ID), m.blocks(pairs), perDay*NumDays)
		m.kinds[KindSectionCapacity]++
	}
	for _, group := range m.facultyGroups() {
		open := NumSlots - len(m.snap.BlockedSlots(group.facultyID))
		m.CP.AddAtMost(fmt.Sprintf("faculty-week[%s]", group.facultyID), m.blocks(group.pairs), open)
		m.kinds[KindFacultyCapacity]++
	}
	if len(m.pairs) > m.rooms {
		for slot := 0; slot < NumSlots; slot++ {
			vars := make([]cpsat.BoolVar, 0, len(m.pairs)*m.rooms)
			for _, p := range m.pairs {
				for r := 0; r < m.rooms; r++ {
					vars = append(vars, m.at(p, slot, r))
				}
			}
			m.CP.AddAtMost(fmt.Sprintf("slot[%s]", SlotAt(slot).Key()), vars, m.rooms)
			m.kinds[KindSlotCapacity]++
		}
	}
	if len(m.pairs) > 0 {
		m.CP.AddAtMost("week[all rooms]", m.blocks(m.pairs), NumSlots*m.rooms)
		m.kinds[KindGlobalCapacity]++
	}
}

func (m *Model) blocks(pairs []Pair) []cpsat.BoolVar {
	vars := make([]cpsat.BoolVar, 0, len(pairs)*NumSlots*m.rooms)
	for _, p := range pairs {
		vars = append(vars, m.block(p)...)
	}
	return vars
}

type facultyGroup struct {
	facultyID string
	pairs     []Pair
}

// facultyGroups groups pairs by the course faculty id in first-seen order.
// Ids missing from the faculty table still constrain their courses.
func (m *Model) facultyGroups() []facultyGroup {
	var groups []facultyGroup
	index := make(map[string]int)
	for _, p := range m.pairs {
		id := courseFaculty(m.snap.Courses[p.Course])
		if id == "" {
			continue
		}
		gi, ok := index[id]
		if !ok {
			gi = len(groups)
			index[id] = gi
			groups = append(groups, facultyGroup{facultyID: id})
		}
		groups[gi].pairs = append(groups[gi].pairs, p)
	}
	return groups
}

func (m *Model) sectionPairs(si int, section models.Section) []Pair {
	var pairs []Pair
	for ci, course := range m.snap.Courses {
		if course.Year != section.Year || course.DepartmentID != section.DepartmentID {
			continue
		}
		if idx, ok := m.pairIdx[pairKey{Course: ci, Section: si}]; ok {
			pairs = append(pairs, m.pairs[idx])
		}
	}
	return pairs
}

func (m *Model) pairsOfCourse(ci int) []Pair {
	var pairs []Pair
	for _, si := range m.snap.SectionsFor(m.snap.Courses[ci].Year, m.snap.Courses[ci].DepartmentID) {
		if idx, ok := m.pairIdx[pairKey{Course: ci, Section: si}]; ok {
			pairs = append(pairs, m.pairs[idx])
		}
	}
	return pairs
}

func (m *Model) warn(format string, args ...interface{}) {
	m.warnings = append(m.warnings, fmt.Sprintf(format, args...))
}

func (m *Model) courseID(p Pair) string  { return m.snap.Courses[p.Course].ID }
func (m *Model) sectionID(p Pair) string { return m.snap.Sections[p.Section].ID }

// Var returns the decision variable addressed by key.
func (m *Model) Var(key VarKey) (cpsat.BoolVar, bool) {
	idx, ok := m.pairIdx[pairKey{Course: key.Course, Section: key.Section}]
	if !ok || key.Slot < 0 || key.Slot >= NumSlots || key.Room < 0 || key.Room >= m.rooms {
		return 0, false
	}
	return m.at(m.pairs[idx], key.Slot, key.Room), true
}

// Pairs returns the (course, section) pairs in creation order.
func (m *Model) Pairs() []Pair {
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// Warnings lists input problems the builder tolerated.
func (m *Model) Warnings() []string {
	return m.warnings
}

// Snapshot returns the input the model was built from.
func (m *Model) Snapshot() *Snapshot {
	return m.snap
}

// ConstraintCounts reports how many constraints or fixings of each kind were added.
func (m *Model) ConstraintCounts() map[string]int {
	out := make(map[string]int, len(m.kinds))
	for k, v := range m.kinds {
		out[k] = v
	}
	return out
}

func courseFaculty(c models.Course) string {
	if c.FacultyID == nil {
		return ""
	}
	return *c.FacultyID
}
