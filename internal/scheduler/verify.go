package scheduler

import (
	"errors"
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ErrInvariantViolated wraps every failure reported by Verify.
var ErrInvariantViolated = errors.New("timetable invariant violated")

type slotRef struct {
	id   string
	slot int
}

type dayRef struct {
	section string
	day     int
}

// Verify checks a materialized timetable against every hard rule by brute
// force. It returns nil or an error wrapping ErrInvariantViolated.
func Verify(snap *Snapshot, entries []models.TimetableEntry) error {
	var problems []error
	fail := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvariantViolated}, args...)...))
	}

	rooms := make(map[slotRef]int)
	faculty := make(map[slotRef]int)
	sections := make(map[slotRef]int)
	daily := make(map[dayRef]int)
	counts := make(map[pairKey]int)
	placed := make(map[string]struct{})

	for i, e := range entries {
		slot, ok := SlotIndex(e.Day, e.StartTime)
		if !ok {
			fail("entry %d has slot %s_%s outside the grid", i, e.Day, e.StartTime)
			continue
		}
		key := SlotAt(slot).Key()
		if prev, dup := rooms[slotRef{e.RoomID, slot}]; dup {
			fail("room %s double-booked at %s (entries %d and %d)", e.RoomID, key, prev, i)
		}
		rooms[slotRef{e.RoomID, slot}] = i

		if e.FacultyID != nil && *e.FacultyID != "" {
			ref := slotRef{*e.FacultyID, slot}
			if prev, dup := faculty[ref]; dup {
				fail("faculty %s double-booked at %s (entries %d and %d)", *e.FacultyID, key, prev, i)
			}
			faculty[ref] = i
			if snap.Unavailable(*e.FacultyID, slot) {
				fail("faculty %s scheduled at unavailable slot %s", *e.FacultyID, key)
			}
		}

		if prev, dup := sections[slotRef{e.SectionID, slot}]; dup {
			fail("section %s double-booked at %s (entries %d and %d)", e.SectionID, key, prev, i)
		}
		sections[slotRef{e.SectionID, slot}] = i
		daily[dayRef{e.SectionID, slot / SlotsPerDay}]++

		ci, cok := snap.courseBy[e.CourseID]
		si, sok := snap.section[e.SectionID]
		if !cok || !sok {
			fail("entry %d references unknown course %s or section %s", i, e.CourseID, e.SectionID)
			continue
		}
		counts[pairKey{Course: ci, Section: si}]++
		placed[fmt.Sprintf("%s|%s|%d|%s", e.CourseID, e.SectionID, slot, e.RoomID)] = struct{}{}
	}

	for ref, n := range daily {
		section, _ := snap.SectionByID(ref.section)
		if n > section.DailyCap() {
			fail("section %s has %d classes on %s, cap %d", ref.section, n, Days()[ref.day], section.DailyCap())
		}
	}

	for ci, course := range snap.Courses {
		want := course.HoursPerWeek
		if want < 0 {
			want = 0
		}
		for _, si := range snap.SectionsFor(course.Year, course.DepartmentID) {
			if got := counts[pairKey{Course: ci, Section: si}]; got != want {
				fail("course %s section %s has %d entries, want %d", course.ID, snap.Sections[si].ID, got, want)
			}
			if !course.HasFixedTriple() {
				continue
			}
			slot, ok := SlotIndex(*course.FixedDay, *course.FixedSlot)
			if _, known := snap.RoomIndex(*course.FixedRoomID); !ok || !known {
				continue
			}
			if _, found := placed[fmt.Sprintf("%s|%s|%d|%s", course.ID, snap.Sections[si].ID, slot, *course.FixedRoomID)]; !found {
				fail("fixed course %s missing at %s in room %s for section %s", course.ID, SlotAt(slot).Key(), *course.FixedRoomID, snap.Sections[si].ID)
			}
		}
	}

	return errors.Join(problems...)
}
