package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/cpsat"
)

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

type fixture struct {
	courses        []models.Course
	faculty        []models.Faculty
	rooms          []models.Classroom
	sections       []models.Section
	unavailability []models.FacultyUnavailability
}

func baseFixture() *fixture {
	return &fixture{
		faculty:  []models.Faculty{{ID: "f1", Name: "Ada", DepartmentID: "cs", MaxHours: 12}},
		rooms:    []models.Classroom{{ID: "r1", Name: "Room 101", Capacity: 40}},
		sections: []models.Section{{ID: "s1", Name: "CS-1A", Year: 1, DepartmentID: "cs", MaxHoursPerDay: intPtr(5)}},
	}
}

func (f *fixture) course(id string, hours int, faculty string) *models.Course {
	c := models.Course{ID: id, Name: "Course " + id, Year: 1, Semester: 1, DepartmentID: "cs", HoursPerWeek: hours}
	if faculty != "" {
		c.FacultyID = strPtr(faculty)
	}
	f.courses = append(f.courses, c)
	return &f.courses[len(f.courses)-1]
}

func (f *fixture) snapshot() *Snapshot {
	return NewSnapshot(f.courses, f.faculty, f.rooms, f.sections, f.unavailability)
}

func solve(t *testing.T, snap *Snapshot) (*Model, *cpsat.Response, []models.TimetableEntry) {
	t.Helper()
	model, err := Build(snap)
	require.NoError(t, err)
	resp, err := cpsat.NewSolver(cpsat.Parameters{MaxTime: 10 * time.Second}).Solve(context.Background(), model.CP)
	require.NoError(t, err)
	return model, resp, model.Materialize(resp)
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	f := baseFixture()
	_, err := Build(f.snapshot())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyInput))
	assert.Contains(t, err.Error(), "courses")

	_, err = Build(nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestSingleCourseScenario(t *testing.T) {
	f := baseFixture()
	f.course("c1", 3, "f1")
	snap := f.snapshot()

	_, resp, entries := solve(t, snap)
	require.True(t, resp.Status.HasSolution())
	require.Len(t, entries, 3)
	require.NoError(t, Verify(snap, entries))

	slots := map[string]bool{}
	perDay := map[string]int{}
	for _, e := range entries {
		assert.Equal(t, "s1", e.SectionID)
		assert.Equal(t, "r1", e.RoomID)
		require.NotNil(t, e.FacultyID)
		assert.Equal(t, "f1", *e.FacultyID)
		slots[e.Day+"_"+e.StartTime] = true
		perDay[e.Day]++
	}
	assert.Len(t, slots, 3)
	for _, n := range perDay {
		assert.LessOrEqual(t, n, 5)
	}
}

func TestSharedFacultyScenario(t *testing.T) {
	f := baseFixture()
	f.rooms = append(f.rooms, models.Classroom{ID: "r2", Name: "Room 102"})
	f.course("c1", 3, "f1")
	f.course("c2", 3, "f1")
	snap := f.snapshot()

	_, resp, entries := solve(t, snap)
	require.True(t, resp.Status.HasSolution())
	require.Len(t, entries, 6)
	require.NoError(t, Verify(snap, entries))

	busy := map[string]bool{}
	for _, e := range entries {
		key := e.Day + "_" + e.StartTime
		assert.False(t, busy[key], "faculty collision at %s", key)
		busy[key] = true
	}
}

func TestFacultyOverloadIsInfeasibleAtRoot(t *testing.T) {
	f := baseFixture()
	f.rooms = append(f.rooms, models.Classroom{ID: "r2"}, models.Classroom{ID: "r3"})
	f.sections = append(f.sections, models.Section{ID: "s2", Name: "CS-1B", Year: 1, DepartmentID: "cs", MaxHoursPerDay: intPtr(5)})
	f.course("c1", 6, "f1")
	f.course("c2", 5, "f1")

	_, resp, entries := solve(t, f.snapshot())
	assert.Equal(t, cpsat.StatusInfeasible, resp.Status)
	assert.Contains(t, resp.Reason, "faculty-week[f1]")
	assert.Empty(t, entries)
}

func TestDailyCapLimitsWeeklyLoad(t *testing.T) {
	f := baseFixture()
	f.sections[0].MaxHoursPerDay = intPtr(1)
	f.course("c1", 5, "f1")
	snap := f.snapshot()

	_, resp, entries := solve(t, snap)
	require.True(t, resp.Status.HasSolution())
	require.NoError(t, Verify(snap, entries))
	days := map[string]int{}
	for _, e := range entries {
		days[e.Day]++
	}
	assert.Len(t, days, 5)

	f.courses[0].HoursPerWeek = 6
	_, resp, _ = solve(t, f.snapshot())
	assert.Equal(t, cpsat.StatusInfeasible, resp.Status)
}

func TestStoredZeroDailyCapIsHonoured(t *testing.T) {
	f := baseFixture()
	f.sections[0].MaxHoursPerDay = intPtr(0)
	f.course("c1", 1, "f1")

	_, resp, entries := solve(t, f.snapshot())
	assert.Equal(t, cpsat.StatusInfeasible, resp.Status)
	assert.Empty(t, entries)

	f.sections[0].MaxHoursPerDay = nil
	_, resp, entries = solve(t, f.snapshot())
	require.True(t, resp.Status.HasSolution())
	assert.Len(t, entries, 1)
}

func TestFixedCourseHonoured(t *testing.T) {
	f := baseFixture()
	f.rooms = append(f.rooms, models.Classroom{ID: "r2", Name: "Lab"})
	c := f.course("c1", 2, "f1")
	c.IsFixed = true
	c.FixedDay = strPtr("Tue")
	c.FixedSlot = strPtr("11")
	c.FixedRoomID = strPtr("r2")
	f.faculty = append(f.faculty, models.Faculty{ID: "f2", Name: "Grace"})
	f.course("c2", 2, "f2")
	snap := f.snapshot()

	model, resp, entries := solve(t, snap)
	require.True(t, resp.Status.HasSolution())
	require.NoError(t, Verify(snap, entries))
	assert.Equal(t, 1, model.ConstraintCounts()[KindFixed])

	found := false
	for _, e := range entries {
		if e.CourseID == "c1" && e.Day == "Tue" && e.StartTime == "11" && e.RoomID == "r2" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestFixedCourseSharedByCohortConflicts(t *testing.T) {
	// Both sections are pinned to the same room and faculty slot.
	f := baseFixture()
	f.sections = append(f.sections, models.Section{ID: "s2", Name: "CS-1B", Year: 1, DepartmentID: "cs"})
	c := f.course("c1", 1, "f1")
	c.IsFixed = true
	c.FixedDay = strPtr("Mon")
	c.FixedSlot = strPtr("09")
	c.FixedRoomID = strPtr("r1")

	model, resp, _ := solve(t, f.snapshot())
	assert.Equal(t, 2, model.ConstraintCounts()[KindFixed])
	assert.Equal(t, cpsat.StatusInfeasible, resp.Status)
}

func TestInvalidFixedTripleIsSkipped(t *testing.T) {
	f := baseFixture()
	c := f.course("c1", 1, "f1")
	c.IsFixed = true
	c.FixedDay = strPtr("Sat")
	c.FixedSlot = strPtr("09")
	c.FixedRoomID = strPtr("r1")
	c2 := f.course("c2", 1, "")
	c2.IsFixed = true
	c2.FixedDay = strPtr("Mon")
	c2.FixedSlot = strPtr("09")
	c2.FixedRoomID = strPtr("missing")

	model, err := Build(f.snapshot())
	require.NoError(t, err)
	assert.Zero(t, model.ConstraintCounts()[KindFixed])
	require.Len(t, model.Warnings(), 2)
	assert.Contains(t, model.Warnings()[0], "outside the grid")
	assert.Contains(t, model.Warnings()[1], "unknown room")
}

func TestUnavailabilityExcluded(t *testing.T) {
	f := baseFixture()
	f.course("c1", 15, "f1")
	for _, day := range Days() {
		f.unavailability = append(f.unavailability, models.FacultyUnavailability{FacultyID: "f1", Day: day, StartTime: "09"})
	}
	f.sections[0].MaxHoursPerDay = intPtr(4)
	snap := f.snapshot()

	_, resp, entries := solve(t, snap)
	require.True(t, resp.Status.HasSolution())
	require.Len(t, entries, 15)
	require.NoError(t, Verify(snap, entries))
	for _, e := range entries {
		assert.NotEqual(t, "09", e.StartTime)
	}

	f.courses[0].HoursPerWeek = 16
	_, resp, _ = solve(t, f.snapshot())
	assert.Equal(t, cpsat.StatusInfeasible, resp.Status)
}

func TestZeroHourCourseProducesNoEntries(t *testing.T) {
	f := baseFixture()
	f.course("c1", 0, "f1")
	f.course("c2", 2, "")
	snap := f.snapshot()

	_, resp, entries := solve(t, snap)
	require.True(t, resp.Status.HasSolution())
	require.NoError(t, Verify(snap, entries))
	for _, e := range entries {
		assert.Equal(t, "c2", e.CourseID)
		assert.Nil(t, e.FacultyID)
	}
	assert.Len(t, entries, 2)
}

func TestCohortSectionsBothScheduled(t *testing.T) {
	f := baseFixture()
	f.rooms = append(f.rooms, models.Classroom{ID: "r2"})
	f.sections = append(f.sections,
		models.Section{ID: "s2", Name: "CS-1B", Year: 1, DepartmentID: "cs"},
		models.Section{ID: "s3", Name: "EE-1A", Year: 1, DepartmentID: "ee"},
	)
	f.course("c1", 4, "f1")
	snap := f.snapshot()

	model, resp, entries := solve(t, snap)
	require.True(t, resp.Status.HasSolution())
	require.NoError(t, Verify(snap, entries))
	assert.Len(t, model.Pairs(), 2)
	perSection := map[string]int{}
	for _, e := range entries {
		perSection[e.SectionID]++
	}
	assert.Equal(t, map[string]int{"s1": 4, "s2": 4}, perSection)
}

// nearCapacityFixture fills 128 of the 140 room-slots: two departments with
// two years each, two sections per cohort, four 4-hour courses per cohort and
// every faculty member teaching one course in each year of a department.
func nearCapacityFixture() *fixture {
	f := &fixture{}
	for r := 1; r <= 7; r++ {
		f.rooms = append(f.rooms, models.Classroom{ID: fmt.Sprintf("r%d", r), Capacity: 40})
	}
	for _, dept := range []string{"cs", "ee"} {
		for k := 1; k <= 4; k++ {
			f.faculty = append(f.faculty, models.Faculty{ID: fmt.Sprintf("%s-f%d", dept, k), DepartmentID: dept, MaxHours: 20})
		}
		for year := 1; year <= 2; year++ {
			for _, letter := range []string{"A", "B"} {
				f.sections = append(f.sections, models.Section{
					ID:             fmt.Sprintf("%s-%d%s", dept, year, letter),
					Year:           year,
					DepartmentID:   dept,
					MaxHoursPerDay: intPtr(5),
				})
			}
			for k := 1; k <= 4; k++ {
				c := f.course(fmt.Sprintf("%s-%d-c%d", dept, year, k), 4, fmt.Sprintf("%s-f%d", dept, k))
				c.Year = year
				c.DepartmentID = dept
			}
		}
	}
	return f
}

func TestNearCapacityInstanceIsSolved(t *testing.T) {
	snap := nearCapacityFixture().snapshot()
	model, err := Build(snap)
	require.NoError(t, err)
	require.Len(t, model.Pairs(), 32)

	resp, err := cpsat.NewSolver(cpsat.Parameters{MaxTime: 60 * time.Second}).Solve(context.Background(), model.CP)
	require.NoError(t, err)
	require.Equal(t, cpsat.StatusOptimal, resp.Status, resp.Reason)

	entries := model.Materialize(resp)
	assert.Len(t, entries, 128)
	require.NoError(t, Verify(snap, entries))
	assert.Equal(t, NumSlots, model.ConstraintCounts()[KindSlotCapacity])
}

func TestNegativeHoursAndUnknownFacultyWarn(t *testing.T) {
	f := baseFixture()
	f.course("c1", -2, "ghost")

	model, err := Build(f.snapshot())
	require.NoError(t, err)
	assert.Len(t, model.Warnings(), 2)
	assert.Equal(t, 0, model.Pairs()[0].Hours)
	assert.Equal(t, 1, model.ConstraintCounts()[KindFacultyCapacity])
}

func TestVarAddressing(t *testing.T) {
	f := baseFixture()
	f.rooms = append(f.rooms, models.Classroom{ID: "r2"})
	f.course("c1", 1, "f1")
	f.course("c2", 1, "f1")
	model, err := Build(f.snapshot())
	require.NoError(t, err)

	seen := map[cpsat.BoolVar]bool{}
	for course := 0; course < 2; course++ {
		for slot := 0; slot < NumSlots; slot++ {
			for room := 0; room < 2; room++ {
				v, ok := model.Var(VarKey{Course: course, Section: 0, Slot: slot, Room: room})
				require.True(t, ok)
				assert.False(t, seen[v])
				seen[v] = true
			}
		}
	}
	assert.Len(t, seen, model.CP.NumVars())

	_, ok := model.Var(VarKey{Course: 0, Section: 0, Slot: NumSlots, Room: 0})
	assert.False(t, ok)
	_, ok = model.Var(VarKey{Course: 5, Section: 0})
	assert.False(t, ok)
}

func TestBuildIsDeterministic(t *testing.T) {
	f := baseFixture()
	f.course("c1", 3, "f1")
	f.course("c2", 2, "")
	a, err := Build(f.snapshot())
	require.NoError(t, err)
	b, err := Build(f.snapshot())
	require.NoError(t, err)

	assert.Equal(t, a.Describe(), b.Describe())
	desc := a.Describe()
	assert.Equal(t, 2*NumSlots, desc.Variables)
	assert.Equal(t, NumSlots, desc.ByKind[KindRoom])
	assert.Equal(t, NumDays, desc.ByKind[KindDailyCap])
	require.Len(t, desc.Pairs, 2)
	assert.Equal(t, NumSlots, desc.Pairs[1].FirstVar)
}

func TestRegenerationIsStable(t *testing.T) {
	f := baseFixture()
	f.rooms = append(f.rooms, models.Classroom{ID: "r2"})
	for i := 0; i < 4; i++ {
		f.course(fmt.Sprintf("c%d", i), 3, "f1")
	}
	snap := f.snapshot()
	for run := 0; run < 2; run++ {
		_, resp, entries := solve(t, snap)
		require.True(t, resp.Status.HasSolution())
		assert.Len(t, entries, 12)
		assert.NoError(t, Verify(snap, entries))
	}
}
