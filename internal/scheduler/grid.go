package scheduler

import (
	"fmt"
	"strings"
)

const (
	// SlotsPerDay is the number of teaching periods on each weekday.
	SlotsPerDay = 4
	// NumDays is the number of teaching weekdays.
	NumDays = 5
	// NumSlots is the number of weekly slots in the grid.
	NumSlots = NumDays * SlotsPerDay
)

var (
	gridDays   = [NumDays]string{"Mon", "Tue", "Wed", "Thu", "Fri"}
	gridStarts = [SlotsPerDay]string{"09", "11", "01", "03"}
)

// Slot is one weekly period of the fixed grid.
type Slot struct {
	Index    int
	DayIndex int
	Period   int
	Day      string
	Start    string
}

// Key returns the canonical slot label, e.g. Mon_09.
func (s Slot) Key() string {
	return s.Day + "_" + s.Start
}

var gridSlots = func() []Slot {
	slots := make([]Slot, 0, NumSlots)
	for d, day := range gridDays {
		for p, start := range gridStarts {
			slots = append(slots, Slot{Index: len(slots), DayIndex: d, Period: p, Day: day, Start: start})
		}
	}
	return slots
}()

// Slots returns the 20 grid slots in day-major order.
func Slots() []Slot {
	out := make([]Slot, len(gridSlots))
	copy(out, gridSlots)
	return out
}

// Days returns the grid weekdays.
func Days() []string {
	return gridDays[:]
}

// Starts returns the daily start labels.
func Starts() []string {
	return gridStarts[:]
}

// SlotAt returns the slot with the given index.
func SlotAt(index int) Slot {
	return gridSlots[index]
}

// SlotIndex resolves a (day, start) pair to its grid index. Day matching is
// case-insensitive on the three-letter abbreviation.
func SlotIndex(day, start string) (int, bool) {
	d := dayIndex(day)
	if d < 0 {
		return 0, false
	}
	start = strings.TrimSpace(start)
	for p, s := range gridStarts {
		if s == start {
			return d*SlotsPerDay + p, true
		}
	}
	return 0, false
}

// LookupSlot resolves a (day, start) pair to its Slot.
func LookupSlot(day, start string) (Slot, bool) {
	idx, ok := SlotIndex(day, start)
	if !ok {
		return Slot{}, false
	}
	return gridSlots[idx], true
}

// NormalizeDay maps a day label to its grid spelling, or "" when unknown.
func NormalizeDay(day string) string {
	d := dayIndex(day)
	if d < 0 {
		return ""
	}
	return gridDays[d]
}

// SplitSlotKey splits "Mon_09" into ("Mon", "09").
func SplitSlotKey(key string) (string, string, error) {
	day, start, ok := strings.Cut(key, "_")
	if !ok {
		return "", "", fmt.Errorf("slot key %q has no separator", key)
	}
	if _, found := SlotIndex(day, start); !found {
		return "", "", fmt.Errorf("slot key %q is not on the grid", key)
	}
	return day, start, nil
}

func dayIndex(day string) int {
	day = strings.TrimSpace(day)
	if len(day) > 3 {
		day = day[:3]
	}
	for i, d := range gridDays {
		if strings.EqualFold(d, day) {
			return i
		}
	}
	return -1
}
