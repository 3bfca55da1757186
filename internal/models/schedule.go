package models

import (
	"fmt"
	"sort"
	"strings"
)

// RawLineSeparator joins the original cell lines into Lesson.Raw. Merging a
// continuation cell splits on the same separator before re-classification.
const RawLineSeparator = " | "

// Lesson is one classified timetable cell (or a merge of cells belonging to
// the same pair).
type Lesson struct {
	Subject   string
	Teachers  []string
	Rooms     []int
	Labels    []string
	StartTime string
	Raw       string
}

// Period is one numbered slot of a day. Number 0 is the non-numbered
// homeroom slot.
type Period struct {
	Number  int
	Lessons []Lesson
}

// DaySchedule holds one group's lessons for one date, keyed by pair number.
type DaySchedule struct {
	IsMonday bool
	Periods  map[int]*Period
}

// NewDaySchedule returns an empty schedule for a day.
func NewDaySchedule(isMonday bool) *DaySchedule {
	return &DaySchedule{IsMonday: isMonday, Periods: make(map[int]*Period)}
}

// Period returns the period for the given pair number, creating it on first
// access.
func (d *DaySchedule) Period(number int) *Period {
	p, ok := d.Periods[number]
	if !ok {
		p = &Period{Number: number}
		d.Periods[number] = p
	}
	return p
}

// Signature derives the canonical content string used for change detection.
// It depends only on lesson content in ascending pair order, so two parses of
// identical source text produce identical signatures.
func (d *DaySchedule) Signature() string {
	numbers := make([]int, 0, len(d.Periods))
	for n := range d.Periods {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	var sb strings.Builder
	for _, n := range numbers {
		for _, lesson := range d.Periods[n].Lessons {
			fmt.Fprintf(&sb, "%d:%s:%s|", n, lesson.Subject, lesson.Raw)
		}
	}
	return sb.String()
}

// TeacherNames returns every teacher mentioned in the schedule, deduplicated,
// in first-seen order.
func (d *DaySchedule) TeacherNames() []string {
	numbers := make([]int, 0, len(d.Periods))
	for n := range d.Periods {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	seen := make(map[string]struct{})
	var out []string
	for _, n := range numbers {
		for _, lesson := range d.Periods[n].Lessons {
			for _, t := range lesson.Teachers {
				if _, ok := seen[t]; ok {
					continue
				}
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
	}
	return out
}

// GroupDay is one (group, date) entry produced by an ingestion run.
type GroupDay struct {
	Group    string
	Date     string
	Schedule *DaySchedule
}
