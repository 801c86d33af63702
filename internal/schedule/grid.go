package schedule

import (
	"time"

	"service-scheduling/internal/domain"
)

// GridDay is one schedulable day with its usable minute range. MinStart
// and MaxEnd clip the institution day to the generation window where one
// applies (exam windows may begin or end mid-day).
type GridDay struct {
	Day      domain.Day
	MinStart int
	MaxEnd   int
}

// Grid is the discretized candidate space for one generation run: the
// days in canonical order and the step between candidate start times.
// Candidates are enumerated days-first, start times ascending, which
// fixes the allocator's output for a given input.
type Grid struct {
	Days []GridDay
	Step int
}

// LectureGrid builds the weekly-recurring grid from the configured
// teaching days and hours.
func LectureGrid(days []time.Weekday, dayStart, dayEnd, step int) Grid {
	grid := Grid{Step: step}
	for _, wd := range days {
		grid.Days = append(grid.Days, GridDay{
			Day:      domain.WeekdayOf(wd),
			MinStart: dayStart,
			MaxEnd:   dayEnd,
		})
	}
	return grid
}

// ExamGrid builds a date-specific grid covering [startsAt, endsAt),
// clipping the first and last days so every candidate interval falls
// inside the window.
func ExamGrid(startsAt, endsAt time.Time, dayStart, dayEnd, step int) (Grid, error) {
	if !startsAt.Before(endsAt) {
		return Grid{}, domain.ErrInvalidInput
	}

	grid := Grid{Step: step}
	for day := truncateToDate(startsAt); day.Before(endsAt); day = day.AddDate(0, 0, 1) {
		minStart := dayStart
		maxEnd := dayEnd

		if sameDate(day, startsAt) {
			if m := minuteOfDay(startsAt); m > minStart {
				minStart = m
			}
		}
		if sameDate(day, endsAt) {
			if m := minuteOfDay(endsAt); m < maxEnd {
				maxEnd = m
			}
		}
		if minStart >= maxEnd {
			continue
		}

		grid.Days = append(grid.Days, GridDay{
			Day:      domain.DateOf(day),
			MinStart: minStart,
			MaxEnd:   maxEnd,
		})
	}
	if len(grid.Days) == 0 {
		return Grid{}, domain.ErrInvalidInput
	}
	return grid, nil
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
