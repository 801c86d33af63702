package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrScopeNotFound     = errors.New("scope not found")
	ErrTimetableNotFound = errors.New("timetable not found")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrAlreadyReserved   = errors.New("interval already reserved")
	ErrOutsideWindow     = errors.New("slot outside generation window")
)

// Resource kinds reported by conflict errors.
const (
	ResourceVenue  = "venue"
	ResourceStaff  = "staff"
	ResourceCohort = "cohort"
)

// ConflictError reports that a candidate slot collides with an existing
// reservation on one shared resource. Recoverable by the caller.
type ConflictError struct {
	Resource    string
	ResourceKey string
	WithItemID  int64
	Day         Day
	StartMinute int
	EndMinute   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s occupied by item %d on %s %s-%s",
		e.Resource, e.ResourceKey, e.WithItemID,
		e.Day, FormatMinute(e.StartMinute), FormatMinute(e.EndMinute))
}

// UnschedulableError aborts a generation run: no legal (day, time, venue)
// triple exists for the named item given current resources. Nothing is
// persisted for the run.
type UnschedulableError struct {
	ItemID        int64
	CourseCode    string
	TriedVenues   int
	TriedSlots    int
	LastConflicts []string
}

func (e *UnschedulableError) Error() string {
	return fmt.Sprintf("item %d (%s) unschedulable after %d candidate slots across %d venues",
		e.ItemID, e.CourseCode, e.TriedSlots, e.TriedVenues)
}
