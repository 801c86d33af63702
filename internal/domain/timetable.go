package domain

import (
	"fmt"
	"time"
)

// Day identifies the day a slot occupies. Lecture slots recur weekly, so
// only Weekday is set; exam slots are date-specific, so Date carries the
// calendar day ("2006-01-02") and Weekday mirrors it for display.
type Day struct {
	Weekday time.Weekday
	Date    string
}

func WeekdayOf(wd time.Weekday) Day {
	return Day{Weekday: wd}
}

func DateOf(t time.Time) Day {
	return Day{Weekday: t.Weekday(), Date: t.Format("2006-01-02")}
}

func (d Day) String() string {
	if d.Date != "" {
		return d.Date
	}
	return d.Weekday.String()
}

// Less orders days chronologically: dated days sort by date, weekly days
// by weekday. A Day either has a Date or it does not; timetables never mix.
func (d Day) Less(other Day) bool {
	if d.Date != "" || other.Date != "" {
		return d.Date < other.Date
	}
	return d.Weekday < other.Weekday
}

// Slot is one scheduled occurrence: an item (course or exam course) bound
// to a day, a half-open minute interval and a venue.
type Slot struct {
	ID          int64
	TimetableID int64
	ItemID      int64
	Day         Day
	StartMinute int
	EndMinute   int
	VenueID     int64
}

const (
	KindDepartmentLevel = "department_level"
	KindCourseSet       = "course_set"
	KindInstitution     = "institution"
)

type Timetable struct {
	ID              int64
	Title           string
	Kind            string
	InstitutionID   int64
	DepartmentID    int64
	LevelID         int64
	ArtifactRef     string
	ArtifactPending bool
	Slots           []Slot
	GeneratedAt     time.Time

	// Generation window for exam timetables; zero for weekly-recurring
	// kinds. Persisted so incremental updates can keep every slot inside
	// the window the timetable was generated for.
	WindowStartsAt time.Time
	WindowEndsAt   time.Time
}

// LectureTitle is the deterministic title for a department+level lecture
// timetable. Regeneration for the same scope reuses the title, so the new
// slot set replaces the old one instead of accumulating.
func LectureTitle(departmentID, levelID int64) string {
	return fmt.Sprintf("lectures-dept-%d-level-%d", departmentID, levelID)
}

// ExamTitle is the deterministic title for an institution-wide exam
// timetable over the given window.
func ExamTitle(institutionID int64, startsAt, endsAt time.Time) string {
	return fmt.Sprintf("exams-inst-%d-%s-%s",
		institutionID, startsAt.Format("20060102"), endsAt.Format("20060102"))
}

func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
