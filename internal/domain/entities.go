package domain

type Institution struct {
	ID   int64
	Name string
}

type Department struct {
	ID            int64
	InstitutionID int64
	Name          string
}

type Level struct {
	ID            int64
	InstitutionID int64
	Name          string
}

type Venue struct {
	ID            int64
	InstitutionID int64
	Name          string
	Location      string
	Capacity      int
}

type Staff struct {
	ID            int64
	InstitutionID int64
	DepartmentID  int64
	Name          string
	Email         string
}

const (
	RequirementCompulsory = "compulsory"
	RequirementOptional   = "optional"
)

type Course struct {
	ID              int64
	InstitutionID   int64
	DepartmentID    int64
	LevelID         int64
	VenueID         int64
	Code            string
	Title           string
	Unit            int
	Requirement     string
	DurationMinutes int
}

// ExamCourse is a Course opted into the examination timetable. Venue,
// level and department may be reassigned off the parent course, and the
// exam carries its own duration.
type ExamCourse struct {
	ID              int64
	CourseID        int64
	InstitutionID   int64
	DepartmentID    int64
	LevelID         int64
	VenueID         int64
	DurationMinutes int
}
