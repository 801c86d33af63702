package repository

import (
	"context"

	"service-scheduling/internal/domain"
)

type CourseRepository interface {
	ListByDepartmentAndLevel(ctx context.Context, departmentID, levelID int64) ([]domain.Course, error)
	ListExamCoursesByInstitution(ctx context.Context, institutionID int64) ([]domain.ExamCourse, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Course, error)
	GetExamCoursesByIDs(ctx context.Context, ids []int64) (map[int64]domain.ExamCourse, error)
	StaffIDsByCourse(ctx context.Context, courseIDs []int64) (map[int64][]int64, error)
}

type CoursePostgresRepository struct {
	execer Execer
}

func NewCoursePostgresRepository(execer Execer) *CoursePostgresRepository {
	return &CoursePostgresRepository{execer: execer}
}

const courseColumns = `id, institution_id, department_id, level_id, venue_id, code, title, unit, requirement, duration_minutes`

func (r *CoursePostgresRepository) ListByDepartmentAndLevel(ctx context.Context, departmentID, levelID int64) ([]domain.Course, error) {
	query := `
SELECT ` + courseColumns + `
FROM scheduling.courses
WHERE department_id = $1 AND level_id = $2
ORDER BY id ASC
`
	rows, err := r.execer.QueryContext(ctx, query, departmentID, levelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []domain.Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return courses, nil
}

func (r *CoursePostgresRepository) ListExamCoursesByInstitution(ctx context.Context, institutionID int64) ([]domain.ExamCourse, error) {
	const query = `
SELECT id, course_id, institution_id, department_id, level_id, venue_id, duration_minutes
FROM scheduling.course_exams
WHERE institution_id = $1
ORDER BY id ASC
`
	rows, err := r.execer.QueryContext(ctx, query, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []domain.ExamCourse
	for rows.Next() {
		var exam domain.ExamCourse
		if err := rows.Scan(
			&exam.ID,
			&exam.CourseID,
			&exam.InstitutionID,
			&exam.DepartmentID,
			&exam.LevelID,
			&exam.VenueID,
			&exam.DurationMinutes,
		); err != nil {
			return nil, err
		}
		exams = append(exams, exam)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exams, nil
}

func (r *CoursePostgresRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]domain.Course, error) {
	if len(ids) == 0 {
		return map[int64]domain.Course{}, nil
	}

	query := `
SELECT ` + courseColumns + `
FROM scheduling.courses
WHERE id = ANY($1)
`
	rows, err := r.execer.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := make(map[int64]domain.Course, len(ids))
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses[course.ID] = course
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return courses, nil
}

func (r *CoursePostgresRepository) GetExamCoursesByIDs(ctx context.Context, ids []int64) (map[int64]domain.ExamCourse, error) {
	if len(ids) == 0 {
		return map[int64]domain.ExamCourse{}, nil
	}

	const query = `
SELECT id, course_id, institution_id, department_id, level_id, venue_id, duration_minutes
FROM scheduling.course_exams
WHERE id = ANY($1)
`
	rows, err := r.execer.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	exams := make(map[int64]domain.ExamCourse, len(ids))
	for rows.Next() {
		var exam domain.ExamCourse
		if err := rows.Scan(
			&exam.ID,
			&exam.CourseID,
			&exam.InstitutionID,
			&exam.DepartmentID,
			&exam.LevelID,
			&exam.VenueID,
			&exam.DurationMinutes,
		); err != nil {
			return nil, err
		}
		exams[exam.ID] = exam
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return exams, nil
}

func (r *CoursePostgresRepository) StaffIDsByCourse(ctx context.Context, courseIDs []int64) (map[int64][]int64, error) {
	if len(courseIDs) == 0 {
		return map[int64][]int64{}, nil
	}

	const query = `
SELECT course_id, staff_id
FROM scheduling.course_staff
WHERE course_id = ANY($1)
ORDER BY course_id ASC, staff_id ASC
`
	rows, err := r.execer.QueryContext(ctx, query, courseIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	teaching := make(map[int64][]int64, len(courseIDs))
	for rows.Next() {
		var courseID, staffID int64
		if err := rows.Scan(&courseID, &staffID); err != nil {
			return nil, err
		}
		teaching[courseID] = append(teaching[courseID], staffID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return teaching, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (domain.Course, error) {
	var course domain.Course
	err := row.Scan(
		&course.ID,
		&course.InstitutionID,
		&course.DepartmentID,
		&course.LevelID,
		&course.VenueID,
		&course.Code,
		&course.Title,
		&course.Unit,
		&course.Requirement,
		&course.DurationMinutes,
	)
	return course, err
}
