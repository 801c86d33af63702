package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"service-scheduling/internal/domain"
	"service-scheduling/internal/repository"
)

// memStore backs the engine tests with in-memory repositories behind the
// same interfaces the postgres implementations satisfy.
type memStore struct {
	institutions map[int64]domain.Institution
	departments  map[int64]domain.Department
	venues       []domain.Venue
	courses      map[int64]domain.Course
	exams        map[int64]domain.ExamCourse
	teaching     map[int64][]int64

	timetables map[int64]domain.Timetable
	byTitle    map[string]int64
	nextTTID   int64
	nextSlotID int64

	events []repository.OutboxEvent

	failSetArtifact bool
}

func newMemStore() *memStore {
	return &memStore{
		institutions: make(map[int64]domain.Institution),
		departments:  make(map[int64]domain.Department),
		courses:      make(map[int64]domain.Course),
		exams:        make(map[int64]domain.ExamCourse),
		teaching:     make(map[int64][]int64),
		timetables:   make(map[int64]domain.Timetable),
		byTitle:      make(map[string]int64),
		nextTTID:     1,
		nextSlotID:   1,
	}
}

type memTxManager struct {
	store *memStore
}

func (m *memTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.TxRepositories) error) error {
	repos := repository.TxRepositories{
		Institutions: (*memInstitutions)(m.store),
		Departments:  (*memDepartments)(m.store),
		Venues:       (*memVenues)(m.store),
		Courses:      (*memCourses)(m.store),
		Timetables:   (*memTimetables)(m.store),
		Outbox:       (*memOutbox)(m.store),
	}
	return fn(ctx, repos)
}

type memInstitutions memStore

func (m *memInstitutions) Get(_ context.Context, id int64) (domain.Institution, error) {
	inst, ok := m.institutions[id]
	if !ok {
		return domain.Institution{}, domain.ErrScopeNotFound
	}
	return inst, nil
}

type memDepartments memStore

func (m *memDepartments) Get(_ context.Context, id int64) (domain.Department, error) {
	dept, ok := m.departments[id]
	if !ok {
		return domain.Department{}, domain.ErrScopeNotFound
	}
	return dept, nil
}

type memVenues memStore

func (m *memVenues) ListByInstitution(_ context.Context, institutionID int64) ([]domain.Venue, error) {
	var venues []domain.Venue
	for _, venue := range m.venues {
		if venue.InstitutionID == institutionID {
			venues = append(venues, venue)
		}
	}
	return venues, nil
}

type memCourses memStore

func (m *memCourses) ListByDepartmentAndLevel(_ context.Context, departmentID, levelID int64) ([]domain.Course, error) {
	var courses []domain.Course
	for _, course := range m.courses {
		if course.DepartmentID == departmentID && course.LevelID == levelID {
			courses = append(courses, course)
		}
	}
	return courses, nil
}

func (m *memCourses) ListExamCoursesByInstitution(_ context.Context, institutionID int64) ([]domain.ExamCourse, error) {
	var exams []domain.ExamCourse
	for _, exam := range m.exams {
		if exam.InstitutionID == institutionID {
			exams = append(exams, exam)
		}
	}
	return exams, nil
}

func (m *memCourses) GetByIDs(_ context.Context, ids []int64) (map[int64]domain.Course, error) {
	courses := make(map[int64]domain.Course, len(ids))
	for _, id := range ids {
		if course, ok := m.courses[id]; ok {
			courses[id] = course
		}
	}
	return courses, nil
}

func (m *memCourses) GetExamCoursesByIDs(_ context.Context, ids []int64) (map[int64]domain.ExamCourse, error) {
	exams := make(map[int64]domain.ExamCourse, len(ids))
	for _, id := range ids {
		if exam, ok := m.exams[id]; ok {
			exams[id] = exam
		}
	}
	return exams, nil
}

func (m *memCourses) StaffIDsByCourse(_ context.Context, courseIDs []int64) (map[int64][]int64, error) {
	teaching := make(map[int64][]int64, len(courseIDs))
	for _, id := range courseIDs {
		if staff, ok := m.teaching[id]; ok {
			teaching[id] = staff
		}
	}
	return teaching, nil
}

type memTimetables memStore

func (m *memTimetables) GetByTitle(_ context.Context, title string) (domain.Timetable, error) {
	id, ok := m.byTitle[title]
	if !ok {
		return domain.Timetable{}, domain.ErrTimetableNotFound
	}
	return copyTimetable(m.timetables[id]), nil
}

func (m *memTimetables) GetByID(_ context.Context, id int64) (domain.Timetable, error) {
	tt, ok := m.timetables[id]
	if !ok {
		return domain.Timetable{}, domain.ErrTimetableNotFound
	}
	return copyTimetable(tt), nil
}

func (m *memTimetables) ReplaceSlots(_ context.Context, tt domain.Timetable) (domain.Timetable, error) {
	id, ok := m.byTitle[tt.Title]
	if !ok {
		id = m.nextTTID
		m.nextTTID++
		m.byTitle[tt.Title] = id
	}

	persisted := copyTimetable(tt)
	persisted.ID = id
	persisted.ArtifactRef = ""
	persisted.ArtifactPending = true
	for i := range persisted.Slots {
		persisted.Slots[i].ID = m.nextSlotID
		persisted.Slots[i].TimetableID = id
		m.nextSlotID++
	}
	m.timetables[id] = copyTimetable(persisted)
	return persisted, nil
}

func (m *memTimetables) UpdateSlot(_ context.Context, timetableID int64, slot domain.Slot) error {
	tt, ok := m.timetables[timetableID]
	if !ok {
		return domain.ErrSlotNotFound
	}
	for i := range tt.Slots {
		if tt.Slots[i].ItemID == slot.ItemID {
			slot.ID = tt.Slots[i].ID
			slot.TimetableID = timetableID
			tt.Slots[i] = slot
			m.timetables[timetableID] = tt
			return nil
		}
	}
	return domain.ErrSlotNotFound
}

func (m *memTimetables) SetArtifact(_ context.Context, id int64, ref string) error {
	if m.failSetArtifact {
		return errors.New("set artifact: connection reset")
	}
	tt, ok := m.timetables[id]
	if !ok {
		return domain.ErrTimetableNotFound
	}
	tt.ArtifactRef = ref
	tt.ArtifactPending = false
	m.timetables[id] = tt
	return nil
}

func (m *memTimetables) ListInstitutionSlots(_ context.Context, institutionID int64, kind, excludeTitle string) ([]domain.Slot, error) {
	var slots []domain.Slot
	for _, tt := range m.timetables {
		if tt.InstitutionID != institutionID || tt.Kind != kind || tt.Title == excludeTitle {
			continue
		}
		slots = append(slots, append([]domain.Slot(nil), tt.Slots...)...)
	}
	return slots, nil
}

type memOutbox memStore

func (m *memOutbox) Insert(_ context.Context, event domain.SchedulingEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	m.events = append(m.events, repository.OutboxEvent{
		ID:        uuid.New(),
		EventType: event.EventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return nil
}

func (m *memOutbox) ListUnpublished(_ context.Context, limit int) ([]repository.OutboxEvent, error) {
	if limit > len(m.events) {
		limit = len(m.events)
	}
	return append([]repository.OutboxEvent(nil), m.events[:limit]...), nil
}

func (m *memOutbox) MarkPublished(_ context.Context, id uuid.UUID) error {
	for i, event := range m.events {
		if event.ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			return nil
		}
	}
	return nil
}

func copyTimetable(tt domain.Timetable) domain.Timetable {
	out := tt
	out.Slots = append([]domain.Slot(nil), tt.Slots...)
	return out
}

// stubRenderer returns a fixed reference or a fixed error.
type stubRenderer struct {
	ref string
	err error
}

func (r *stubRenderer) Render(_ context.Context, tt domain.Timetable) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.ref != "" {
		return r.ref, nil
	}
	return "artifacts/" + tt.Title + ".csv", nil
}
