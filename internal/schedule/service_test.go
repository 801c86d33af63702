package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"service-scheduling/internal/domain"
)

func testConfig() Config {
	return Config{
		LectureDays: []time.Weekday{time.Monday, time.Tuesday},
		DayStart:    480,
		DayEnd:      1080,
		Step:        60,
	}
}

func newTestService(store *memStore, cfg Config) *Service {
	return NewService(&memTxManager{store: store}, &stubRenderer{}, zap.NewNop(), cfg)
}

// seedFixture builds one institution with a department, a level, venues
// and staff, returning the store for further setup.
func seedFixture(venueCount int) *memStore {
	store := newMemStore()
	store.institutions[1] = domain.Institution{ID: 1, Name: "Test Institution"}
	store.departments[1] = domain.Department{ID: 1, InstitutionID: 1, Name: "Computer Science"}
	for i := 1; i <= venueCount; i++ {
		store.venues = append(store.venues, domain.Venue{ID: int64(i), InstitutionID: 1, Name: "Hall", Capacity: 100})
	}
	return store
}

func addCourse(store *memStore, id int64, venueID int64, duration int, staffIDs ...int64) {
	store.courses[id] = domain.Course{
		ID:              id,
		InstitutionID:   1,
		DepartmentID:    1,
		LevelID:         1,
		VenueID:         venueID,
		Code:            "CSC",
		Requirement:     domain.RequirementCompulsory,
		DurationMinutes: duration,
	}
	store.teaching[id] = staffIDs
}

// assertNoDoubleBooking checks the three pairwise invariants over a
// timetable: no venue, staff or cohort holds two overlapping slots.
func assertNoDoubleBooking(t *testing.T, tt domain.Timetable, staffOf map[int64][]int64, cohortOf map[int64][2]int64) {
	t.Helper()
	for i := 0; i < len(tt.Slots); i++ {
		for j := i + 1; j < len(tt.Slots); j++ {
			a, b := tt.Slots[i], tt.Slots[j]
			if a.Day != b.Day || a.StartMinute >= b.EndMinute || b.StartMinute >= a.EndMinute {
				continue
			}
			assert.NotEqual(t, a.VenueID, b.VenueID,
				"venue %d double-booked by items %d and %d", a.VenueID, a.ItemID, b.ItemID)
			for _, sa := range staffOf[a.ItemID] {
				for _, sb := range staffOf[b.ItemID] {
					assert.NotEqual(t, sa, sb,
						"staff %d double-booked by items %d and %d", sa, a.ItemID, b.ItemID)
				}
			}
			if ca, ok := cohortOf[a.ItemID]; ok {
				if cb, ok := cohortOf[b.ItemID]; ok {
					assert.NotEqual(t, ca, cb,
						"cohort %v double-booked by items %d and %d", ca, a.ItemID, b.ItemID)
				}
			}
		}
	}
}

func TestGenerateLectureSharedStaffTwoSlots(t *testing.T) {
	// two courses, one shared staff member, one venue, two candidate
	// hours: both must land, separated in time.
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	addCourse(store, 2, 1, 60, 7)
	svc := newTestService(store, Config{
		LectureDays: []time.Weekday{time.Monday},
		DayStart:    480,
		DayEnd:      600,
		Step:        60,
	})

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, tt.Slots, 2)

	assert.Equal(t, domain.LectureTitle(1, 1), tt.Title)
	assert.Equal(t, domain.KindDepartmentLevel, tt.Kind)
	assertNoDoubleBooking(t, tt,
		map[int64][]int64{1: {7}, 2: {7}},
		map[int64][2]int64{1: {1, 1}, 2: {1, 1}},
	)
}

func TestGenerateLectureUnschedulable(t *testing.T) {
	// same staff, one venue, a single candidate hour: the run fails and
	// nothing is persisted.
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	addCourse(store, 2, 1, 60, 7)
	svc := newTestService(store, Config{
		LectureDays: []time.Weekday{time.Monday},
		DayStart:    480,
		DayEnd:      540,
		Step:        60,
	})

	_, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	var unsched *domain.UnschedulableError
	require.True(t, errors.As(err, &unsched))
	assert.Equal(t, int64(2), unsched.ItemID)

	_, err = svc.FetchTimetable(context.Background(), Selector{Title: domain.LectureTitle(1, 1)})
	assert.ErrorIs(t, err, domain.ErrTimetableNotFound)
	assert.Empty(t, store.events, "no event for a failed run")
}

func TestGenerateLectureEmptyScope(t *testing.T) {
	store := seedFixture(1)
	svc := newTestService(store, testConfig())

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, tt.Slots)
	assert.NotZero(t, tt.ID, "empty timetable is still persisted")

	fetched, err := svc.FetchTimetable(context.Background(), Selector{Title: tt.Title})
	require.NoError(t, err)
	assert.Empty(t, fetched.Slots)
}

func TestGenerateLectureScopeNotFound(t *testing.T) {
	store := seedFixture(1)
	svc := newTestService(store, testConfig())

	_, err := svc.GenerateLectureTimetable(context.Background(), 99, 1)
	assert.ErrorIs(t, err, domain.ErrScopeNotFound)
}

func TestGenerateLectureIdempotentRegeneration(t *testing.T) {
	store := seedFixture(2)
	addCourse(store, 1, 1, 60, 7)
	addCourse(store, 2, 1, 120, 8)
	addCourse(store, 3, 2, 60, 7, 8)
	svc := newTestService(store, testConfig())

	first, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)
	second, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)

	assert.Equal(t, first.Title, second.Title)
	assert.Equal(t, first.ID, second.ID, "regeneration replaces, never duplicates")
	require.Len(t, second.Slots, len(first.Slots))
	for i := range first.Slots {
		assert.Equal(t, first.Slots[i].ItemID, second.Slots[i].ItemID)
		assert.Equal(t, first.Slots[i].Day, second.Slots[i].Day)
		assert.Equal(t, first.Slots[i].StartMinute, second.Slots[i].StartMinute)
		assert.Equal(t, first.Slots[i].EndMinute, second.Slots[i].EndMinute)
		assert.Equal(t, first.Slots[i].VenueID, second.Slots[i].VenueID)
	}
}

func TestGenerateLectureVenueSubstitution(t *testing.T) {
	// both courses prefer venue 1 with distinct staff; a single candidate
	// hour forces the second into venue 2.
	store := seedFixture(2)
	addCourse(store, 1, 1, 60, 7)
	store.courses[2] = domain.Course{
		ID: 2, InstitutionID: 1, DepartmentID: 1, LevelID: 2, VenueID: 1,
		Code: "CSC", Requirement: domain.RequirementCompulsory, DurationMinutes: 60,
	}
	store.teaching[2] = []int64{8}
	svc := newTestService(store, Config{
		LectureDays: []time.Weekday{time.Monday},
		DayStart:    480,
		DayEnd:      540,
		Step:        60,
	})

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, tt.Slots, 1)
	assert.Equal(t, int64(1), tt.Slots[0].VenueID)

	// second cohort's run sees the first timetable's venue commitment
	tt2, err := svc.GenerateLectureTimetable(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, tt2.Slots, 1)
	assert.Equal(t, int64(2), tt2.Slots[0].VenueID, "expected substitution into the free venue")
}

func TestGenerateExamWindowContainment(t *testing.T) {
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	store.exams[11] = domain.ExamCourse{
		ID: 11, CourseID: 1, InstitutionID: 1, DepartmentID: 1, LevelID: 1, VenueID: 1, DurationMinutes: 120,
	}
	svc := newTestService(store, testConfig())

	startsAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	endsAt := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	tt, err := svc.GenerateExamTimetable(context.Background(), 1, startsAt, endsAt)
	require.NoError(t, err)

	assert.Equal(t, domain.ExamTitle(1, startsAt, endsAt), tt.Title)
	assert.Equal(t, domain.KindInstitution, tt.Kind)
	require.Len(t, tt.Slots, 1)

	slot := tt.Slots[0]
	assert.Equal(t, "2026-03-02", slot.Day.Date)
	assert.GreaterOrEqual(t, slot.StartMinute, 9*60)
	assert.LessOrEqual(t, slot.EndMinute, 17*60)
	assert.Equal(t, 120, slot.EndMinute-slot.StartMinute)
}

func TestGenerateExamMultiDay(t *testing.T) {
	store := seedFixture(1)
	for i := int64(1); i <= 3; i++ {
		addCourse(store, i, 1, 60, 6+i)
		store.exams[10+i] = domain.ExamCourse{
			ID: 10 + i, CourseID: i, InstitutionID: 1, DepartmentID: 1, LevelID: 1, VenueID: 1, DurationMinutes: 180,
		}
	}
	svc := newTestService(store, testConfig())

	startsAt := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	endsAt := time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)
	tt, err := svc.GenerateExamTimetable(context.Background(), 1, startsAt, endsAt)
	require.NoError(t, err)
	require.Len(t, tt.Slots, 3)

	for _, slot := range tt.Slots {
		assert.NotEmpty(t, slot.Day.Date, "exam slots are date-specific")
		assert.GreaterOrEqual(t, slot.Day.Date, "2026-03-02")
		assert.LessOrEqual(t, slot.Day.Date, "2026-03-04")
	}
	assertNoDoubleBooking(t, tt, nil, map[int64][2]int64{11: {1, 1}, 12: {1, 1}, 13: {1, 1}})
}

func TestUpdateSlotMovesOneSlot(t *testing.T) {
	store := seedFixture(2)
	addCourse(store, 1, 1, 60, 7)
	addCourse(store, 2, 1, 60, 8)
	svc := newTestService(store, testConfig())

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, tt.Slots, 2)

	// move item 2 to a free afternoon hour in venue 2
	day := domain.WeekdayOf(time.Tuesday)
	venue := int64(2)
	start, end := 840, 900
	updated, err := svc.UpdateSlot(context.Background(), tt.ID, 2, SlotPatch{
		Day:         &day,
		VenueID:     &venue,
		StartMinute: &start,
		EndMinute:   &end,
	})
	require.NoError(t, err)

	var moved, other domain.Slot
	for _, slot := range updated.Slots {
		if slot.ItemID == 2 {
			moved = slot
		} else {
			other = slot
		}
	}
	assert.Equal(t, day, moved.Day)
	assert.Equal(t, venue, moved.VenueID)
	assert.Equal(t, start, moved.StartMinute)
	assert.Equal(t, end, moved.EndMinute)

	// update isolation: the untouched slot is identical
	for _, slot := range tt.Slots {
		if slot.ItemID == 1 {
			assert.Equal(t, slot, other)
		}
	}
}

func TestUpdateSlotConflictLeavesTimetableUntouched(t *testing.T) {
	store := seedFixture(2)
	addCourse(store, 1, 1, 60, 7)
	addCourse(store, 2, 2, 60, 8)
	svc := newTestService(store, Config{
		LectureDays: []time.Weekday{time.Monday},
		DayStart:    480,
		DayEnd:      600,
		Step:        60,
	})

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)

	var first, second domain.Slot
	for _, slot := range tt.Slots {
		if slot.ItemID == 1 {
			first = slot
		} else {
			second = slot
		}
	}

	// push item 2 onto item 1's venue and hour
	patchVenue := first.VenueID
	patchStart, patchEnd := first.StartMinute, first.EndMinute
	patchDay := first.Day
	_, err = svc.UpdateSlot(context.Background(), tt.ID, 2, SlotPatch{
		Day:         &patchDay,
		VenueID:     &patchVenue,
		StartMinute: &patchStart,
		EndMinute:   &patchEnd,
	})

	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, domain.ResourceVenue, conflict.Resource)
	assert.Equal(t, first.ItemID, conflict.WithItemID)

	fetched, err := svc.FetchTimetable(context.Background(), Selector{ID: tt.ID})
	require.NoError(t, err)
	for _, slot := range fetched.Slots {
		if slot.ItemID == 2 {
			assert.Equal(t, second, slot, "rejected update must not change the slot")
		}
	}
}

func TestUpdateSlotUnknownTargets(t *testing.T) {
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	svc := newTestService(store, testConfig())

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)

	_, err = svc.UpdateSlot(context.Background(), tt.ID+100, 1, SlotPatch{})
	assert.ErrorIs(t, err, domain.ErrTimetableNotFound)

	_, err = svc.UpdateSlot(context.Background(), tt.ID, 999, SlotPatch{})
	assert.ErrorIs(t, err, domain.ErrSlotNotFound)
}

func TestUpdateSlotRejectsBadInterval(t *testing.T) {
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	svc := newTestService(store, testConfig())

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)

	start, end := 600, 540
	_, err = svc.UpdateSlot(context.Background(), tt.ID, 1, SlotPatch{StartMinute: &start, EndMinute: &end})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateExamSlotStaysInsideWindow(t *testing.T) {
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	store.exams[11] = domain.ExamCourse{
		ID: 11, CourseID: 1, InstitutionID: 1, DepartmentID: 1, LevelID: 1, VenueID: 1, DurationMinutes: 120,
	}
	svc := newTestService(store, testConfig())

	startsAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	endsAt := time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC)
	tt, err := svc.GenerateExamTimetable(context.Background(), 1, startsAt, endsAt)
	require.NoError(t, err)
	require.Len(t, tt.Slots, 1)

	// a date weeks past the window
	outside := domain.DateOf(time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	_, err = svc.UpdateSlot(context.Background(), tt.ID, 11, SlotPatch{Day: &outside})
	assert.ErrorIs(t, err, domain.ErrOutsideWindow)

	// a date-less weekly day on a date-specific timetable
	weekly := domain.WeekdayOf(time.Friday)
	_, err = svc.UpdateSlot(context.Background(), tt.ID, 11, SlotPatch{Day: &weekly})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// an interval spilling past the window's closing hour on its last day
	lastDay := domain.DateOf(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC))
	start, end := 16*60, 18*60
	_, err = svc.UpdateSlot(context.Background(), tt.ID, 11, SlotPatch{
		Day: &lastDay, StartMinute: &start, EndMinute: &end,
	})
	assert.ErrorIs(t, err, domain.ErrOutsideWindow)

	// a legal move to the window's second day sticks
	start, end = 9*60, 11*60
	updated, err := svc.UpdateSlot(context.Background(), tt.ID, 11, SlotPatch{
		Day: &lastDay, StartMinute: &start, EndMinute: &end,
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-03", updated.Slots[0].Day.Date)
}

func TestUpdateLectureSlotRejectsDatedDay(t *testing.T) {
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	svc := newTestService(store, testConfig())

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)

	dated := domain.DateOf(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	_, err = svc.UpdateSlot(context.Background(), tt.ID, 1, SlotPatch{Day: &dated})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateSlotSeesOtherTimetables(t *testing.T) {
	// two cohorts hold the same Monday hour in different venues; moving
	// one onto the other's venue must collide across timetables.
	store := seedFixture(2)
	addCourse(store, 1, 1, 60, 7)
	store.courses[2] = domain.Course{
		ID: 2, InstitutionID: 1, DepartmentID: 1, LevelID: 2, VenueID: 2,
		Code: "CSC", Requirement: domain.RequirementCompulsory, DurationMinutes: 60,
	}
	store.teaching[2] = []int64{8}
	svc := newTestService(store, Config{
		LectureDays: []time.Weekday{time.Monday},
		DayStart:    480,
		DayEnd:      600,
		Step:        60,
	})

	tt1, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, tt1.Slots, 1)
	tt2, err := svc.GenerateLectureTimetable(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Len(t, tt2.Slots, 1)
	require.Equal(t, tt1.Slots[0].StartMinute, tt2.Slots[0].StartMinute)

	venue := tt1.Slots[0].VenueID
	_, err = svc.UpdateSlot(context.Background(), tt2.ID, 2, SlotPatch{VenueID: &venue})
	var conflict *domain.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, domain.ResourceVenue, conflict.Resource)
	assert.Equal(t, int64(1), conflict.WithItemID)

	// the same venue at the other candidate hour is free
	start, end := 540, 600
	updated, err := svc.UpdateSlot(context.Background(), tt2.ID, 2, SlotPatch{
		VenueID: &venue, StartMinute: &start, EndMinute: &end,
	})
	require.NoError(t, err)
	assert.Equal(t, venue, updated.Slots[0].VenueID)
}

func TestGenerateEmitsOutboxEvent(t *testing.T) {
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	svc := newTestService(store, testConfig())

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, store.events, 1)
	assert.Equal(t, "TimetableGenerated", store.events[0].EventType)
	assert.False(t, tt.ArtifactPending)
	assert.NotEmpty(t, tt.ArtifactRef)
}

func TestGenerateRenderFailureIsPartialSuccess(t *testing.T) {
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	svc := NewService(
		&memTxManager{store: store},
		&stubRenderer{err: errors.New("renderer down")},
		zap.NewNop(),
		testConfig(),
	)

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err, "render failure must not fail generation")
	assert.True(t, tt.ArtifactPending)
	assert.Empty(t, tt.ArtifactRef)

	fetched, err := svc.FetchTimetable(context.Background(), Selector{Title: tt.Title})
	require.NoError(t, err)
	assert.Len(t, fetched.Slots, 1, "timetable persisted despite render failure")
	require.Len(t, store.events, 1, "generated event still goes out")
}

func TestGenerateEventSurvivesArtifactBookkeepingFailure(t *testing.T) {
	store := seedFixture(1)
	addCourse(store, 1, 1, 60, 7)
	store.failSetArtifact = true
	svc := newTestService(store, testConfig())

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err, "losing the artifact reference must not fail generation")

	// the event was committed with the slots, before the reference write
	require.Len(t, store.events, 1)
	assert.Equal(t, "TimetableGenerated", store.events[0].EventType)

	fetched, err := svc.FetchTimetable(context.Background(), Selector{Title: tt.Title})
	require.NoError(t, err)
	assert.True(t, fetched.ArtifactPending, "stored reference write failed")
	assert.Len(t, fetched.Slots, 1)
}

func TestGenerateLectureLargeScopeProperties(t *testing.T) {
	// a fuller department: 12 courses, 4 staff round-robin, 3 venues.
	store := seedFixture(3)
	staffOf := make(map[int64][]int64)
	cohortOf := make(map[int64][2]int64)
	for i := int64(1); i <= 12; i++ {
		staff := 1 + (i % 4)
		venue := 1 + (i % 3)
		addCourse(store, i, venue, 60+int(i%2)*60, staff)
		staffOf[i] = []int64{staff}
		cohortOf[i] = [2]int64{1, 1}
	}
	svc := newTestService(store, testConfig())

	tt, err := svc.GenerateLectureTimetable(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, tt.Slots, 12)
	assertNoDoubleBooking(t, tt, staffOf, cohortOf)

	for _, slot := range tt.Slots {
		assert.GreaterOrEqual(t, slot.StartMinute, 480)
		assert.LessOrEqual(t, slot.EndMinute, 1080)
		assert.Empty(t, slot.Day.Date, "lecture slots recur weekly")
	}
}
