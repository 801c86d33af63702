package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"service-scheduling/internal/artifact"
	"service-scheduling/internal/domain"
	"service-scheduling/internal/repository"
)

// Config fixes the candidate grid for generation runs. Minutes are
// counted from midnight; Step is the spacing between candidate start
// times. Course durations are minutes throughout.
type Config struct {
	LectureDays []time.Weekday
	DayStart    int
	DayEnd      int
	Step        int
}

func DefaultConfig() Config {
	return Config{
		LectureDays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
		},
		DayStart: 8 * 60,
		DayEnd:   18 * 60,
		Step:     60,
	}
}

// SlotPatch is a partial slot change for an incremental update. Nil
// fields keep the existing slot's value.
type SlotPatch struct {
	Day         *domain.Day
	VenueID     *int64
	StartMinute *int
	EndMinute   *int
}

// Selector picks a timetable for fetching, by id or by its deterministic
// title.
type Selector struct {
	ID    int64
	Title string
}

// Service is the timetable generation and conflict-resolution engine.
// Constructed once at process start and shared; all state lives in the
// store or in per-run availability indexes.
type Service struct {
	txManager repository.TxManager
	renderer  artifact.Renderer
	logger    *zap.Logger
	cfg       Config
	locks     *scopeLocks
	clock     func() time.Time
}

func NewService(txManager repository.TxManager, renderer artifact.Renderer, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		txManager: txManager,
		renderer:  renderer,
		logger:    logger,
		cfg:       cfg,
		locks:     newScopeLocks(),
		clock:     time.Now,
	}
}

// seedReservation is a pre-existing commitment loaded from another
// timetable in scope. Its resources are reserved before allocation so a
// new run cannot double-book a venue or staff member already committed
// elsewhere.
type seedReservation struct {
	Slot      domain.Slot
	FixedKeys []resourceKey
}

// GenerateLectureTimetable builds, persists and renders the weekly
// lecture timetable for one department+level scope. All-or-nothing: an
// unschedulable item aborts the run with nothing persisted. A rendering
// failure does not roll back persistence; the timetable comes back with
// ArtifactPending set.
func (s *Service) GenerateLectureTimetable(ctx context.Context, departmentID, levelID int64) (domain.Timetable, error) {
	if departmentID <= 0 || levelID <= 0 {
		return domain.Timetable{}, domain.ErrInvalidInput
	}

	title := domain.LectureTitle(departmentID, levelID)

	var (
		institutionID int64
		venues        []domain.Venue
		items         []placementItem
		seeds         []seedReservation
	)
	err := s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		dept, err := repos.Departments.Get(ctx, departmentID)
		if err != nil {
			return err
		}
		institutionID = dept.InstitutionID

		venues, err = repos.Venues.ListByInstitution(ctx, institutionID)
		if err != nil {
			return err
		}

		courses, err := repos.Courses.ListByDepartmentAndLevel(ctx, departmentID, levelID)
		if err != nil {
			return err
		}

		courseIDs := make([]int64, 0, len(courses))
		for _, course := range courses {
			courseIDs = append(courseIDs, course.ID)
		}
		teaching, err := repos.Courses.StaffIDsByCourse(ctx, courseIDs)
		if err != nil {
			return err
		}

		for _, course := range courses {
			items = append(items, placementItem{
				ItemID:      course.ID,
				CourseCode:  course.Code,
				Requirement: course.Requirement,
				Duration:    course.DurationMinutes,
				VenueID:     course.VenueID,
				FixedKeys:   lectureKeys(course, teaching[course.ID]),
			})
		}

		seeds, err = s.loadLectureSeeds(ctx, repos, institutionID, title)
		return err
	})
	if err != nil {
		return domain.Timetable{}, err
	}

	if err := ctx.Err(); err != nil {
		return domain.Timetable{}, err
	}

	grid := LectureGrid(s.cfg.LectureDays, s.cfg.DayStart, s.cfg.DayEnd, s.cfg.Step)
	slots, err := s.runAllocation(grid, venues, items, seeds)
	if err != nil {
		return domain.Timetable{}, err
	}

	tt := domain.Timetable{
		Title:         title,
		Kind:          domain.KindDepartmentLevel,
		InstitutionID: institutionID,
		DepartmentID:  departmentID,
		LevelID:       levelID,
		Slots:         slots,
		GeneratedAt:   s.clock(),
	}
	return s.persistAndRender(ctx, tt)
}

// GenerateExamTimetable builds the institution-wide examination
// timetable for the window [startsAt, endsAt). Every emitted slot falls
// inside the window; exams contend on venues and department+level
// cohorts only.
func (s *Service) GenerateExamTimetable(ctx context.Context, institutionID int64, startsAt, endsAt time.Time) (domain.Timetable, error) {
	if institutionID <= 0 {
		return domain.Timetable{}, domain.ErrInvalidInput
	}

	grid, err := ExamGrid(startsAt, endsAt, s.cfg.DayStart, s.cfg.DayEnd, s.cfg.Step)
	if err != nil {
		return domain.Timetable{}, err
	}

	title := domain.ExamTitle(institutionID, startsAt, endsAt)

	var (
		venues []domain.Venue
		items  []placementItem
		seeds  []seedReservation
	)
	err = s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		if _, err := repos.Institutions.Get(ctx, institutionID); err != nil {
			return err
		}

		venues, err = repos.Venues.ListByInstitution(ctx, institutionID)
		if err != nil {
			return err
		}

		exams, err := repos.Courses.ListExamCoursesByInstitution(ctx, institutionID)
		if err != nil {
			return err
		}

		examCourseIDs := make([]int64, 0, len(exams))
		for _, exam := range exams {
			examCourseIDs = append(examCourseIDs, exam.CourseID)
		}
		courses, err := repos.Courses.GetByIDs(ctx, examCourseIDs)
		if err != nil {
			return err
		}

		for _, exam := range exams {
			items = append(items, placementItem{
				ItemID:      exam.ID,
				CourseCode:  courses[exam.CourseID].Code,
				Requirement: courses[exam.CourseID].Requirement,
				Duration:    exam.DurationMinutes,
				VenueID:     exam.VenueID,
				FixedKeys:   []resourceKey{cohortKey(exam.DepartmentID, exam.LevelID)},
			})
		}

		seeds, err = s.loadExamSeeds(ctx, repos, institutionID, title)
		return err
	})
	if err != nil {
		return domain.Timetable{}, err
	}

	if err := ctx.Err(); err != nil {
		return domain.Timetable{}, err
	}

	slots, err := s.runAllocation(grid, venues, items, seeds)
	if err != nil {
		return domain.Timetable{}, err
	}

	tt := domain.Timetable{
		Title:          title,
		Kind:           domain.KindInstitution,
		InstitutionID:  institutionID,
		Slots:          slots,
		GeneratedAt:    s.clock(),
		WindowStartsAt: startsAt,
		WindowEndsAt:   endsAt,
	}
	return s.persistAndRender(ctx, tt)
}

// UpdateSlot re-validates and applies a single-slot change against an
// existing timetable. The availability index is rebuilt from every other
// same-kind timetable in the institution plus the timetable's own slots
// minus the target, the patch is merged over the old slot, and the
// change is committed only if the candidate is legal. Exam slots must
// stay inside the timetable's generation window; a slot's day shape
// (dated vs weekly) must match the timetable kind. On conflict the
// timetable is untouched and the reason names the colliding resource.
func (s *Service) UpdateSlot(ctx context.Context, timetableID, itemID int64, patch SlotPatch) (domain.Timetable, error) {
	if timetableID <= 0 || itemID <= 0 {
		return domain.Timetable{}, domain.ErrInvalidInput
	}

	var updated domain.Timetable
	err := s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		tt, err := repos.Timetables.GetByID(ctx, timetableID)
		if err != nil {
			return err
		}

		lock := s.locks.acquire(tt.Title)
		defer lock.Unlock()

		targetIdx := -1
		for i, slot := range tt.Slots {
			if slot.ItemID == itemID {
				targetIdx = i
				break
			}
		}
		if targetIdx < 0 {
			return domain.ErrSlotNotFound
		}

		fixedKeys, err := s.loadFixedKeys(ctx, repos, tt)
		if err != nil {
			return err
		}

		var seeds []seedReservation
		if tt.Kind == domain.KindInstitution {
			seeds, err = s.loadExamSeeds(ctx, repos, tt.InstitutionID, tt.Title)
		} else {
			seeds, err = s.loadLectureSeeds(ctx, repos, tt.InstitutionID, tt.Title)
		}
		if err != nil {
			return err
		}

		index := newAvailabilityIndex()
		for _, seed := range seeds {
			seedSlot(index, seed.Slot, seed.FixedKeys)
		}
		for i, slot := range tt.Slots {
			if i == targetIdx {
				continue
			}
			seedSlot(index, slot, fixedKeys[slot.ItemID])
		}

		target := mergePatch(tt.Slots[targetIdx], patch)
		if target.StartMinute < 0 || target.EndMinute > 24*60 || target.StartMinute >= target.EndMinute {
			return domain.ErrInvalidInput
		}
		if err := checkSlotShape(tt, target); err != nil {
			return err
		}

		cand := candidate{
			ItemID:    target.ItemID,
			Day:       target.Day,
			Start:     target.StartMinute,
			End:       target.EndMinute,
			VenueID:   target.VenueID,
			FixedKeys: fixedKeys[target.ItemID],
		}
		if conflict := checkSlot(index, cand); conflict != nil {
			return conflict
		}

		if err := repos.Timetables.UpdateSlot(ctx, tt.ID, target); err != nil {
			return err
		}

		event := domain.SchedulingEvent{
			EventType: "TimetableSlotUpdated",
			Payload: domain.SlotUpdatedPayload{
				TimetableID: tt.ID,
				Title:       tt.Title,
				Slot:        domain.SlotToPayload(target),
			},
		}
		if err := repos.Outbox.Insert(ctx, event); err != nil {
			return err
		}

		tt.Slots[targetIdx] = target
		updated = tt
		return nil
	})
	if err != nil {
		return domain.Timetable{}, err
	}
	return updated, nil
}

// FetchTimetable loads a persisted timetable by id or deterministic
// title, slots included.
func (s *Service) FetchTimetable(ctx context.Context, sel Selector) (domain.Timetable, error) {
	if sel.ID <= 0 && sel.Title == "" {
		return domain.Timetable{}, domain.ErrInvalidInput
	}

	var tt domain.Timetable
	err := s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		var err error
		if sel.ID > 0 {
			tt, err = repos.Timetables.GetByID(ctx, sel.ID)
		} else {
			tt, err = repos.Timetables.GetByTitle(ctx, sel.Title)
		}
		return err
	})
	if err != nil {
		return domain.Timetable{}, err
	}
	return tt, nil
}

func (s *Service) runAllocation(grid Grid, venues []domain.Venue, items []placementItem, seeds []seedReservation) ([]domain.Slot, error) {
	index := newAvailabilityIndex()
	for _, seed := range seeds {
		seedSlot(index, seed.Slot, seed.FixedKeys)
	}

	venueIDs := make([]int64, 0, len(venues))
	for _, venue := range venues {
		venueIDs = append(venueIDs, venue.ID)
	}

	return allocate(index, grid, venueIDs, items)
}

// persistAndRender commits the timetable under the scope lock, then
// renders the artifact outside it. The generated event rides the same
// transaction as the slots, so it is published iff the timetable is
// persisted. Persistence always wins over rendering: a render failure is
// logged and the timetable is returned with ArtifactPending set.
func (s *Service) persistAndRender(ctx context.Context, tt domain.Timetable) (domain.Timetable, error) {
	lock := s.locks.acquire(tt.Title)
	var persisted domain.Timetable
	err := s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		var err error
		persisted, err = repos.Timetables.ReplaceSlots(ctx, tt)
		if err != nil {
			return err
		}
		event := domain.SchedulingEvent{
			EventType: "TimetableGenerated",
			Payload: domain.TimetableGeneratedPayload{
				TimetableID: persisted.ID,
				Title:       persisted.Title,
				Kind:        persisted.Kind,
				SlotCount:   len(persisted.Slots),
			},
		}
		return repos.Outbox.Insert(ctx, event)
	})
	lock.Unlock()
	if err != nil {
		return domain.Timetable{}, fmt.Errorf("persist timetable %s: %w", tt.Title, err)
	}

	ref, renderErr := s.renderer.Render(ctx, persisted)
	if renderErr != nil {
		s.logger.Warn("artifact rendering failed",
			zap.String("title", persisted.Title),
			zap.Error(renderErr),
		)
	} else {
		persisted.ArtifactRef = ref
		persisted.ArtifactPending = false

		err = s.txManager.WithTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
			return repos.Timetables.SetArtifact(ctx, persisted.ID, ref)
		})
		if err != nil {
			s.logger.Warn("recording artifact reference failed",
				zap.String("title", persisted.Title),
				zap.String("artifact_ref", ref),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("timetable generated",
		zap.String("title", persisted.Title),
		zap.String("kind", persisted.Kind),
		zap.Int("slots", len(persisted.Slots)),
		zap.Bool("artifact_pending", persisted.ArtifactPending),
	)
	return persisted, nil
}

func (s *Service) loadLectureSeeds(ctx context.Context, repos repository.TxRepositories, institutionID int64, excludeTitle string) ([]seedReservation, error) {
	existing, err := repos.Timetables.ListInstitutionSlots(ctx, institutionID, domain.KindDepartmentLevel, excludeTitle)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}

	itemIDs := slotItemIDs(existing)
	courses, err := repos.Courses.GetByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	teaching, err := repos.Courses.StaffIDsByCourse(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	seeds := make([]seedReservation, 0, len(existing))
	for _, slot := range existing {
		course, ok := courses[slot.ItemID]
		if !ok {
			continue
		}
		seeds = append(seeds, seedReservation{
			Slot:      slot,
			FixedKeys: lectureKeys(course, teaching[slot.ItemID]),
		})
	}
	return seeds, nil
}

func (s *Service) loadExamSeeds(ctx context.Context, repos repository.TxRepositories, institutionID int64, excludeTitle string) ([]seedReservation, error) {
	existing, err := repos.Timetables.ListInstitutionSlots(ctx, institutionID, domain.KindInstitution, excludeTitle)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}

	exams, err := repos.Courses.GetExamCoursesByIDs(ctx, slotItemIDs(existing))
	if err != nil {
		return nil, err
	}

	seeds := make([]seedReservation, 0, len(existing))
	for _, slot := range existing {
		exam, ok := exams[slot.ItemID]
		if !ok {
			continue
		}
		seeds = append(seeds, seedReservation{
			Slot:      slot,
			FixedKeys: []resourceKey{cohortKey(exam.DepartmentID, exam.LevelID)},
		})
	}
	return seeds, nil
}

// loadFixedKeys resolves the venue-independent resource keys for every
// item in the timetable: staff plus cohort for lecture items, cohort only
// for exam items.
func (s *Service) loadFixedKeys(ctx context.Context, repos repository.TxRepositories, tt domain.Timetable) (map[int64][]resourceKey, error) {
	itemIDs := slotItemIDs(tt.Slots)
	keys := make(map[int64][]resourceKey, len(itemIDs))

	if tt.Kind == domain.KindInstitution {
		exams, err := repos.Courses.GetExamCoursesByIDs(ctx, itemIDs)
		if err != nil {
			return nil, err
		}
		for id, exam := range exams {
			keys[id] = []resourceKey{cohortKey(exam.DepartmentID, exam.LevelID)}
		}
		return keys, nil
	}

	courses, err := repos.Courses.GetByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	teaching, err := repos.Courses.StaffIDsByCourse(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	for id, course := range courses {
		keys[id] = lectureKeys(course, teaching[id])
	}
	return keys, nil
}

// seedSlot reserves a committed slot's resources. Pre-existing overlaps
// in stored data are tolerated: the seed that got there first holds the
// interval.
func seedSlot(index *availabilityIndex, slot domain.Slot, fixedKeys []resourceKey) {
	iv := interval{Day: slot.Day, Start: slot.StartMinute, End: slot.EndMinute, ItemID: slot.ItemID}
	_ = index.reserve(venueKey(slot.VenueID), iv)
	for _, key := range fixedKeys {
		_ = index.reserve(key, iv)
	}
}

func lectureKeys(course domain.Course, staffIDs []int64) []resourceKey {
	keys := make([]resourceKey, 0, len(staffIDs)+1)
	seen := make(map[int64]bool, len(staffIDs))
	for _, staffID := range staffIDs {
		if seen[staffID] {
			continue
		}
		seen[staffID] = true
		keys = append(keys, staffKey(staffID))
	}
	keys = append(keys, cohortKey(course.DepartmentID, course.LevelID))
	return keys
}

// checkSlotShape rejects a merged slot whose day shape contradicts the
// timetable kind: exam slots carry a concrete date inside the generation
// window, lecture slots recur weekly and carry none.
func checkSlotShape(tt domain.Timetable, slot domain.Slot) error {
	if tt.Kind != domain.KindInstitution {
		if slot.Day.Date != "" {
			return domain.ErrInvalidInput
		}
		return nil
	}

	if slot.Day.Date == "" {
		return domain.ErrInvalidInput
	}
	date, err := time.ParseInLocation("2006-01-02", slot.Day.Date, tt.WindowStartsAt.Location())
	if err != nil {
		return domain.ErrInvalidInput
	}
	if tt.WindowStartsAt.IsZero() || tt.WindowEndsAt.IsZero() {
		return nil
	}
	start := date.Add(time.Duration(slot.StartMinute) * time.Minute)
	end := date.Add(time.Duration(slot.EndMinute) * time.Minute)
	if start.Before(tt.WindowStartsAt) || end.After(tt.WindowEndsAt) {
		return domain.ErrOutsideWindow
	}
	return nil
}

func mergePatch(old domain.Slot, patch SlotPatch) domain.Slot {
	merged := old
	if patch.Day != nil {
		merged.Day = *patch.Day
	}
	if patch.VenueID != nil {
		merged.VenueID = *patch.VenueID
	}
	if patch.StartMinute != nil {
		merged.StartMinute = *patch.StartMinute
	}
	if patch.EndMinute != nil {
		merged.EndMinute = *patch.EndMinute
	}
	return merged
}

func slotItemIDs(slots []domain.Slot) []int64 {
	ids := make([]int64, 0, len(slots))
	seen := make(map[int64]bool, len(slots))
	for _, slot := range slots {
		if seen[slot.ItemID] {
			continue
		}
		seen[slot.ItemID] = true
		ids = append(ids, slot.ItemID)
	}
	return ids
}
