package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"service-scheduling/internal/domain"
)

type TimetableRepository interface {
	GetByTitle(ctx context.Context, title string) (domain.Timetable, error)
	GetByID(ctx context.Context, id int64) (domain.Timetable, error)
	ReplaceSlots(ctx context.Context, tt domain.Timetable) (domain.Timetable, error)
	UpdateSlot(ctx context.Context, timetableID int64, slot domain.Slot) error
	SetArtifact(ctx context.Context, id int64, ref string) error
	ListInstitutionSlots(ctx context.Context, institutionID int64, kind, excludeTitle string) ([]domain.Slot, error)
}

type TimetablePostgresRepository struct {
	execer Execer
}

func NewTimetablePostgresRepository(execer Execer) *TimetablePostgresRepository {
	return &TimetablePostgresRepository{execer: execer}
}

func (r *TimetablePostgresRepository) GetByTitle(ctx context.Context, title string) (domain.Timetable, error) {
	const query = `
SELECT id, title, kind, institution_id, department_id, level_id, artifact_ref, generated_at, starts_at, ends_at
FROM scheduling.timetables
WHERE title = $1
`
	return r.getOne(ctx, query, title)
}

func (r *TimetablePostgresRepository) GetByID(ctx context.Context, id int64) (domain.Timetable, error) {
	const query = `
SELECT id, title, kind, institution_id, department_id, level_id, artifact_ref, generated_at, starts_at, ends_at
FROM scheduling.timetables
WHERE id = $1
`
	return r.getOne(ctx, query, id)
}

func (r *TimetablePostgresRepository) getOne(ctx context.Context, query string, arg any) (domain.Timetable, error) {
	var tt domain.Timetable
	var departmentID, levelID sql.NullInt64
	var artifactRef sql.NullString
	var startsAt, endsAt sql.NullTime
	err := r.execer.QueryRowContext(ctx, query, arg).Scan(
		&tt.ID,
		&tt.Title,
		&tt.Kind,
		&tt.InstitutionID,
		&departmentID,
		&levelID,
		&artifactRef,
		&tt.GeneratedAt,
		&startsAt,
		&endsAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Timetable{}, domain.ErrTimetableNotFound
	}
	if err != nil {
		return domain.Timetable{}, err
	}
	tt.DepartmentID = departmentID.Int64
	tt.LevelID = levelID.Int64
	if artifactRef.Valid {
		tt.ArtifactRef = artifactRef.String
	} else {
		tt.ArtifactPending = true
	}
	tt.WindowStartsAt = startsAt.Time
	tt.WindowEndsAt = endsAt.Time

	tt.Slots, err = r.listSlots(ctx, tt.ID)
	if err != nil {
		return domain.Timetable{}, err
	}
	return tt, nil
}

func (r *TimetablePostgresRepository) listSlots(ctx context.Context, timetableID int64) ([]domain.Slot, error) {
	const query = `
SELECT id, timetable_id, item_id, weekday, to_char(slot_date, 'YYYY-MM-DD'), start_minute, end_minute, venue_id
FROM scheduling.timetable_slots
WHERE timetable_id = $1
ORDER BY id ASC
`
	rows, err := r.execer.QueryContext(ctx, query, timetableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

// ReplaceSlots persists a regenerated timetable: the header row is
// upserted on its unique title and every prior slot is replaced by the
// new set. Runs inside the caller's transaction, so a failure leaves the
// previous timetable intact. The artifact reference is cleared; rendering
// happens after commit.
func (r *TimetablePostgresRepository) ReplaceSlots(ctx context.Context, tt domain.Timetable) (domain.Timetable, error) {
	const upsert = `
INSERT INTO scheduling.timetables (
	title,
	kind,
	institution_id,
	department_id,
	level_id,
	artifact_ref,
	generated_at,
	starts_at,
	ends_at,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, NULL, $6, $7, $8, now(), now())
ON CONFLICT (title)
DO UPDATE SET
	kind = EXCLUDED.kind,
	institution_id = EXCLUDED.institution_id,
	department_id = EXCLUDED.department_id,
	level_id = EXCLUDED.level_id,
	artifact_ref = NULL,
	generated_at = EXCLUDED.generated_at,
	starts_at = EXCLUDED.starts_at,
	ends_at = EXCLUDED.ends_at,
	updated_at = now()
RETURNING id
`
	generatedAt := tt.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	var id int64
	err := r.execer.QueryRowContext(
		ctx,
		upsert,
		tt.Title,
		tt.Kind,
		tt.InstitutionID,
		nullableID(tt.DepartmentID),
		nullableID(tt.LevelID),
		generatedAt,
		nullableTime(tt.WindowStartsAt),
		nullableTime(tt.WindowEndsAt),
	).Scan(&id)
	if err != nil {
		return domain.Timetable{}, err
	}

	if _, err := r.execer.ExecContext(ctx,
		`DELETE FROM scheduling.timetable_slots WHERE timetable_id = $1`, id); err != nil {
		return domain.Timetable{}, err
	}

	const insert = `
INSERT INTO scheduling.timetable_slots (
	timetable_id,
	item_id,
	weekday,
	slot_date,
	start_minute,
	end_minute,
	venue_id
) VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`
	persisted := tt
	persisted.ID = id
	persisted.GeneratedAt = generatedAt
	persisted.ArtifactRef = ""
	persisted.ArtifactPending = true
	persisted.Slots = make([]domain.Slot, 0, len(tt.Slots))
	for _, slot := range tt.Slots {
		row := slot
		row.TimetableID = id
		err := r.execer.QueryRowContext(
			ctx,
			insert,
			id,
			row.ItemID,
			int(row.Day.Weekday),
			nullableDate(row.Day.Date),
			row.StartMinute,
			row.EndMinute,
			row.VenueID,
		).Scan(&row.ID)
		if err != nil {
			return domain.Timetable{}, err
		}
		persisted.Slots = append(persisted.Slots, row)
	}

	return persisted, nil
}

func (r *TimetablePostgresRepository) UpdateSlot(ctx context.Context, timetableID int64, slot domain.Slot) error {
	const query = `
UPDATE scheduling.timetable_slots
SET weekday = $3, slot_date = $4, start_minute = $5, end_minute = $6, venue_id = $7
WHERE timetable_id = $1 AND item_id = $2
`
	result, err := r.execer.ExecContext(
		ctx,
		query,
		timetableID,
		slot.ItemID,
		int(slot.Day.Weekday),
		nullableDate(slot.Day.Date),
		slot.StartMinute,
		slot.EndMinute,
		slot.VenueID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

func (r *TimetablePostgresRepository) SetArtifact(ctx context.Context, id int64, ref string) error {
	const query = `
UPDATE scheduling.timetables
SET artifact_ref = $2, updated_at = now()
WHERE id = $1
`
	_, err := r.execer.ExecContext(ctx, query, id, ref)
	return err
}

// ListInstitutionSlots returns the slots of every other same-kind
// timetable in the institution. Generation seeds its availability index
// with these so a new timetable cannot double-book a venue or staff
// member already committed elsewhere.
func (r *TimetablePostgresRepository) ListInstitutionSlots(ctx context.Context, institutionID int64, kind, excludeTitle string) ([]domain.Slot, error) {
	const query = `
SELECT s.id, s.timetable_id, s.item_id, s.weekday, to_char(s.slot_date, 'YYYY-MM-DD'), s.start_minute, s.end_minute, s.venue_id
FROM scheduling.timetable_slots s
JOIN scheduling.timetables t ON t.id = s.timetable_id
WHERE t.institution_id = $1 AND t.kind = $2 AND t.title <> $3
ORDER BY s.id ASC
`
	rows, err := r.execer.QueryContext(ctx, query, institutionID, kind, excludeTitle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []domain.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

func scanSlot(row rowScanner) (domain.Slot, error) {
	var slot domain.Slot
	var weekday int
	var date sql.NullString
	err := row.Scan(
		&slot.ID,
		&slot.TimetableID,
		&slot.ItemID,
		&weekday,
		&date,
		&slot.StartMinute,
		&slot.EndMinute,
		&slot.VenueID,
	)
	if err != nil {
		return domain.Slot{}, err
	}
	slot.Day = domain.Day{Weekday: time.Weekday(weekday), Date: date.String}
	return slot, nil
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableDate(date string) any {
	if date == "" {
		return nil
	}
	return date
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
