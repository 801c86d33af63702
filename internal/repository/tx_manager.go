package repository

import (
	"context"
	"database/sql"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type TxRepositories struct {
	Institutions InstitutionRepository
	Departments  DepartmentRepository
	Venues       VenueRepository
	Courses      CourseRepository
	Timetables   TimetableRepository
	Outbox       OutboxRepository
}

type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error
}

type PostgresTxManager struct {
	db *sql.DB
}

func NewPostgresTxManager(db *sql.DB) *PostgresTxManager {
	return &PostgresTxManager{db: db}
}

func (m *PostgresTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos TxRepositories) error) error {
	tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	repos := TxRepositories{
		Institutions: NewInstitutionPostgresRepository(tx),
		Departments:  NewDepartmentPostgresRepository(tx),
		Venues:       NewVenuePostgresRepository(tx),
		Courses:      NewCoursePostgresRepository(tx),
		Timetables:   NewTimetablePostgresRepository(tx),
		Outbox:       NewOutboxPostgresRepository(tx),
	}

	if err := fn(ctx, repos); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return rollbackErr
		}
		return err
	}

	return tx.Commit()
}
