package repository

import (
	"context"
	"database/sql"
	"errors"

	"service-scheduling/internal/domain"
)

type InstitutionRepository interface {
	Get(ctx context.Context, id int64) (domain.Institution, error)
}

type DepartmentRepository interface {
	Get(ctx context.Context, id int64) (domain.Department, error)
}

type VenueRepository interface {
	ListByInstitution(ctx context.Context, institutionID int64) ([]domain.Venue, error)
}

type InstitutionPostgresRepository struct {
	execer Execer
}

func NewInstitutionPostgresRepository(execer Execer) *InstitutionPostgresRepository {
	return &InstitutionPostgresRepository{execer: execer}
}

func (r *InstitutionPostgresRepository) Get(ctx context.Context, id int64) (domain.Institution, error) {
	const query = `
SELECT id, name
FROM scheduling.institutions
WHERE id = $1
`
	var inst domain.Institution
	err := r.execer.QueryRowContext(ctx, query, id).Scan(&inst.ID, &inst.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Institution{}, domain.ErrScopeNotFound
	}
	if err != nil {
		return domain.Institution{}, err
	}
	return inst, nil
}

type DepartmentPostgresRepository struct {
	execer Execer
}

func NewDepartmentPostgresRepository(execer Execer) *DepartmentPostgresRepository {
	return &DepartmentPostgresRepository{execer: execer}
}

func (r *DepartmentPostgresRepository) Get(ctx context.Context, id int64) (domain.Department, error) {
	const query = `
SELECT id, institution_id, name
FROM scheduling.departments
WHERE id = $1
`
	var dept domain.Department
	err := r.execer.QueryRowContext(ctx, query, id).Scan(&dept.ID, &dept.InstitutionID, &dept.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Department{}, domain.ErrScopeNotFound
	}
	if err != nil {
		return domain.Department{}, err
	}
	return dept, nil
}

type VenuePostgresRepository struct {
	execer Execer
}

func NewVenuePostgresRepository(execer Execer) *VenuePostgresRepository {
	return &VenuePostgresRepository{execer: execer}
}

func (r *VenuePostgresRepository) ListByInstitution(ctx context.Context, institutionID int64) ([]domain.Venue, error) {
	const query = `
SELECT id, institution_id, name, location, capacity
FROM scheduling.venues
WHERE institution_id = $1
ORDER BY id ASC
`
	rows, err := r.execer.QueryContext(ctx, query, institutionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []domain.Venue
	for rows.Next() {
		var venue domain.Venue
		if err := rows.Scan(&venue.ID, &venue.InstitutionID, &venue.Name, &venue.Location, &venue.Capacity); err != nil {
			return nil, err
		}
		venues = append(venues, venue)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return venues, nil
}
