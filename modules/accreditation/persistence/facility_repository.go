package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/repo"
)

const facilitiesTable = "facilities"

var ErrFacilityNotFound = errors.New("facility not found")

const (
	facilityFindQuery = `
		SELECT id, application_id, name, address, storage_capacity_mt, created_at, updated_at
		FROM facilities
		WHERE application_id = $1`

	facilitySnapshotQuery = `
		INSERT INTO facility_history (facility_id, application_id, name, address, storage_capacity_mt, created_at)
		SELECT id, application_id, name, address, storage_capacity_mt, created_at
		FROM facilities
		WHERE id = $1`
)

type FacilityRepository interface {
	GetByApplication(ctx context.Context, applicationID uuid.UUID) (*Facility, error)
	Create(ctx context.Context, facility *Facility) error
	Update(ctx context.Context, facility *Facility) error
	// Snapshot copies the current row into facility_history with its
	// original created_at, for the pre-edit audit trail of corrections.
	Snapshot(ctx context.Context, facilityID uuid.UUID) error
}

type pgFacilityRepository struct{}

func NewFacilityRepository() FacilityRepository {
	return &pgFacilityRepository{}
}

func (r *pgFacilityRepository) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*Facility, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var f Facility
	err = tx.QueryRow(ctx, facilityFindQuery, applicationID).Scan(
		&f.ID, &f.ApplicationID, &f.Name, &f.Address, &f.StorageCapacityMT, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFacilityNotFound
		}
		return nil, errors.Wrap(err, "scan facility")
	}
	return &f, nil
}

func (r *pgFacilityRepository) Create(ctx context.Context, facility *Facility) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	facility.CreatedAt = now
	facility.UpdatedAt = now
	query := repo.Insert(facilitiesTable, []string{
		"application_id", "name", "address", "storage_capacity_mt", "created_at", "updated_at",
	}, "id")
	if err := tx.QueryRow(ctx, query,
		facility.ApplicationID, facility.Name, facility.Address,
		facility.StorageCapacityMT, facility.CreatedAt, facility.UpdatedAt,
	).Scan(&facility.ID); err != nil {
		return errors.Wrap(err, "insert facility")
	}
	return nil
}

func (r *pgFacilityRepository) Update(ctx context.Context, facility *Facility) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	facility.UpdatedAt = time.Now().UTC()
	query := repo.Update(facilitiesTable,
		[]string{"name", "address", "storage_capacity_mt", "updated_at"},
		"id = $5",
	)
	tag, err := tx.Exec(ctx, query,
		facility.Name, facility.Address, facility.StorageCapacityMT, facility.UpdatedAt, facility.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update facility")
	}
	if tag.RowsAffected() == 0 {
		return ErrFacilityNotFound
	}
	return nil
}

func (r *pgFacilityRepository) Snapshot(ctx context.Context, facilityID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, facilitySnapshotQuery, facilityID); err != nil {
		return errors.Wrap(err, "snapshot facility")
	}
	return nil
}
