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

const applicationsTable = "warehouse_location_applications"

var ErrApplicationNotFound = errors.New("application not found")

const (
	applicationFindQuery = `
		SELECT id, applicant_id, status, metadata, created_at, updated_at
		FROM warehouse_location_applications`

	applicationStatusQuery   = `UPDATE warehouse_location_applications SET status = $1, updated_at = $2 WHERE id = $3`
	applicationMetadataQuery = `UPDATE warehouse_location_applications SET metadata = $1, updated_at = $2 WHERE id = $3`
)

type ApplicationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Application, error)
	// GetByIDForUpdate locks the application row for the rest of the
	// transaction. The resubmission check-and-archive sequence relies on it.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Application, error)
	Create(ctx context.Context, application *Application) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status ApplicationStatus) error
	UpdateMetadata(ctx context.Context, id uuid.UUID, metadata Metadata) error
}

type pgApplicationRepository struct{}

func NewApplicationRepository() ApplicationRepository {
	return &pgApplicationRepository{}
}

func (r *pgApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*Application, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanApplication(tx.QueryRow(ctx, applicationFindQuery+" WHERE id = $1", id))
}

func (r *pgApplicationRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Application, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanApplication(tx.QueryRow(ctx, applicationFindQuery+" WHERE id = $1 FOR UPDATE", id))
}

func (r *pgApplicationRepository) Create(ctx context.Context, application *Application) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	application.CreatedAt = now
	application.UpdatedAt = now
	if application.Status == "" {
		application.Status = ApplicationStatusDraft
	}
	if application.Metadata == nil {
		application.Metadata = Metadata{}
	}

	query := repo.Insert(applicationsTable, []string{
		"applicant_id", "status", "metadata", "created_at", "updated_at",
	}, "id")
	if err := tx.QueryRow(ctx, query,
		application.ApplicantID, application.Status, application.Metadata,
		application.CreatedAt, application.UpdatedAt,
	).Scan(&application.ID); err != nil {
		return errors.Wrap(err, "insert application")
	}
	return nil
}

func (r *pgApplicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status ApplicationStatus) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, applicationStatusQuery, status, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "update application status")
	}
	if tag.RowsAffected() == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func (r *pgApplicationRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata Metadata) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, applicationMetadataQuery, metadata, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "update application metadata")
	}
	if tag.RowsAffected() == 0 {
		return ErrApplicationNotFound
	}
	return nil
}

func scanApplication(row pgx.Row) (*Application, error) {
	var a Application
	err := row.Scan(&a.ID, &a.ApplicantID, &a.Status, &a.Metadata, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, errors.Wrap(err, "scan application")
	}
	return &a, nil
}
