package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/repo"
)

const rejectionsTable = "application_rejections"

const (
	rejectionListQuery = `
		SELECT id, application_id, reason, rejected_by, unlocked_sections, created_at
		FROM application_rejections
		WHERE application_id = $1
		ORDER BY created_at`

	// Archival preserves the original row id and created_at so the audit
	// trail stays traceable after the live rows are purged.
	rejectionArchiveQuery = `
		INSERT INTO application_rejection_history (id, application_id, reason, rejected_by, unlocked_sections, created_at)
		SELECT id, application_id, reason, rejected_by, unlocked_sections, created_at
		FROM application_rejections
		WHERE application_id = $1`

	rejectionPurgeQuery = `DELETE FROM application_rejections WHERE application_id = $1`
)

type RejectionRepository interface {
	Create(ctx context.Context, rejection *Rejection) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Rejection, error)
	// ArchiveByApplication moves every live rejection of the application to
	// the history table and reports how many rows moved.
	ArchiveByApplication(ctx context.Context, applicationID uuid.UUID) (int64, error)
}

type pgRejectionRepository struct{}

func NewRejectionRepository() RejectionRepository {
	return &pgRejectionRepository{}
}

func (r *pgRejectionRepository) Create(ctx context.Context, rejection *Rejection) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	rejection.CreatedAt = time.Now().UTC()
	if rejection.UnlockedSections == nil {
		rejection.UnlockedSections = []string{}
	}
	query := repo.Insert(rejectionsTable, []string{
		"application_id", "reason", "rejected_by", "unlocked_sections", "created_at",
	}, "id")
	if err := tx.QueryRow(ctx, query,
		rejection.ApplicationID, rejection.Reason, rejection.RejectedBy,
		rejection.UnlockedSections, rejection.CreatedAt,
	).Scan(&rejection.ID); err != nil {
		return errors.Wrap(err, "insert rejection")
	}
	return nil
}

func (r *pgRejectionRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Rejection, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, rejectionListQuery, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, "list rejections")
	}
	defer rows.Close()

	var out []Rejection
	for rows.Next() {
		var rej Rejection
		if err := rows.Scan(&rej.ID, &rej.ApplicationID, &rej.Reason, &rej.RejectedBy, &rej.UnlockedSections, &rej.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan rejection")
		}
		out = append(out, rej)
	}
	return out, rows.Err()
}

func (r *pgRejectionRepository) ArchiveByApplication(ctx context.Context, applicationID uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, rejectionArchiveQuery, applicationID); err != nil {
		return 0, errors.Wrap(err, "archive rejections")
	}
	tag, err := tx.Exec(ctx, rejectionPurgeQuery, applicationID)
	if err != nil {
		return 0, errors.Wrap(err, "purge rejections")
	}
	return tag.RowsAffected(), nil
}
