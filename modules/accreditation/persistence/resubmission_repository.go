package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/pkg/composables"
)

const (
	// The COALESCE unique index on the natural key makes the upsert
	// idempotent even with null resource ids.
	resubmittedSectionUpsertQuery = `
		INSERT INTO resubmitted_sections (application_id, section_type, resource_id, assignment_section_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (application_id, section_type,
			COALESCE(resource_id, '00000000-0000-0000-0000-000000000000'::uuid),
			COALESCE(assignment_section_id, '00000000-0000-0000-0000-000000000000'::uuid))
		DO NOTHING`

	resubmittedSectionListQuery = `
		SELECT id, application_id, section_type, resource_id, assignment_section_id, created_at
		FROM resubmitted_sections
		WHERE application_id = $1
		ORDER BY created_at`

	resubmittedSectionClearQuery = `DELETE FROM resubmitted_sections WHERE application_id = $1`
)

type ResubmissionRepository interface {
	Upsert(ctx context.Context, section *ResubmittedSection) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]ResubmittedSection, error)
	// ClearByApplication removes the tracking rows once a correction cycle
	// completes, so the next rejection starts from a clean slate.
	ClearByApplication(ctx context.Context, applicationID uuid.UUID) error
}

type pgResubmissionRepository struct{}

func NewResubmissionRepository() ResubmissionRepository {
	return &pgResubmissionRepository{}
}

func (r *pgResubmissionRepository) Upsert(ctx context.Context, section *ResubmittedSection) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	section.CreatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx, resubmittedSectionUpsertQuery,
		section.ApplicationID, section.SectionType, section.ResourceID,
		section.AssignmentSectionID, section.CreatedAt,
	); err != nil {
		return errors.Wrap(err, "upsert resubmitted section")
	}
	return nil
}

func (r *pgResubmissionRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]ResubmittedSection, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, resubmittedSectionListQuery, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, "list resubmitted sections")
	}
	defer rows.Close()

	var out []ResubmittedSection
	for rows.Next() {
		var s ResubmittedSection
		if err := rows.Scan(&s.ID, &s.ApplicationID, &s.SectionType, &s.ResourceID, &s.AssignmentSectionID, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan resubmitted section")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgResubmissionRepository) ClearByApplication(ctx context.Context, applicationID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, resubmittedSectionClearQuery, applicationID); err != nil {
		return errors.Wrap(err, "clear resubmitted sections")
	}
	return nil
}
