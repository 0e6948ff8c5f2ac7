package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/repo"
)

const (
	assignmentsTable       = "assignments"
	assignmentSectionTable = "assignment_sections"
	assignmentFieldTable   = "assignment_section_fields"
)

const (
	assignmentListQuery = `
		SELECT id, application_id, level, status, remarks, created_at
		FROM assignments
		WHERE application_id = $1
		ORDER BY created_at`

	assignmentSectionsQuery = `
		SELECT id, assignment_id, section_type, resource_id
		FROM assignment_sections
		WHERE assignment_id = $1
		ORDER BY id`

	assignmentFieldsQuery = `
		SELECT id, assignment_section_id, field_name, remarks
		FROM assignment_section_fields
		WHERE assignment_section_id = $1
		ORDER BY id`

	rejectedSectionResourcesQuery = `
		SELECT s.section_type, s.resource_id
		FROM assignment_sections s
		JOIN assignments a ON a.id = s.assignment_id
		WHERE a.application_id = $1 AND a.level = $2 AND a.status = $3 AND s.resource_id IS NOT NULL`

	assignmentArchiveQuery = `
		INSERT INTO assignment_history (id, application_id, level, status, remarks, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)`

	assignmentSectionArchiveQuery = `
		INSERT INTO assignment_section_history (id, assignment_id, section_type, resource_id, is_active)
		VALUES ($1, $2, $3, $4, false)`

	assignmentFieldArchiveQuery = `
		INSERT INTO assignment_section_field_history (id, assignment_section_id, field_name, remarks, is_active)
		VALUES ($1, $2, $3, $4, false)`

	assignmentDeleteQuery = `DELETE FROM assignments WHERE id = $1`
)

type AssignmentRepository interface {
	Create(ctx context.Context, assignment *Assignment) error
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Assignment, error)
	// RejectedSectionResources returns, per section type, the resource ids
	// flagged for correction by applicant-facing rejected assignments. A
	// section appearing here is resource-scoped for completeness purposes.
	RejectedSectionResources(ctx context.Context, applicationID uuid.UUID) (map[string][]uuid.UUID, error)
	// ArchiveMatching moves every assignment holding at least one section
	// accepted by match into the history tables, original created_at intact,
	// then deletes the live rows. It returns the archived resource ids per
	// section type.
	ArchiveMatching(ctx context.Context, applicationID uuid.UUID, match func(sectionType string) bool) (map[string][]uuid.UUID, error)
}

type pgAssignmentRepository struct{}

func NewAssignmentRepository() AssignmentRepository {
	return &pgAssignmentRepository{}
}

func (r *pgAssignmentRepository) Create(ctx context.Context, assignment *Assignment) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	assignment.CreatedAt = time.Now().UTC()
	query := repo.Insert(assignmentsTable, []string{
		"application_id", "level", "status", "remarks", "created_at",
	}, "id")
	if err := tx.QueryRow(ctx, query,
		assignment.ApplicationID, assignment.Level, assignment.Status,
		assignment.Remarks, assignment.CreatedAt,
	).Scan(&assignment.ID); err != nil {
		return errors.Wrap(err, "insert assignment")
	}

	sectionQuery := repo.Insert(assignmentSectionTable, []string{"assignment_id", "section_type", "resource_id"}, "id")
	fieldQuery := repo.Insert(assignmentFieldTable, []string{"assignment_section_id", "field_name", "remarks"}, "id")
	for i := range assignment.Sections {
		section := &assignment.Sections[i]
		section.AssignmentID = assignment.ID
		if err := tx.QueryRow(ctx, sectionQuery,
			section.AssignmentID, section.SectionType, section.ResourceID,
		).Scan(&section.ID); err != nil {
			return errors.Wrap(err, "insert assignment section")
		}
		for j := range section.Fields {
			field := &section.Fields[j]
			field.AssignmentSectionID = section.ID
			if err := tx.QueryRow(ctx, fieldQuery,
				field.AssignmentSectionID, field.FieldName, field.Remarks,
			).Scan(&field.ID); err != nil {
				return errors.Wrap(err, "insert assignment section field")
			}
		}
	}
	return nil
}

func (r *pgAssignmentRepository) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, assignmentListQuery, applicationID)
	if err != nil {
		return nil, errors.Wrap(err, "list assignments")
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.ApplicationID, &a.Level, &a.Status, &a.Remarks, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan assignment")
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Sections, err = r.sections(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *pgAssignmentRepository) sections(ctx context.Context, assignmentID uuid.UUID) ([]AssignmentSection, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, assignmentSectionsQuery, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "list assignment sections")
	}
	defer rows.Close()

	var out []AssignmentSection
	for rows.Next() {
		var s AssignmentSection
		if err := rows.Scan(&s.ID, &s.AssignmentID, &s.SectionType, &s.ResourceID); err != nil {
			return nil, errors.Wrap(err, "scan assignment section")
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Fields, err = r.fields(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *pgAssignmentRepository) fields(ctx context.Context, sectionID uuid.UUID) ([]AssignmentSectionField, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, assignmentFieldsQuery, sectionID)
	if err != nil {
		return nil, errors.Wrap(err, "list assignment section fields")
	}
	defer rows.Close()

	var out []AssignmentSectionField
	for rows.Next() {
		var f AssignmentSectionField
		if err := rows.Scan(&f.ID, &f.AssignmentSectionID, &f.FieldName, &f.Remarks); err != nil {
			return nil, errors.Wrap(err, "scan assignment section field")
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *pgAssignmentRepository) RejectedSectionResources(ctx context.Context, applicationID uuid.UUID) (map[string][]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, rejectedSectionResourcesQuery,
		applicationID, AssignmentLevelHodToApplicant, AssignmentStatusRejected,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list rejected section resources")
	}
	defer rows.Close()

	out := map[string][]uuid.UUID{}
	for rows.Next() {
		var sectionType string
		var resourceID uuid.UUID
		if err := rows.Scan(&sectionType, &resourceID); err != nil {
			return nil, errors.Wrap(err, "scan rejected section resource")
		}
		out[sectionType] = append(out[sectionType], resourceID)
	}
	return out, rows.Err()
}

func (r *pgAssignmentRepository) ArchiveMatching(ctx context.Context, applicationID uuid.UUID, match func(sectionType string) bool) (map[string][]uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	assignments, err := r.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	moved := map[string][]uuid.UUID{}
	for _, assignment := range assignments {
		touches := false
		for _, section := range assignment.Sections {
			if match(section.SectionType) {
				touches = true
				break
			}
		}
		if !touches {
			continue
		}

		if _, err := tx.Exec(ctx, assignmentArchiveQuery,
			assignment.ID, assignment.ApplicationID, assignment.Level,
			assignment.Status, assignment.Remarks, assignment.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "archive assignment")
		}
		for _, section := range assignment.Sections {
			if _, err := tx.Exec(ctx, assignmentSectionArchiveQuery,
				section.ID, section.AssignmentID, section.SectionType, section.ResourceID,
			); err != nil {
				return nil, errors.Wrap(err, "archive assignment section")
			}
			for _, field := range section.Fields {
				if _, err := tx.Exec(ctx, assignmentFieldArchiveQuery,
					field.ID, field.AssignmentSectionID, field.FieldName, field.Remarks,
				); err != nil {
					return nil, errors.Wrap(err, "archive assignment section field")
				}
			}
			if match(section.SectionType) && section.ResourceID != nil {
				moved[section.SectionType] = append(moved[section.SectionType], *section.ResourceID)
			}
		}

		// Live children go with the parent via FK cascade.
		if _, err := tx.Exec(ctx, assignmentDeleteQuery, assignment.ID); err != nil {
			return nil, errors.Wrap(err, "delete assignment")
		}
	}
	return moved, nil
}
