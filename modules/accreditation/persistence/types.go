package persistence

import (
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	ApplicationStatusDraft       ApplicationStatus = "draft"
	ApplicationStatusPending     ApplicationStatus = "pending"
	ApplicationStatusInProcess   ApplicationStatus = "in_process"
	ApplicationStatusApproved    ApplicationStatus = "approved"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
	ApplicationStatusResubmitted ApplicationStatus = "resubmitted"
)

// AssignmentLevelHodToApplicant marks correction work items addressed to the
// applicant. Only these participate in resubmission completeness.
const (
	AssignmentLevelHodToApplicant = "hod_to_applicant"
	AssignmentStatusRejected      = "rejected"
)

// Metadata is the application's free-form jsonb bag.
type Metadata map[string]any

type Application struct {
	ID          uuid.UUID
	ApplicantID uuid.UUID
	Status      ApplicationStatus
	Metadata    Metadata
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Rejection unlocks the named sections for applicant correction. Several
// rejections can accumulate across review cycles.
type Rejection struct {
	ID               uuid.UUID
	ApplicationID    uuid.UUID
	Reason           string
	RejectedBy       uuid.UUID
	UnlockedSections []string
	CreatedAt        time.Time
}

// ResubmittedSection records that one section, or one resource within a
// section, was edited since the last rejection. The natural key keeps
// repeated edits from producing duplicates.
type ResubmittedSection struct {
	ID                  uuid.UUID
	ApplicationID       uuid.UUID
	SectionType         string
	ResourceID          *uuid.UUID
	AssignmentSectionID *uuid.UUID
	CreatedAt           time.Time
}

type Assignment struct {
	ID            uuid.UUID
	ApplicationID uuid.UUID
	Level         string
	Status        string
	Remarks       *string
	CreatedAt     time.Time

	Sections []AssignmentSection
}

type AssignmentSection struct {
	ID           uuid.UUID
	AssignmentID uuid.UUID
	SectionType  string
	ResourceID   *uuid.UUID

	Fields []AssignmentSectionField
}

type AssignmentSectionField struct {
	ID                  uuid.UUID
	AssignmentSectionID uuid.UUID
	FieldName           string
	Remarks             *string
}

type Facility struct {
	ID                uuid.UUID
	ApplicationID     uuid.UUID
	Name              string
	Address           string
	StorageCapacityMT int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
