package services

import (
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/modules/accreditation/persistence"
)

type ApplicationRejectedEvent struct {
	Rejection *persistence.Rejection
}

type SectionResubmittedEvent struct {
	ApplicationID uuid.UUID
	SectionType   string
	ResourceID    *uuid.UUID
}

// ApplicationResubmittedEvent fires when every unlocked section has been
// resubmitted and the application returned to pending.
type ApplicationResubmittedEvent struct {
	ApplicationID      uuid.UUID
	Sections           []string
	ResourcesBySection map[string][]uuid.UUID
}

type FacilityUpdatedEvent struct {
	Facility *persistence.Facility
}
