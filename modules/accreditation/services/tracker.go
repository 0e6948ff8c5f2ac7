package services

import (
	"context"

	"github.com/google/uuid"
)

// ResubmissionTracker is the contract every section-edit service calls after
// persisting its edit. Implementations decide whether the edit belongs to an
// active correction cycle and whether it completes the cycle. Injecting the
// interface keeps edit services from reaching into coordinator internals.
type ResubmissionTracker interface {
	Track(ctx context.Context, applicationID uuid.UUID, sectionType string, resourceID, assignmentSectionID *uuid.UUID) error
}
