package services

import (
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/modules/governance/persistence"
)

// Request lifecycle events, published after the owning transaction commits.

type RoleRequestCreatedEvent struct {
	Request *persistence.RoleRequest
}

type RoleRequestReviewedEvent struct {
	Request *persistence.RoleRequest
	Status  persistence.RequestStatus
}

type SettingRequestCreatedEvent struct {
	Request *persistence.SettingRequest
}

type SettingRequestReviewedEvent struct {
	Request *persistence.SettingRequest
	Status  persistence.RequestStatus
}

type UserRequestCreatedEvent struct {
	Request *persistence.UserRequest
}

type UserRequestReviewedEvent struct {
	Request *persistence.UserRequest
	Status  persistence.RequestStatus
	// Final reports whether this review closed the request. The first-line
	// approval of a user request is not final; everything else is.
	Final bool
}

// UserProvisionedEvent fires when an approved create request materializes a
// user. TempPassword carries the generated credential for delivery; it is
// never persisted in clear.
type UserProvisionedEvent struct {
	UserID       uuid.UUID
	Email        string
	TempPassword string
}
