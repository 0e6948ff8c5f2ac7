package persistence

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

type RequestAction string

const (
	RequestActionCreate RequestAction = "create"
	RequestActionUpdate RequestAction = "update"
	RequestActionDelete RequestAction = "delete"
)

type PermissionChangeAction string

const (
	PermissionChangeCreate    PermissionChangeAction = "create"
	PermissionChangeDelete    PermissionChangeAction = "delete"
	PermissionChangeUnchanged PermissionChangeAction = "unchanged"
)

// Role is the live, approved state. Version is a monotonic label (v1, v2, …)
// bumped on every approved update; the row itself is mutated in place.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	Version     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Permission struct {
	ID          uuid.UUID
	Name        string
	Resource    string
	Action      string
	Description string
}

type RolePermission struct {
	ID           uuid.UUID
	RoleID       uuid.UUID
	PermissionID uuid.UUID
}

type User struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	Password     string
	Organization *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Setting struct {
	ID           uuid.UUID
	Key          string
	Value        string
	IV           *string
	AuthTag      *string
	MimeType     *string
	OriginalName *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoleRequest is a pending change to a role. RoleID is nil for a create
// request. Original* columns snapshot the live row at request-creation time.
type RoleRequest struct {
	ID                  uuid.UUID
	RoleID              *uuid.UUID
	Action              RequestAction
	Status              RequestStatus
	Name                string
	Description         string
	OriginalName        *string
	OriginalDescription *string
	RequestedBy         uuid.UUID
	ReviewedBy          *uuid.UUID
	ReviewedAt          *time.Time
	ReviewNotes         *string
	CreatedAt           time.Time
	UpdatedAt           time.Time

	// Permissions is the complete enumeration of the role's post-approval
	// permission set, changed and unchanged alike.
	Permissions []RolePermissionRequest
}

type RolePermissionRequest struct {
	ID                       uuid.UUID
	RoleRequestID            uuid.UUID
	PermissionID             uuid.UUID
	Action                   PermissionChangeAction
	OriginalRolePermissionID *uuid.UUID
}

type SettingRequest struct {
	ID            uuid.UUID
	SettingID     *uuid.UUID
	Action        RequestAction
	Status        RequestStatus
	Key           string
	Value         string
	IV            *string
	AuthTag       *string
	MimeType      *string
	OriginalName  *string
	OriginalKey   *string
	OriginalValue *string
	RequestedBy   uuid.UUID
	ReviewedBy    *uuid.UUID
	ReviewedAt    *time.Time
	ReviewNotes   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserRequest carries two-stage review state: Status records the first-line
// decision, AdminStatus the final-committee one. AdminStatus stays nil until
// the first stage is recorded. OrganizationSet distinguishes "clear the
// organization" from "leave it untouched"; a nil Organization alone cannot.
type UserRequest struct {
	ID                   uuid.UUID
	UserID               *uuid.UUID
	Action               RequestAction
	Status               RequestStatus
	AdminStatus          *RequestStatus
	Email                string
	FirstName            *string
	LastName             *string
	Organization         *string
	OrganizationSet      bool
	IsActive             *bool
	RoleID               *uuid.UUID
	OriginalEmail        *string
	OriginalFirstName    *string
	OriginalLastName     *string
	OriginalOrganization *string
	OriginalRoleID       *uuid.UUID
	RequestedBy          uuid.UUID
	ReviewedBy           *uuid.UUID
	ReviewedAt           *time.Time
	ReviewNotes          *string
	AdminReviewedBy      *uuid.UUID
	AdminReviewedAt      *time.Time
	AdminReviewNotes     *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// RequestFindParams controls list pagination and status filtering, shared by
// the three request repositories.
type RequestFindParams struct {
	Statuses []RequestStatus
	Limit    int
	Offset   int
	SortAsc  bool
}

// ReviewParams records one review stage.
type ReviewParams struct {
	Status     RequestStatus
	ReviewedBy uuid.UUID
	ReviewedAt time.Time
	Notes      *string
}
