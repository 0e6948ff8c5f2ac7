package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/modules/governance/persistence"
	"github.com/regworks/accredit-sdk/modules/governance/rolediff"
	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/eventbus"
	"github.com/regworks/accredit-sdk/pkg/serrors"
)

// CreateRoleRequestParams describes a proposed role change. Permissions is the
// desired post-approval permission list; it is reconciled against current
// state, so callers may send it sparse or complete.
type CreateRoleRequestParams struct {
	Action      persistence.RequestAction
	RoleID      *uuid.UUID
	Name        string
	Description string
	Permissions []rolediff.Incoming
}

// ReviewRoleRequestParams records a reviewer decision. PermissionDecisions
// optionally overrides individual permission lines by permission id; when
// empty the request is applied as submitted.
type ReviewRoleRequestParams struct {
	Status              persistence.RequestStatus
	Notes               *string
	PermissionDecisions map[uuid.UUID]persistence.RequestStatus
}

type RoleRequestService struct {
	requests    persistence.RoleRequestRepository
	roles       persistence.RoleRepository
	permissions persistence.PermissionRepository
	publisher   eventbus.EventBus
}

func NewRoleRequestService(
	requests persistence.RoleRequestRepository,
	roles persistence.RoleRepository,
	permissions persistence.PermissionRepository,
	publisher eventbus.EventBus,
) *RoleRequestService {
	return &RoleRequestService{
		requests:    requests,
		roles:       roles,
		permissions: permissions,
		publisher:   publisher,
	}
}

func (s *RoleRequestService) GetByID(ctx context.Context, id uuid.UUID) (*persistence.RoleRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrRoleRequestNotFound) {
			return nil, serrors.NewNotFound("ROLE_REQUEST_NOT_FOUND", "role request %s not found", id)
		}
		return nil, err
	}
	return request, nil
}

func (s *RoleRequestService) List(ctx context.Context, params persistence.RequestFindParams) ([]persistence.RoleRequest, error) {
	return s.requests.List(ctx, params)
}

func (s *RoleRequestService) Create(ctx context.Context, params CreateRoleRequestParams) (*persistence.RoleRequest, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}
	params.Action = inferAction(params.Action, params.RoleID)
	if err := s.validateCreate(params); err != nil {
		return nil, err
	}

	var request *persistence.RoleRequest
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		request, err = s.buildRequest(txCtx, actorID, params)
		if err != nil {
			return err
		}
		if err := s.requests.Create(txCtx, request); err != nil {
			return translatePgError(err, "ROLE_REQUEST_PENDING", "a pending request already targets this role")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(RoleRequestCreatedEvent{Request: request})
	return request, nil
}

func (s *RoleRequestService) validateCreate(params CreateRoleRequestParams) error {
	switch params.Action {
	case persistence.RequestActionCreate:
		if params.Name == "" {
			return serrors.NewFieldRequiredError("name")
		}
	case persistence.RequestActionUpdate:
		if params.RoleID == nil {
			return serrors.NewFieldRequiredError("roleId")
		}
		if params.Name == "" {
			return serrors.NewFieldRequiredError("name")
		}
	case persistence.RequestActionDelete:
		if params.RoleID == nil {
			return serrors.NewFieldRequiredError("roleId")
		}
	default:
		return serrors.NewValidation("INVALID_ACTION", "action", "unknown action %q", params.Action)
	}
	return nil
}

func (s *RoleRequestService) buildRequest(ctx context.Context, actorID uuid.UUID, params CreateRoleRequestParams) (*persistence.RoleRequest, error) {
	request := &persistence.RoleRequest{
		RoleID:      params.RoleID,
		Action:      params.Action,
		Status:      persistence.RequestStatusPending,
		Name:        params.Name,
		Description: params.Description,
		RequestedBy: actorID,
	}

	var current []rolediff.Current
	if params.Action == persistence.RequestActionCreate {
		if _, err := s.roles.GetByName(ctx, params.Name); err == nil {
			return nil, serrors.NewConflict("ROLE_NAME_TAKEN", "role %q already exists", params.Name)
		} else if !errors.Is(err, persistence.ErrRoleNotFound) {
			return nil, err
		}
		if _, err := s.requests.FindPendingCreateByName(ctx, params.Name); err == nil {
			return nil, serrors.NewConflict("ROLE_REQUEST_PENDING", "a pending create request already uses name %q", params.Name)
		} else if !errors.Is(err, persistence.ErrRoleRequestNotFound) {
			return nil, err
		}
	} else {
		role, err := s.roles.GetByID(ctx, *params.RoleID)
		if err != nil {
			if errors.Is(err, persistence.ErrRoleNotFound) {
				return nil, serrors.NewNotFound("ROLE_NOT_FOUND", "role %s not found", *params.RoleID)
			}
			return nil, err
		}
		request.OriginalName = &role.Name
		request.OriginalDescription = &role.Description
		if params.Action == persistence.RequestActionDelete {
			request.Name = role.Name
			request.Description = role.Description
		}

		if _, err := s.requests.FindPendingByRole(ctx, role.ID); err == nil {
			return nil, serrors.NewConflict("ROLE_REQUEST_PENDING", "role %s already has a pending request", role.ID)
		} else if !errors.Is(err, persistence.ErrRoleRequestNotFound) {
			return nil, err
		}

		held, err := s.roles.ListPermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		for _, rp := range held {
			current = append(current, rolediff.Current{
				RolePermissionID: rp.ID,
				PermissionID:     rp.PermissionID,
			})
		}
	}

	if params.Action == persistence.RequestActionDelete {
		// A delete request enumerates every held permission as removed.
		for _, c := range current {
			request.Permissions = append(request.Permissions, persistence.RolePermissionRequest{
				PermissionID:             c.PermissionID,
				Action:                   persistence.PermissionChangeDelete,
				OriginalRolePermissionID: ptr(c.RolePermissionID),
			})
		}
		return request, nil
	}

	ids := make([]uuid.UUID, 0, len(params.Permissions))
	for _, in := range params.Permissions {
		ids = append(ids, in.PermissionID)
	}
	if _, err := s.permissions.GetByIDs(ctx, ids); err != nil {
		if errors.Is(err, persistence.ErrPermissionNotFound) {
			return nil, serrors.NewValidation("PERMISSION_UNKNOWN", "permissions", "submitted permission does not exist")
		}
		return nil, err
	}

	for _, e := range rolediff.Reconcile(current, params.Permissions) {
		request.Permissions = append(request.Permissions, persistence.RolePermissionRequest{
			PermissionID:             e.PermissionID,
			Action:                   persistence.PermissionChangeAction(e.Action),
			OriginalRolePermissionID: e.OriginalRolePermissionID,
		})
	}
	return request, nil
}

// Review records the decision and, on approval, applies the change to the
// live role in the same transaction.
func (s *RoleRequestService) Review(ctx context.Context, id uuid.UUID, params ReviewRoleRequestParams) (*persistence.RoleRequest, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}
	if params.Status != persistence.RequestStatusApproved && params.Status != persistence.RequestStatusRejected {
		return nil, serrors.NewValidation("INVALID_STATUS", "status", "review status must be approved or rejected")
	}

	var request *persistence.RoleRequest
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		request, err = s.requests.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrRoleRequestNotFound) {
				return serrors.NewNotFound("ROLE_REQUEST_NOT_FOUND", "role request %s not found", id)
			}
			return err
		}
		if request.Status != persistence.RequestStatusPending {
			return serrors.NewConflict("ROLE_REQUEST_CLOSED", "role request %s is already %s", id, request.Status)
		}

		review := persistence.ReviewParams{
			Status:     params.Status,
			ReviewedBy: actorID,
			ReviewedAt: time.Now().UTC(),
			Notes:      params.Notes,
		}
		if err := s.requests.UpdateReview(txCtx, id, review); err != nil {
			return err
		}
		request.Status = params.Status
		request.ReviewedBy = &review.ReviewedBy
		request.ReviewedAt = &review.ReviewedAt
		request.ReviewNotes = params.Notes

		if params.Status != persistence.RequestStatusApproved {
			return nil
		}
		return s.apply(txCtx, request, params.PermissionDecisions)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(RoleRequestReviewedEvent{Request: request, Status: request.Status})
	return request, nil
}

func (s *RoleRequestService) apply(ctx context.Context, request *persistence.RoleRequest, decisions map[uuid.UUID]persistence.RequestStatus) error {
	finalSet := filterPermissionDecisions(request.Permissions, decisions)

	switch request.Action {
	case persistence.RequestActionCreate:
		role := &persistence.Role{
			Name:        request.Name,
			Description: request.Description,
			Version:     "v1",
		}
		if err := s.roles.Create(ctx, role); err != nil {
			return translatePgError(err, "ROLE_NAME_TAKEN", "role %q already exists", request.Name)
		}
		return s.roles.InsertPermissions(ctx, role.ID, finalSet)

	case persistence.RequestActionUpdate:
		// A vanished role leaves role_id null on the request.
		if request.RoleID == nil {
			return serrors.NewNotFound("ROLE_NOT_FOUND", "role for request %s no longer exists", request.ID)
		}
		role, err := s.roles.GetByID(ctx, *request.RoleID)
		if err != nil {
			if errors.Is(err, persistence.ErrRoleNotFound) {
				return serrors.NewNotFound("ROLE_NOT_FOUND", "role %s not found", *request.RoleID)
			}
			return err
		}
		role.Name = request.Name
		role.Description = request.Description
		role.Version = bumpVersion(role.Version)
		if err := s.roles.Update(ctx, role); err != nil {
			return translatePgError(err, "ROLE_NAME_TAKEN", "role %q already exists", request.Name)
		}
		// The permission set is replaced wholesale from the enumeration.
		if err := s.roles.DeletePermissions(ctx, role.ID); err != nil {
			return err
		}
		return s.roles.InsertPermissions(ctx, role.ID, finalSet)

	case persistence.RequestActionDelete:
		if request.RoleID == nil {
			return serrors.NewNotFound("ROLE_NOT_FOUND", "role for request %s no longer exists", request.ID)
		}
		count, err := s.roles.CountUserAssignments(ctx, *request.RoleID)
		if err != nil {
			return err
		}
		if count > 0 {
			return serrors.NewConflict("ROLE_IN_USE", "role %s is assigned to %d user(s)", *request.RoleID, count)
		}
		if err := s.roles.Delete(ctx, *request.RoleID); err != nil {
			if errors.Is(err, persistence.ErrRoleNotFound) {
				return serrors.NewNotFound("ROLE_NOT_FOUND", "role %s not found", *request.RoleID)
			}
			return err
		}
		return nil
	}
	return serrors.NewValidation("INVALID_ACTION", "action", "unknown action %q", request.Action)
}

// Remove discards a request that has not been reviewed yet.
func (s *RoleRequestService) Remove(ctx context.Context, id uuid.UUID) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.Delete(txCtx, id); err != nil {
			if errors.Is(err, persistence.ErrRoleRequestNotFound) {
				return serrors.NewNotFound("ROLE_REQUEST_NOT_FOUND", "pending role request %s not found", id)
			}
			return err
		}
		return nil
	})
}

// filterPermissionDecisions resolves the post-approval permission set. With no
// decisions the enumeration is applied as submitted. With decisions, create
// and delete lines take effect only when explicitly approved, and unchanged
// lines stay unless explicitly rejected.
func filterPermissionDecisions(
	permissions []persistence.RolePermissionRequest,
	decisions map[uuid.UUID]persistence.RequestStatus,
) []uuid.UUID {
	explicit := len(decisions) > 0
	var out []uuid.UUID
	for _, p := range permissions {
		decision, has := decisions[p.PermissionID]
		switch p.Action {
		case persistence.PermissionChangeUnchanged:
			if !(has && decision == persistence.RequestStatusRejected) {
				out = append(out, p.PermissionID)
			}
		case persistence.PermissionChangeCreate:
			if !explicit || (has && decision == persistence.RequestStatusApproved) {
				out = append(out, p.PermissionID)
			}
		case persistence.PermissionChangeDelete:
			// A vetoed delete keeps the permission.
			if explicit && !(has && decision == persistence.RequestStatusApproved) {
				out = append(out, p.PermissionID)
			}
		}
	}
	return out
}

// bumpVersion advances a version label of the form vN. Anything unparseable
// restarts the sequence at v2 since a bump only happens on an update.
func bumpVersion(version string) string {
	rest := strings.TrimPrefix(version, "v")
	n, err := strconv.Atoi(rest)
	if err != nil || rest == version || n < 1 {
		return "v2"
	}
	return "v" + strconv.Itoa(n+1)
}

// inferAction resolves an omitted action from target-id presence: no target
// means a create, a target means an update. Deletes are always explicit.
func inferAction(action persistence.RequestAction, targetID *uuid.UUID) persistence.RequestAction {
	if action != "" {
		return action
	}
	if targetID == nil {
		return persistence.RequestActionCreate
	}
	return persistence.RequestActionUpdate
}

func ptr[T any](v T) *T {
	return &v
}
