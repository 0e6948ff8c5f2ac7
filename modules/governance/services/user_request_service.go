package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/modules/governance/persistence"
	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/eventbus"
	"github.com/regworks/accredit-sdk/pkg/repo"
	"github.com/regworks/accredit-sdk/pkg/serrors"
)

// FinalizePermission gates the committee stage of user request review.
const FinalizePermission = "users.requests.finalize"

// CreateUserRequestParams describes a proposed user change. For updates, nil
// fields are left untouched when the request is applied. Organization is
// tri-state: unset leaves it alone, null clears it.
type CreateUserRequestParams struct {
	Action       persistence.RequestAction
	UserID       *uuid.UUID
	Email        string
	FirstName    *string
	LastName     *string
	Organization repo.Nullable[string]
	IsActive     *bool
	RoleID       *uuid.UUID
}

type ReviewUserRequestParams struct {
	Status persistence.RequestStatus
	Notes  *string
}

type UserRequestService struct {
	requests    persistence.UserRequestRepository
	users       persistence.UserRepository
	roles       persistence.RoleRepository
	permissions *PermissionService
	credentials CredentialIssuer
	publisher   eventbus.EventBus
}

func NewUserRequestService(
	requests persistence.UserRequestRepository,
	users persistence.UserRepository,
	roles persistence.RoleRepository,
	permissions *PermissionService,
	credentials CredentialIssuer,
	publisher eventbus.EventBus,
) *UserRequestService {
	return &UserRequestService{
		requests:    requests,
		users:       users,
		roles:       roles,
		permissions: permissions,
		credentials: credentials,
		publisher:   publisher,
	}
}

func (s *UserRequestService) GetByID(ctx context.Context, id uuid.UUID) (*persistence.UserRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrUserRequestNotFound) {
			return nil, serrors.NewNotFound("USER_REQUEST_NOT_FOUND", "user request %s not found", id)
		}
		return nil, err
	}
	return request, nil
}

func (s *UserRequestService) List(ctx context.Context, params persistence.RequestFindParams) ([]persistence.UserRequest, error) {
	return s.requests.List(ctx, params)
}

func (s *UserRequestService) Create(ctx context.Context, params CreateUserRequestParams) (*persistence.UserRequest, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}
	params.Action = inferAction(params.Action, params.UserID)
	if err := s.validateCreate(params); err != nil {
		return nil, err
	}

	var request *persistence.UserRequest
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		request, err = s.buildRequest(txCtx, actorID, params)
		if err != nil {
			return err
		}
		if err := s.requests.Create(txCtx, request); err != nil {
			return translatePgError(err, "USER_REQUEST_PENDING", "a pending request already targets this user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(UserRequestCreatedEvent{Request: request})
	return request, nil
}

func (s *UserRequestService) validateCreate(params CreateUserRequestParams) error {
	switch params.Action {
	case persistence.RequestActionCreate:
		if params.Email == "" {
			return serrors.NewFieldRequiredError("email")
		}
		if params.FirstName == nil || *params.FirstName == "" {
			return serrors.NewFieldRequiredError("firstName")
		}
		if params.LastName == nil || *params.LastName == "" {
			return serrors.NewFieldRequiredError("lastName")
		}
		if params.RoleID == nil {
			return serrors.NewFieldRequiredError("roleId")
		}
	case persistence.RequestActionUpdate, persistence.RequestActionDelete:
		if params.UserID == nil {
			return serrors.NewFieldRequiredError("userId")
		}
	default:
		return serrors.NewValidation("INVALID_ACTION", "action", "unknown action %q", params.Action)
	}
	return nil
}

func (s *UserRequestService) buildRequest(ctx context.Context, actorID uuid.UUID, params CreateUserRequestParams) (*persistence.UserRequest, error) {
	request := &persistence.UserRequest{
		UserID:      params.UserID,
		Action:      params.Action,
		Status:      persistence.RequestStatusPending,
		Email:       params.Email,
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		IsActive:    params.IsActive,
		RoleID:      params.RoleID,
		RequestedBy: actorID,
	}
	if !params.Organization.IsUnset() {
		request.OrganizationSet = true
		if params.Organization.Valid {
			request.Organization = ptr(params.Organization.Value)
		}
	}

	if params.RoleID != nil {
		if _, err := s.roles.GetByID(ctx, *params.RoleID); err != nil {
			if errors.Is(err, persistence.ErrRoleNotFound) {
				return nil, serrors.NewNotFound("ROLE_NOT_FOUND", "role %s not found", *params.RoleID)
			}
			return nil, err
		}
	}

	if params.Action == persistence.RequestActionCreate {
		if _, err := s.users.GetByEmail(ctx, params.Email); err == nil {
			return nil, serrors.NewConflict("USER_EMAIL_TAKEN", "user %q already exists", params.Email)
		} else if !errors.Is(err, persistence.ErrUserNotFound) {
			return nil, err
		}
		if _, err := s.requests.FindPendingCreateByEmail(ctx, params.Email); err == nil {
			return nil, serrors.NewConflict("USER_REQUEST_PENDING", "a pending create request already uses email %q", params.Email)
		} else if !errors.Is(err, persistence.ErrUserRequestNotFound) {
			return nil, err
		}
		return request, nil
	}

	user, err := s.users.GetByID(ctx, *params.UserID)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return nil, serrors.NewNotFound("USER_NOT_FOUND", "user %s not found", *params.UserID)
		}
		return nil, err
	}
	request.OriginalEmail = &user.Email
	request.OriginalFirstName = &user.FirstName
	request.OriginalLastName = &user.LastName
	request.OriginalOrganization = user.Organization
	request.OriginalRoleID, err = s.users.GetRoleID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if request.Email == "" {
		request.Email = user.Email
	}

	if _, err := s.requests.FindPendingByUser(ctx, user.ID); err == nil {
		return nil, serrors.NewConflict("USER_REQUEST_PENDING", "user %s already has a pending request", user.ID)
	} else if !errors.Is(err, persistence.ErrUserRequestNotFound) {
		return nil, err
	}
	return request, nil
}

// Review records the first-line decision. An approval hands the request to
// the committee stage; nothing is applied to the live user yet.
func (s *UserRequestService) Review(ctx context.Context, id uuid.UUID, params ReviewUserRequestParams) (*persistence.UserRequest, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}
	if params.Status != persistence.RequestStatusApproved && params.Status != persistence.RequestStatusRejected {
		return nil, serrors.NewValidation("INVALID_STATUS", "status", "review status must be approved or rejected")
	}

	var request *persistence.UserRequest
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		request, err = s.requests.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrUserRequestNotFound) {
				return serrors.NewNotFound("USER_REQUEST_NOT_FOUND", "user request %s not found", id)
			}
			return err
		}
		if request.Status != persistence.RequestStatusPending {
			return serrors.NewConflict("USER_REQUEST_CLOSED", "user request %s is already %s", id, request.Status)
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
		if params.Status == persistence.RequestStatusApproved {
			pending := persistence.RequestStatusPending
			request.AdminStatus = &pending
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(UserRequestReviewedEvent{
		Request: request,
		Status:  request.Status,
		Final:   request.Status == persistence.RequestStatusRejected,
	})
	return request, nil
}

// FinalReview records the committee decision and, on approval, applies the
// change to the live user in the same transaction. The acting user must hold
// the finalize permission.
func (s *UserRequestService) FinalReview(ctx context.Context, id uuid.UUID, params ReviewUserRequestParams) (*persistence.UserRequest, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}
	if params.Status != persistence.RequestStatusApproved && params.Status != persistence.RequestStatusRejected {
		return nil, serrors.NewValidation("INVALID_STATUS", "status", "review status must be approved or rejected")
	}
	if err := s.permissions.Require(ctx, actorID, FinalizePermission); err != nil {
		return nil, err
	}

	var request *persistence.UserRequest
	var provisioned *UserProvisionedEvent
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		request, err = s.requests.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrUserRequestNotFound) {
				return serrors.NewNotFound("USER_REQUEST_NOT_FOUND", "user request %s not found", id)
			}
			return err
		}

		review := persistence.ReviewParams{
			Status:     params.Status,
			ReviewedBy: actorID,
			ReviewedAt: time.Now().UTC(),
			Notes:      params.Notes,
		}
		ok, err := s.requests.FinalizeAdminReview(txCtx, id, review)
		if err != nil {
			return err
		}
		if !ok {
			return serrors.NewConflict("USER_REQUEST_NOT_FINALIZABLE", "user request %s is not awaiting committee review", id)
		}
		request.AdminStatus = &review.Status
		request.AdminReviewedBy = &review.ReviewedBy
		request.AdminReviewedAt = &review.ReviewedAt
		request.AdminReviewNotes = params.Notes

		if params.Status != persistence.RequestStatusApproved {
			return nil
		}
		provisioned, err = s.apply(txCtx, request)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(UserRequestReviewedEvent{Request: request, Status: params.Status, Final: true})
	if provisioned != nil {
		s.publisher.Publish(*provisioned)
	}
	return request, nil
}

func (s *UserRequestService) apply(ctx context.Context, request *persistence.UserRequest) (*UserProvisionedEvent, error) {
	switch request.Action {
	case persistence.RequestActionCreate:
		clear, hash, err := s.credentials.Issue()
		if err != nil {
			return nil, err
		}
		user := &persistence.User{
			Email:        request.Email,
			FirstName:    deref(request.FirstName),
			LastName:     deref(request.LastName),
			Password:     hash,
			Organization: request.Organization,
			IsActive:     true,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, translatePgError(err, "USER_EMAIL_TAKEN", "user %q already exists", request.Email)
		}
		if request.RoleID != nil {
			if err := s.users.AssignRole(ctx, user.ID, *request.RoleID); err != nil {
				return nil, err
			}
		}
		return &UserProvisionedEvent{UserID: user.ID, Email: user.Email, TempPassword: clear}, nil

	case persistence.RequestActionUpdate:
		params := persistence.UserUpdateParams{}
		if request.Email != "" && (request.OriginalEmail == nil || request.Email != *request.OriginalEmail) {
			params.Email = repo.NewNullableValue(request.Email)
		}
		if request.FirstName != nil {
			params.FirstName = repo.NewNullableValue(*request.FirstName)
		}
		if request.LastName != nil {
			params.LastName = repo.NewNullableValue(*request.LastName)
		}
		if request.OrganizationSet {
			if request.Organization != nil {
				params.Organization = repo.NewNullableValue(*request.Organization)
			} else {
				params.Organization = repo.NewNullableNull[string]()
			}
		}
		if err := s.users.Update(ctx, *request.UserID, params); err != nil {
			return nil, translatePgError(err, "USER_EMAIL_TAKEN", "user %q already exists", request.Email)
		}
		if request.RoleID != nil {
			if err := s.users.AssignRole(ctx, *request.UserID, *request.RoleID); err != nil {
				return nil, err
			}
		}
		if request.IsActive != nil {
			if err := s.users.SetActive(ctx, *request.UserID, *request.IsActive); err != nil {
				return nil, err
			}
		}
		return nil, nil

	case persistence.RequestActionDelete:
		// Users are never hard-deleted; an approved delete deactivates.
		return nil, s.users.SetActive(ctx, *request.UserID, false)
	}
	return nil, serrors.NewValidation("INVALID_ACTION", "action", "unknown action %q", request.Action)
}

// Remove discards a request that has not been reviewed yet.
func (s *UserRequestService) Remove(ctx context.Context, id uuid.UUID) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.Delete(txCtx, id); err != nil {
			if errors.Is(err, persistence.ErrUserRequestNotFound) {
				return serrors.NewNotFound("USER_REQUEST_NOT_FOUND", "pending user request %s not found", id)
			}
			return err
		}
		return nil
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
