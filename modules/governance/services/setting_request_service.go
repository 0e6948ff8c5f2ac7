package services

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/modules/governance/persistence"
	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/eventbus"
	"github.com/regworks/accredit-sdk/pkg/serrors"
)

type CreateSettingRequestParams struct {
	Action    persistence.RequestAction
	SettingID *uuid.UUID
	Key       string
	Value     string
	IV        *string
	AuthTag   *string
	MimeType  *string
	// OriginalName is the uploaded file name for binary-valued settings.
	OriginalName *string
}

type ReviewSettingRequestParams struct {
	Status persistence.RequestStatus
	Notes  *string
}

type SettingRequestService struct {
	requests  persistence.SettingRequestRepository
	settings  persistence.SettingRepository
	publisher eventbus.EventBus
}

func NewSettingRequestService(
	requests persistence.SettingRequestRepository,
	settings persistence.SettingRepository,
	publisher eventbus.EventBus,
) *SettingRequestService {
	return &SettingRequestService{
		requests:  requests,
		settings:  settings,
		publisher: publisher,
	}
}

func (s *SettingRequestService) GetByID(ctx context.Context, id uuid.UUID) (*persistence.SettingRequest, error) {
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrSettingRequestNotFound) {
			return nil, serrors.NewNotFound("SETTING_REQUEST_NOT_FOUND", "setting request %s not found", id)
		}
		return nil, err
	}
	return request, nil
}

func (s *SettingRequestService) List(ctx context.Context, params persistence.RequestFindParams) ([]persistence.SettingRequest, error) {
	return s.requests.List(ctx, params)
}

func (s *SettingRequestService) Create(ctx context.Context, params CreateSettingRequestParams) (*persistence.SettingRequest, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}
	params.Action = inferAction(params.Action, params.SettingID)
	if err := s.validateCreate(params); err != nil {
		return nil, err
	}

	var request *persistence.SettingRequest
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		request, err = s.buildRequest(txCtx, actorID, params)
		if err != nil {
			return err
		}
		if err := s.requests.Create(txCtx, request); err != nil {
			return translatePgError(err, "SETTING_REQUEST_PENDING", "a pending request already targets this setting")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(SettingRequestCreatedEvent{Request: request})
	return request, nil
}

func (s *SettingRequestService) validateCreate(params CreateSettingRequestParams) error {
	switch params.Action {
	case persistence.RequestActionCreate:
		if params.Key == "" {
			return serrors.NewFieldRequiredError("key")
		}
	case persistence.RequestActionUpdate:
		if params.SettingID == nil {
			return serrors.NewFieldRequiredError("settingId")
		}
		if params.Key == "" {
			return serrors.NewFieldRequiredError("key")
		}
	case persistence.RequestActionDelete:
		if params.SettingID == nil {
			return serrors.NewFieldRequiredError("settingId")
		}
	default:
		return serrors.NewValidation("INVALID_ACTION", "action", "unknown action %q", params.Action)
	}
	return nil
}

func (s *SettingRequestService) buildRequest(ctx context.Context, actorID uuid.UUID, params CreateSettingRequestParams) (*persistence.SettingRequest, error) {
	request := &persistence.SettingRequest{
		SettingID:    params.SettingID,
		Action:       params.Action,
		Status:       persistence.RequestStatusPending,
		Key:          params.Key,
		Value:        params.Value,
		IV:           params.IV,
		AuthTag:      params.AuthTag,
		MimeType:     params.MimeType,
		OriginalName: params.OriginalName,
		RequestedBy:  actorID,
	}

	if params.Action == persistence.RequestActionCreate {
		if _, err := s.settings.GetByKey(ctx, params.Key); err == nil {
			return nil, serrors.NewConflict("SETTING_KEY_TAKEN", "setting %q already exists", params.Key)
		} else if !errors.Is(err, persistence.ErrSettingNotFound) {
			return nil, err
		}
		if _, err := s.requests.FindPendingCreateByKey(ctx, params.Key); err == nil {
			return nil, serrors.NewConflict("SETTING_REQUEST_PENDING", "a pending create request already uses key %q", params.Key)
		} else if !errors.Is(err, persistence.ErrSettingRequestNotFound) {
			return nil, err
		}
		return request, nil
	}

	setting, err := s.settings.GetByID(ctx, *params.SettingID)
	if err != nil {
		if errors.Is(err, persistence.ErrSettingNotFound) {
			return nil, serrors.NewNotFound("SETTING_NOT_FOUND", "setting %s not found", *params.SettingID)
		}
		return nil, err
	}
	request.OriginalKey = &setting.Key
	request.OriginalValue = &setting.Value
	if params.Action == persistence.RequestActionDelete {
		request.Key = setting.Key
		request.Value = setting.Value
	}

	if _, err := s.requests.FindPendingBySetting(ctx, setting.ID); err == nil {
		return nil, serrors.NewConflict("SETTING_REQUEST_PENDING", "setting %s already has a pending request", setting.ID)
	} else if !errors.Is(err, persistence.ErrSettingRequestNotFound) {
		return nil, err
	}
	return request, nil
}

// Review records the decision and, on approval, applies the change to the
// live setting in the same transaction. A key collision is checked again at
// apply time since another request may have been approved in between.
func (s *SettingRequestService) Review(ctx context.Context, id uuid.UUID, params ReviewSettingRequestParams) (*persistence.SettingRequest, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}
	if params.Status != persistence.RequestStatusApproved && params.Status != persistence.RequestStatusRejected {
		return nil, serrors.NewValidation("INVALID_STATUS", "status", "review status must be approved or rejected")
	}

	var request *persistence.SettingRequest
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		request, err = s.requests.GetByID(txCtx, id)
		if err != nil {
			if errors.Is(err, persistence.ErrSettingRequestNotFound) {
				return serrors.NewNotFound("SETTING_REQUEST_NOT_FOUND", "setting request %s not found", id)
			}
			return err
		}
		if request.Status != persistence.RequestStatusPending {
			return serrors.NewConflict("SETTING_REQUEST_CLOSED", "setting request %s is already %s", id, request.Status)
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
		return s.apply(txCtx, request)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(SettingRequestReviewedEvent{Request: request, Status: request.Status})
	return request, nil
}

func (s *SettingRequestService) apply(ctx context.Context, request *persistence.SettingRequest) error {
	switch request.Action {
	case persistence.RequestActionCreate:
		setting := &persistence.Setting{
			Key:          request.Key,
			Value:        request.Value,
			IV:           request.IV,
			AuthTag:      request.AuthTag,
			MimeType:     request.MimeType,
			OriginalName: request.OriginalName,
		}
		if err := s.settings.Create(ctx, setting); err != nil {
			return translatePgError(err, "SETTING_KEY_TAKEN", "setting %q already exists", request.Key)
		}
		return nil

	case persistence.RequestActionUpdate:
		// A vanished setting leaves setting_id null on the request.
		if request.SettingID == nil {
			return serrors.NewNotFound("SETTING_NOT_FOUND", "setting for request %s no longer exists", request.ID)
		}
		setting, err := s.settings.GetByID(ctx, *request.SettingID)
		if err != nil {
			if errors.Is(err, persistence.ErrSettingNotFound) {
				return serrors.NewNotFound("SETTING_NOT_FOUND", "setting %s not found", *request.SettingID)
			}
			return err
		}
		setting.Key = request.Key
		setting.Value = request.Value
		setting.IV = request.IV
		setting.AuthTag = request.AuthTag
		setting.MimeType = request.MimeType
		setting.OriginalName = request.OriginalName
		if err := s.settings.Update(ctx, setting); err != nil {
			return translatePgError(err, "SETTING_KEY_TAKEN", "setting %q already exists", request.Key)
		}
		return nil

	case persistence.RequestActionDelete:
		if request.SettingID == nil {
			return serrors.NewNotFound("SETTING_NOT_FOUND", "setting for request %s no longer exists", request.ID)
		}
		if err := s.settings.Delete(ctx, *request.SettingID); err != nil {
			if errors.Is(err, persistence.ErrSettingNotFound) {
				return serrors.NewNotFound("SETTING_NOT_FOUND", "setting %s not found", *request.SettingID)
			}
			return err
		}
		return nil
	}
	return serrors.NewValidation("INVALID_ACTION", "action", "unknown action %q", request.Action)
}

// Remove discards a request that has not been reviewed yet.
func (s *SettingRequestService) Remove(ctx context.Context, id uuid.UUID) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.requests.Delete(txCtx, id); err != nil {
			if errors.Is(err, persistence.ErrSettingRequestNotFound) {
				return serrors.NewNotFound("SETTING_REQUEST_NOT_FOUND", "pending setting request %s not found", id)
			}
			return err
		}
		return nil
	})
}
