package services

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/modules/accreditation/persistence"
	"github.com/regworks/accredit-sdk/modules/accreditation/sections"
	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/eventbus"
	"github.com/regworks/accredit-sdk/pkg/serrors"
)

type RejectParams struct {
	ApplicationID    uuid.UUID
	Reason           string
	UnlockedSections []string
}

// RejectionService records review rejections and the sections they unlock.
// Setting the application status itself belongs to the review controller.
type RejectionService struct {
	applications persistence.ApplicationRepository
	rejections   persistence.RejectionRepository
	publisher    eventbus.EventBus
}

func NewRejectionService(
	applications persistence.ApplicationRepository,
	rejections persistence.RejectionRepository,
	publisher eventbus.EventBus,
) *RejectionService {
	return &RejectionService{
		applications: applications,
		rejections:   rejections,
		publisher:    publisher,
	}
}

func (s *RejectionService) Reject(ctx context.Context, params RejectParams) (*persistence.Rejection, error) {
	actorID, err := composables.UseActorID(ctx)
	if err != nil {
		return nil, err
	}
	if params.Reason == "" {
		return nil, serrors.NewFieldRequiredError("reason")
	}
	if len(params.UnlockedSections) == 0 {
		return nil, serrors.NewFieldRequiredError("unlockedSections")
	}
	for _, name := range params.UnlockedSections {
		if _, ok := sections.Resolve(name); !ok {
			return nil, serrors.NewValidation("SECTION_UNKNOWN", "unlockedSections", "unknown section %q", name)
		}
	}

	rejection := &persistence.Rejection{
		ApplicationID:    params.ApplicationID,
		Reason:           params.Reason,
		RejectedBy:       actorID,
		UnlockedSections: params.UnlockedSections,
	}
	err = composables.InTx(ctx, func(txCtx context.Context) error {
		if _, err := s.applications.GetByID(txCtx, params.ApplicationID); err != nil {
			if errors.Is(err, persistence.ErrApplicationNotFound) {
				return serrors.NewNotFound("APPLICATION_NOT_FOUND", "application %s not found", params.ApplicationID)
			}
			return err
		}
		return s.rejections.Create(txCtx, rejection)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ApplicationRejectedEvent{Rejection: rejection})
	return rejection, nil
}

func (s *RejectionService) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]persistence.Rejection, error) {
	return s.rejections.ListByApplication(ctx, applicationID)
}
