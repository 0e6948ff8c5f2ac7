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

type SaveFacilityParams struct {
	Name              string
	Address           string
	StorageCapacityMT int
}

// FacilityService owns the facility section of an application. When the
// application is under rejection the pre-edit row is snapshotted to history
// before mutation, and the edit is reported to the resubmission tracker.
type FacilityService struct {
	applications persistence.ApplicationRepository
	facilities   persistence.FacilityRepository
	tracker      ResubmissionTracker
	publisher    eventbus.EventBus
}

func NewFacilityService(
	applications persistence.ApplicationRepository,
	facilities persistence.FacilityRepository,
	tracker ResubmissionTracker,
	publisher eventbus.EventBus,
) *FacilityService {
	return &FacilityService{
		applications: applications,
		facilities:   facilities,
		tracker:      tracker,
		publisher:    publisher,
	}
}

func (s *FacilityService) GetByApplication(ctx context.Context, applicationID uuid.UUID) (*persistence.Facility, error) {
	facility, err := s.facilities.GetByApplication(ctx, applicationID)
	if err != nil {
		if errors.Is(err, persistence.ErrFacilityNotFound) {
			return nil, serrors.NewNotFound("FACILITY_NOT_FOUND", "application %s has no facility", applicationID)
		}
		return nil, err
	}
	return facility, nil
}

func (s *FacilityService) Save(ctx context.Context, applicationID uuid.UUID, params SaveFacilityParams) (*persistence.Facility, error) {
	if params.Name == "" {
		return nil, serrors.NewFieldRequiredError("name")
	}
	if params.Address == "" {
		return nil, serrors.NewFieldRequiredError("address")
	}

	var facility *persistence.Facility
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		app, err := s.applications.GetByID(txCtx, applicationID)
		if err != nil {
			if errors.Is(err, persistence.ErrApplicationNotFound) {
				return serrors.NewNotFound("APPLICATION_NOT_FOUND", "application %s not found", applicationID)
			}
			return err
		}

		facility, err = s.facilities.GetByApplication(txCtx, applicationID)
		switch {
		case err == nil:
			// Corrections under rejection keep an audit trail; draft edits
			// do not.
			if app.Status == persistence.ApplicationStatusRejected {
				if err := s.facilities.Snapshot(txCtx, facility.ID); err != nil {
					return err
				}
			}
			facility.Name = params.Name
			facility.Address = params.Address
			facility.StorageCapacityMT = params.StorageCapacityMT
			return s.facilities.Update(txCtx, facility)
		case errors.Is(err, persistence.ErrFacilityNotFound):
			facility = &persistence.Facility{
				ApplicationID:     applicationID,
				Name:              params.Name,
				Address:           params.Address,
				StorageCapacityMT: params.StorageCapacityMT,
			}
			return s.facilities.Create(txCtx, facility)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	// The tracker decides whether this edit belongs to a correction cycle.
	if err := s.tracker.Track(ctx, applicationID, string(sections.Facility), nil, nil); err != nil {
		return nil, err
	}

	s.publisher.Publish(FacilityUpdatedEvent{Facility: facility})
	return facility, nil
}
