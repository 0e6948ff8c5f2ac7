package services

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/modules/accreditation/persistence"
	"github.com/regworks/accredit-sdk/modules/accreditation/sections"
	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/eventbus"
)

// ResubmissionService coordinates the correction cycle: it records per-section
// resubmissions and, once every unlocked section is covered, promotes the
// application back to pending and archives the stale review artifacts.
type ResubmissionService struct {
	applications  persistence.ApplicationRepository
	rejections    persistence.RejectionRepository
	assignments   persistence.AssignmentRepository
	resubmissions persistence.ResubmissionRepository
	publisher     eventbus.EventBus
}

func NewResubmissionService(
	applications persistence.ApplicationRepository,
	rejections persistence.RejectionRepository,
	assignments persistence.AssignmentRepository,
	resubmissions persistence.ResubmissionRepository,
	publisher eventbus.EventBus,
) *ResubmissionService {
	return &ResubmissionService{
		applications:  applications,
		rejections:    rejections,
		assignments:   assignments,
		resubmissions: resubmissions,
		publisher:     publisher,
	}
}

var _ ResubmissionTracker = (*ResubmissionService)(nil)

// Track records that a section was edited. It is a no-op unless the
// application is rejected and the section is unlocked by an active rejection.
// The whole check-and-archive sequence runs under a row lock on the
// application so concurrent edits cannot double-promote.
func (s *ResubmissionService) Track(ctx context.Context, applicationID uuid.UUID, sectionType string, resourceID, assignmentSectionID *uuid.UUID) error {
	canonical, ok := sections.Resolve(sectionType)
	if !ok {
		return nil
	}

	var tracked bool
	var promoted *ApplicationResubmittedEvent
	err := composables.InTx(ctx, func(txCtx context.Context) error {
		app, err := s.applications.GetByIDForUpdate(txCtx, applicationID)
		if err != nil {
			if errors.Is(err, persistence.ErrApplicationNotFound) {
				return nil
			}
			return err
		}
		if app.Status != persistence.ApplicationStatusRejected {
			return nil
		}

		rejections, err := s.rejections.ListByApplication(txCtx, applicationID)
		if err != nil {
			return err
		}
		unlocked := unlockedSectionTypes(rejections)
		if !unlocked[canonical] {
			return nil
		}

		if err := s.resubmissions.Upsert(txCtx, &persistence.ResubmittedSection{
			ApplicationID:       applicationID,
			SectionType:         string(canonical),
			ResourceID:          resourceID,
			AssignmentSectionID: assignmentSectionID,
		}); err != nil {
			return err
		}
		tracked = true

		scoped, err := s.assignments.RejectedSectionResources(txCtx, applicationID)
		if err != nil {
			return err
		}
		resubmitted, err := s.resubmissions.ListByApplication(txCtx, applicationID)
		if err != nil {
			return err
		}
		if !resubmissionComplete(unlocked, scoped, resubmitted) {
			return nil
		}

		promoted, err = s.promote(txCtx, app, unlocked)
		return err
	})
	if err != nil {
		return err
	}

	if tracked {
		s.publisher.Publish(SectionResubmittedEvent{
			ApplicationID: applicationID,
			SectionType:   string(canonical),
			ResourceID:    resourceID,
		})
	}
	if promoted != nil {
		s.publisher.Publish(*promoted)
	}
	return nil
}

// promote flips the application back to pending and archives every assignment
// and rejection belonging to the finished correction cycle.
func (s *ResubmissionService) promote(ctx context.Context, app *persistence.Application, unlocked map[sections.Type]bool) (*ApplicationResubmittedEvent, error) {
	if err := s.applications.UpdateStatus(ctx, app.ID, persistence.ApplicationStatusPending); err != nil {
		return nil, err
	}

	moved, err := s.assignments.ArchiveMatching(ctx, app.ID, func(sectionType string) bool {
		t, ok := sections.Resolve(sectionType)
		return ok && unlocked[t]
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.rejections.ArchiveByApplication(ctx, app.ID); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(unlocked))
	for t := range unlocked {
		names = append(names, sections.DisplayName(t))
	}
	sort.Strings(names)

	resourcesBySection := map[string][]uuid.UUID{}
	for sectionType, ids := range moved {
		if t, ok := sections.Resolve(sectionType); ok {
			sectionType = string(t)
		}
		resourcesBySection[sectionType] = append(resourcesBySection[sectionType], ids...)
	}

	metadata := app.Metadata
	if metadata == nil {
		metadata = persistence.Metadata{}
	}
	metadata["isResubmitted"] = true
	metadata["resubmittedAt"] = time.Now().UTC().Format(time.RFC3339)
	metadata["resubmittedSections"] = names
	metadata["resubmittedResourcesBySection"] = resourcesBySection
	if err := s.applications.UpdateMetadata(ctx, app.ID, metadata); err != nil {
		return nil, err
	}

	if err := s.resubmissions.ClearByApplication(ctx, app.ID); err != nil {
		return nil, err
	}

	return &ApplicationResubmittedEvent{
		ApplicationID:      app.ID,
		Sections:           names,
		ResourcesBySection: resourcesBySection,
	}, nil
}

// unlockedSectionTypes resolves the union of unlocked-section names across all
// active rejections to canonical types. Unresolvable names are skipped.
func unlockedSectionTypes(rejections []persistence.Rejection) map[sections.Type]bool {
	out := map[sections.Type]bool{}
	for _, rejection := range rejections {
		for _, name := range rejection.UnlockedSections {
			if t, ok := sections.Resolve(name); ok {
				out[t] = true
			}
		}
	}
	return out
}

// resubmissionComplete decides whether every unlocked section is covered.
// A section with flagged resources is complete when each flagged resource has
// a tracking row; a singleton section needs just one tracking row. The
// predicate is recomputed from scratch on every edit, so out-of-order
// concurrent edits cannot leave a stale running counter.
func resubmissionComplete(
	unlocked map[sections.Type]bool,
	scoped map[string][]uuid.UUID,
	resubmitted []persistence.ResubmittedSection,
) bool {
	requiredResources := map[sections.Type]map[uuid.UUID]bool{}
	for sectionType, ids := range scoped {
		t, ok := sections.Resolve(sectionType)
		if !ok || !unlocked[t] {
			continue
		}
		if requiredResources[t] == nil {
			requiredResources[t] = map[uuid.UUID]bool{}
		}
		for _, id := range ids {
			requiredResources[t][id] = true
		}
	}

	covered := map[sections.Type]map[uuid.UUID]bool{}
	coveredAny := map[sections.Type]bool{}
	for _, row := range resubmitted {
		t, ok := sections.Resolve(row.SectionType)
		if !ok {
			continue
		}
		coveredAny[t] = true
		if row.ResourceID != nil {
			if covered[t] == nil {
				covered[t] = map[uuid.UUID]bool{}
			}
			covered[t][*row.ResourceID] = true
		}
	}

	for t := range unlocked {
		required := requiredResources[t]
		if len(required) == 0 {
			if !coveredAny[t] {
				return false
			}
			continue
		}
		for id := range required {
			if !covered[t][id] {
				return false
			}
		}
	}
	return true
}
