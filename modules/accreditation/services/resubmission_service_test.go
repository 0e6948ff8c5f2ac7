package services_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/regworks/accredit-sdk/modules/accreditation/persistence"
	"github.com/regworks/accredit-sdk/modules/accreditation/services"
)

func TestTrack_IdempotentPerNaturalKey(t *testing.T) {
	f := setupTest(t)
	app := f.seedRejectedApplication(t, "Facility Information", "Contact Information")
	f.env.CommitAndBegin(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.tracker.Track(f.ctx(), app.ID, "facility", nil, nil))
	}

	f.env.CommitAndBegin(t)
	rows, err := f.resubmissions.ListByApplication(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestTrack_IgnoresDraftApplications(t *testing.T) {
	f := setupTest(t)
	app := &persistence.Application{ApplicantID: f.env.ActorID}
	require.NoError(t, f.applications.Create(f.env.Ctx, app))
	f.env.CommitAndBegin(t)

	require.NoError(t, f.tracker.Track(f.ctx(), app.ID, "facility", nil, nil))

	f.env.CommitAndBegin(t)
	rows, err := f.resubmissions.ListByApplication(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestTrack_IgnoresLockedSections(t *testing.T) {
	f := setupTest(t)
	app := f.seedRejectedApplication(t, "Contact Information")
	f.env.CommitAndBegin(t)

	// Facility was never unlocked, so the edit is outside the cycle.
	require.NoError(t, f.tracker.Track(f.ctx(), app.ID, "facility", nil, nil))

	f.env.CommitAndBegin(t)
	rows, err := f.resubmissions.ListByApplication(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Empty(t, rows)

	fresh, err := f.applications.GetByID(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Equal(t, persistence.ApplicationStatusRejected, fresh.Status)
}

func TestTrack_PromotesWhenEveryUnlockedSectionResubmitted(t *testing.T) {
	f := setupTest(t)
	app := f.seedRejectedApplication(t, "Facility Information", "Contact Information")
	remarks := "incomplete data"
	assignment := f.seedAssignment(t, app.ID,
		persistence.AssignmentSection{SectionType: "facility"},
		persistence.AssignmentSection{
			SectionType: "contact",
			Fields:      []persistence.AssignmentSectionField{{FieldName: "phone", Remarks: &remarks}},
		},
	)
	f.env.CommitAndBegin(t)

	require.NoError(t, f.tracker.Track(f.ctx(), app.ID, "facility", nil, nil))

	f.env.CommitAndBegin(t)
	partial, err := f.applications.GetByID(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Equal(t, persistence.ApplicationStatusRejected, partial.Status)

	require.NoError(t, f.tracker.Track(f.ctx(), app.ID, "contact", nil, nil))

	f.env.CommitAndBegin(t)
	promoted, err := f.applications.GetByID(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Equal(t, persistence.ApplicationStatusPending, promoted.Status)
	require.Equal(t, true, promoted.Metadata["isResubmitted"])

	// The stale review artifacts moved to history wholesale.
	require.Zero(t, f.countRows(t, `SELECT COUNT(*) FROM assignments WHERE application_id = $1`, app.ID))
	require.Equal(t, 1, f.countRows(t,
		`SELECT COUNT(*) FROM assignment_history WHERE id = $1 AND is_active = false AND created_at = $2`,
		assignment.ID, assignment.CreatedAt,
	))
	require.Equal(t, 2, f.countRows(t,
		`SELECT COUNT(*) FROM assignment_section_history WHERE assignment_id = $1`, assignment.ID,
	))
	require.Equal(t, 1, f.countRows(t,
		`SELECT COUNT(*) FROM assignment_section_field_history WHERE field_name = 'phone'`,
	))
	require.Zero(t, f.countRows(t, `SELECT COUNT(*) FROM application_rejections WHERE application_id = $1`, app.ID))
	require.Equal(t, 1, f.countRows(t,
		`SELECT COUNT(*) FROM application_rejection_history WHERE application_id = $1`, app.ID,
	))

	// Tracking rows are cleared for the next cycle.
	rows, err := f.resubmissions.ListByApplication(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestTrack_ResourceScopedSectionNeedsEveryResource(t *testing.T) {
	f := setupTest(t)
	app := f.seedRejectedApplication(t, "Human Resources")
	hr1, hr2 := uuid.New(), uuid.New()
	f.seedAssignment(t, app.ID,
		persistence.AssignmentSection{SectionType: "human-resources", ResourceID: &hr1},
		persistence.AssignmentSection{SectionType: "human-resources", ResourceID: &hr2},
	)
	f.env.CommitAndBegin(t)

	require.NoError(t, f.tracker.Track(f.ctx(), app.ID, "human-resources", &hr1, nil))

	f.env.CommitAndBegin(t)
	partial, err := f.applications.GetByID(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Equal(t, persistence.ApplicationStatusRejected, partial.Status)

	require.NoError(t, f.tracker.Track(f.ctx(), app.ID, "human-resources", &hr2, nil))

	f.env.CommitAndBegin(t)
	promoted, err := f.applications.GetByID(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Equal(t, persistence.ApplicationStatusPending, promoted.Status)
}

func TestFacilitySave_SnapshotsAndTracksUnderRejection(t *testing.T) {
	f := setupTest(t)
	app := f.seedRejectedApplication(t, "Facility Information")
	facility := &persistence.Facility{
		ApplicationID:     app.ID,
		Name:              "North Depot",
		Address:           "1 Harbor Rd",
		StorageCapacityMT: 500,
	}
	require.NoError(t, f.facilities.Create(f.env.Ctx, facility))
	f.env.CommitAndBegin(t)

	saved, err := f.facilitySv.Save(f.ctx(), app.ID, services.SaveFacilityParams{
		Name:              "North Depot",
		Address:           "1 Harbor Road",
		StorageCapacityMT: 650,
	})
	require.NoError(t, err)
	require.Equal(t, 650, saved.StorageCapacityMT)

	f.env.CommitAndBegin(t)
	// Pre-edit state was snapshotted.
	require.Equal(t, 1, f.countRows(t,
		`SELECT COUNT(*) FROM facility_history WHERE facility_id = $1 AND address = '1 Harbor Rd'`,
		facility.ID,
	))
	// The lone unlocked section is complete, so the edit promoted the
	// application.
	promoted, err := f.applications.GetByID(f.ctx(), app.ID)
	require.NoError(t, err)
	require.Equal(t, persistence.ApplicationStatusPending, promoted.Status)
}

func TestFacilitySave_DraftEditsAreNotSnapshotted(t *testing.T) {
	f := setupTest(t)
	app := &persistence.Application{ApplicantID: f.env.ActorID}
	require.NoError(t, f.applications.Create(f.env.Ctx, app))
	f.env.CommitAndBegin(t)

	_, err := f.facilitySv.Save(f.ctx(), app.ID, services.SaveFacilityParams{
		Name:    "North Depot",
		Address: "1 Harbor Rd",
	})
	require.NoError(t, err)
	_, err = f.facilitySv.Save(f.ctx(), app.ID, services.SaveFacilityParams{
		Name:    "North Depot",
		Address: "2 Harbor Rd",
	})
	require.NoError(t, err)

	f.env.CommitAndBegin(t)
	require.Zero(t, f.countRows(t, `SELECT COUNT(*) FROM facility_history`))
}
