package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/regworks/accredit-sdk/modules/accreditation/persistence"
	"github.com/regworks/accredit-sdk/modules/accreditation/services"
	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/eventbus"
	"github.com/regworks/accredit-sdk/pkg/itf"
)

type testFixture struct {
	env *itf.TestEnvironment

	applications  persistence.ApplicationRepository
	rejections    persistence.RejectionRepository
	assignments   persistence.AssignmentRepository
	resubmissions persistence.ResubmissionRepository
	facilities    persistence.FacilityRepository

	tracker     *services.ResubmissionService
	facilitySv  *services.FacilityService
	rejectionSv *services.RejectionService
}

func setupTest(t *testing.T) *testFixture {
	t.Helper()
	env := itf.Setup(t)

	applications := persistence.NewApplicationRepository()
	rejections := persistence.NewRejectionRepository()
	assignments := persistence.NewAssignmentRepository()
	resubmissions := persistence.NewResubmissionRepository()
	facilities := persistence.NewFacilityRepository()

	publisher := eventbus.NewEventPublisher(logrus.New())
	tracker := services.NewResubmissionService(applications, rejections, assignments, resubmissions, publisher)

	f := &testFixture{
		env:           env,
		applications:  applications,
		rejections:    rejections,
		assignments:   assignments,
		resubmissions: resubmissions,
		facilities:    facilities,
		tracker:       tracker,
		facilitySv:    services.NewFacilityService(applications, facilities, tracker, publisher),
		rejectionSv:   services.NewRejectionService(applications, rejections, publisher),
	}
	f.seedActor(t)
	return f
}

func (f *testFixture) seedActor(t *testing.T) {
	t.Helper()
	tx, err := composables.UseTx(f.env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, err = tx.Exec(f.env.Ctx, `
		INSERT INTO users (id, email, first_name, last_name, password, is_active)
		VALUES ($1, $2, 'Test', 'Applicant', 'x', true)`,
		f.env.ActorID, f.env.ActorID.String()+"@example.com",
	)
	if err != nil {
		t.Fatal(err)
	}
}

func (f *testFixture) seedRejectedApplication(t *testing.T, unlocked ...string) *persistence.Application {
	t.Helper()
	app := &persistence.Application{
		ApplicantID: f.env.ActorID,
		Status:      persistence.ApplicationStatusRejected,
	}
	if err := f.applications.Create(f.env.Ctx, app); err != nil {
		t.Fatal(err)
	}
	if err := f.rejections.Create(f.env.Ctx, &persistence.Rejection{
		ApplicationID:    app.ID,
		Reason:           "corrections required",
		RejectedBy:       f.env.ActorID,
		UnlockedSections: unlocked,
	}); err != nil {
		t.Fatal(err)
	}
	return app
}

func (f *testFixture) seedAssignment(t *testing.T, appID uuid.UUID, sections ...persistence.AssignmentSection) *persistence.Assignment {
	t.Helper()
	assignment := &persistence.Assignment{
		ApplicationID: appID,
		Level:         persistence.AssignmentLevelHodToApplicant,
		Status:        persistence.AssignmentStatusRejected,
		Sections:      sections,
	}
	if err := f.assignments.Create(f.env.Ctx, assignment); err != nil {
		t.Fatal(err)
	}
	return assignment
}

func (f *testFixture) countRows(t *testing.T, query string, args ...any) int {
	t.Helper()
	tx, err := composables.UseTx(f.env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	var count int
	if err := tx.QueryRow(f.env.Ctx, query, args...).Scan(&count); err != nil {
		t.Fatal(err)
	}
	return count
}

func (f *testFixture) ctx() context.Context {
	return f.env.Ctx
}
