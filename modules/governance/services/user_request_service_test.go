package services_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regworks/accredit-sdk/modules/governance/persistence"
	"github.com/regworks/accredit-sdk/modules/governance/services"
	"github.com/regworks/accredit-sdk/pkg/repo"
	"github.com/regworks/accredit-sdk/pkg/serrors"
)

func strptr(s string) *string { return &s }

func TestUserRequest_TwoStageApproval(t *testing.T) {
	f := setupTest(t)
	f.grantActorPermission(t, services.FinalizePermission)
	role := f.seedRole(t, "operator")
	f.env.CommitAndBegin(t)

	request, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action:    persistence.RequestActionCreate,
		Email:     "new.operator@example.com",
		FirstName: strptr("New"),
		LastName:  strptr("Operator"),
		RoleID:    &role.ID,
	})
	require.NoError(t, err)
	require.Nil(t, request.AdminStatus)

	// First-line approval opens the committee stage without touching users.
	reviewed, err := f.userRequests.Review(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)
	require.NotNil(t, reviewed.AdminStatus)
	require.Equal(t, persistence.RequestStatusPending, *reviewed.AdminStatus)

	f.env.CommitAndBegin(t)
	_, err = f.users.GetByEmail(f.ctx(), "new.operator@example.com")
	require.ErrorIs(t, err, persistence.ErrUserNotFound)

	// Committee approval materializes the user with its single role.
	_, err = f.userRequests.FinalReview(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)

	f.env.CommitAndBegin(t)
	user, err := f.users.GetByEmail(f.ctx(), "new.operator@example.com")
	require.NoError(t, err)
	require.True(t, user.IsActive)
	require.NotEmpty(t, user.Password)

	roleID, err := f.users.GetRoleID(f.ctx(), user.ID)
	require.NoError(t, err)
	require.NotNil(t, roleID)
	require.Equal(t, role.ID, *roleID)
}

func TestUserRequest_FinalReviewRequiresFirstStage(t *testing.T) {
	f := setupTest(t)
	f.grantActorPermission(t, services.FinalizePermission)
	role := f.seedRole(t, "operator")
	f.env.CommitAndBegin(t)

	request, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action:    persistence.RequestActionCreate,
		Email:     "early@example.com",
		FirstName: strptr("Too"),
		LastName:  strptr("Early"),
		RoleID:    &role.ID,
	})
	require.NoError(t, err)

	// adminStatus is still null; the committee gate must refuse.
	_, err = f.userRequests.FinalReview(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.ErrorIs(t, err, serrors.ErrConflict)
}

func TestUserRequest_FinalReviewRequiresPermission(t *testing.T) {
	f := setupTest(t)
	role := f.seedRole(t, "operator")
	f.env.CommitAndBegin(t)

	request, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action:    persistence.RequestActionCreate,
		Email:     "gated@example.com",
		FirstName: strptr("Ga"),
		LastName:  strptr("Ted"),
		RoleID:    &role.ID,
	})
	require.NoError(t, err)

	_, err = f.userRequests.Review(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)

	// The actor holds no finalize permission; nothing may be applied.
	_, err = f.userRequests.FinalReview(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.ErrorIs(t, err, serrors.ErrValidation)

	f.env.CommitAndBegin(t)
	_, err = f.users.GetByEmail(f.ctx(), "gated@example.com")
	require.ErrorIs(t, err, persistence.ErrUserNotFound)
}

func TestUserRequest_FirstStageRejectionIsFinal(t *testing.T) {
	f := setupTest(t)
	f.grantActorPermission(t, services.FinalizePermission)
	role := f.seedRole(t, "operator")
	f.env.CommitAndBegin(t)

	request, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action:    persistence.RequestActionCreate,
		Email:     "refused@example.com",
		FirstName: strptr("Re"),
		LastName:  strptr("Fused"),
		RoleID:    &role.ID,
	})
	require.NoError(t, err)

	reviewed, err := f.userRequests.Review(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusRejected,
	})
	require.NoError(t, err)
	require.Nil(t, reviewed.AdminStatus)

	_, err = f.userRequests.FinalReview(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.ErrorIs(t, err, serrors.ErrConflict)
}

func TestUserRequest_ApprovedDeleteDeactivates(t *testing.T) {
	f := setupTest(t)
	f.grantActorPermission(t, services.FinalizePermission)
	f.env.CommitAndBegin(t)

	target := &persistence.User{
		Email:     "leaving@example.com",
		FirstName: "Lea",
		LastName:  "Ving",
		Password:  "x",
		IsActive:  true,
	}
	require.NoError(t, f.users.Create(f.ctx(), target))
	f.env.CommitAndBegin(t)

	request, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action: persistence.RequestActionDelete,
		UserID: &target.ID,
	})
	require.NoError(t, err)

	_, err = f.userRequests.Review(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)
	_, err = f.userRequests.FinalReview(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)

	// Soft delete only; the row survives deactivated.
	f.env.CommitAndBegin(t)
	user, err := f.users.GetByID(f.ctx(), target.ID)
	require.NoError(t, err)
	require.False(t, user.IsActive)
}

func TestUserRequest_SinglePendingPerUser(t *testing.T) {
	f := setupTest(t)
	f.env.CommitAndBegin(t)

	target := &persistence.User{
		Email:     "busy@example.com",
		FirstName: "Bu",
		LastName:  "Sy",
		Password:  "x",
		IsActive:  true,
	}
	require.NoError(t, f.users.Create(f.ctx(), target))
	f.env.CommitAndBegin(t)

	_, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action:       persistence.RequestActionUpdate,
		UserID:       &target.ID,
		Organization: repo.NewNullableValue("Northern Depot"),
	})
	require.NoError(t, err)

	_, err = f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action: persistence.RequestActionDelete,
		UserID: &target.ID,
	})
	require.ErrorIs(t, err, serrors.ErrConflict)
}

func TestUserRequest_ActionInferredFromTarget(t *testing.T) {
	f := setupTest(t)
	role := f.seedRole(t, "operator")
	target := &persistence.User{
		Email:     "existing@example.com",
		FirstName: "Ex",
		LastName:  "Isting",
		Password:  "x",
		IsActive:  true,
	}
	if err := f.users.Create(f.env.Ctx, target); err != nil {
		t.Fatal(err)
	}
	f.env.CommitAndBegin(t)

	// No action and no target id resolves to a create.
	created, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Email:     "implied.create@example.com",
		FirstName: strptr("Im"),
		LastName:  strptr("Plied"),
		RoleID:    &role.ID,
	})
	require.NoError(t, err)
	require.Equal(t, persistence.RequestActionCreate, created.Action)

	// No action with a target id resolves to an update.
	updated, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		UserID:    &target.ID,
		FirstName: strptr("Renamed"),
	})
	require.NoError(t, err)
	require.Equal(t, persistence.RequestActionUpdate, updated.Action)
}

func TestUserRequest_ApprovedUpdateClearsOrganization(t *testing.T) {
	f := setupTest(t)
	f.grantActorPermission(t, services.FinalizePermission)
	f.env.CommitAndBegin(t)

	target := &persistence.User{
		Email:        "org.holder@example.com",
		FirstName:    "Org",
		LastName:     "Holder",
		Password:     "x",
		IsActive:     true,
		Organization: strptr("Harbor Logistics"),
	}
	require.NoError(t, f.users.Create(f.ctx(), target))
	f.env.CommitAndBegin(t)

	// An explicit null asks for the organization to be cleared, which is
	// not the same as omitting the field.
	request, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action:       persistence.RequestActionUpdate,
		UserID:       &target.ID,
		Organization: repo.NewNullableNull[string](),
	})
	require.NoError(t, err)

	_, err = f.userRequests.Review(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)
	_, err = f.userRequests.FinalReview(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)

	f.env.CommitAndBegin(t)
	user, err := f.users.GetByID(f.ctx(), target.ID)
	require.NoError(t, err)
	require.Nil(t, user.Organization)
}

func TestUserRequest_OmittedOrganizationLeftUntouched(t *testing.T) {
	f := setupTest(t)
	f.grantActorPermission(t, services.FinalizePermission)
	f.env.CommitAndBegin(t)

	target := &persistence.User{
		Email:        "org.keeper@example.com",
		FirstName:    "Org",
		LastName:     "Keeper",
		Password:     "x",
		IsActive:     true,
		Organization: strptr("Harbor Logistics"),
	}
	require.NoError(t, f.users.Create(f.ctx(), target))
	f.env.CommitAndBegin(t)

	request, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action:    persistence.RequestActionUpdate,
		UserID:    &target.ID,
		FirstName: strptr("Renamed"),
	})
	require.NoError(t, err)

	_, err = f.userRequests.Review(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)
	_, err = f.userRequests.FinalReview(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)

	f.env.CommitAndBegin(t)
	user, err := f.users.GetByID(f.ctx(), target.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", user.FirstName)
	require.NotNil(t, user.Organization)
	require.Equal(t, "Harbor Logistics", *user.Organization)
}

func TestUserRequest_FinalReviewAppliesOnce(t *testing.T) {
	f := setupTest(t)
	f.grantActorPermission(t, services.FinalizePermission)
	role := f.seedRole(t, "operator")
	f.env.CommitAndBegin(t)

	request, err := f.userRequests.Create(f.ctx(), services.CreateUserRequestParams{
		Action:    persistence.RequestActionCreate,
		Email:     "once.only@example.com",
		FirstName: strptr("Once"),
		LastName:  strptr("Only"),
		RoleID:    &role.ID,
	})
	require.NoError(t, err)

	_, err = f.userRequests.Review(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)
	_, err = f.userRequests.FinalReview(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)
	f.env.CommitAndBegin(t)

	// A second committee decision must bounce off the status guard rather
	// than overwrite the recorded outcome or apply the change again.
	_, err = f.userRequests.FinalReview(f.ctx(), request.ID, services.ReviewUserRequestParams{
		Status: persistence.RequestStatusRejected,
	})
	require.ErrorIs(t, err, serrors.ErrConflict)

	f.env.CommitAndBegin(t)
	settled, err := f.userRequests.GetByID(f.ctx(), request.ID)
	require.NoError(t, err)
	require.NotNil(t, settled.AdminStatus)
	require.Equal(t, persistence.RequestStatusApproved, *settled.AdminStatus)

	user, err := f.users.GetByEmail(f.ctx(), "once.only@example.com")
	require.NoError(t, err)
	require.True(t, user.IsActive)
}
