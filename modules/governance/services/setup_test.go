package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/regworks/accredit-sdk/modules/governance/persistence"
	"github.com/regworks/accredit-sdk/modules/governance/services"
	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/eventbus"
	"github.com/regworks/accredit-sdk/pkg/itf"
)

type testFixture struct {
	env *itf.TestEnvironment

	roles        persistence.RoleRepository
	permissions  persistence.PermissionRepository
	users        persistence.UserRepository
	roleRequests *services.RoleRequestService
	userRequests *services.UserRequestService
	settings     *services.SettingRequestService
}

func setupTest(t *testing.T) *testFixture {
	t.Helper()
	env := itf.Setup(t)

	roleRepo := persistence.NewRoleRepository()
	roleRequestRepo := persistence.NewRoleRequestRepository()
	permissionRepo := persistence.NewPermissionRepository()
	settingRepo := persistence.NewSettingRepository()
	settingRequestRepo := persistence.NewSettingRequestRepository()
	userRepo := persistence.NewUserRepository()
	userRequestRepo := persistence.NewUserRequestRepository()

	publisher := eventbus.NewEventPublisher(logrus.New())
	permissionService := services.NewPermissionService(permissionRepo)

	f := &testFixture{
		env:          env,
		roles:        roleRepo,
		permissions:  permissionRepo,
		users:        userRepo,
		roleRequests: services.NewRoleRequestService(roleRequestRepo, roleRepo, permissionRepo, publisher),
		userRequests: services.NewUserRequestService(userRequestRepo, userRepo, roleRepo, permissionService, services.NewCredentialIssuer(), publisher),
		settings:     services.NewSettingRequestService(settingRequestRepo, settingRepo, publisher),
	}
	f.seedActor(t)
	return f
}

// seedActor inserts a users row for the environment's actor id so that
// requested_by and reviewed_by foreign keys resolve.
func (f *testFixture) seedActor(t *testing.T) {
	t.Helper()
	tx, err := composables.UseTx(f.env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, err = tx.Exec(f.env.Ctx, `
		INSERT INTO users (id, email, first_name, last_name, password, is_active)
		VALUES ($1, $2, 'Test', 'Reviewer', 'x', true)`,
		f.env.ActorID, f.env.ActorID.String()+"@example.com",
	)
	if err != nil {
		t.Fatal(err)
	}
}

func (f *testFixture) seedPermission(t *testing.T, name string) uuid.UUID {
	t.Helper()
	p := &persistence.Permission{Name: name, Resource: "warehouse", Action: name}
	if err := f.permissions.Create(f.env.Ctx, p); err != nil {
		t.Fatal(err)
	}
	return p.ID
}

func (f *testFixture) seedRole(t *testing.T, name string, permissionIDs ...uuid.UUID) *persistence.Role {
	t.Helper()
	role := &persistence.Role{Name: name, Description: name + " role"}
	if err := f.roles.Create(f.env.Ctx, role); err != nil {
		t.Fatal(err)
	}
	if err := f.roles.InsertPermissions(f.env.Ctx, role.ID, permissionIDs); err != nil {
		t.Fatal(err)
	}
	return role
}

func (f *testFixture) grantActorPermission(t *testing.T, permissionName string) {
	t.Helper()
	permID := f.seedPermission(t, permissionName)
	role := f.seedRole(t, "granted-"+permissionName, permID)
	if err := f.users.AssignRole(f.env.Ctx, f.env.ActorID, role.ID); err != nil {
		t.Fatal(err)
	}
}

func (f *testFixture) ctx() context.Context {
	return f.env.Ctx
}
