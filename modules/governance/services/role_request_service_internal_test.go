package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/regworks/accredit-sdk/modules/governance/persistence"
)

func TestBumpVersion(t *testing.T) {
	require.Equal(t, "v2", bumpVersion("v1"))
	require.Equal(t, "v3", bumpVersion("v2"))
	require.Equal(t, "v13", bumpVersion("v12"))
	require.Equal(t, "v2", bumpVersion(""))
	require.Equal(t, "v2", bumpVersion("1.0"))
	require.Equal(t, "v2", bumpVersion("v0"))
}

func TestFilterPermissionDecisions_NoDecisionsAppliesSubmitted(t *testing.T) {
	created, kept, removed := uuid.New(), uuid.New(), uuid.New()
	permissions := []persistence.RolePermissionRequest{
		{PermissionID: created, Action: persistence.PermissionChangeCreate},
		{PermissionID: kept, Action: persistence.PermissionChangeUnchanged},
		{PermissionID: removed, Action: persistence.PermissionChangeDelete},
	}

	out := filterPermissionDecisions(permissions, nil)
	require.ElementsMatch(t, []uuid.UUID{created, kept}, out)

	out = filterPermissionDecisions(permissions, map[uuid.UUID]persistence.RequestStatus{})
	require.ElementsMatch(t, []uuid.UUID{created, kept}, out)
}

func TestFilterPermissionDecisions_CreateNeedsExplicitApproval(t *testing.T) {
	approved, ignored := uuid.New(), uuid.New()
	permissions := []persistence.RolePermissionRequest{
		{PermissionID: approved, Action: persistence.PermissionChangeCreate},
		{PermissionID: ignored, Action: persistence.PermissionChangeCreate},
	}

	out := filterPermissionDecisions(permissions, map[uuid.UUID]persistence.RequestStatus{
		approved: persistence.RequestStatusApproved,
	})
	require.Equal(t, []uuid.UUID{approved}, out)
}

func TestFilterPermissionDecisions_VetoedDeleteKeepsPermission(t *testing.T) {
	vetoed, honored := uuid.New(), uuid.New()
	permissions := []persistence.RolePermissionRequest{
		{PermissionID: vetoed, Action: persistence.PermissionChangeDelete},
		{PermissionID: honored, Action: persistence.PermissionChangeDelete},
	}

	out := filterPermissionDecisions(permissions, map[uuid.UUID]persistence.RequestStatus{
		vetoed:  persistence.RequestStatusRejected,
		honored: persistence.RequestStatusApproved,
	})
	require.Equal(t, []uuid.UUID{vetoed}, out)
}

func TestFilterPermissionDecisions_UnchangedStaysUnlessRejected(t *testing.T) {
	kept, trimmed := uuid.New(), uuid.New()
	permissions := []persistence.RolePermissionRequest{
		{PermissionID: kept, Action: persistence.PermissionChangeUnchanged},
		{PermissionID: trimmed, Action: persistence.PermissionChangeUnchanged},
	}

	out := filterPermissionDecisions(permissions, map[uuid.UUID]persistence.RequestStatus{
		trimmed: persistence.RequestStatusRejected,
	})
	require.Equal(t, []uuid.UUID{kept}, out)
}
