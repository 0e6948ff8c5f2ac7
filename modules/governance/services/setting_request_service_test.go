package services_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regworks/accredit-sdk/modules/governance/persistence"
	"github.com/regworks/accredit-sdk/modules/governance/services"
	"github.com/regworks/accredit-sdk/pkg/serrors"
)

func TestSettingRequest_ApproveCreate(t *testing.T) {
	f := setupTest(t)
	f.env.CommitAndBegin(t)

	request, err := f.settings.Create(f.ctx(), services.CreateSettingRequestParams{
		Action: persistence.RequestActionCreate,
		Key:    "grading.threshold",
		Value:  "0.85",
	})
	require.NoError(t, err)

	_, err = f.settings.Review(f.ctx(), request.ID, services.ReviewSettingRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)

	f.env.CommitAndBegin(t)
	setting, err := persistence.NewSettingRepository().GetByKey(f.ctx(), "grading.threshold")
	require.NoError(t, err)
	require.Equal(t, "0.85", setting.Value)
}

func TestSettingRequest_KeyCollisionAtApplyKeepsRequestPending(t *testing.T) {
	f := setupTest(t)
	f.env.CommitAndBegin(t)

	request, err := f.settings.Create(f.ctx(), services.CreateSettingRequestParams{
		Action: persistence.RequestActionCreate,
		Key:    "grading.threshold",
		Value:  "0.85",
	})
	require.NoError(t, err)

	// The key materializes out-of-band while the request waits for review.
	settings := persistence.NewSettingRepository()
	require.NoError(t, settings.Create(f.ctx(), &persistence.Setting{
		Key:   "grading.threshold",
		Value: "0.90",
	}))
	f.env.CommitAndBegin(t)

	_, err = f.settings.Review(f.ctx(), request.ID, services.ReviewSettingRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.ErrorIs(t, err, serrors.ErrConflict)

	// The failed apply rolled the review back; the request stays pending
	// for manual resolution.
	f.env.CommitAndBegin(t)
	stale, err := f.settings.GetByID(f.ctx(), request.ID)
	require.NoError(t, err)
	require.Equal(t, persistence.RequestStatusPending, stale.Status)
}

func TestSettingRequest_SinglePendingPerSetting(t *testing.T) {
	f := setupTest(t)
	settings := persistence.NewSettingRepository()
	target := &persistence.Setting{Key: "billing.currency", Value: "USD"}
	require.NoError(t, settings.Create(f.ctx(), target))
	f.env.CommitAndBegin(t)

	_, err := f.settings.Create(f.ctx(), services.CreateSettingRequestParams{
		Action:    persistence.RequestActionUpdate,
		SettingID: &target.ID,
		Key:       "billing.currency",
		Value:     "EUR",
	})
	require.NoError(t, err)

	_, err = f.settings.Create(f.ctx(), services.CreateSettingRequestParams{
		Action:    persistence.RequestActionDelete,
		SettingID: &target.ID,
	})
	require.ErrorIs(t, err, serrors.ErrConflict)
}

func TestSettingRequest_ApproveDeleteRemovesSetting(t *testing.T) {
	f := setupTest(t)
	settings := persistence.NewSettingRepository()
	target := &persistence.Setting{Key: "billing.currency", Value: "USD"}
	require.NoError(t, settings.Create(f.ctx(), target))
	f.env.CommitAndBegin(t)

	request, err := f.settings.Create(f.ctx(), services.CreateSettingRequestParams{
		Action:    persistence.RequestActionDelete,
		SettingID: &target.ID,
	})
	require.NoError(t, err)

	_, err = f.settings.Review(f.ctx(), request.ID, services.ReviewSettingRequestParams{
		Status: persistence.RequestStatusApproved,
	})
	require.NoError(t, err)

	f.env.CommitAndBegin(t)
	_, err = settings.GetByKey(f.ctx(), "billing.currency")
	require.ErrorIs(t, err, persistence.ErrSettingNotFound)
}

func TestSettingRequest_ActionInferredFromTarget(t *testing.T) {
	f := setupTest(t)
	settings := persistence.NewSettingRepository()
	target := &persistence.Setting{Key: "billing.currency", Value: "USD"}
	require.NoError(t, settings.Create(f.ctx(), target))
	f.env.CommitAndBegin(t)

	// No action and no target id resolves to a create.
	created, err := f.settings.Create(f.ctx(), services.CreateSettingRequestParams{
		Key:   "grading.threshold",
		Value: "0.85",
	})
	require.NoError(t, err)
	require.Equal(t, persistence.RequestActionCreate, created.Action)

	// No action with a target id resolves to an update.
	updated, err := f.settings.Create(f.ctx(), services.CreateSettingRequestParams{
		SettingID: &target.ID,
		Key:       "billing.currency",
		Value:     "EUR",
	})
	require.NoError(t, err)
	require.Equal(t, persistence.RequestActionUpdate, updated.Action)
}
