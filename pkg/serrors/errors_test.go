package serrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regworks/accredit-sdk/pkg/serrors"
)

func TestErrorKinds(t *testing.T) {
	nf := serrors.NewNotFound("ROLE_NOT_FOUND", "role %s not found", "abc")
	require.ErrorIs(t, nf, serrors.ErrNotFound)
	require.NotErrorIs(t, nf, serrors.ErrConflict)
	require.Equal(t, "ROLE_NOT_FOUND: role abc not found", nf.Error())

	c := serrors.NewConflict("ROLE_IN_USE", "role is assigned")
	require.ErrorIs(t, c, serrors.ErrConflict)
}

func TestValidationCarriesField(t *testing.T) {
	v := serrors.NewValidation("INVALID_STATUS", "status", "bad value %q", "x")
	require.ErrorIs(t, v, serrors.ErrValidation)
	require.Equal(t, "status", v.Field)
	require.Equal(t, `INVALID_STATUS: bad value "x" (status)`, v.Error())
}

func TestFieldRequired(t *testing.T) {
	err := serrors.NewFieldRequiredError("email")
	require.ErrorIs(t, err, serrors.ErrValidation)

	var coded *serrors.Error
	require.True(t, errors.As(err, &coded))
	require.Equal(t, "FIELD_REQUIRED", coded.Code)
	require.Equal(t, "email", coded.Field)
}
