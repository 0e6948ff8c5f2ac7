package repo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/regworks/accredit-sdk/pkg/repo"
)

func TestInsert(t *testing.T) {
	require.Equal(t,
		"INSERT INTO roles (name, description) VALUES ($1, $2)",
		repo.Insert("roles", []string{"name", "description"}),
	)
	require.Equal(t,
		"INSERT INTO roles (name) VALUES ($1) RETURNING id, created_at",
		repo.Insert("roles", []string{"name"}, "id", "created_at"),
	)
}

func TestUpdate(t *testing.T) {
	require.Equal(t,
		"UPDATE roles SET name = $1, version = $2 WHERE id = $3",
		repo.Update("roles", []string{"name", "version"}, "id = $3"),
	)
	require.Equal(t,
		"UPDATE roles SET name = $1",
		repo.Update("roles", []string{"name"}, ""),
	)
}

func TestJoinAndJoinWhere(t *testing.T) {
	require.Equal(t, "SELECT 1 WHERE x ORDER BY y", repo.Join("SELECT 1", "", "WHERE x", " ", "ORDER BY y"))
	require.Equal(t, "", repo.JoinWhere())
	require.Equal(t, "WHERE a AND b", repo.JoinWhere("a", "b"))
}

func TestFormatLimitOffset(t *testing.T) {
	require.Equal(t, "LIMIT 10 OFFSET 20", repo.FormatLimitOffset(10, 20))
	require.Equal(t, "LIMIT 10", repo.FormatLimitOffset(10, 0))
	require.Equal(t, "OFFSET 20", repo.FormatLimitOffset(0, 20))
	require.Equal(t, "", repo.FormatLimitOffset(0, -1))
}

func TestNullable(t *testing.T) {
	unset := repo.Nullable[string]{}
	require.True(t, unset.IsUnset())
	require.Nil(t, unset.Arg())

	null := repo.NewNullableNull[string]()
	require.False(t, null.IsUnset())
	require.Nil(t, null.Arg())

	set := repo.NewNullableValue("x")
	require.False(t, set.IsUnset())
	require.Equal(t, "x", set.Arg())
}
