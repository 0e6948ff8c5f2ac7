package persistence

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/repo"
)

const (
	rolesTable           = "roles"
	rolePermissionsTable = "role_permissions"
)

var ErrRoleNotFound = errors.New("role not found")

const (
	roleFindQuery = `
		SELECT id, name, description, version, created_at, updated_at
		FROM roles`

	roleUserAssignmentsCountQuery = `SELECT COUNT(*) FROM user_roles WHERE role_id = $1`

	rolePermissionsQuery = `
		SELECT id, role_id, permission_id
		FROM role_permissions
		WHERE role_id = $1
		ORDER BY id`

	rolePermissionsDeleteQuery = `DELETE FROM role_permissions WHERE role_id = $1`

	roleDeleteQuery = `DELETE FROM roles WHERE id = $1`
)

type RoleRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, role *Role) error
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListPermissions(ctx context.Context, roleID uuid.UUID) ([]RolePermission, error)
	DeletePermissions(ctx context.Context, roleID uuid.UUID) error
	InsertPermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error
	CountUserAssignments(ctx context.Context, roleID uuid.UUID) (int64, error)
}

type pgRoleRepository struct{}

func NewRoleRepository() RoleRepository {
	return &pgRoleRepository{}
}

func (r *pgRoleRepository) GetByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanRole(tx.QueryRow(ctx, roleFindQuery+" WHERE id = $1", id))
}

func (r *pgRoleRepository) GetByName(ctx context.Context, name string) (*Role, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanRole(tx.QueryRow(ctx, roleFindQuery+" WHERE name = $1", name))
}

func (r *pgRoleRepository) Create(ctx context.Context, role *Role) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	role.CreatedAt = now
	role.UpdatedAt = now
	if role.Version == "" {
		role.Version = "v1"
	}

	query := repo.Insert(rolesTable, []string{"name", "description", "version", "created_at", "updated_at"}, "id")
	if err := tx.QueryRow(ctx, query, role.Name, role.Description, role.Version, role.CreatedAt, role.UpdatedAt).Scan(&role.ID); err != nil {
		return errors.Wrap(err, "insert roles")
	}
	return nil
}

func (r *pgRoleRepository) Update(ctx context.Context, role *Role) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	role.UpdatedAt = time.Now().UTC()
	query := repo.Update(rolesTable, []string{"name", "description", "version", "updated_at"}, "id = $5")
	tag, err := tx.Exec(ctx, query, role.Name, role.Description, role.Version, role.UpdatedAt, role.ID)
	if err != nil {
		return errors.Wrap(err, "update roles")
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *pgRoleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, roleDeleteQuery, id)
	if err != nil {
		return errors.Wrap(err, "delete roles")
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleNotFound
	}
	return nil
}

func (r *pgRoleRepository) ListPermissions(ctx context.Context, roleID uuid.UUID) ([]RolePermission, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, rolePermissionsQuery, roleID)
	if err != nil {
		return nil, errors.Wrap(err, "list role permissions")
	}
	defer rows.Close()

	var out []RolePermission
	for rows.Next() {
		var rp RolePermission
		if err := rows.Scan(&rp.ID, &rp.RoleID, &rp.PermissionID); err != nil {
			return nil, errors.Wrap(err, "scan role permission")
		}
		out = append(out, rp)
	}
	return out, rows.Err()
}

func (r *pgRoleRepository) DeletePermissions(ctx context.Context, roleID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, rolePermissionsDeleteQuery, roleID); err != nil {
		return errors.Wrap(err, "delete role permissions")
	}
	return nil
}

func (r *pgRoleRepository) InsertPermissions(ctx context.Context, roleID uuid.UUID, permissionIDs []uuid.UUID) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := repo.Insert(rolePermissionsTable, []string{"role_id", "permission_id"})
	for _, permissionID := range permissionIDs {
		if _, err := tx.Exec(ctx, query, roleID, permissionID); err != nil {
			return errors.Wrap(err, "insert role permission")
		}
	}
	return nil
}

func (r *pgRoleRepository) CountUserAssignments(ctx context.Context, roleID uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, roleUserAssignmentsCountQuery, roleID).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "count role assignments")
	}
	return count, nil
}

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.Version, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, errors.Wrap(err, "scan role")
	}
	return &role, nil
}
