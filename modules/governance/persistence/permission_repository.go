package persistence

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/repo"
)

const permissionsTable = "permissions"

var ErrPermissionNotFound = errors.New("permission not found")

const (
	permissionFindByIDsQuery = `
		SELECT id, name, resource, action, description
		FROM permissions
		WHERE id = ANY($1)`

	permissionsForUserQuery = `
		SELECT p.id, p.name, p.resource, p.action, p.description
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		ORDER BY p.resource, p.action`

	permissionExistsForUserQuery = `
		SELECT EXISTS (
			SELECT 1
			FROM permissions p
			JOIN role_permissions rp ON rp.permission_id = p.id
			JOIN user_roles ur ON ur.role_id = rp.role_id
			WHERE ur.user_id = $1 AND p.name = $2
		)`
)

type PermissionRepository interface {
	Create(ctx context.Context, permission *Permission) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Permission, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]Permission, error)
	ExistsForUser(ctx context.Context, userID uuid.UUID, name string) (bool, error)
}

type pgPermissionRepository struct{}

func NewPermissionRepository() PermissionRepository {
	return &pgPermissionRepository{}
}

func (r *pgPermissionRepository) Create(ctx context.Context, permission *Permission) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	query := repo.Insert(permissionsTable, []string{"name", "resource", "action", "description"}, "id")
	if err := tx.QueryRow(ctx, query,
		permission.Name, permission.Resource, permission.Action, permission.Description,
	).Scan(&permission.ID); err != nil {
		return errors.Wrap(err, "insert permission")
	}
	return nil
}

// GetByIDs returns the permissions matching ids and errors if any id is
// unknown, so callers can validate a submitted permission list in one query.
func (r *pgPermissionRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, permissionFindByIDsQuery, ids)
	if err != nil {
		return nil, errors.Wrap(err, "find permissions")
	}
	defer rows.Close()

	found := make(map[uuid.UUID]bool, len(ids))
	var out []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description); err != nil {
			return nil, errors.Wrap(err, "scan permission")
		}
		found[p.ID] = true
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if !found[id] {
			return nil, errors.Wrapf(ErrPermissionNotFound, "id %s", id)
		}
	}
	return out, nil
}

func (r *pgPermissionRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]Permission, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, permissionsForUserQuery, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user permissions")
	}
	defer rows.Close()

	var out []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &p.Description); err != nil {
			return nil, errors.Wrap(err, "scan permission")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *pgPermissionRepository) ExistsForUser(ctx context.Context, userID uuid.UUID, name string) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, permissionExistsForUserQuery, userID, name).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "check user permission")
	}
	return exists, nil
}
