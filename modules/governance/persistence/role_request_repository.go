package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/regworks/accredit-sdk/pkg/composables"
	"github.com/regworks/accredit-sdk/pkg/repo"
)

const (
	roleRequestsTable           = "role_requests"
	rolePermissionRequestsTable = "role_permission_requests"
)

var ErrRoleRequestNotFound = errors.New("role request not found")

const (
	roleRequestColumns = `
		id, role_id, action, status, name, description,
		original_name, original_description,
		requested_by, reviewed_by, reviewed_at, review_notes,
		created_at, updated_at`

	roleRequestFindQuery = `SELECT ` + roleRequestColumns + ` FROM role_requests`

	rolePermissionRequestsQuery = `
		SELECT id, role_request_id, permission_id, action, original_role_permission_id
		FROM role_permission_requests
		WHERE role_request_id = $1
		ORDER BY id`

	roleRequestDeleteQuery = `DELETE FROM role_requests WHERE id = $1 AND status = 'pending'`
)

type RoleRequestRepository interface {
	Create(ctx context.Context, request *RoleRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*RoleRequest, error)
	FindPendingByRole(ctx context.Context, roleID uuid.UUID) (*RoleRequest, error)
	FindPendingCreateByName(ctx context.Context, name string) (*RoleRequest, error)
	List(ctx context.Context, params RequestFindParams) ([]RoleRequest, error)
	UpdateReview(ctx context.Context, id uuid.UUID, params ReviewParams) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgRoleRequestRepository struct{}

func NewRoleRequestRepository() RoleRequestRepository {
	return &pgRoleRequestRepository{}
}

// Create inserts the request and its complete permission enumeration in one
// shot. The caller is expected to hold a transaction.
func (r *pgRoleRequestRepository) Create(ctx context.Context, request *RoleRequest) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	request.CreatedAt = now
	request.UpdatedAt = now
	if request.Status == "" {
		request.Status = RequestStatusPending
	}

	query := repo.Insert(roleRequestsTable, []string{
		"role_id", "action", "status", "name", "description",
		"original_name", "original_description",
		"requested_by", "created_at", "updated_at",
	}, "id")
	if err := tx.QueryRow(ctx, query,
		request.RoleID,
		request.Action,
		request.Status,
		request.Name,
		request.Description,
		request.OriginalName,
		request.OriginalDescription,
		request.RequestedBy,
		request.CreatedAt,
		request.UpdatedAt,
	).Scan(&request.ID); err != nil {
		return errors.Wrap(err, "insert role request")
	}

	childQuery := repo.Insert(rolePermissionRequestsTable, []string{
		"role_request_id", "permission_id", "action", "original_role_permission_id",
	}, "id")
	for i := range request.Permissions {
		p := &request.Permissions[i]
		p.RoleRequestID = request.ID
		if err := tx.QueryRow(ctx, childQuery,
			p.RoleRequestID, p.PermissionID, p.Action, p.OriginalRolePermissionID,
		).Scan(&p.ID); err != nil {
			return errors.Wrap(err, "insert role permission request")
		}
	}
	return nil
}

func (r *pgRoleRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*RoleRequest, error) {
	return r.findOne(ctx, "WHERE id = $1", id)
}

func (r *pgRoleRequestRepository) FindPendingByRole(ctx context.Context, roleID uuid.UUID) (*RoleRequest, error) {
	return r.findOne(ctx, "WHERE role_id = $1 AND status = 'pending'", roleID)
}

func (r *pgRoleRequestRepository) FindPendingCreateByName(ctx context.Context, name string) (*RoleRequest, error) {
	return r.findOne(ctx, "WHERE name = $1 AND status = 'pending' AND action = 'create'", name)
}

func (r *pgRoleRequestRepository) findOne(ctx context.Context, where string, args ...any) (*RoleRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	request, err := scanRoleRequest(tx.QueryRow(ctx, repo.Join(roleRequestFindQuery, where), args...))
	if err != nil {
		return nil, err
	}
	request.Permissions, err = r.permissions(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *pgRoleRequestRepository) List(ctx context.Context, params RequestFindParams) ([]RoleRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	where, args := requestStatusFilter(params.Statuses)
	query := repo.Join(
		roleRequestFindQuery,
		where,
		requestOrderClause(params.SortAsc),
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list role requests")
	}
	defer rows.Close()

	var out []RoleRequest
	for rows.Next() {
		request, err := scanRoleRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *request)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Permissions, err = r.permissions(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *pgRoleRequestRepository) UpdateReview(ctx context.Context, id uuid.UUID, params ReviewParams) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := repo.Update(roleRequestsTable,
		[]string{"status", "reviewed_by", "reviewed_at", "review_notes", "updated_at"},
		"id = $6 AND status = 'pending'",
	)
	tag, err := tx.Exec(ctx, query,
		params.Status, params.ReviewedBy, params.ReviewedAt, params.Notes, time.Now().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "review role request")
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleRequestNotFound
	}
	return nil
}

func (r *pgRoleRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, roleRequestDeleteQuery, id)
	if err != nil {
		return errors.Wrap(err, "delete role request")
	}
	if tag.RowsAffected() == 0 {
		return ErrRoleRequestNotFound
	}
	return nil
}

func (r *pgRoleRequestRepository) permissions(ctx context.Context, requestID uuid.UUID) ([]RolePermissionRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, rolePermissionRequestsQuery, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "list role permission requests")
	}
	defer rows.Close()

	var out []RolePermissionRequest
	for rows.Next() {
		var p RolePermissionRequest
		if err := rows.Scan(&p.ID, &p.RoleRequestID, &p.PermissionID, &p.Action, &p.OriginalRolePermissionID); err != nil {
			return nil, errors.Wrap(err, "scan role permission request")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanRoleRequest(row pgx.Row) (*RoleRequest, error) {
	var request RoleRequest
	err := row.Scan(
		&request.ID,
		&request.RoleID,
		&request.Action,
		&request.Status,
		&request.Name,
		&request.Description,
		&request.OriginalName,
		&request.OriginalDescription,
		&request.RequestedBy,
		&request.ReviewedBy,
		&request.ReviewedAt,
		&request.ReviewNotes,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleRequestNotFound
		}
		return nil, errors.Wrap(err, "scan role request")
	}
	return &request, nil
}

// requestStatusFilter renders a WHERE clause for the shared status filter.
func requestStatusFilter(statuses []RequestStatus) (string, []any) {
	if len(statuses) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = s
	}
	return repo.JoinWhere("status IN (" + strings.Join(placeholders, ", ") + ")"), args
}

func requestOrderClause(asc bool) string {
	if asc {
		return "ORDER BY created_at ASC"
	}
	return "ORDER BY created_at DESC"
}
