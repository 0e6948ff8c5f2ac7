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

const userRequestsTable = "user_requests"

var ErrUserRequestNotFound = errors.New("user request not found")

const (
	userRequestColumns = `
		id, user_id, action, status, admin_status,
		email, first_name, last_name, organization, organization_set, is_active, role_id,
		original_email, original_first_name, original_last_name, original_organization, original_role_id,
		requested_by, reviewed_by, reviewed_at, review_notes,
		admin_reviewed_by, admin_reviewed_at, admin_review_notes,
		created_at, updated_at`

	userRequestFindQuery = `SELECT ` + userRequestColumns + ` FROM user_requests`

	userRequestDeleteQuery = `DELETE FROM user_requests WHERE id = $1 AND status = 'pending'`

	// The first-line approval opens the committee stage atomically.
	userRequestFirstReviewQuery = `
		UPDATE user_requests
		SET status = $1, admin_status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5, updated_at = $6
		WHERE id = $7 AND status = 'pending'`

	// The status guard keeps two committee reviewers from both finalizing.
	userRequestAdminReviewQuery = `
		UPDATE user_requests
		SET admin_status = $1, admin_reviewed_by = $2, admin_reviewed_at = $3, admin_review_notes = $4, updated_at = $5
		WHERE id = $6 AND status = 'approved' AND admin_status = 'pending'`
)

type UserRequestRepository interface {
	Create(ctx context.Context, request *UserRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*UserRequest, error)
	FindPendingByUser(ctx context.Context, userID uuid.UUID) (*UserRequest, error)
	FindPendingCreateByEmail(ctx context.Context, email string) (*UserRequest, error)
	List(ctx context.Context, params RequestFindParams) ([]UserRequest, error)
	UpdateReview(ctx context.Context, id uuid.UUID, params ReviewParams) error
	FinalizeAdminReview(ctx context.Context, id uuid.UUID, params ReviewParams) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgUserRequestRepository struct{}

func NewUserRequestRepository() UserRequestRepository {
	return &pgUserRequestRepository{}
}

func (r *pgUserRequestRepository) Create(ctx context.Context, request *UserRequest) error {
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

	query := repo.Insert(userRequestsTable, []string{
		"user_id", "action", "status",
		"email", "first_name", "last_name", "organization", "organization_set", "is_active", "role_id",
		"original_email", "original_first_name", "original_last_name", "original_organization", "original_role_id",
		"requested_by", "created_at", "updated_at",
	}, "id")
	if err := tx.QueryRow(ctx, query,
		request.UserID,
		request.Action,
		request.Status,
		request.Email,
		request.FirstName,
		request.LastName,
		request.Organization,
		request.OrganizationSet,
		request.IsActive,
		request.RoleID,
		request.OriginalEmail,
		request.OriginalFirstName,
		request.OriginalLastName,
		request.OriginalOrganization,
		request.OriginalRoleID,
		request.RequestedBy,
		request.CreatedAt,
		request.UpdatedAt,
	).Scan(&request.ID); err != nil {
		return errors.Wrap(err, "insert user request")
	}
	return nil
}

func (r *pgUserRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*UserRequest, error) {
	return r.findOne(ctx, "WHERE id = $1", id)
}

func (r *pgUserRequestRepository) FindPendingByUser(ctx context.Context, userID uuid.UUID) (*UserRequest, error) {
	return r.findOne(ctx, "WHERE user_id = $1 AND status = 'pending'", userID)
}

func (r *pgUserRequestRepository) FindPendingCreateByEmail(ctx context.Context, email string) (*UserRequest, error) {
	return r.findOne(ctx, "WHERE email = $1 AND status = 'pending' AND action = 'create'", email)
}

func (r *pgUserRequestRepository) findOne(ctx context.Context, where string, args ...any) (*UserRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanUserRequest(tx.QueryRow(ctx, repo.Join(userRequestFindQuery, where), args...))
}

func (r *pgUserRequestRepository) List(ctx context.Context, params RequestFindParams) ([]UserRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	where, args := requestStatusFilter(params.Statuses)
	query := repo.Join(
		userRequestFindQuery,
		where,
		requestOrderClause(params.SortAsc),
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list user requests")
	}
	defer rows.Close()

	var out []UserRequest
	for rows.Next() {
		request, err := scanUserRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *request)
	}
	return out, rows.Err()
}

// UpdateReview records the first-line decision. An approval moves the request
// into the committee stage by setting admin_status to pending; a rejection
// leaves admin_status null and the request is final.
func (r *pgUserRequestRepository) UpdateReview(ctx context.Context, id uuid.UUID, params ReviewParams) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var adminStatus *RequestStatus
	if params.Status == RequestStatusApproved {
		s := RequestStatusPending
		adminStatus = &s
	}
	tag, err := tx.Exec(ctx, userRequestFirstReviewQuery,
		params.Status, adminStatus, params.ReviewedBy, params.ReviewedAt, params.Notes, time.Now().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "review user request")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserRequestNotFound
	}
	return nil
}

// FinalizeAdminReview records the committee decision. It reports false when
// the request was not awaiting committee review, so the caller can distinguish
// a lost race from a missing row.
func (r *pgUserRequestRepository) FinalizeAdminReview(ctx context.Context, id uuid.UUID, params ReviewParams) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, userRequestAdminReviewQuery,
		params.Status, params.ReviewedBy, params.ReviewedAt, params.Notes, time.Now().UTC(), id,
	)
	if err != nil {
		return false, errors.Wrap(err, "finalize user request")
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgUserRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, userRequestDeleteQuery, id)
	if err != nil {
		return errors.Wrap(err, "delete user request")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserRequestNotFound
	}
	return nil
}

func scanUserRequest(row pgx.Row) (*UserRequest, error) {
	var request UserRequest
	err := row.Scan(
		&request.ID,
		&request.UserID,
		&request.Action,
		&request.Status,
		&request.AdminStatus,
		&request.Email,
		&request.FirstName,
		&request.LastName,
		&request.Organization,
		&request.OrganizationSet,
		&request.IsActive,
		&request.RoleID,
		&request.OriginalEmail,
		&request.OriginalFirstName,
		&request.OriginalLastName,
		&request.OriginalOrganization,
		&request.OriginalRoleID,
		&request.RequestedBy,
		&request.ReviewedBy,
		&request.ReviewedAt,
		&request.ReviewNotes,
		&request.AdminReviewedBy,
		&request.AdminReviewedAt,
		&request.AdminReviewNotes,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserRequestNotFound
		}
		return nil, errors.Wrap(err, "scan user request")
	}
	return &request, nil
}
