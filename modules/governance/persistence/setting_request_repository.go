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

const settingRequestsTable = "setting_requests"

var ErrSettingRequestNotFound = errors.New("setting request not found")

const (
	settingRequestColumns = `
		id, setting_id, action, status, key, value, iv, auth_tag, mime_type,
		original_name, original_key, original_value,
		requested_by, reviewed_by, reviewed_at, review_notes,
		created_at, updated_at`

	settingRequestFindQuery = `SELECT ` + settingRequestColumns + ` FROM setting_requests`

	settingRequestDeleteQuery = `DELETE FROM setting_requests WHERE id = $1 AND status = 'pending'`
)

type SettingRequestRepository interface {
	Create(ctx context.Context, request *SettingRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*SettingRequest, error)
	FindPendingBySetting(ctx context.Context, settingID uuid.UUID) (*SettingRequest, error)
	FindPendingCreateByKey(ctx context.Context, key string) (*SettingRequest, error)
	List(ctx context.Context, params RequestFindParams) ([]SettingRequest, error)
	UpdateReview(ctx context.Context, id uuid.UUID, params ReviewParams) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgSettingRequestRepository struct{}

func NewSettingRequestRepository() SettingRequestRepository {
	return &pgSettingRequestRepository{}
}

func (r *pgSettingRequestRepository) Create(ctx context.Context, request *SettingRequest) error {
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

	query := repo.Insert(settingRequestsTable, []string{
		"setting_id", "action", "status", "key", "value", "iv", "auth_tag", "mime_type",
		"original_name", "original_key", "original_value",
		"requested_by", "created_at", "updated_at",
	}, "id")
	if err := tx.QueryRow(ctx, query,
		request.SettingID,
		request.Action,
		request.Status,
		request.Key,
		request.Value,
		request.IV,
		request.AuthTag,
		request.MimeType,
		request.OriginalName,
		request.OriginalKey,
		request.OriginalValue,
		request.RequestedBy,
		request.CreatedAt,
		request.UpdatedAt,
	).Scan(&request.ID); err != nil {
		return errors.Wrap(err, "insert setting request")
	}
	return nil
}

func (r *pgSettingRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*SettingRequest, error) {
	return r.findOne(ctx, "WHERE id = $1", id)
}

func (r *pgSettingRequestRepository) FindPendingBySetting(ctx context.Context, settingID uuid.UUID) (*SettingRequest, error) {
	return r.findOne(ctx, "WHERE setting_id = $1 AND status = 'pending'", settingID)
}

func (r *pgSettingRequestRepository) FindPendingCreateByKey(ctx context.Context, key string) (*SettingRequest, error) {
	return r.findOne(ctx, "WHERE key = $1 AND status = 'pending' AND action = 'create'", key)
}

func (r *pgSettingRequestRepository) findOne(ctx context.Context, where string, args ...any) (*SettingRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanSettingRequest(tx.QueryRow(ctx, repo.Join(settingRequestFindQuery, where), args...))
}

func (r *pgSettingRequestRepository) List(ctx context.Context, params RequestFindParams) ([]SettingRequest, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	where, args := requestStatusFilter(params.Statuses)
	query := repo.Join(
		settingRequestFindQuery,
		where,
		requestOrderClause(params.SortAsc),
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list setting requests")
	}
	defer rows.Close()

	var out []SettingRequest
	for rows.Next() {
		request, err := scanSettingRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *request)
	}
	return out, rows.Err()
}

func (r *pgSettingRequestRepository) UpdateReview(ctx context.Context, id uuid.UUID, params ReviewParams) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	query := repo.Update(settingRequestsTable,
		[]string{"status", "reviewed_by", "reviewed_at", "review_notes", "updated_at"},
		"id = $6 AND status = 'pending'",
	)
	tag, err := tx.Exec(ctx, query,
		params.Status, params.ReviewedBy, params.ReviewedAt, params.Notes, time.Now().UTC(), id,
	)
	if err != nil {
		return errors.Wrap(err, "review setting request")
	}
	if tag.RowsAffected() == 0 {
		return ErrSettingRequestNotFound
	}
	return nil
}

func (r *pgSettingRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, settingRequestDeleteQuery, id)
	if err != nil {
		return errors.Wrap(err, "delete setting request")
	}
	if tag.RowsAffected() == 0 {
		return ErrSettingRequestNotFound
	}
	return nil
}

func scanSettingRequest(row pgx.Row) (*SettingRequest, error) {
	var request SettingRequest
	err := row.Scan(
		&request.ID,
		&request.SettingID,
		&request.Action,
		&request.Status,
		&request.Key,
		&request.Value,
		&request.IV,
		&request.AuthTag,
		&request.MimeType,
		&request.OriginalName,
		&request.OriginalKey,
		&request.OriginalValue,
		&request.RequestedBy,
		&request.ReviewedBy,
		&request.ReviewedAt,
		&request.ReviewNotes,
		&request.CreatedAt,
		&request.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingRequestNotFound
		}
		return nil, errors.Wrap(err, "scan setting request")
	}
	return &request, nil
}
