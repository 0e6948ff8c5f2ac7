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

const settingsTable = "settings"

var ErrSettingNotFound = errors.New("setting not found")

const (
	settingFindQuery = `
		SELECT id, key, value, iv, auth_tag, mime_type, original_name, created_at, updated_at
		FROM settings`

	settingDeleteQuery = `DELETE FROM settings WHERE id = $1`
)

type SettingRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Setting, error)
	GetByKey(ctx context.Context, key string) (*Setting, error)
	Create(ctx context.Context, setting *Setting) error
	Update(ctx context.Context, setting *Setting) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type pgSettingRepository struct{}

func NewSettingRepository() SettingRepository {
	return &pgSettingRepository{}
}

func (r *pgSettingRepository) GetByID(ctx context.Context, id uuid.UUID) (*Setting, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanSetting(tx.QueryRow(ctx, settingFindQuery+" WHERE id = $1", id))
}

func (r *pgSettingRepository) GetByKey(ctx context.Context, key string) (*Setting, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanSetting(tx.QueryRow(ctx, settingFindQuery+" WHERE key = $1", key))
}

func (r *pgSettingRepository) Create(ctx context.Context, setting *Setting) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	setting.CreatedAt = now
	setting.UpdatedAt = now

	query := repo.Insert(settingsTable, []string{
		"key", "value", "iv", "auth_tag", "mime_type", "original_name", "created_at", "updated_at",
	}, "id")
	if err := tx.QueryRow(ctx, query,
		setting.Key, setting.Value, setting.IV, setting.AuthTag,
		setting.MimeType, setting.OriginalName, setting.CreatedAt, setting.UpdatedAt,
	).Scan(&setting.ID); err != nil {
		return errors.Wrap(err, "insert setting")
	}
	return nil
}

func (r *pgSettingRepository) Update(ctx context.Context, setting *Setting) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	setting.UpdatedAt = time.Now().UTC()
	query := repo.Update(settingsTable, []string{
		"key", "value", "iv", "auth_tag", "mime_type", "original_name", "updated_at",
	}, "id = $8")
	tag, err := tx.Exec(ctx, query,
		setting.Key, setting.Value, setting.IV, setting.AuthTag,
		setting.MimeType, setting.OriginalName, setting.UpdatedAt, setting.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update setting")
	}
	if tag.RowsAffected() == 0 {
		return ErrSettingNotFound
	}
	return nil
}

func (r *pgSettingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, settingDeleteQuery, id)
	if err != nil {
		return errors.Wrap(err, "delete setting")
	}
	if tag.RowsAffected() == 0 {
		return ErrSettingNotFound
	}
	return nil
}

func scanSetting(row pgx.Row) (*Setting, error) {
	var s Setting
	err := row.Scan(
		&s.ID, &s.Key, &s.Value, &s.IV, &s.AuthTag,
		&s.MimeType, &s.OriginalName, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingNotFound
		}
		return nil, errors.Wrap(err, "scan setting")
	}
	return &s, nil
}
