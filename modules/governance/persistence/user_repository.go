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

const usersTable = "users"

var ErrUserNotFound = errors.New("user not found")

const (
	userFindQuery = `
		SELECT id, email, first_name, last_name, password, organization, is_active, created_at, updated_at
		FROM users`

	userRoleQuery = `SELECT role_id FROM user_roles WHERE user_id = $1`

	userRoleUpsertQuery = `
		INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET role_id = EXCLUDED.role_id`

	userSetActiveQuery = `UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`
)

// UserUpdateParams is a tri-state patch. Unset fields keep their stored value,
// which lets an approved partial update touch only the columns the request
// carried.
type UserUpdateParams struct {
	Email        repo.Nullable[string]
	FirstName    repo.Nullable[string]
	LastName     repo.Nullable[string]
	Password     repo.Nullable[string]
	Organization repo.Nullable[string]
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, id uuid.UUID, params UserUpdateParams) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	AssignRole(ctx context.Context, userID, roleID uuid.UUID) error
	GetRoleID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
}

type pgUserRepository struct{}

func NewUserRepository() UserRepository {
	return &pgUserRepository{}
}

func (r *pgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(tx.QueryRow(ctx, userFindQuery+" WHERE id = $1", id))
}

func (r *pgUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	return scanUser(tx.QueryRow(ctx, userFindQuery+" WHERE email = $1", email))
}

func (r *pgUserRepository) Create(ctx context.Context, user *User) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := repo.Insert(usersTable, []string{
		"email", "first_name", "last_name", "password", "organization", "is_active", "created_at", "updated_at",
	}, "id")
	if err := tx.QueryRow(ctx, query,
		user.Email, user.FirstName, user.LastName, user.Password,
		user.Organization, user.IsActive, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return errors.Wrap(err, "insert user")
	}
	return nil
}

func (r *pgUserRepository) Update(ctx context.Context, id uuid.UUID, params UserUpdateParams) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	fields := []string{}
	args := []any{}
	add := func(column string, n repo.Nullable[string]) {
		if n.IsUnset() {
			return
		}
		fields = append(fields, column)
		args = append(args, n.Arg())
	}
	add("email", params.Email)
	add("first_name", params.FirstName)
	add("last_name", params.LastName)
	add("password", params.Password)
	add("organization", params.Organization)
	if len(fields) == 0 {
		return nil
	}

	assignments := make([]string, len(fields))
	for i, f := range fields {
		assignments[i] = fmt.Sprintf("%s = $%d", f, i+1)
	}
	args = append(args, time.Now().UTC(), id)
	query := fmt.Sprintf(
		"UPDATE users SET %s, updated_at = $%d WHERE id = $%d",
		strings.Join(assignments, ", "), len(fields)+1, len(fields)+2,
	)
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, "update user")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *pgUserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, userSetActiveQuery, active, time.Now().UTC(), id)
	if err != nil {
		return errors.Wrap(err, "set user active")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AssignRole upserts the user's single role slot.
func (r *pgUserRepository) AssignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, userRoleUpsertQuery, userID, roleID); err != nil {
		return errors.Wrap(err, "assign user role")
	}
	return nil
}

func (r *pgUserRepository) GetRoleID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	var roleID uuid.UUID
	if err := tx.QueryRow(ctx, userRoleQuery, userID).Scan(&roleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get user role")
	}
	return &roleID, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Password,
		&u.Organization, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "scan user")
	}
	return &u, nil
}
