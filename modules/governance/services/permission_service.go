package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/modules/governance/persistence"
	"github.com/regworks/accredit-sdk/pkg/serrors"
)

// PermissionService answers authorization questions for the acting user.
type PermissionService struct {
	repo persistence.PermissionRepository
}

func NewPermissionService(repo persistence.PermissionRepository) *PermissionService {
	return &PermissionService{repo: repo}
}

func (s *PermissionService) ListForUser(ctx context.Context, userID uuid.UUID) ([]persistence.Permission, error) {
	return s.repo.ListForUser(ctx, userID)
}

// Require errors with a coded validation failure when userID does not hold
// the named permission.
func (s *PermissionService) Require(ctx context.Context, userID uuid.UUID, name string) error {
	ok, err := s.repo.ExistsForUser(ctx, userID, name)
	if err != nil {
		return err
	}
	if !ok {
		return serrors.NewValidation("PERMISSION_DENIED", "permission", "user %s lacks %s", userID, name)
	}
	return nil
}
