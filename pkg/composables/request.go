package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/regworks/accredit-sdk/pkg/constants"
)

var ErrNoActor = errors.New("no acting user found in context")

// WithActorID records the authenticated user acting on this request. The id is
// supplied by the upstream auth layer; nothing here authenticates it.
func WithActorID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.ActorKey, id)
}

func UseActorID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(constants.ActorKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoActor
	}
	return id, nil
}
