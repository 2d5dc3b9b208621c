package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

// ActorLoader resolves the authenticated user id into an Actor. Role and
// capabilities always come from the user store, never from token claims.
type ActorLoader struct {
	store repository.Store
}

// NewActorLoader creates an actor loader.
func NewActorLoader(store repository.Store) *ActorLoader {
	return &ActorLoader{store: store}
}

// Load returns the actor for userID. An unknown user is unauthorized.
func (l *ActorLoader) Load(ctx context.Context, userID string) (domain.Actor, error) {
	if userID == "" {
		return domain.Actor{}, apperrors.Unauthorized("authentication required")
	}

	u, err := l.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.Actor{}, apperrors.Unauthorized("unknown user")
		}
		return domain.Actor{}, fmt.Errorf("load actor: %w", err)
	}
	return u.Actor(), nil
}
