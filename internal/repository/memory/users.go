package memory

import (
	"context"
	"slices"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

type userRepo struct {
	s *Store
}

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	var (
		u  domain.User
		ok bool
	)
	r.s.read(func(st *state) { u, ok = st.users[id] })
	if !ok {
		return nil, apperrors.NotFound("user", id)
	}
	u.ModerationCategories = slices.Clone(u.ModerationCategories)
	return &u, nil
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u domain.User) {
	s.write(func(st *state) { st.users[u.ID] = u })
}
