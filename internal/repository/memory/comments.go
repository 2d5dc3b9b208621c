package memory

import (
	"context"
	"sort"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

type commentRepo struct {
	s *Store
}

func (r *commentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.s.write(func(st *state) { st.comments[c.ID] = *c })
	return nil
}

func (r *commentRepo) GetByID(_ context.Context, id string) (*domain.Comment, error) {
	var (
		c  domain.Comment
		ok bool
	)
	r.s.read(func(st *state) { c, ok = st.comments[id] })
	if !ok {
		return nil, apperrors.NotFound("comment", id)
	}
	return &c, nil
}

func (r *commentRepo) ListVisible(_ context.Context, productID, viewerID string, page pagination.Params) ([]domain.Comment, int, error) {
	matched := r.filter(func(c domain.Comment) bool {
		return c.ProductID == productID && c.VisibleTo(viewerID)
	})
	sort.Slice(matched, func(i, j int) bool { return newerComment(matched[i], matched[j]) })

	items, total := paginate(matched, page)
	return items, total, nil
}

func (r *commentRepo) ListPending(_ context.Context, page pagination.Params) ([]domain.Comment, int, error) {
	matched := r.filter(func(c domain.Comment) bool { return !c.Approved })
	sort.Slice(matched, func(i, j int) bool { return newerComment(matched[j], matched[i]) })

	items, total := paginate(matched, page)
	return items, total, nil
}

func (r *commentRepo) filter(keep func(domain.Comment) bool) []domain.Comment {
	matched := make([]domain.Comment, 0)
	r.s.read(func(st *state) {
		for _, c := range st.comments {
			if keep(c) {
				matched = append(matched, c)
			}
		}
	})
	return matched
}

func newerComment(a, b domain.Comment) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (r *commentRepo) Approve(_ context.Context, id string) (bool, error) {
	var changed bool
	r.s.write(func(st *state) {
		c, ok := st.comments[id]
		if !ok || c.Approved {
			return
		}
		c.Approved = true
		st.comments[id] = c
		changed = true
	})
	return changed, nil
}

func (r *commentRepo) Delete(_ context.Context, id string) error {
	var found bool
	r.s.write(func(st *state) {
		if _, found = st.comments[id]; found {
			delete(st.comments, id)
		}
	})
	if !found {
		return apperrors.NotFound("comment", id)
	}
	return nil
}
