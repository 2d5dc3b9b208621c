package memory

import (
	"context"
	"sort"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

type productRepo struct {
	s *Store
}

func (r *productRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	var (
		p  domain.Product
		ok bool
	)
	r.s.read(func(st *state) { p, ok = st.products[id] })
	if !ok {
		return nil, apperrors.NotFound("product", id)
	}
	return &p, nil
}

// GetForUpdate needs no row lock here: callers inside WithTx already hold the
// store exclusively.
func (r *productRepo) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *productRepo) DecrementStock(_ context.Context, id string, qty int) (*domain.Product, error) {
	var (
		p   domain.Product
		err error
	)
	r.s.write(func(st *state) {
		cur, ok := st.products[id]
		if !ok || !cur.IsPurchasable() || cur.StockQuantity < qty {
			err = repository.ErrStockUnavailable
			return
		}
		cur.StockQuantity -= qty
		cur.UpdatedAt = r.s.now()
		st.products[id] = cur
		p = cur
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) RestoreStock(_ context.Context, id string, qty int) error {
	var found bool
	r.s.write(func(st *state) {
		cur, ok := st.products[id]
		if !ok {
			return
		}
		found = true
		cur.StockQuantity += qty
		cur.UpdatedAt = r.s.now()
		st.products[id] = cur
	})
	if !found {
		return apperrors.NotFound("product", id)
	}
	return nil
}

func (r *productRepo) UpdateModeration(_ context.Context, p *domain.Product) error {
	var found bool
	r.s.write(func(st *state) {
		cur, ok := st.products[p.ID]
		if !ok {
			return
		}
		found = true
		cur.ModerationStatus = p.ModerationStatus
		cur.ModeratedBy = p.ModeratedBy
		cur.ModeratedAt = p.ModeratedAt
		cur.RejectionReason = p.RejectionReason
		cur.Status = p.Status
		cur.UpdatedAt = p.UpdatedAt
		st.products[p.ID] = cur
	})
	if !found {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

func (r *productRepo) ListForModeration(_ context.Context, filter repository.ProductModerationFilter) ([]domain.Product, int, error) {
	matched := make([]domain.Product, 0)
	r.s.read(func(st *state) {
		for _, p := range st.products {
			if p.ModerationStatus == filter.Status && filter.Scope.Allows(p.CategoryID) {
				matched = append(matched, p)
			}
		}
	})

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	page, total := paginate(matched, filter.Params)
	return page, total, nil
}

func (r *productRepo) CountByModerationStatus(_ context.Context, scope domain.CategoryScope) (*domain.ModerationStats, error) {
	stats := &domain.ModerationStats{}
	r.s.read(func(st *state) {
		for _, p := range st.products {
			if !scope.Allows(p.CategoryID) {
				continue
			}
			switch p.ModerationStatus {
			case domain.ModerationPending:
				stats.Pending++
			case domain.ModerationApproved:
				stats.Approved++
			case domain.ModerationRejected:
				stats.Rejected++
			}
			stats.Total++
		}
	})
	return stats, nil
}

// PutProduct inserts or replaces a product.
func (s *Store) PutProduct(p domain.Product) {
	s.write(func(st *state) { st.products[p.ID] = p })
}
