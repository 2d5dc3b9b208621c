package memory

import (
	"context"
	"sort"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

type reviewRepo struct {
	s *Store
}

func (r *reviewRepo) Create(_ context.Context, rv *domain.Review) error {
	var duplicate bool
	r.s.write(func(st *state) {
		for _, existing := range st.reviews {
			if existing.OrderID == rv.OrderID && existing.SellerID == rv.SellerID {
				duplicate = true
				return
			}
		}
		st.reviews[rv.ID] = *rv
	})
	if duplicate {
		return apperrors.Conflict("this order has already been reviewed for this seller")
	}
	return nil
}

func (r *reviewRepo) Exists(_ context.Context, orderID, sellerID string) (bool, error) {
	var exists bool
	r.s.read(func(st *state) {
		for _, rv := range st.reviews {
			if rv.OrderID == orderID && rv.SellerID == sellerID {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (r *reviewRepo) ReviewedSellers(_ context.Context, orderID string) ([]string, error) {
	sellers := make([]string, 0)
	r.s.read(func(st *state) {
		for _, rv := range st.reviews {
			if rv.OrderID == orderID {
				sellers = append(sellers, rv.SellerID)
			}
		}
	})
	sort.Strings(sellers)
	return sellers, nil
}

func (r *reviewRepo) SellerStats(_ context.Context, sellerID string) (*domain.SellerStats, error) {
	var counts [domain.MaxRating]int
	r.s.read(func(st *state) {
		for _, rv := range st.reviews {
			if rv.SellerID == sellerID && domain.IsValidRating(rv.Rating) {
				counts[rv.Rating-1]++
			}
		}
	})
	return domain.NewSellerStats(sellerID, counts), nil
}

func (r *reviewRepo) ListBySeller(_ context.Context, sellerID string, page pagination.Params) ([]domain.Review, int, error) {
	matched := make([]domain.Review, 0)
	r.s.read(func(st *state) {
		for _, rv := range st.reviews {
			if rv.SellerID == sellerID {
				matched = append(matched, rv)
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	items, total := paginate(matched, page)
	return items, total, nil
}
