package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

type orderRepo struct {
	s *Store
}

func copyOrder(o domain.Order) *domain.Order {
	o.Items = slices.Clone(o.Items)
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return &o
}

func (r *orderRepo) Create(_ context.Context, o *domain.Order) error {
	var exists bool
	r.s.write(func(st *state) {
		if _, exists = st.orders[o.ID]; exists {
			return
		}
		for _, other := range st.orders {
			if other.OrderNumber == o.OrderNumber {
				exists = true
				return
			}
		}
		st.orders[o.ID] = *copyOrder(*o)
	})
	if exists {
		return apperrors.Conflict("order already exists")
	}
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	var (
		o  domain.Order
		ok bool
	)
	r.s.read(func(st *state) { o, ok = st.orders[id] })
	if !ok {
		return nil, apperrors.NotFound("order", id)
	}
	return copyOrder(o), nil
}

func (r *orderRepo) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *orderRepo) List(_ context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	matched := make([]domain.Order, 0)
	r.s.read(func(st *state) {
		for _, o := range st.orders {
			if filter.BuyerID != nil && o.BuyerID != *filter.BuyerID {
				continue
			}
			if filter.SellerID != nil && !o.HasSeller(*filter.SellerID) {
				continue
			}
			if filter.Status != nil && o.Status != *filter.Status {
				continue
			}
			matched = append(matched, *copyOrder(o))
		}
	})

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page, total := paginate(matched, filter.Params)
	return page, total, nil
}

func (r *orderRepo) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, payment domain.PaymentStatus, now time.Time) error {
	var found bool
	r.s.write(func(st *state) {
		o, ok := st.orders[id]
		if !ok {
			return
		}
		found = true
		o.Status = status
		o.PaymentStatus = payment
		o.UpdatedAt = now
		st.orders[id] = o
	})
	if !found {
		return apperrors.NotFound("order", id)
	}
	return nil
}
