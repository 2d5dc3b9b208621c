// Package memory is an in-process implementation of repository.Store used
// for local development and service tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

type state struct {
	users         map[string]domain.User
	products      map[string]domain.Product
	orders        map[string]domain.Order
	comments      map[string]domain.Comment
	reviews       map[string]domain.Review
	notifications map[string]domain.Notification
}

func newState() *state {
	return &state{
		users:         make(map[string]domain.User),
		products:      make(map[string]domain.Product),
		orders:        make(map[string]domain.Order),
		comments:      make(map[string]domain.Comment),
		reviews:       make(map[string]domain.Review),
		notifications: make(map[string]domain.Notification),
	}
}

// clone copies every table. Order items are the only nested slice that is
// mutated in place elsewhere, so they are copied too.
func (s *state) clone() *state {
	c := &state{
		users:         cloneMap(s.users),
		products:      cloneMap(s.products),
		orders:        make(map[string]domain.Order, len(s.orders)),
		comments:      cloneMap(s.comments),
		reviews:       cloneMap(s.reviews),
		notifications: cloneMap(s.notifications),
	}
	for id, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		c.orders[id] = o
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store is a repository.Store kept in process memory. A transaction holds the
// write lock for its whole duration and restores a snapshot when it fails, so
// transactions are serializable and atomic.
type Store struct {
	mu  *sync.RWMutex
	st  *state
	tx  bool
	now func() time.Time
}

var _ repository.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		mu:  &sync.RWMutex{},
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) read(fn func(st *state)) {
	if !s.tx {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	fn(s.st)
}

func (s *Store) write(fn func(st *state)) {
	if !s.tx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn(s.st)
}

func (s *Store) Users() repository.UserRepository       { return &userRepo{s: s} }
func (s *Store) Products() repository.ProductRepository { return &productRepo{s: s} }
func (s *Store) Orders() repository.OrderRepository     { return &orderRepo{s: s} }
func (s *Store) Comments() repository.CommentRepository { return &commentRepo{s: s} }
func (s *Store) Reviews() repository.ReviewRepository   { return &reviewRepo{s: s} }
func (s *Store) Notifications() repository.NotificationRepository {
	return &notificationRepo{s: s}
}

// WithTx runs fn with exclusive access to the store. When fn returns an error
// every change it made is discarded. Nested calls join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&Store{mu: s.mu, st: s.st, tx: true, now: s.now}); err != nil {
		*s.st = *snapshot
		return err
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// paginate slices items to the requested page and returns the full count.
func paginate[T any](items []T, p pagination.Params) ([]T, int) {
	total := len(items)
	perPage := p.PerPage
	if perPage <= 0 {
		perPage = pagination.DefaultPerPage
	}
	page := p.Page
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * perPage
	if offset > total {
		offset = total
	}
	end := offset + perPage
	if end > total {
		end = total
	}
	return items[offset:end], total
}
