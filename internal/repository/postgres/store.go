package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/database"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

// Store implements repository.Store on PostgreSQL. The same code runs on a
// pool or inside a transaction since both satisfy database.DBTX.
type Store struct {
	db database.DBTX
}

var _ repository.Store = (*Store)(nil)

// NewStore creates a PostgreSQL-backed store.
func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) Users() repository.UserRepository       { return NewUserRepository(s.db) }
func (s *Store) Products() repository.ProductRepository { return NewProductRepository(s.db) }
func (s *Store) Orders() repository.OrderRepository     { return NewOrderRepository(s.db) }
func (s *Store) Comments() repository.CommentRepository { return NewCommentRepository(s.db) }
func (s *Store) Reviews() repository.ReviewRepository   { return NewReviewRepository(s.db) }
func (s *Store) Notifications() repository.NotificationRepository {
	return NewNotificationRepository(s.db)
}

// WithTx runs fn in a transaction. Called on a Store that is already inside a
// transaction, pgx turns the nested Begin into a savepoint.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return database.RunInTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&Store{db: tx})
	})
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// NUMERIC columns are selected as ::text and parsed here so that no float
// conversion ever touches money.
func parseMoney(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", column, s, err)
	}
	return d, nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// limitOffset returns the LIMIT and OFFSET for a page, defaulting the page size.
func limitOffset(page, perPage int) (int, int) {
	if perPage <= 0 {
		perPage = 20
	}
	offset := 0
	if page > 1 {
		offset = (page - 1) * perPage
	}
	return perPage, offset
}

// countPastLastPage counts the rows a list query matches. List queries read
// their total from count(*) OVER(), which yields nothing once the offset runs
// past the last row.
func countPastLastPage(ctx context.Context, db database.DBTX, from string, args ...any) (int, error) {
	var total int
	if err := db.QueryRow(ctx, "SELECT count(*) "+from, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return total, nil
}
