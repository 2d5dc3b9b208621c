package postgres

import (
	"context"
	"fmt"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/database"
	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

const reviewUniqueConstraint = "reviews_order_seller_key"

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	db database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. The (order_id, seller_id) unique constraint turns a
// concurrent duplicate into a Conflict.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	query := `
		INSERT INTO reviews (id, seller_id, buyer_id, order_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query, rv.ID, rv.SellerID, rv.BuyerID, rv.OrderID, rv.Rating, rv.Comment, rv.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, reviewUniqueConstraint) {
			return apperrors.Conflict("this order has already been reviewed for this seller")
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// Exists reports whether the buyer of orderID already reviewed sellerID.
func (r *ReviewRepository) Exists(ctx context.Context, orderID, sellerID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reviews WHERE order_id = $1 AND seller_id = $2)`,
		orderID, sellerID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check review exists: %w", err)
	}
	return exists, nil
}

// ReviewedSellers lists the sellers already reviewed for an order.
func (r *ReviewRepository) ReviewedSellers(ctx context.Context, orderID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT seller_id FROM reviews WHERE order_id = $1 ORDER BY seller_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list reviewed sellers: %w", err)
	}
	defer rows.Close()

	sellers := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reviewed seller: %w", err)
		}
		sellers = append(sellers, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviewed sellers: %w", err)
	}
	return sellers, nil
}

// SellerStats aggregates a seller's ratings in one pass.
func (r *ReviewRepository) SellerStats(ctx context.Context, sellerID string) (*domain.SellerStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE rating = 1),
			COUNT(*) FILTER (WHERE rating = 2),
			COUNT(*) FILTER (WHERE rating = 3),
			COUNT(*) FILTER (WHERE rating = 4),
			COUNT(*) FILTER (WHERE rating = 5)
		FROM reviews
		WHERE seller_id = $1`

	var counts [domain.MaxRating]int
	if err := r.db.QueryRow(ctx, query, sellerID).Scan(
		&counts[0], &counts[1], &counts[2], &counts[3], &counts[4],
	); err != nil {
		return nil, fmt.Errorf("seller stats: %w", err)
	}
	return domain.NewSellerStats(sellerID, counts), nil
}

// ListBySeller returns a seller's reviews, newest first.
func (r *ReviewRepository) ListBySeller(ctx context.Context, sellerID string, page pagination.Params) ([]domain.Review, int, error) {
	const from = "FROM reviews WHERE seller_id = $1"
	limit, offset := limitOffset(page.Page, page.PerPage)
	query := `
		SELECT id, seller_id, buyer_id, order_id, rating, comment, created_at, count(*) OVER() AS total_count
		` + from + `
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, sellerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var total int
	reviews := make([]domain.Review, 0)
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID, &rv.SellerID, &rv.BuyerID, &rv.OrderID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}
	if len(reviews) == 0 && offset > 0 {
		if total, err = countPastLastPage(ctx, r.db, from, sellerID); err != nil {
			return nil, 0, fmt.Errorf("count reviews: %w", err)
		}
	}
	return reviews, total, nil
}
