package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/database"
	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

const productColumns = `id, seller_id, category_id, name, price::text, stock_quantity, status,
	moderation_status, moderated_by, moderated_at, rejection_reason, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p                  domain.Product
		price              string
		status, moderation string
	)
	if err := row.Scan(
		&p.ID,
		&p.SellerID,
		&p.CategoryID,
		&p.Name,
		&price,
		&p.StockQuantity,
		&status,
		&moderation,
		&p.ModeratedBy,
		&p.ModeratedAt,
		&p.RejectionReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	amount, err := parseMoney("price", price)
	if err != nil {
		return nil, err
	}
	p.Price = amount
	p.Status = domain.ProductStatus(status)
	p.ModerationStatus = domain.ModerationStatus(moderation)
	return &p, nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.get(ctx, id, "")
}

// GetForUpdate retrieves a product and locks its row.
func (r *ProductRepository) GetForUpdate(ctx context.Context, id string) (*domain.Product, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *ProductRepository) get(ctx context.Context, id, lock string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1` + lock

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// DecrementStock takes qty units in a single conditional UPDATE, so two
// concurrent checkouts of the last unit cannot both succeed.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) (p *domain.Product, err error) {
	query := `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2
			AND stock_quantity >= $1
			AND status = 'published'
			AND moderation_status = 'approved'
		RETURNING ` + productColumns

	ctx, end := database.TraceQuery(ctx, "products.decrement_stock", query)
	defer func() { end(err) }()

	p, err = scanProduct(r.db.QueryRow(ctx, query, qty, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrStockUnavailable
		}
		return nil, fmt.Errorf("decrement stock: %w", err)
	}
	return p, nil
}

// RestoreStock gives qty units back to a product.
func (r *ProductRepository) RestoreStock(ctx context.Context, id string, qty int) error {
	query := `UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = NOW() WHERE id = $2`

	ct, err := r.db.Exec(ctx, query, qty, id)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// UpdateModeration persists moderation and publication fields.
func (r *ProductRepository) UpdateModeration(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET moderation_status = $1, moderated_by = $2, moderated_at = $3,
			rejection_reason = $4, status = $5, updated_at = $6
		WHERE id = $7`

	ct, err := r.db.Exec(ctx, query,
		string(p.ModerationStatus),
		p.ModeratedBy,
		p.ModeratedAt,
		p.RejectionReason,
		string(p.Status),
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product moderation: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

// ListForModeration returns the moderation queue for one status, restricted
// to the scope's categories, oldest first.
func (r *ProductRepository) ListForModeration(ctx context.Context, filter repository.ProductModerationFilter) ([]domain.Product, int, error) {
	conditions := []string{"moderation_status = $1"}
	args := []any{string(filter.Status)}

	if !filter.Scope.IsAll() {
		args = append(args, filter.Scope.IDs())
		conditions = append(conditions, fmt.Sprintf("category_id = ANY($%d)", len(args)))
	}

	from := "FROM products WHERE " + strings.Join(conditions, " AND ")
	limit, offset := limitOffset(filter.Page, filter.PerPage)

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		%s
		ORDER BY created_at ASC
		LIMIT $%d OFFSET $%d`,
		productColumns, from, len(args)+1, len(args)+2,
	)

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products for moderation: %w", err)
	}
	defer rows.Close()

	var total int
	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(totalCountRow{rows: rows, total: &total})
		if err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	if len(products) == 0 && offset > 0 {
		if total, err = countPastLastPage(ctx, r.db, from, args...); err != nil {
			return nil, 0, fmt.Errorf("count products for moderation: %w", err)
		}
	}

	return products, total, nil
}

// CountByModerationStatus counts products per moderation status inside scope.
func (r *ProductRepository) CountByModerationStatus(ctx context.Context, scope domain.CategoryScope) (*domain.ModerationStats, error) {
	query := `SELECT moderation_status, COUNT(*) FROM products`
	var args []any
	if !scope.IsAll() {
		query += ` WHERE category_id = ANY($1)`
		args = append(args, scope.IDs())
	}
	query += ` GROUP BY moderation_status`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count products by moderation status: %w", err)
	}
	defer rows.Close()

	stats := &domain.ModerationStats{}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan moderation count: %w", err)
		}
		switch domain.ModerationStatus(status) {
		case domain.ModerationPending:
			stats.Pending = n
		case domain.ModerationApproved:
			stats.Approved = n
		case domain.ModerationRejected:
			stats.Rejected = n
		}
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation counts: %w", err)
	}
	return stats, nil
}

// totalCountRow lets a row scanner written for a single entity also read the
// trailing count(*) OVER() column of list queries.
type totalCountRow struct {
	rows  pgx.Rows
	total *int
}

func (t totalCountRow) Scan(dest ...any) error {
	return t.rows.Scan(append(dest, t.total)...)
}
