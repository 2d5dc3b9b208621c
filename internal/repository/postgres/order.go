package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sylwiakmieciak/madebyu-sub000/pkg/database"
	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

const orderColumns = `o.id, o.order_number, o.buyer_id, o.shipping_name, o.shipping_email,
	o.shipping_phone, o.shipping_address, o.shipping_city, o.shipping_postal, o.shipping_country,
	o.total_amount::text, o.status, o.payment_status, o.notes, o.created_at, o.updated_at`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	db database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db database.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts an order and its items. Callers run it inside Store.WithTx
// together with the stock decrements.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) (err error) {
	orderQuery := `
		INSERT INTO orders (id, order_number, buyer_id, shipping_name, shipping_email, shipping_phone,
			shipping_address, shipping_city, shipping_postal, shipping_country, total_amount,
			status, payment_status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	ctx, end := database.TraceQuery(ctx, "orders.create", orderQuery)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, orderQuery,
		o.ID,
		o.OrderNumber,
		o.BuyerID,
		o.Shipping.Name,
		o.Shipping.Email,
		o.Shipping.Phone,
		o.Shipping.Address,
		o.Shipping.City,
		o.Shipping.PostalCode,
		o.Shipping.Country,
		money(o.TotalAmount),
		string(o.Status),
		string(o.PaymentStatus),
		o.Notes,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (id, order_id, product_id, product_name, seller_id, quantity, unit_price, subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, item := range o.Items {
		_, err = r.db.Exec(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.SellerID,
			item.Quantity,
			money(item.UnitPrice),
			money(item.Subtotal),
			item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return nil
}

func scanOrder(row pgx.Row, extra ...any) (*domain.Order, error) {
	var (
		o                     domain.Order
		total                 string
		status, paymentStatus string
	)
	dest := []any{
		&o.ID,
		&o.OrderNumber,
		&o.BuyerID,
		&o.Shipping.Name,
		&o.Shipping.Email,
		&o.Shipping.Phone,
		&o.Shipping.Address,
		&o.Shipping.City,
		&o.Shipping.PostalCode,
		&o.Shipping.Country,
		&total,
		&status,
		&paymentStatus,
		&o.Notes,
		&o.CreatedAt,
		&o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	amount, err := parseMoney("total_amount", total)
	if err != nil {
		return nil, err
	}
	o.TotalAmount = amount
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return &o, nil
}

// GetByID retrieves an order and its items in one query.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `,
			COALESCE(
				JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'id', oi.id,
						'order_id', oi.order_id,
						'product_id', oi.product_id,
						'product_name', oi.product_name,
						'seller_id', oi.seller_id,
						'quantity', oi.quantity,
						'unit_price', oi.unit_price::text,
						'subtotal', oi.subtotal::text,
						'created_at', oi.created_at
					) ORDER BY oi.created_at, oi.id
				) FILTER (WHERE oi.id IS NOT NULL),
				'[]'::jsonb
			) AS items
		FROM orders o
		LEFT JOIN order_items oi ON o.id = oi.order_id
		WHERE o.id = $1
		GROUP BY o.id`

	var itemsJSON []byte
	o, err := scanOrder(r.db.QueryRow(ctx, query, id), &itemsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Items = []domain.OrderItem{}
	if len(itemsJSON) > 0 && string(itemsJSON) != "[]" {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	return o, nil
}

// GetForUpdate locks the order row and then loads its items. FOR UPDATE is not
// allowed together with the aggregate used by GetByID.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 FOR UPDATE`

	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	items, err := r.loadItems(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	o.Items = items[id]
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}
	return o, nil
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.BuyerID != nil {
		args = append(args, *filter.BuyerID)
		conditions = append(conditions, fmt.Sprintf("o.buyer_id = $%d", len(args)))
	}
	if filter.SellerID != nil {
		args = append(args, *filter.SellerID)
		conditions = append(conditions, fmt.Sprintf("o.id IN (SELECT order_id FROM order_items WHERE seller_id = $%d)", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("o.status = $%d", len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	from := "FROM orders o " + whereClause
	limit, offset := limitOffset(filter.Page, filter.PerPage)

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		%s
		ORDER BY o.created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, from, len(args)+1, len(args)+2,
	)

	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var totalCount int
	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	if len(orders) == 0 {
		if offset > 0 {
			if totalCount, err = countPastLastPage(ctx, r.db, from, args...); err != nil {
				return nil, 0, fmt.Errorf("count orders: %w", err)
			}
		}
		return orders, totalCount, nil
	}

	ids := make([]string, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	itemsByOrder, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = itemsByOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	return orders, totalCount, nil
}

// loadItems batch-loads the items of several orders, grouped by order id.
func (r *OrderRepository) loadItems(ctx context.Context, orderIDs []string) (map[string][]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, seller_id, quantity, unit_price::text, subtotal::text, created_at
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[string][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			item            domain.OrderItem
			price, subtotal string
		)
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.ProductName,
			&item.SellerID,
			&item.Quantity,
			&price,
			&subtotal,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if item.UnitPrice, err = parseMoney("unit_price", price); err != nil {
			return nil, err
		}
		if item.Subtotal, err = parseMoney("subtotal", subtotal); err != nil {
			return nil, err
		}
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order item rows: %w", err)
	}
	return byOrder, nil
}

// UpdateStatus writes both status axes of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, payment domain.PaymentStatus, now time.Time) error {
	query := `
		UPDATE orders
		SET status = $1, payment_status = $2, updated_at = $3
		WHERE id = $4`

	ct, err := r.db.Exec(ctx, query, string(status), string(payment), now, id)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}
