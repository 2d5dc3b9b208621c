package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxLineQuantity bounds the units of one product in a single order.
const MaxLineQuantity = 10000

// OrderItem is one immutable order line. ProductName, SellerID and UnitPrice
// are snapshots taken at purchase time.
type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SellerID    string          `json:"seller_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
}

// LineTotal returns unit price times quantity.
func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
