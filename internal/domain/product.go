package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus is the storefront publication state, separate from moderation.
type ProductStatus string

// Product status constants.
const (
	ProductStatusDraft     ProductStatus = "draft"
	ProductStatusPublished ProductStatus = "published"
	ProductStatusArchived  ProductStatus = "archived"
)

// ModerationStatus is the content-moderation gate of a product.
type ModerationStatus string

// Moderation status constants.
const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// ErrRejectionReasonRequired is returned by Product.Reject for a blank reason.
var ErrRejectionReasonRequired = errors.New("rejection reason is required")

// Product holds the fields of a catalog product that checkout and moderation
// touch. Catalog editing lives elsewhere.
type Product struct {
	ID               string           `json:"id"`
	SellerID         string           `json:"seller_id"`
	CategoryID       int64            `json:"category_id"`
	Name             string           `json:"name"`
	Price            decimal.Decimal  `json:"price"`
	StockQuantity    int              `json:"stock_quantity"`
	Status           ProductStatus    `json:"status"`
	ModerationStatus ModerationStatus `json:"moderation_status"`
	ModeratedBy      *string          `json:"moderated_by,omitempty"`
	ModeratedAt      *time.Time       `json:"moderated_at,omitempty"`
	RejectionReason  *string          `json:"rejection_reason,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// IsValidModerationStatus checks if s is a known moderation status.
func IsValidModerationStatus(s string) bool {
	switch ModerationStatus(s) {
	case ModerationPending, ModerationApproved, ModerationRejected:
		return true
	}
	return false
}

// IsPurchasable reports whether the product can be put in an order.
func (p *Product) IsPurchasable() bool {
	return p.Status == ProductStatusPublished && p.ModerationStatus == ModerationApproved
}

// Approve marks the product approved by moderatorID.
//
// Postconditions: ModerationStatus is approved, ModeratedBy/ModeratedAt are
// set, RejectionReason is cleared, and Status becomes published unless the
// product is archived or out of stock, in which case Status is left as is so
// that approval never re-publishes something the catalog took down.
func (p *Product) Approve(moderatorID string, now time.Time) {
	p.ModerationStatus = ModerationApproved
	p.ModeratedBy = &moderatorID
	p.ModeratedAt = &now
	p.RejectionReason = nil
	if p.Status != ProductStatusArchived && p.StockQuantity > 0 {
		p.Status = ProductStatusPublished
	}
	p.UpdatedAt = now
}

// Reject marks the product rejected by moderatorID.
//
// Postconditions: ModerationStatus is rejected, RejectionReason holds the
// trimmed reason, ModeratedBy/ModeratedAt are set and Status is draft. A
// blank reason leaves the product untouched.
func (p *Product) Reject(moderatorID, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrRejectionReasonRequired
	}
	p.ModerationStatus = ModerationRejected
	p.RejectionReason = &reason
	p.ModeratedBy = &moderatorID
	p.ModeratedAt = &now
	p.Status = ProductStatusDraft
	p.UpdatedAt = now
	return nil
}

// ModerationConsistent reports whether RejectionReason is set exactly when the
// product is rejected.
func (p *Product) ModerationConsistent() bool {
	return (p.ModerationStatus == ModerationRejected) == (p.RejectionReason != nil)
}

// ModerationStats counts products per moderation status.
type ModerationStats struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Total    int `json:"total"`
}
