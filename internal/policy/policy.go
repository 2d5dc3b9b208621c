// Package policy decides whether an actor may perform an action on a
// resource. Every moderation and order-management permission check goes
// through Authorize.
package policy

import (
	"slices"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

// Action names a guarded operation.
type Action string

// Guarded actions.
const (
	ModerateProduct       Action = "moderate_product"
	ListProductModeration Action = "list_product_moderation"
	ModerateComment       Action = "moderate_comment"
	ConfirmOrder          Action = "confirm_order"
	ShipOrder             Action = "ship_order"
	ConfirmDelivery       Action = "confirm_delivery"
	CancelOrder           Action = "cancel_order"
	OverrideOrder         Action = "override_order"
	ListAllOrders         Action = "list_all_orders"
	ViewOrder             Action = "view_order"
	ReviewOrder           Action = "review_order"
	ManageThemes          Action = "manage_themes"
)

// Resource carries the attributes of the target that rules look at.
type Resource struct {
	CategoryID int64
	BuyerID    string
	SellerIDs  []string
}

// Product describes a product for category-scoped rules.
func Product(p *domain.Product) Resource {
	return Resource{CategoryID: p.CategoryID}
}

// Order describes an order for participant rules.
func Order(o *domain.Order) Resource {
	return Resource{BuyerID: o.BuyerID, SellerIDs: o.SellerIDs()}
}

// None is the resource of actions that are not about a specific entity.
func None() Resource {
	return Resource{}
}

func (r Resource) isBuyer(userID string) bool {
	return userID != "" && r.BuyerID == userID
}

func (r Resource) isSeller(userID string) bool {
	return userID != "" && slices.Contains(r.SellerIDs, userID)
}

// Authorize returns nil when actor may perform action on res and a Forbidden
// error otherwise.
func Authorize(actor domain.Actor, action Action, res Resource) error {
	if allowed(actor, action, res) {
		return nil
	}
	return apperrors.Forbidden(denyMessage(action))
}

func allowed(a domain.Actor, action Action, res Resource) bool {
	admin := a.IsAdmin()

	switch action {
	case ModerateProduct:
		return admin || (a.Capabilities.ModerateProducts && a.Scope.Allows(res.CategoryID))
	case ListProductModeration:
		return admin || a.Capabilities.ModerateProducts
	case ModerateComment:
		return admin || a.Capabilities.ModerateComments
	case ConfirmOrder, ShipOrder:
		return admin || res.isSeller(a.UserID)
	case ConfirmDelivery, ReviewOrder:
		return res.isBuyer(a.UserID)
	case CancelOrder, ViewOrder:
		return admin || res.isBuyer(a.UserID) || res.isSeller(a.UserID)
	case OverrideOrder, ListAllOrders:
		return admin
	case ManageThemes:
		return admin || a.Capabilities.ManageThemes
	default:
		return false
	}
}

func denyMessage(action Action) string {
	switch action {
	case ModerateProduct:
		return "you are not allowed to moderate products in this category"
	case ListProductModeration:
		return "product moderation permission required"
	case ModerateComment:
		return "comment moderation permission required"
	case ConfirmOrder, ShipOrder:
		return "only a seller of this order or an admin can do this"
	case ConfirmDelivery:
		return "only the buyer can confirm delivery"
	case ReviewOrder:
		return "only the buyer of this order can review it"
	case CancelOrder, ViewOrder:
		return "you are not a participant of this order"
	case OverrideOrder, ListAllOrders:
		return "admin role required"
	default:
		return "action not permitted"
	}
}

// ListingScope returns the category scope applied to moderation listings and
// stats for the actor.
func ListingScope(a domain.Actor) domain.CategoryScope {
	if a.IsAdmin() {
		return domain.AllCategories()
	}
	return a.Scope
}
