package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/policy"
	"github.com/sylwiakmieciak/madebyu-sub000/internal/repository"
)

const aggregateProduct = "product"

// ModerationService runs the product moderation queue.
type ModerationService struct {
	store      repository.Store
	dispatcher *Dispatcher
	now        func() time.Time
	logger     *slog.Logger
}

// NewModerationService creates a new product moderation service.
func NewModerationService(store repository.Store, dispatcher *Dispatcher, logger *slog.Logger) *ModerationService {
	return &ModerationService{
		store:      store,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}
}

// ListProducts returns products in the given moderation status, oldest first.
// An empty status means pending. Non-admin moderators only see their categories.
func (s *ModerationService) ListProducts(ctx context.Context, actor domain.Actor, status string, page pagination.Params) ([]domain.Product, int, error) {
	if err := policy.Authorize(actor, policy.ListProductModeration, policy.None()); err != nil {
		return nil, 0, err
	}
	if status == "" {
		status = string(domain.ModerationPending)
	}
	if !domain.IsValidModerationStatus(status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid moderation status %q", status))
	}

	products, total, err := s.store.Products().ListForModeration(ctx, repository.ProductModerationFilter{
		Status: domain.ModerationStatus(status),
		Scope:  policy.ListingScope(actor),
		Params: page,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list products for moderation: %w", err)
	}
	return products, total, nil
}

// Stats counts products per moderation status within the actor's scope.
func (s *ModerationService) Stats(ctx context.Context, actor domain.Actor) (*domain.ModerationStats, error) {
	if err := policy.Authorize(actor, policy.ListProductModeration, policy.None()); err != nil {
		return nil, err
	}
	stats, err := s.store.Products().CountByModerationStatus(ctx, policy.ListingScope(actor))
	if err != nil {
		return nil, fmt.Errorf("count moderation statuses: %w", err)
	}
	return stats, nil
}

// Approve approves a product and publishes it when it can be sold.
func (s *ModerationService) Approve(ctx context.Context, actor domain.Actor, productID string) (*domain.Product, error) {
	return s.decide(ctx, actor, productID, "approved", func(p *domain.Product, now time.Time) (domain.Event, error) {
		p.Approve(actor.UserID, now)
		return domain.Event{
			AggregateType: aggregateProduct,
			AggregateID:   p.ID,
			Action:        "approved",
			Notification:  domain.NotificationProductApproved,
			Recipients:    []string{p.SellerID},
			Title:         "Product approved",
			Message:       fmt.Sprintf("Your product %q has been approved.", p.Name),
			Payload:       productPayload(p),
		}, nil
	})
}

// Reject rejects a product with a reason and takes it off the storefront.
func (s *ModerationService) Reject(ctx context.Context, actor domain.Actor, productID, reason string) (*domain.Product, error) {
	return s.decide(ctx, actor, productID, "rejected", func(p *domain.Product, now time.Time) (domain.Event, error) {
		if err := p.Reject(actor.UserID, reason, now); err != nil {
			if errors.Is(err, domain.ErrRejectionReasonRequired) {
				return domain.Event{}, apperrors.InvalidInput(err.Error())
			}
			return domain.Event{}, err
		}
		return domain.Event{
			AggregateType: aggregateProduct,
			AggregateID:   p.ID,
			Action:        "rejected",
			Notification:  domain.NotificationProductRejected,
			Recipients:    []string{p.SellerID},
			Title:         "Product rejected",
			Message:       fmt.Sprintf("Your product %q was rejected: %s", p.Name, *p.RejectionReason),
			Payload:       productPayload(p),
		}, nil
	})
}

func (s *ModerationService) decide(
	ctx context.Context,
	actor domain.Actor,
	productID, decision string,
	apply func(p *domain.Product, now time.Time) (domain.Event, error),
) (*domain.Product, error) {
	var (
		product *domain.Product
		ev      domain.Event
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		p, err := tx.Products().GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if err := policy.Authorize(actor, policy.ModerateProduct, policy.Product(p)); err != nil {
			return err
		}
		ev, err = apply(p, s.now())
		if err != nil {
			return err
		}
		if err := tx.Products().UpdateModeration(ctx, p); err != nil {
			return fmt.Errorf("update moderation: %w", err)
		}
		product = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	moderationDecisions.WithLabelValues("product", decision).Inc()
	s.logger.InfoContext(ctx, "product moderated",
		slog.String("product_id", product.ID),
		slog.String("moderator_id", actor.UserID),
		slog.String("decision", decision),
		slog.String("status", string(product.Status)),
	)
	s.dispatcher.Dispatch(ctx, []domain.Event{ev})
	return product, nil
}

func productPayload(p *domain.Product) map[string]any {
	payload := map[string]any{
		"product_id":        p.ID,
		"seller_id":         p.SellerID,
		"category_id":       p.CategoryID,
		"status":            string(p.Status),
		"moderation_status": string(p.ModerationStatus),
	}
	if p.ModeratedBy != nil {
		payload["moderated_by"] = *p.ModeratedBy
	}
	if p.RejectionReason != nil {
		payload["rejection_reason"] = *p.RejectionReason
	}
	return payload
}
