package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/campus-market/internal/core/domain"
	"github.com/rl1809/campus-market/internal/port"
)

const checkoutKeyPrefix = "checkout:"

// CheckoutService is the only component allowed to move items from available
// to sold and to create orders. Both entry points run the same atomic unit
// against the database; on conflict the whole unit is replayed from scratch.
type CheckoutService struct {
	db             port.DatabaseRepository
	carts          port.CartStore
	cache          port.CacheRepository
	events         port.EventSink
	logger         *zap.Logger
	maxAttempts    int
	deliveryWindow time.Duration
}

func NewCheckoutService(
	db port.DatabaseRepository,
	carts port.CartStore,
	cache port.CacheRepository,
	events port.EventSink,
	logger *zap.Logger,
	maxAttempts int,
	deliveryWindow time.Duration,
) *CheckoutService {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &CheckoutService{
		db:             db,
		carts:          carts,
		cache:          cache,
		events:         events,
		logger:         logger,
		maxAttempts:    maxAttempts,
		deliveryWindow: deliveryWindow,
	}
}

// CheckoutCart converts the buyer's cart into an order. The cart is cleared
// only after the commit is confirmed; a failed checkout keeps it intact.
func (s *CheckoutService) CheckoutCart(ctx context.Context, buyerID, requestID string, delivery domain.DeliveryDetails) (string, error) {
	release, err := s.claimRequest(ctx, requestID)
	if err != nil {
		return "", err
	}

	lines, err := s.carts.Lines(ctx, buyerID)
	if err != nil {
		release(ctx)
		return "", fmt.Errorf("read cart: %w", err)
	}
	if len(lines) == 0 {
		release(ctx)
		return "", domain.ErrEmptySelection
	}

	order := s.buildOrder(buyerID, lines, delivery, true)
	if err := s.place(ctx, order); err != nil {
		release(ctx)
		return "", err
	}

	if err := s.carts.Clear(ctx, buyerID); err != nil {
		// The order is committed; an uncleared cart is a cosmetic leftover.
		s.logger.Warn("cart clear failed after commit",
			zap.String("buyer_id", buyerID), zap.String("order_id", order.ID), zap.Error(err))
	}

	s.emitPlaced(order)
	return order.ID, nil
}

// BuyNow is the single-item fast path: it snapshots the live item into a
// one-line selection and runs the same atomic unit.
func (s *CheckoutService) BuyNow(ctx context.Context, buyerID, requestID, itemID string, delivery domain.DeliveryDetails) (string, error) {
	release, err := s.claimRequest(ctx, requestID)
	if err != nil {
		return "", err
	}

	item, err := s.db.GetItem(ctx, itemID)
	if err != nil {
		release(ctx)
		return "", fmt.Errorf("load item: %w", err)
	}
	if item == nil || !item.Purchasable() {
		release(ctx)
		return "", fmt.Errorf("item %s: %w", itemID, domain.ErrItemUnavailable)
	}
	if item.SellerID == buyerID {
		release(ctx)
		return "", domain.ErrSelfPurchase
	}

	order := s.buildOrder(buyerID, []domain.CartLine{domain.NewCartLine(item)}, delivery, false)
	if err := s.place(ctx, order); err != nil {
		release(ctx)
		return "", err
	}

	s.emitPlaced(order)
	return order.ID, nil
}

// claimRequest reserves the request id so a double-submitted checkout runs
// once. The returned release func frees the id when the unit fails, so the
// caller may replay the whole checkout with the same id.
func (s *CheckoutService) claimRequest(ctx context.Context, requestID string) (func(context.Context), error) {
	if requestID == "" {
		return func(context.Context) {}, nil
	}

	key := checkoutKeyPrefix + requestID
	ok, err := s.cache.SetIdempotency(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, domain.ErrDuplicateRequest
	}

	return func(ctx context.Context) {
		if err := s.cache.ReleaseIdempotency(ctx, key); err != nil {
			s.logger.Warn("idempotency release failed",
				zap.String("request_id", requestID), zap.Error(err))
		}
	}, nil
}

func (s *CheckoutService) buildOrder(buyerID string, lines []domain.CartLine, delivery domain.DeliveryDetails, withArrival bool) domain.Order {
	now := time.Now().UTC()
	order := domain.Order{
		ID:        uuid.New().String(),
		BuyerID:   buyerID,
		Total:     domain.CartTotal(lines),
		Delivery:  delivery,
		Status:    domain.OrderStatusPendingPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if withArrival {
		arrival := now.Add(s.deliveryWindow)
		order.EstimatedArrival = &arrival
	}

	order.Lines = make([]domain.OrderLine, 0, len(lines))
	for _, line := range lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			OrderID:         order.ID,
			ItemID:          line.ItemID,
			SellerID:        line.SellerID,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.UnitPrice,
			TitleSnapshot:   line.Title,
			ImageSnapshot:   line.ImageURL,
		})
	}
	return order
}

// place runs the atomic unit, replaying it whole on transient storage
// conflicts. Partial retries are forbidden; every attempt starts from a fresh
// transaction.
func (s *CheckoutService) place(ctx context.Context, order domain.Order) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.db.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStorageConflict) {
			return err
		}

		s.logger.Warn("checkout conflict, replaying unit",
			zap.String("order_id", order.ID), zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
		}
	}
	return err
}

func (s *CheckoutService) emitPlaced(order domain.Order) {
	sellers := make([]string, 0, len(order.Lines))
	seen := make(map[string]bool)
	for _, line := range order.Lines {
		if !seen[line.SellerID] {
			seen[line.SellerID] = true
			sellers = append(sellers, line.SellerID)
		}
	}

	s.events.Enqueue(domain.MarketEvent{
		Kind:      domain.EventOrderPlaced,
		OrderID:   order.ID,
		BuyerID:   order.BuyerID,
		SellerIDs: sellers,
		Total:     order.Total.StringFixed(2),
		At:        time.Now().UTC(),
	})
	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("buyer_id", order.BuyerID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("lines", len(order.Lines)))
}
