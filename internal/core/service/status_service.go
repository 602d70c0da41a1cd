package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/campus-market/internal/core/domain"
	"github.com/rl1809/campus-market/internal/port"
)

// StatusService drives the seller-controlled post-purchase lifecycle and the
// simulated payment step. The transition table is enforced under a row lock in
// the repository, so concurrent updates cannot race a status past a terminal
// state.
type StatusService struct {
	db     port.DatabaseRepository
	events port.EventSink
	logger *zap.Logger
}

func NewStatusService(db port.DatabaseRepository, events port.EventSink, logger *zap.Logger) *StatusService {
	return &StatusService{db: db, events: events, logger: logger}
}

// UpdateStatus moves an order to next on behalf of a seller of record.
func (s *StatusService) UpdateStatus(ctx context.Context, orderID, sellerID string, next domain.OrderStatus) error {
	if !next.Valid() {
		return fmt.Errorf("unknown status %q: %w", next, domain.ErrInvalidTransition)
	}

	prior, err := s.db.UpdateOrderStatus(ctx, orderID, sellerID, next)
	if err != nil {
		return err
	}

	s.events.Enqueue(domain.MarketEvent{
		Kind:    domain.EventStatusChanged,
		OrderID: orderID,
		From:    prior,
		To:      next,
		At:      time.Now().UTC(),
	})
	s.logger.Info("order status updated",
		zap.String("order_id", orderID),
		zap.String("from", string(prior)),
		zap.String("to", string(next)))
	return nil
}

// SubmitPayment validates the card shape only (no real authorization) and
// moves the order from pending payment to processing. The guarded update makes
// a double submission fail instead of paying twice.
func (s *StatusService) SubmitPayment(ctx context.Context, orderID, buyerID string, card domain.PaymentCard) error {
	if err := card.Validate(time.Now().UTC()); err != nil {
		return err
	}

	if err := s.db.MarkOrderPaid(ctx, orderID, buyerID); err != nil {
		return err
	}

	s.events.Enqueue(domain.MarketEvent{
		Kind:    domain.EventStatusChanged,
		OrderID: orderID,
		From:    domain.OrderStatusPendingPayment,
		To:      domain.OrderStatusProcessing,
		At:      time.Now().UTC(),
	})
	s.logger.Info("order payment accepted",
		zap.String("order_id", orderID), zap.String("buyer_id", buyerID))
	return nil
}
