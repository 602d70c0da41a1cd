package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/campus-market/internal/core/domain"
	"github.com/rl1809/campus-market/internal/port"
)

// CartService maintains the buyer's pending selection. Availability is always
// checked against the live inventory row, never against cached cart state.
type CartService struct {
	db     port.DatabaseRepository
	carts  port.CartStore
	logger *zap.Logger
}

func NewCartService(db port.DatabaseRepository, carts port.CartStore, logger *zap.Logger) *CartService {
	return &CartService{db: db, carts: carts, logger: logger}
}

// AddItem creates a new line with price/title/image snapshotted at this
// moment, or bumps the quantity of an existing line.
func (s *CartService) AddItem(ctx context.Context, userID, itemID string) (domain.CartLine, error) {
	item, err := s.db.GetItem(ctx, itemID)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("load item: %w", err)
	}
	if item == nil || !item.Purchasable() {
		return domain.CartLine{}, fmt.Errorf("item %s: %w", itemID, domain.ErrItemUnavailable)
	}
	if item.SellerID == userID {
		return domain.CartLine{}, domain.ErrSelfPurchase
	}

	line, err := s.carts.GetLine(ctx, userID, itemID)
	if err != nil {
		return domain.CartLine{}, fmt.Errorf("read cart: %w", err)
	}
	if line != nil {
		line.Quantity++
		if err := s.carts.PutLine(ctx, userID, *line); err != nil {
			return domain.CartLine{}, fmt.Errorf("write cart: %w", err)
		}
		return *line, nil
	}

	fresh := domain.NewCartLine(item)
	if err := s.carts.PutLine(ctx, userID, fresh); err != nil {
		return domain.CartLine{}, fmt.Errorf("write cart: %w", err)
	}
	s.logger.Debug("cart line added",
		zap.String("user_id", userID), zap.String("item_id", itemID))
	return fresh, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	removed, err := s.carts.RemoveLine(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("remove cart line: %w", err)
	}
	if !removed {
		return domain.ErrItemNotInCart
	}
	return nil
}

// AdjustQuantity applies a +1/-1 delta to an existing line. A quantity of zero
// or less removes the line; the resulting quantity is returned (0 on removal).
func (s *CartService) AdjustQuantity(ctx context.Context, userID, itemID string, delta int) (int, error) {
	if delta != 1 && delta != -1 {
		return 0, fmt.Errorf("delta must be +1 or -1, got %d", delta)
	}

	line, err := s.carts.GetLine(ctx, userID, itemID)
	if err != nil {
		return 0, fmt.Errorf("read cart: %w", err)
	}
	if line == nil {
		return 0, domain.ErrItemNotInCart
	}

	line.Quantity += delta
	if line.Quantity <= 0 {
		if _, err := s.carts.RemoveLine(ctx, userID, itemID); err != nil {
			return 0, fmt.Errorf("remove cart line: %w", err)
		}
		return 0, nil
	}

	if err := s.carts.PutLine(ctx, userID, *line); err != nil {
		return 0, fmt.Errorf("write cart: %w", err)
	}
	return line.Quantity, nil
}

func (s *CartService) Lines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return s.carts.Lines(ctx, userID)
}

// Total sums snapshot prices; it may differ from live listing prices and that
// is the contract the buyer checks out against.
func (s *CartService) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	lines, err := s.carts.Lines(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.CartTotal(lines), nil
}
