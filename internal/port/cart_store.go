package port

import (
	"context"

	"github.com/rl1809/campus-market/internal/core/domain"
)

// CartStore holds the per-buyer pending selection. A cart is owned by exactly
// one session; the store needs no cross-session locking.
type CartStore interface {
	// GetLine returns the line for an item, or nil if absent.
	GetLine(ctx context.Context, userID, itemID string) (*domain.CartLine, error)

	// PutLine creates or replaces the line for its item.
	PutLine(ctx context.Context, userID string, line domain.CartLine) error

	// RemoveLine deletes a line, reporting whether one existed.
	RemoveLine(ctx context.Context, userID, itemID string) (bool, error)

	// Lines returns all lines in stable add order.
	Lines(ctx context.Context, userID string) ([]domain.CartLine, error)

	// Clear drops the whole cart.
	Clear(ctx context.Context, userID string) error
}
