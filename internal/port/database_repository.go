package port

import (
	"context"

	"github.com/rl1809/campus-market/internal/core/domain"
)

type DatabaseRepository interface {
	// GetItem retrieves the current item row, or nil if no such item exists.
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)

	// SetItemRemoved retires an available listing. Only the owning seller may
	// remove it; a listing already sold or removed is left untouched.
	SetItemRemoved(ctx context.Context, itemID, sellerID string) error

	// CreateOrder persists the order, its lines and the referenced item status
	// flips as one transaction. Every item is re-validated under a row lock
	// inside the same transaction; no partial state survives a failure.
	CreateOrder(ctx context.Context, order domain.Order) error

	// UpdateOrderStatus moves an order to next on behalf of sellerID under a
	// row lock, enforcing the transition table. Returns the prior status.
	UpdateOrderStatus(ctx context.Context, orderID, sellerID string, next domain.OrderStatus) (domain.OrderStatus, error)

	// MarkOrderPaid moves a pending-payment order to processing for its buyer.
	// A second submission finds the order already processing and fails.
	MarkOrderPaid(ctx context.Context, orderID, buyerID string) error

	// GetOrder retrieves an order with its lines, or nil if absent.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListBuyerOrders returns the buyer's orders with lines, newest first.
	ListBuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error)

	// ListSellerSales returns the seller's sold lines with order status and
	// delivery contact, newest first.
	ListSellerSales(ctx context.Context, sellerID string) ([]domain.Sale, error)
}
