package service

import (
	"context"

	"github.com/rl1809/campus-market/internal/core/domain"
	"github.com/rl1809/campus-market/internal/port"
)

// QueryService exposes the read-side projections. It never mutates anything
// and is safe to retry.
type QueryService struct {
	db port.DatabaseRepository
}

func NewQueryService(db port.DatabaseRepository) *QueryService {
	return &QueryService{db: db}
}

func (s *QueryService) Order(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.db.GetOrder(ctx, orderID)
}

// BuyerOrders returns the buyer's orders with lines, newest first.
func (s *QueryService) BuyerOrders(ctx context.Context, buyerID string) ([]domain.Order, error) {
	return s.db.ListBuyerOrders(ctx, buyerID)
}

// SellerSales returns the seller's sold lines with the buyer's delivery
// contact, newest first.
func (s *QueryService) SellerSales(ctx context.Context, sellerID string) ([]domain.Sale, error) {
	return s.db.ListSellerSales(ctx, sellerID)
}
