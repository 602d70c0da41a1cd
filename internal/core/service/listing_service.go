package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/rl1809/campus-market/internal/core/domain"
	"github.com/rl1809/campus-market/internal/port"
)

// ListingService covers the seller-facing listing surface the checkout core
// needs: reading a listing and retiring one. Listing creation and editing live
// in the catalog service upstream.
type ListingService struct {
	db     port.DatabaseRepository
	logger *zap.Logger
}

func NewListingService(db port.DatabaseRepository, logger *zap.Logger) *ListingService {
	return &ListingService{db: db, logger: logger}
}

// Get returns the listing, or nil when it does not exist.
func (s *ListingService) Get(ctx context.Context, itemID string) (*domain.Item, error) {
	return s.db.GetItem(ctx, itemID)
}

// Remove retires the seller's own available listing. A listing that already
// sold stays sold; the order history keeps referring to it.
func (s *ListingService) Remove(ctx context.Context, sellerID, itemID string) error {
	if err := s.db.SetItemRemoved(ctx, itemID, sellerID); err != nil {
		return err
	}
	s.logger.Info("listing removed",
		zap.String("item_id", itemID), zap.String("seller_id", sellerID))
	return nil
}
