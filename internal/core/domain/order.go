package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCanceled       OrderStatus = "canceled"
	OrderStatusDisputed       OrderStatus = "disputed"
)

// statusTransitions is the closed transition table for the seller-driven
// post-purchase lifecycle. Anything not listed here is rejected.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPendingPayment: {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing:     {OrderStatusShipped, OrderStatusCanceled, OrderStatusDisputed},
	OrderStatusShipped:        {OrderStatusCompleted, OrderStatusDisputed},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusCompleted, OrderStatusCanceled, OrderStatusDisputed:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(statusTransitions[s]) == 0
}

// CanTransition reports whether the lifecycle allows moving from one status to
// the next. Statuses never regress.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DeliveryDetails is the address snapshot frozen onto the order at checkout.
type DeliveryDetails struct {
	RecipientName string `json:"recipient_name"`
	AddressLine   string `json:"address_line"`
	City          string `json:"city"`
	Postcode      string `json:"postcode"`
	Phone         string `json:"phone"`
}

// Order is the durable record of a purchase. Everything except Status is
// immutable after creation.
type Order struct {
	ID               string
	BuyerID          string
	Total            decimal.Decimal
	Delivery         DeliveryDetails
	Status           OrderStatus
	EstimatedArrival *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Lines            []OrderLine
}

// OrderLine is an immutable snapshot of one purchased item. Price, title and
// image must never be re-derived from the live item, since sellers may edit
// listings after a sale.
type OrderLine struct {
	OrderID         string
	ItemID          string
	SellerID        string
	Quantity        int
	PriceAtPurchase decimal.Decimal
	TitleSnapshot   string
	ImageSnapshot   string
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.PriceAtPurchase.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Sale is the seller-side projection of one sold line, joined with the order's
// status and the buyer's delivery contact.
type Sale struct {
	OrderID   string
	OrderDate time.Time
	Status    OrderStatus
	Line      OrderLine
	Contact   DeliveryDetails
}
