package domain

import "time"

type EventKind string

const (
	EventOrderPlaced   EventKind = "order_placed"
	EventStatusChanged EventKind = "order_status_changed"
)

// MarketEvent is the fire-and-forget notification payload handed to the
// notification collaborator after a commit. Delivery failure never affects the
// committed order.
type MarketEvent struct {
	Kind      EventKind   `json:"kind"`
	OrderID   string      `json:"order_id"`
	BuyerID   string      `json:"buyer_id,omitempty"`
	SellerIDs []string    `json:"seller_ids,omitempty"`
	Total     string      `json:"total,omitempty"`
	From      OrderStatus `json:"from,omitempty"`
	To        OrderStatus `json:"to,omitempty"`
	At        time.Time   `json:"at"`
}
