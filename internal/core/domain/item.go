package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusSold      ItemStatus = "sold"
	ItemStatusRemoved   ItemStatus = "removed"
)

// Item is a single sellable listing. Each listing is one physical item with
// exactly one seller; once sold or removed it never becomes purchasable again.
type Item struct {
	ID          string
	SellerID    string
	Title       string
	Description string
	Category    string
	Condition   string
	Price       decimal.Decimal
	ImageURL    string
	Status      ItemStatus
	Rating      int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (i *Item) Purchasable() bool {
	return i.Status == ItemStatusAvailable
}
