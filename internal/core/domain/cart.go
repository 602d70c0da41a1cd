package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one pending selection in a buyer's cart. Price, title and image
// are snapshots captured when the line was created; availability is always
// re-checked against the live item, the snapshots never are.
type CartLine struct {
	ItemID    string          `json:"item_id"`
	SellerID  string          `json:"seller_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageURL  string          `json:"image_url"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

// NewCartLine snapshots a live item into a quantity-1 cart line.
func NewCartLine(item *Item) CartLine {
	return CartLine{
		ItemID:    item.ID,
		SellerID:  item.SellerID,
		Title:     item.Title,
		UnitPrice: item.Price,
		ImageURL:  item.ImageURL,
		Quantity:  1,
		AddedAt:   time.Now().UTC(),
	}
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotal sums the snapshot prices, not the live listing prices.
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
