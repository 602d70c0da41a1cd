package domain

import (
	"fmt"
	"time"
)

// PaymentCard carries the simulated payment details. Only the shape is
// validated; no real authorization happens anywhere in the system.
type PaymentCard struct {
	Number      string `json:"number"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

// Validate checks card number length, CVV length and that the expiry is not in
// the past relative to now. All failures wrap ErrInvalidCard.
func (c PaymentCard) Validate(now time.Time) error {
	if !allDigits(c.Number) || len(c.Number) < 13 || len(c.Number) > 19 {
		return fmt.Errorf("%w: card number must be 13-19 digits", ErrInvalidCard)
	}
	if !allDigits(c.CVV) || len(c.CVV) < 3 || len(c.CVV) > 4 {
		return fmt.Errorf("%w: cvv must be 3-4 digits", ErrInvalidCard)
	}
	if c.ExpiryMonth < 1 || c.ExpiryMonth > 12 {
		return fmt.Errorf("%w: expiry month out of range", ErrInvalidCard)
	}
	// A card is valid through the last moment of its expiry month.
	expiry := time.Date(c.ExpiryYear, time.Month(c.ExpiryMonth)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.Before(expiry) {
		return fmt.Errorf("%w: card expired", ErrInvalidCard)
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
