package domain

import "errors"

// Checkout and lifecycle error taxonomy. These are expected outcomes surfaced
// to callers, matched with errors.Is; anything else is a genuine fault.
var (
	ErrEmptySelection    = errors.New("empty selection")
	ErrItemUnavailable   = errors.New("item unavailable")
	ErrSelfPurchase      = errors.New("cannot purchase own listing")
	ErrItemNotInCart     = errors.New("item not in cart")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidCard       = errors.New("invalid card details")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrOrderNotFound     = errors.New("order not found")

	// ErrStorageConflict marks transient lock/deadlock failures. The whole
	// checkout unit is safe to replay from scratch; partial retries are not.
	ErrStorageConflict = errors.New("storage conflict")
)
