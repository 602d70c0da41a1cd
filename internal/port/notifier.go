package port

import (
	"context"

	"github.com/rl1809/campus-market/internal/core/domain"
)

// Notifier delivers a market event to the notification collaborator.
type Notifier interface {
	Publish(ctx context.Context, event domain.MarketEvent) error
}

// EventSink accepts events for asynchronous, fire-and-forget delivery.
// Enqueue never blocks and never fails the caller.
type EventSink interface {
	Enqueue(event domain.MarketEvent)
}
