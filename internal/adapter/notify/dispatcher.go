package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/campus-market/internal/core/domain"
	"github.com/rl1809/campus-market/internal/port"
)

const publishTimeout = 5 * time.Second

// Dispatcher drains a buffered event queue with a worker pool and hands each
// event to the notifier. A full queue drops the event: notifications must
// never block or fail a committed order.
type Dispatcher struct {
	notifier port.Notifier
	logger   *zap.Logger
	queue    chan domain.MarketEvent
	wg       sync.WaitGroup
}

func NewDispatcher(notifier port.Notifier, logger *zap.Logger, queueSize int) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan domain.MarketEvent, queueSize),
	}
}

func (d *Dispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
}

func (d *Dispatcher) workerLoop(id int) {
	for event := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := d.notifier.Publish(ctx, event); err != nil {
			d.logger.Warn("notification publish failed",
				zap.Int("worker", id),
				zap.String("order_id", event.OrderID),
				zap.Error(err))
		}
		cancel()
	}
}

func (d *Dispatcher) Enqueue(event domain.MarketEvent) {
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("notification queue full, dropping event",
			zap.String("kind", string(event.Kind)),
			zap.String("order_id", event.OrderID))
	}
}

// Close stops accepting events and waits for in-flight publishes.
func (d *Dispatcher) Close() {
	close(d.queue)
	d.wg.Wait()
}
