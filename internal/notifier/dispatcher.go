package notifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sokomart/marketplace-api/internal/domain"
)

// Dispatcher consumes domain events and fans them out to the notifier in the
// background. Publishing never blocks the caller: when the queue is full the
// event is dropped and logged, because notification delivery is best-effort
// by contract.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	queue    chan domain.Event
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   logger,
		queue:    make(chan domain.Event, 256),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) Publish(ctx context.Context, event domain.Event) {
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("notification queue full, dropping event", "kind", event.Kind())
	}
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	close(d.queue)
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for event := range d.queue {
		recipient := recipientFor(event)
		if recipient == "" {
			continue
		}

		err := d.notifier.Notify(event.Kind(), recipient, event)
		if err != nil {
			d.logger.Error("notification delivery failed",
				"kind", event.Kind(), "recipient", recipient, "error", err)
		}
	}
}

func recipientFor(event domain.Event) string {
	switch e := event.(type) {
	case domain.PaymentSucceededEvent:
		return e.BuyerEmail
	case domain.PaymentFailedEvent:
		return e.BuyerEmail
	case domain.EscrowReleasedEvent:
		return e.SellerID
	case domain.RefundProcessedEvent:
		return e.BuyerEmail
	case domain.DeliveryUpdatedEvent:
		return e.BuyerEmail
	default:
		return ""
	}
}
