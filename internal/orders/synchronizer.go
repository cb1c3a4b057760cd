package orders

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sokomart/marketplace-api/internal/domain"
)

const updateAttempts = 3

// Synchronizer owns every write to Order.status, Order.delivery.status and
// the Order.payment mirror. Route handlers never set these fields directly.
type Synchronizer struct {
	orders domain.OrderRepository
	events domain.EventPublisher
	logger *slog.Logger
}

func NewSynchronizer(orders domain.OrderRepository, events domain.EventPublisher, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		orders: orders,
		events: events,
		logger: logger,
	}
}

// UpdateOrderStatus applies an explicit seller/admin status change. It only
// mutates the order and its audit log; delivery state is untouched.
func (s *Synchronizer) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, note, actor string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	err = order.SetStatus(status, note, actor)
	if err != nil {
		return nil, err
	}

	err = s.orders.Update(ctx, order)
	if err != nil {
		return nil, err
	}

	return order, nil
}

// UpdateDeliveryStatus appends to the tracking history and derives the order
// status from the delivery status. Delivery drives the order, never the
// reverse, and a cancelled or refunded order rejects further movement.
func (s *Synchronizer) UpdateDeliveryStatus(ctx context.Context, orderID string, status domain.DeliveryStatus, location, note string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	err = order.ApplyDeliveryStatus(status, location, note)
	if err != nil {
		return nil, err
	}

	err = s.orders.Update(ctx, order)
	if err != nil {
		return nil, err
	}

	s.events.Publish(ctx, domain.DeliveryUpdatedEvent{
		OrderID:    order.ID,
		BuyerEmail: order.Customer.Email,
		Status:     status,
		Note:       note,
	})

	return order, nil
}

// OnPaymentTerminal mirrors a terminal payment state onto the order. It is
// the only writer of Order.payment.status, and it is safe to call more than
// once with the same terminal status: repeats change nothing. Stale writes
// are retried internally since re-applying the mirror is idempotent.
func (s *Synchronizer) OnPaymentTerminal(ctx context.Context, payment *domain.Payment) (*domain.Order, error) {
	mirror, ok := mirrorStatus(payment.Status)
	if !ok {
		return s.orders.GetByID(ctx, payment.OrderID)
	}

	var (
		order *domain.Order
		err   error
	)

	for attempt := 0; attempt < updateAttempts; attempt++ {
		order, err = s.orders.GetByID(ctx, payment.OrderID)
		if err != nil {
			return nil, err
		}

		changed := order.SetPaymentMirror(mirror, payment.Gateway.TransactionID)
		if !changed {
			return order, nil
		}

		err = s.orders.Update(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrEditConflict) {
			return nil, err
		}
	}

	s.logger.Error("payment mirror sync exhausted retries",
		"order_id", payment.OrderID, "payment_id", payment.ID)

	return nil, err
}

func mirrorStatus(status domain.PaymentStatus) (domain.PaymentMirrorStatus, bool) {
	switch status {
	case domain.PaymentSuccessful, domain.PaymentHeldInEscrow, domain.PaymentReleased:
		return domain.MirrorPaid, true
	case domain.PaymentFailed:
		return domain.MirrorFailed, true
	case domain.PaymentRefunded, domain.PaymentPartiallyRefunded:
		return domain.MirrorRefunded, true
	default:
		return "", false
	}
}
