package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Event is a terminal-state fact emitted by the payment orchestrator or the
// status synchronizer. Consumers (the notification dispatcher) treat delivery
// as fire-and-forget; the state machines never depend on it.
type Event interface {
	Kind() string
}

type PaymentSucceededEvent struct {
	PaymentID     string
	OrderID       string
	BuyerEmail    string
	Amount        decimal.Decimal
	Currency      string
	ReceiptNumber string
}

func (PaymentSucceededEvent) Kind() string { return "payment.succeeded" }

type PaymentFailedEvent struct {
	PaymentID  string
	OrderID    string
	BuyerEmail string
	Reason     string
}

func (PaymentFailedEvent) Kind() string { return "payment.failed" }

type EscrowReleasedEvent struct {
	PaymentID string
	OrderID   string
	SellerID  string
	Reason    string
	Amount    decimal.Decimal
}

func (EscrowReleasedEvent) Kind() string { return "escrow.released" }

type RefundProcessedEvent struct {
	PaymentID  string
	OrderID    string
	BuyerEmail string
	Amount     decimal.Decimal
	Reason     string
	Full       bool
}

func (RefundProcessedEvent) Kind() string { return "refund.processed" }

type DeliveryUpdatedEvent struct {
	OrderID    string
	BuyerEmail string
	Status     DeliveryStatus
	Note       string
}

func (DeliveryUpdatedEvent) Kind() string { return "delivery.updated" }

type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}
