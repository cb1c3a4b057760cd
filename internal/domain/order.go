package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped,
		OrderDelivered, OrderCompleted, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// IsTerminal reports whether the order left the normal fulfillment flow.
// A terminal order status is never overwritten by delivery-driven updates.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCancelled || s == OrderRefunded
}

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryAssigned  DeliveryStatus = "assigned"
	DeliveryPickedUp  DeliveryStatus = "picked_up"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryArrived   DeliveryStatus = "arrived"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryReturned  DeliveryStatus = "returned"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryAssigned, DeliveryPickedUp, DeliveryInTransit,
		DeliveryArrived, DeliveryDelivered, DeliveryFailed, DeliveryReturned:
		return true
	}
	return false
}

// PaymentMirrorStatus is the denormalized payment state stored on the order.
// The authoritative state lives on the Payment; only the status synchronizer
// writes this mirror.
type PaymentMirrorStatus string

const (
	MirrorPending  PaymentMirrorStatus = "pending"
	MirrorPaid     PaymentMirrorStatus = "paid"
	MirrorFailed   PaymentMirrorStatus = "failed"
	MirrorRefunded PaymentMirrorStatus = "refunded"
)

type OrderItem struct {
	ProductID string
	Name      string
	Image     string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type CustomerInfo struct {
	Name  string
	Email string
	Phone string
}

type Rider struct {
	ID    string
	Name  string
	Phone string
}

type TrackingEntry struct {
	Status    DeliveryStatus
	Location  string
	Note      string
	Timestamp time.Time
}

type Delivery struct {
	Method             string
	Status             DeliveryStatus
	Rider              *Rider
	Fee                decimal.Decimal
	TrackingHistory    []TrackingEntry
	ActualDeliveryTime *time.Time
}

type PaymentMirror struct {
	Method        PaymentMethod
	Status        PaymentMirrorStatus
	TransactionID string
	PaidAt        *time.Time
}

// Order is one checkout. Item names and prices are snapshots taken at order
// time; later catalog edits never change historical totals.
type Order struct {
	ID         string
	BusinessID string
	BuyerID    string
	Customer   CustomerInfo

	Items    []OrderItem
	Delivery Delivery
	Currency string

	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Discount     decimal.Decimal
	TotalPrice   decimal.Decimal

	Status  OrderStatus
	Payment PaymentMirror

	StatusHistory []StatusEntry

	CreatedAt time.Time
	UpdatedAt *time.Time
	Version   int
}

// NewOrder snapshots the given items and computes the order totals once.
// TotalPrice is immutable afterwards.
func NewOrder(
	businessID, buyerID string,
	customer CustomerInfo,
	items []OrderItem,
	deliveryMethod, currency string,
	shippingCost, tax, discount decimal.Decimal,
) (*Order, error) {
	if len(items) == 0 {
		return nil, NewValidationError("order must contain at least one item")
	}

	subtotal := decimal.Zero
	for i := range items {
		item := &items[i]
		if item.Quantity < 1 {
			return nil, NewValidationError("item %q has non-positive quantity", item.Name)
		}
		if item.UnitPrice.IsNegative() {
			return nil, NewValidationError("item %q has negative unit price", item.Name)
		}

		item.LineTotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(item.LineTotal)
	}

	now := time.Now().UTC()

	o := &Order{
		ID:         uuid.New().String(),
		BusinessID: businessID,
		BuyerID:    buyerID,
		Customer:   customer,
		Items:      items,
		Currency:   currency,
		Delivery: Delivery{
			Method: deliveryMethod,
			Status: DeliveryPending,
			Fee:    shippingCost,
		},
		Subtotal:     subtotal,
		ShippingCost: shippingCost,
		Tax:          tax,
		Discount:     discount,
		TotalPrice:   subtotal.Add(shippingCost).Add(tax).Sub(discount),
		Status:       OrderPending,
		Payment: PaymentMirror{
			Status: MirrorPending,
		},
		CreatedAt: now,
	}
	o.appendHistory(string(OrderPending), "order created", "system")

	return o, nil
}

// SetStatus applies an explicit status update from a seller or admin and
// records it in the audit log. It has no side effect beyond the log.
// A terminal order never transitions again, and "delivered" is reserved for
// the delivery pipeline: it can only be set once the delivery itself reports
// delivered, so the two statuses cannot drift apart.
func (o *Order) SetStatus(status OrderStatus, note, actor string) error {
	if !status.Valid() {
		return NewValidationError("unknown order status: %s", status)
	}
	if o.Status.IsTerminal() {
		return &InvalidStateError{Entity: "order", From: string(o.Status), Action: "update status"}
	}
	if status == OrderDelivered && o.Delivery.Status != DeliveryDelivered {
		return &InvalidStateError{Entity: "order", From: string(o.Status), Action: "delivered before the delivery confirms it"}
	}

	o.Status = status
	o.appendHistory(string(status), note, actor)

	return nil
}

// ApplyDeliveryStatus appends to the tracking history and derives the order
// status from the delivery status. The derivation is one-directional: the
// delivery drives the order, never the reverse, and a terminal order status
// is never overwritten.
func (o *Order) ApplyDeliveryStatus(status DeliveryStatus, location, note string) error {
	if !status.Valid() {
		return NewValidationError("unknown delivery status: %s", status)
	}
	if o.Status.IsTerminal() {
		return &InvalidStateError{Entity: "order", From: string(o.Status), Action: "update delivery status"}
	}

	now := time.Now().UTC()

	o.Delivery.Status = status
	o.Delivery.TrackingHistory = append(o.Delivery.TrackingHistory, TrackingEntry{
		Status:    status,
		Location:  location,
		Note:      note,
		Timestamp: now,
	})

	switch status {
	case DeliveryPickedUp:
		o.Status = OrderProcessing
		o.appendHistory(string(OrderProcessing), "package picked up", "delivery")
	case DeliveryInTransit:
		o.Status = OrderShipped
		o.appendHistory(string(OrderShipped), "package in transit", "delivery")
	case DeliveryDelivered:
		o.Status = OrderDelivered
		o.Delivery.ActualDeliveryTime = &now
		o.appendHistory(string(OrderDelivered), "package delivered", "delivery")
	}

	return nil
}

// SetPaymentMirror reflects a terminal payment state onto the order. Applying
// the same mirror status twice is a no-op so the synchronizer stays safe
// under at-least-once delivery.
func (o *Order) SetPaymentMirror(status PaymentMirrorStatus, transactionID string) bool {
	if o.Payment.Status == status && o.Payment.TransactionID == transactionID {
		return false
	}

	o.Payment.Status = status
	o.Payment.TransactionID = transactionID

	if status == MirrorPaid && o.Payment.PaidAt == nil {
		now := time.Now().UTC()
		o.Payment.PaidAt = &now
	}

	return true
}

func (o *Order) appendHistory(status, note, actor string) {
	if actor != "" {
		note = note + " (by " + actor + ")"
	}

	o.StatusHistory = append(o.StatusHistory, StatusEntry{
		Status:    status,
		Note:      note,
		Timestamp: time.Now().UTC(),
	})
}

type OrderRepository interface {
	Create(ctx context.Context, order *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, order *Order) error
}
