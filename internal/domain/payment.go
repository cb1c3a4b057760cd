package domain

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentSuccessful        PaymentStatus = "successful"
	PaymentFailed            PaymentStatus = "failed"
	PaymentCancelled         PaymentStatus = "cancelled"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentHeldInEscrow      PaymentStatus = "held_in_escrow"
	PaymentReleased          PaymentStatus = "released"
)

// IsTerminal reports whether no further automatic transition happens without
// an explicit external trigger.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentSuccessful, PaymentFailed, PaymentCancelled,
		PaymentRefunded, PaymentPartiallyRefunded, PaymentHeldInEscrow, PaymentReleased:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodMobileMoney    PaymentMethod = "mobile_money"
	MethodCard           PaymentMethod = "card"
	MethodWallet         PaymentMethod = "wallet"
	MethodCashOnDelivery PaymentMethod = "cash_on_delivery"
)

type MethodCategory string

const (
	CategoryMobileMoney MethodCategory = "mobile_money"
	CategoryCard        MethodCategory = "card"
	CategoryWallet      MethodCategory = "wallet"
	CategoryCash        MethodCategory = "cash"
)

func (m PaymentMethod) Category() MethodCategory {
	switch m {
	case MethodMobileMoney:
		return CategoryMobileMoney
	case MethodCard:
		return CategoryCard
	case MethodWallet:
		return CategoryWallet
	default:
		return CategoryCash
	}
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodMobileMoney, MethodCard, MethodWallet, MethodCashOnDelivery:
		return true
	}
	return false
}

type Amount struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	ServiceFee  decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

type EscrowStatus string

const (
	EscrowNone     EscrowStatus = "none"
	EscrowHeld     EscrowStatus = "held"
	EscrowReleased EscrowStatus = "released"
	EscrowRefunded EscrowStatus = "refunded"
	EscrowDisputed EscrowStatus = "disputed"
)

type Escrow struct {
	Enabled             bool
	Status              EscrowStatus
	HeldAt              *time.Time
	ReleasedAt          *time.Time
	ReleaseCondition    string
	AutoReleaseDeadline *time.Time
}

type SplitRole string

const (
	SplitSeller   SplitRole = "seller"
	SplitDelivery SplitRole = "delivery"
	SplitPlatform SplitRole = "platform"
	SplitRider    SplitRole = "rider"
)

type SplitStatus string

const (
	SplitPending SplitStatus = "pending"
	SplitPaid    SplitStatus = "paid"
	SplitFailed  SplitStatus = "failed"
)

type Split struct {
	Role        SplitRole
	RecipientID string
	Amount      decimal.Decimal
	Status      SplitStatus
	PaidAt      *time.Time
}

type GatewayInfo struct {
	Provider        string
	TransactionID   string
	TransactionRef  string
	ResponseCode    string
	ResponseMessage string
}

type Refund struct {
	Amount        decimal.Decimal
	Reason        string
	RefundedAt    *time.Time
	TransactionID string
}

type Receipt struct {
	Number string
	URL    string
	SentAt *time.Time
}

type StatusEntry struct {
	Status    string
	Note      string
	Timestamp time.Time
}

// Payment is the source of truth for money state on an order. An order can
// carry several payment attempts; each attempt is its own Payment. Payments
// are never deleted.
type Payment struct {
	ID         string
	OrderID    string
	BuyerID    string
	SellerID   string
	BusinessID string

	Method   PaymentMethod
	Amount   Amount
	Currency string
	Status   PaymentStatus

	Escrow  Escrow
	Splits  []Split
	Gateway GatewayInfo
	Refund  Refund
	Receipt Receipt

	StatusHistory []StatusEntry

	CreatedAt time.Time
	UpdatedAt *time.Time
	Version   int
}

// NewPayment builds a payment attempt in pending state. The fee breakdown and
// the split allocation are computed exactly once here; they are never
// recomputed afterwards, so fee-rule changes cannot drift a payment that is
// already in flight. The transaction reference doubles as the idempotency key
// correlated against inbound webhooks.
func NewPayment(order *Order, sellerID string, method PaymentMethod, escrowRequested bool, fees Amount) (*Payment, error) {
	if !method.Valid() {
		return nil, NewValidationError("unknown payment method: %s", method)
	}
	if fees.Total.LessThanOrEqual(decimal.Zero) {
		return nil, NewValidationError("payment total must be positive")
	}

	now := time.Now().UTC()

	// Cash settles on handover, there is nothing to hold.
	escrowEnabled := escrowRequested && method != MethodCashOnDelivery

	riderID := ""
	if order.Delivery.Rider != nil {
		riderID = order.Delivery.Rider.ID
	}

	p := &Payment{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
		SellerID:   sellerID,
		BusinessID: order.BusinessID,
		Method:     method,
		Amount:     fees,
		Currency:   order.Currency,
		Status:     PaymentPending,
		Escrow: Escrow{
			Enabled: escrowEnabled,
			Status:  EscrowNone,
		},
		Splits: allocateSplits(fees, sellerID, riderID),
		Gateway: GatewayInfo{
			TransactionRef: newTransactionRef(),
		},
		Receipt: Receipt{
			Number: newReceiptNumber(now),
		},
		CreatedAt: now,
	}
	p.appendHistory(PaymentPending, "payment created")

	return p, nil
}

// MarkProcessing records that the gateway accepted the charge request.
func (p *Payment) MarkProcessing(provider, providerRef string) error {
	if p.Status != PaymentPending {
		return &InvalidStateError{Entity: "payment", From: string(p.Status), Action: "mark processing"}
	}

	p.Status = PaymentProcessing
	p.Gateway.Provider = provider
	p.Gateway.TransactionID = providerRef
	p.appendHistory(PaymentProcessing, fmt.Sprintf("charge accepted by %s", provider))

	return nil
}

// Succeed moves the payment to its success state: held_in_escrow when escrow
// is enabled, successful otherwise. Non-escrow success settles the splits
// immediately. Calling Succeed on a payment that already succeeded is not an
// error so that duplicate webhook deliveries stay no-ops; the caller detects
// the repeat via the return value.
func (p *Payment) Succeed(note string, autoReleaseDeadline time.Time) (applied bool, err error) {
	switch p.Status {
	case PaymentSuccessful, PaymentHeldInEscrow, PaymentReleased:
		return false, nil
	case PaymentPending, PaymentProcessing:
	default:
		return false, &InvalidStateError{Entity: "payment", From: string(p.Status), Action: "mark successful"}
	}

	now := time.Now().UTC()

	if p.Escrow.Enabled {
		p.Status = PaymentHeldInEscrow
		p.Escrow.Status = EscrowHeld
		p.Escrow.HeldAt = &now
		p.Escrow.AutoReleaseDeadline = &autoReleaseDeadline
		p.appendHistory(PaymentHeldInEscrow, note)
	} else {
		p.Status = PaymentSuccessful
		p.settleSplits(now)
		p.appendHistory(PaymentSuccessful, note)
	}

	return true, nil
}

// Fail marks the gateway outcome as failed. A failure arriving after the
// payment already succeeded never regresses state.
func (p *Payment) Fail(note string) (applied bool, err error) {
	switch p.Status {
	case PaymentPending, PaymentProcessing:
	case PaymentFailed:
		return false, nil
	default:
		return false, &InvalidStateError{Entity: "payment", From: string(p.Status), Action: "mark failed"}
	}

	p.Status = PaymentFailed
	p.appendHistory(PaymentFailed, note)

	return true, nil
}

func (p *Payment) Cancel(note string) error {
	switch p.Status {
	case PaymentPending, PaymentProcessing:
	default:
		return &InvalidStateError{Entity: "payment", From: string(p.Status), Action: "cancel"}
	}

	p.Status = PaymentCancelled
	p.appendHistory(PaymentCancelled, note)

	return nil
}

// ReleaseEscrow settles held funds to the recipients. A second release is
// rejected, never a silent success.
func (p *Payment) ReleaseEscrow(reason string) error {
	if p.Escrow.Status != EscrowHeld {
		return &InvalidStateError{Entity: "escrow", From: string(p.Escrow.Status), Action: "release"}
	}

	now := time.Now().UTC()

	p.Escrow.Status = EscrowReleased
	p.Escrow.ReleasedAt = &now
	p.Escrow.ReleaseCondition = reason
	p.Status = PaymentReleased
	p.settleSplits(now)
	p.appendHistory(PaymentReleased, fmt.Sprintf("escrow released: %s", reason))

	return nil
}

// MarkDisputed freezes a held escrow pending manual resolution. Only the
// escrow overlay changes; Payment.Status stays held_in_escrow.
func (p *Payment) MarkDisputed(note string) error {
	if p.Escrow.Status != EscrowHeld {
		return &InvalidStateError{Entity: "escrow", From: string(p.Escrow.Status), Action: "dispute"}
	}

	p.Escrow.Status = EscrowDisputed
	p.appendHistory(p.Status, fmt.Sprintf("escrow disputed: %s", note))

	return nil
}

// ApplyRefund accumulates a refund against the payment. The cumulative
// refunded amount can never exceed the total.
func (p *Payment) ApplyRefund(amount decimal.Decimal, reason, refundTxID string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return NewValidationError("refund amount must be positive")
	}

	switch p.Status {
	case PaymentSuccessful, PaymentHeldInEscrow, PaymentReleased, PaymentPartiallyRefunded:
	default:
		return &InvalidStateError{Entity: "payment", From: string(p.Status), Action: "refund"}
	}

	cumulative := p.Refund.Amount.Add(amount)
	if cumulative.GreaterThan(p.Amount.Total) {
		return NewValidationError(
			"refund of %s exceeds remaining balance (refunded %s of %s)",
			amount, p.Refund.Amount, p.Amount.Total,
		)
	}

	now := time.Now().UTC()

	p.Refund.Amount = cumulative
	p.Refund.Reason = reason
	p.Refund.RefundedAt = &now
	p.Refund.TransactionID = refundTxID

	if p.Escrow.Status == EscrowHeld || p.Escrow.Status == EscrowDisputed {
		p.Escrow.Status = EscrowRefunded
	}

	if cumulative.Equal(p.Amount.Total) {
		p.Status = PaymentRefunded
		p.appendHistory(PaymentRefunded, fmt.Sprintf("fully refunded: %s", reason))
	} else {
		p.Status = PaymentPartiallyRefunded
		p.appendHistory(PaymentPartiallyRefunded, fmt.Sprintf("refunded %s: %s", amount, reason))
	}

	return nil
}

func (p *Payment) RefundedFully() bool {
	return p.Status == PaymentRefunded
}

func (p *Payment) settleSplits(now time.Time) {
	for i := range p.Splits {
		if p.Splits[i].Status == SplitPending {
			p.Splits[i].Status = SplitPaid
			p.Splits[i].PaidAt = &now
		}
	}
}

func (p *Payment) appendHistory(status PaymentStatus, note string) {
	p.StatusHistory = append(p.StatusHistory, StatusEntry{
		Status:    string(status),
		Note:      note,
		Timestamp: time.Now().UTC(),
	})
}

// allocateSplits maps the fee breakdown onto recipient shares: the seller
// receives the subtotal, the delivery fee goes to the assigned rider (or the
// delivery pool when none is assigned yet), and the platform keeps service
// fee plus tax. The shares always sum to the total.
func allocateSplits(fees Amount, sellerID, riderID string) []Split {
	deliveryRole := SplitDelivery
	deliveryRecipient := ""
	if riderID != "" {
		deliveryRole = SplitRider
		deliveryRecipient = riderID
	}

	splits := []Split{
		{Role: SplitSeller, RecipientID: sellerID, Amount: fees.Subtotal, Status: SplitPending},
	}

	if fees.DeliveryFee.IsPositive() {
		splits = append(splits, Split{
			Role:        deliveryRole,
			RecipientID: deliveryRecipient,
			Amount:      fees.DeliveryFee,
			Status:      SplitPending,
		})
	}

	platformShare := fees.ServiceFee.Add(fees.Tax)
	if platformShare.IsPositive() {
		splits = append(splits, Split{
			Role:   SplitPlatform,
			Amount: platformShare,
			Status: SplitPending,
		})
	}

	return splits
}

func newTransactionRef() string {
	return fmt.Sprintf("txn-%s", uuid.New().String())
}

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func newReceiptNumber(now time.Time) string {
	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	buf := make([]byte, 4)
	rand.Read(buf)
	for i, b := range buf {
		buf[i] = base36Alphabet[int(b)%len(base36Alphabet)]
	}

	return fmt.Sprintf("RCP-%s-%s", ts, buf)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)
	GetByTransactionRef(ctx context.Context, ref string) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID string) ([]Payment, error)
	Update(ctx context.Context, payment *Payment) error
	ListDueEscrows(ctx context.Context, now time.Time) ([]Payment, error)
	ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]Payment, error)
}
