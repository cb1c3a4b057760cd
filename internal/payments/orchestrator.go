package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sokomart/marketplace-api/internal/domain"
	"github.com/sokomart/marketplace-api/internal/gateway"
)

const updateAttempts = 3

// OrderSynchronizer mirrors terminal payment states onto the owning order.
// Implementations must be idempotent: applying the same terminal status twice
// is a no-op.
type OrderSynchronizer interface {
	OnPaymentTerminal(ctx context.Context, payment *domain.Payment) (*domain.Order, error)
}

type Config struct {
	ServiceFeeRate   decimal.Decimal
	EscrowWindow     time.Duration
	ProcessingWindow time.Duration
}

type PayerContact struct {
	Name  string
	Email string
	Phone string
}

type InitiateResult struct {
	Payment     *domain.Payment
	RedirectURL string
}

// Orchestrator drives the payment state machine. Every mutation on a payment
// funnels through here: checkout initiation, webhook deliveries, verification
// polling, escrow release, refunds and the auto-release sweep all share the
// same transition entry points, which is what keeps them idempotent under
// duplicate and out-of-order signals.
type Orchestrator struct {
	cfg      Config
	payments domain.PaymentRepository
	gateways *gateway.Registry
	sync     OrderSynchronizer
	events   domain.EventPublisher
	locks    Locker
	logger   *slog.Logger
}

func NewOrchestrator(
	cfg Config,
	payments domain.PaymentRepository,
	gateways *gateway.Registry,
	sync OrderSynchronizer,
	events domain.EventPublisher,
	locks Locker,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.ServiceFeeRate.IsZero() {
		cfg.ServiceFeeRate = domain.DefaultServiceFeeRate
	}
	if cfg.EscrowWindow == 0 {
		cfg.EscrowWindow = 7 * 24 * time.Hour
	}
	if cfg.ProcessingWindow == 0 {
		cfg.ProcessingWindow = 24 * time.Hour
	}

	return &Orchestrator{
		cfg:      cfg,
		payments: payments,
		gateways: gateways,
		sync:     sync,
		events:   events,
		locks:    locks,
		logger:   logger,
	}
}

// Initiate creates a payment attempt for the order and dispatches the charge
// to the rail serving the method. A gateway failure leaves the payment in
// pending so the buyer can retry initiation; it is never silently marked
// successful.
func (o *Orchestrator) Initiate(
	ctx context.Context,
	order *domain.Order,
	sellerID string,
	method domain.PaymentMethod,
	payer PayerContact,
	escrowRequested bool,
) (*InitiateResult, error) {
	if order.Status.IsTerminal() {
		return nil, &domain.InvalidStateError{Entity: "order", From: string(order.Status), Action: "initiate payment"}
	}
	if order.Payment.Status == domain.MirrorPaid {
		return nil, &domain.InvalidStateError{Entity: "order", From: "paid", Action: "initiate payment"}
	}

	provider, err := o.gateways.For(method)
	if err != nil {
		return nil, err
	}

	fees, err := domain.CalculateFees(order.Subtotal, order.ShippingCost, order.Tax, o.cfg.ServiceFeeRate)
	if err != nil {
		return nil, err
	}

	payment, err := domain.NewPayment(order, sellerID, method, escrowRequested, fees)
	if err != nil {
		return nil, err
	}

	err = o.payments.Create(ctx, payment)
	if err != nil {
		return nil, err
	}

	result, err := provider.Charge(ctx, gateway.ChargeRequest{
		Amount:      payment.Amount.Total,
		Currency:    payment.Currency,
		Method:      method,
		PayerName:   payer.Name,
		PayerEmail:  payer.Email,
		PayerPhone:  payer.Phone,
		Reference:   payment.Gateway.TransactionRef,
		Description: fmt.Sprintf("Order %s", order.ID),
	})
	if err != nil {
		// The payment stays pending; a retry re-initiates safely.
		o.logger.Warn("gateway charge failed",
			"payment_id", payment.ID, "provider", provider.Name(), "error", err)
		return nil, err
	}

	payment.Gateway.Provider = provider.Name()
	payment.Gateway.TransactionID = result.ProviderRef
	payment.Gateway.ResponseCode = result.ResponseCode
	payment.Gateway.ResponseMessage = result.ResponseMessage

	if result.Instant {
		applied, err := payment.Succeed("settled on initiation", o.escrowDeadline())
		if err != nil {
			return nil, err
		}

		err = o.payments.Update(ctx, payment)
		if err != nil {
			return nil, err
		}

		if applied {
			o.afterSuccess(ctx, payment)
		}
	} else {
		err = payment.MarkProcessing(provider.Name(), result.ProviderRef)
		if err != nil {
			return nil, err
		}

		err = o.payments.Update(ctx, payment)
		if err != nil {
			return nil, err
		}
	}

	return &InitiateResult{
		Payment:     payment,
		RedirectURL: result.RedirectURL,
	}, nil
}

// ApplyGatewayResult applies a webhook or polled verification outcome to the
// payment correlated by transaction reference. It is idempotent: a duplicate
// success is a no-op and a conflicting signal after a terminal state is
// logged and dropped, never a regression. An unknown reference returns
// domain.ErrUnmatchedReference so the HTTP layer can acknowledge the webhook
// without a retry storm.
func (o *Orchestrator) ApplyGatewayResult(ctx context.Context, event gateway.WebhookEvent) error {
	if event.Outcome == gateway.OutcomePending {
		return nil
	}

	matched, err := o.payments.GetByTransactionRef(ctx, event.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			o.logger.Warn("unmatched gateway reference", "tx_ref", event.Reference)
			return domain.ErrUnmatchedReference
		}
		return err
	}

	release, err := o.locks.Acquire(ctx, matched.ID)
	if err != nil {
		return err
	}
	defer release()

	var (
		payment *domain.Payment
		applied bool
	)

	for attempt := 0; attempt < updateAttempts; attempt++ {
		payment, err = o.payments.GetByID(ctx, matched.ID)
		if err != nil {
			return err
		}

		applied, err = o.applyOutcome(payment, event)
		if err != nil {
			var stateErr *domain.InvalidStateError
			if errors.As(err, &stateErr) {
				o.logger.Warn("conflicting gateway signal dropped",
					"payment_id", payment.ID, "status", payment.Status, "outcome", event.Outcome)
				return nil
			}
			return err
		}

		if !applied {
			break
		}

		err = o.payments.Update(ctx, payment)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrEditConflict) {
			return err
		}
	}
	if err != nil {
		return err
	}

	// The mirror sync runs even for a duplicate signal: if an earlier
	// delivery updated the payment but crashed before the order caught up,
	// the redelivery converges it. OnPaymentTerminal is idempotent.
	order, err := o.sync.OnPaymentTerminal(ctx, payment)
	if err != nil {
		return err
	}

	if applied {
		o.publishOutcome(ctx, payment, order, event)
	}

	return nil
}

func (o *Orchestrator) applyOutcome(payment *domain.Payment, event gateway.WebhookEvent) (bool, error) {
	note := event.ResponseMessage
	if note == "" {
		note = fmt.Sprintf("gateway reported %s", event.Outcome)
	}

	var (
		applied bool
		err     error
	)

	switch event.Outcome {
	case gateway.OutcomeSuccessful:
		applied, err = payment.Succeed(note, o.escrowDeadline())
	case gateway.OutcomeFailed:
		applied, err = payment.Fail(note)
	default:
		return false, nil
	}
	if err != nil || !applied {
		return false, err
	}

	if event.ProviderRef != "" {
		payment.Gateway.TransactionID = event.ProviderRef
	}
	payment.Gateway.ResponseCode = event.ResponseCode
	payment.Gateway.ResponseMessage = event.ResponseMessage

	return true, nil
}

// Verify polls the rail for a payment still in processing. Polling a payment
// that a webhook already resolved short-circuits without touching the
// gateway, and repeated polls while the rail is still undecided change
// nothing.
func (o *Orchestrator) Verify(ctx context.Context, paymentID string) (*domain.Payment, error) {
	payment, err := o.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != domain.PaymentProcessing {
		return payment, nil
	}

	provider, ok := o.gateways.ByName(payment.Gateway.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown gateway provider %q on payment %s", payment.Gateway.Provider, payment.ID)
	}

	result, err := provider.Verify(ctx, payment.Gateway.TransactionID)
	if err != nil {
		return nil, err
	}

	if result.Outcome == gateway.OutcomePending {
		return payment, nil
	}

	err = o.ApplyGatewayResult(ctx, gateway.WebhookEvent{
		Reference:       payment.Gateway.TransactionRef,
		Outcome:         result.Outcome,
		ProviderRef:     result.ProviderRef,
		ResponseCode:    result.ResponseCode,
		ResponseMessage: result.ResponseMessage,
	})
	if err != nil {
		return nil, err
	}

	return o.payments.GetByID(ctx, paymentID)
}

// ReleaseEscrow settles held funds. Reasons: "delivery_confirmed" (buyer),
// "time_elapsed" (sweep), "manual" (admin override). A release on anything
// but a held escrow fails with InvalidStateError and performs no mutation.
func (o *Orchestrator) ReleaseEscrow(ctx context.Context, paymentID, reason string) (*domain.Payment, error) {
	release, err := o.locks.Acquire(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	payment, err := o.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	err = payment.ReleaseEscrow(reason)
	if err != nil {
		return nil, err
	}

	err = o.payments.Update(ctx, payment)
	if err != nil {
		return nil, err
	}

	order, err := o.sync.OnPaymentTerminal(ctx, payment)
	if err != nil {
		return nil, err
	}

	o.events.Publish(ctx, domain.EscrowReleasedEvent{
		PaymentID: payment.ID,
		OrderID:   order.ID,
		SellerID:  payment.SellerID,
		Reason:    reason,
		Amount:    payment.Amount.Total,
	})

	return payment, nil
}

// DisputeEscrow freezes a held escrow pending manual resolution.
func (o *Orchestrator) DisputeEscrow(ctx context.Context, paymentID, note string) (*domain.Payment, error) {
	release, err := o.locks.Acquire(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	payment, err := o.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	err = payment.MarkDisputed(note)
	if err != nil {
		return nil, err
	}

	err = o.payments.Update(ctx, payment)
	if err != nil {
		return nil, err
	}

	return payment, nil
}

// ProcessRefund applies a (possibly partial) refund. The cumulative refunded
// amount can never exceed the payment total; violations are rejected before
// any state mutation.
func (o *Orchestrator) ProcessRefund(ctx context.Context, paymentID string, amount decimal.Decimal, reason string) (*domain.Payment, error) {
	release, err := o.locks.Acquire(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	defer release()

	payment, err := o.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	refundTxID := fmt.Sprintf("rf-%s-%d", payment.ID, len(payment.StatusHistory))

	err = payment.ApplyRefund(amount, reason, refundTxID)
	if err != nil {
		return nil, err
	}

	err = o.payments.Update(ctx, payment)
	if err != nil {
		return nil, err
	}

	order, err := o.sync.OnPaymentTerminal(ctx, payment)
	if err != nil {
		return nil, err
	}

	o.events.Publish(ctx, domain.RefundProcessedEvent{
		PaymentID:  payment.ID,
		OrderID:    order.ID,
		BuyerEmail: order.Customer.Email,
		Amount:     amount,
		Reason:     reason,
		Full:       payment.RefundedFully(),
	})

	return payment, nil
}

// ReleaseDueEscrows releases every held escrow past its auto-release
// deadline. Individual failures are logged and skipped; the sweep returns
// how many it released.
func (o *Orchestrator) ReleaseDueEscrows(ctx context.Context) (int, error) {
	due, err := o.payments.ListDueEscrows(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range due {
		_, err := o.ReleaseEscrow(ctx, due[i].ID, "time_elapsed")
		if err != nil {
			var stateErr *domain.InvalidStateError
			if !errors.As(err, &stateErr) {
				o.logger.Error("escrow sweep failed for payment",
					"payment_id", due[i].ID, "error", err)
			}
			continue
		}
		released++
	}

	return released, nil
}

// StaleProcessing lists payments stuck in processing beyond the configured
// window. They are flagged for reconciliation, not transitioned.
func (o *Orchestrator) StaleProcessing(ctx context.Context) ([]domain.Payment, error) {
	cutoff := time.Now().UTC().Add(-o.cfg.ProcessingWindow)
	return o.payments.ListStaleProcessing(ctx, cutoff)
}

func (o *Orchestrator) afterSuccess(ctx context.Context, payment *domain.Payment) {
	order, err := o.sync.OnPaymentTerminal(ctx, payment)
	if err != nil {
		o.logger.Error("order mirror sync failed", "payment_id", payment.ID, "error", err)
		return
	}

	o.events.Publish(ctx, domain.PaymentSucceededEvent{
		PaymentID:     payment.ID,
		OrderID:       order.ID,
		BuyerEmail:    order.Customer.Email,
		Amount:        payment.Amount.Total,
		Currency:      payment.Currency,
		ReceiptNumber: payment.Receipt.Number,
	})

	o.recordReceiptSent(ctx, payment)
}

func (o *Orchestrator) publishOutcome(ctx context.Context, payment *domain.Payment, order *domain.Order, event gateway.WebhookEvent) {
	switch event.Outcome {
	case gateway.OutcomeSuccessful:
		o.events.Publish(ctx, domain.PaymentSucceededEvent{
			PaymentID:     payment.ID,
			OrderID:       order.ID,
			BuyerEmail:    order.Customer.Email,
			Amount:        payment.Amount.Total,
			Currency:      payment.Currency,
			ReceiptNumber: payment.Receipt.Number,
		})
		o.recordReceiptSent(ctx, payment)
	case gateway.OutcomeFailed:
		o.events.Publish(ctx, domain.PaymentFailedEvent{
			PaymentID:  payment.ID,
			OrderID:    order.ID,
			BuyerEmail: order.Customer.Email,
			Reason:     event.ResponseMessage,
		})
	}
}

// recordReceiptSent stamps the receipt once its notification is queued.
// The write is best effort; a lost stamp never blocks the payment.
func (o *Orchestrator) recordReceiptSent(ctx context.Context, payment *domain.Payment) {
	now := time.Now().UTC()
	payment.Receipt.SentAt = &now
	if err := o.payments.Update(ctx, payment); err != nil {
		o.logger.Warn("receipt sent stamp not persisted", "payment_id", payment.ID, "error", err)
	}
}

func (o *Orchestrator) escrowDeadline() time.Time {
	return time.Now().UTC().Add(o.cfg.EscrowWindow)
}
