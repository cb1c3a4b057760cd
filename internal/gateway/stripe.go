package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sokomart/marketplace-api/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBodyBytes = 65536

// StripeProvider serves the card category through Stripe Checkout redirects.
type StripeProvider struct {
	webhookSecret string
	successURL    string
	failureURL    string
}

func NewStripeProvider(webhookSecret, successURL, failureURL string) *StripeProvider {
	return &StripeProvider{
		webhookSecret: webhookSecret,
		successURL:    successURL,
		failureURL:    failureURL,
	}
}

func (s *StripeProvider) Name() string {
	return "stripe"
}

func (s *StripeProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	amountCents := req.Amount.Mul(decimal.NewFromInt(100)).IntPart()

	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(amountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.failureURL),
		Metadata: map[string]string{
			"tx_ref": req.Reference,
		},
		ClientReferenceID: stripe.String(req.Reference),
	}
	if req.PayerEmail != "" {
		params.CustomerEmail = stripe.String(req.PayerEmail)
	}
	params.Context = ctx

	checkoutSession, err := session.New(params)
	if err != nil {
		return ChargeResult{}, &domain.GatewayError{Provider: s.Name(), Err: err}
	}

	return ChargeResult{
		ProviderRef:     checkoutSession.ID,
		RedirectURL:     checkoutSession.URL,
		ResponseMessage: "checkout session created",
	}, nil
}

func (s *StripeProvider) Verify(ctx context.Context, providerRef string) (VerifyResult, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	checkoutSession, err := session.Get(providerRef, params)
	if err != nil {
		return VerifyResult{}, &domain.GatewayError{Provider: s.Name(), Err: err}
	}

	return VerifyResult{
		Outcome:         stripeOutcome(checkoutSession),
		ProviderRef:     checkoutSession.ID,
		ResponseCode:    string(checkoutSession.Status),
		ResponseMessage: string(checkoutSession.PaymentStatus),
	}, nil
}

func (s *StripeProvider) ParseWebhook(r *http.Request) (WebhookEvent, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxWebhookBodyBytes))
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("reading webhook body: %w", err)
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), s.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("verifying webhook signature: %w", err)
	}

	var checkoutSession stripe.CheckoutSession
	err = json.Unmarshal(event.Data.Raw, &checkoutSession)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("decoding webhook payload: %w", err)
	}

	webhookEvent := WebhookEvent{
		Reference:    checkoutSession.Metadata["tx_ref"],
		ProviderRef:  checkoutSession.ID,
		ResponseCode: string(event.Type),
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		webhookEvent.Outcome = stripeOutcome(&checkoutSession)
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		webhookEvent.Outcome = OutcomeFailed
	default:
		webhookEvent.Outcome = OutcomePending
	}

	return webhookEvent, nil
}

func stripeOutcome(cs *stripe.CheckoutSession) Outcome {
	if cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid ||
		cs.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired {
		return OutcomeSuccessful
	}
	if cs.Status == stripe.CheckoutSessionStatusExpired {
		return OutcomeFailed
	}
	return OutcomePending
}
