package gateway

import (
	"context"
	"fmt"
	"net/http"
)

// CashProvider is the no-op rail for cash on delivery. The charge settles
// instantly; money actually changes hands at the door, tracked through the
// escrow/split machinery like any other rail.
type CashProvider struct{}

func NewCashProvider() *CashProvider {
	return &CashProvider{}
}

func (c *CashProvider) Name() string {
	return "cash"
}

func (c *CashProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	return ChargeResult{
		ProviderRef:     "cod-" + req.Reference,
		ResponseMessage: "cash on delivery accepted",
		Instant:         true,
	}, nil
}

func (c *CashProvider) Verify(ctx context.Context, providerRef string) (VerifyResult, error) {
	return VerifyResult{
		Outcome:     OutcomeSuccessful,
		ProviderRef: providerRef,
	}, nil
}

func (c *CashProvider) ParseWebhook(r *http.Request) (WebhookEvent, error) {
	return WebhookEvent{}, fmt.Errorf("cash rail has no webhooks")
}
