package gateway

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/sokomart/marketplace-api/internal/domain"
)

// Outcome is the provider-reported state of a charge, normalized across
// rails. Webhooks and verification polling both reduce to an Outcome before
// they touch the payment state machine.
type Outcome string

const (
	OutcomeSuccessful Outcome = "successful"
	OutcomeFailed     Outcome = "failed"
	OutcomePending    Outcome = "pending"
)

type ChargeRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Method      domain.PaymentMethod
	PayerName   string
	PayerEmail  string
	PayerPhone  string
	Reference   string // locally generated transaction ref, echoed back by webhooks
	Description string
}

type ChargeResult struct {
	ProviderRef     string
	RedirectURL     string
	ResponseCode    string
	ResponseMessage string

	// Instant reports that the rail settled synchronously (cash on delivery,
	// sandbox). No webhook or verification follows.
	Instant bool
}

type VerifyResult struct {
	Outcome         Outcome
	ProviderRef     string
	ResponseCode    string
	ResponseMessage string
}

type WebhookEvent struct {
	Reference       string
	Outcome         Outcome
	ProviderRef     string
	ResponseCode    string
	ResponseMessage string
}

// Provider is one payment rail. All three calls are treated as untrusted,
// unordered inputs by the orchestrator: a Charge error leaves the payment
// re-initiable, and webhook/verify results are applied idempotently.
type Provider interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)

	// Verify polls the provider for the state of a previously accepted charge.
	Verify(ctx context.Context, providerRef string) (VerifyResult, error)

	// ParseWebhook validates the request signature and decodes the event.
	// A signature mismatch is an error; no state must be mutated for it.
	ParseWebhook(r *http.Request) (WebhookEvent, error)
}

// Registry maps method categories to the provider serving them.
type Registry struct {
	providers map[domain.MethodCategory]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[domain.MethodCategory]Provider)}
}

func (r *Registry) Register(category domain.MethodCategory, p Provider) {
	r.providers[category] = p
}

func (r *Registry) For(method domain.PaymentMethod) (Provider, error) {
	p, ok := r.providers[method.Category()]
	if !ok {
		return nil, domain.NewValidationError("no payment rail configured for method %s", method)
	}
	return p, nil
}

func (r *Registry) ByName(name string) (Provider, bool) {
	for _, p := range r.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}
