package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sokomart/marketplace-api/internal/domain"
)

// SandboxProvider simulates a payment rail for development and tests. It is
// a distinct Provider wired in only for non-prod environments, never an
// inline branch of a real adapter. Charges settle instantly unless the payer
// phone ends in the configured failure suffix.
type SandboxProvider struct {
	failSuffix string

	mu      sync.Mutex
	charges map[string]Outcome // providerRef -> outcome
}

func NewSandboxProvider() *SandboxProvider {
	return &SandboxProvider{
		failSuffix: "0000",
		charges:    make(map[string]Outcome),
	}
}

func (s *SandboxProvider) Name() string {
	return "sandbox"
}

func (s *SandboxProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	providerRef := "sandbox-" + req.Reference

	outcome := OutcomeSuccessful
	if strings.HasSuffix(req.PayerPhone, s.failSuffix) {
		outcome = OutcomeFailed
	}

	s.mu.Lock()
	s.charges[providerRef] = outcome
	s.mu.Unlock()

	if outcome == OutcomeFailed {
		return ChargeResult{}, &domain.GatewayError{Provider: s.Name(), Err: errors.New("simulated charge failure")}
	}

	return ChargeResult{
		ProviderRef:     providerRef,
		ResponseMessage: "sandbox charge settled",
		Instant:         true,
	}, nil
}

func (s *SandboxProvider) Verify(ctx context.Context, providerRef string) (VerifyResult, error) {
	s.mu.Lock()
	outcome, ok := s.charges[providerRef]
	s.mu.Unlock()

	if !ok {
		return VerifyResult{}, fmt.Errorf("sandbox: unknown charge %s", providerRef)
	}

	return VerifyResult{
		Outcome:     outcome,
		ProviderRef: providerRef,
	}, nil
}

func (s *SandboxProvider) ParseWebhook(r *http.Request) (WebhookEvent, error) {
	return WebhookEvent{}, fmt.Errorf("sandbox rail has no webhooks")
}
