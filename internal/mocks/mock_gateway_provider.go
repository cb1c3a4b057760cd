package mocks

import (
	"context"
	"net/http"

	"github.com/sokomart/marketplace-api/internal/gateway"
	"github.com/stretchr/testify/mock"
)

type MockGatewayProvider struct {
	mock.Mock
	ProviderName string
}

func (m *MockGatewayProvider) Name() string {
	if m.ProviderName != "" {
		return m.ProviderName
	}
	return "mock"
}

func (m *MockGatewayProvider) Charge(ctx context.Context, req gateway.ChargeRequest) (gateway.ChargeResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.ChargeResult), args.Error(1)
}

func (m *MockGatewayProvider) Verify(ctx context.Context, providerRef string) (gateway.VerifyResult, error) {
	args := m.Called(ctx, providerRef)
	return args.Get(0).(gateway.VerifyResult), args.Error(1)
}

func (m *MockGatewayProvider) ParseWebhook(r *http.Request) (gateway.WebhookEvent, error) {
	args := m.Called(r)
	return args.Get(0).(gateway.WebhookEvent), args.Error(1)
}
