package app

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/sokomart/marketplace-api/internal/domain"
	"github.com/sokomart/marketplace-api/internal/gateway"
)

type WebhooksHandlerTestSuite struct {
	suite.Suite
	*paymentFixture
}

func (s *WebhooksHandlerTestSuite) SetupTest() {
	s.paymentFixture = newPaymentFixture()
}

func (s *WebhooksHandlerTestSuite) newProcessingPayment(order *domain.Order, escrow bool) *domain.Payment {
	return s.paymentFixture.newProcessingPayment(s.T(), order, escrow)
}

func TestWebhooksHandlerSuite(t *testing.T) {
	suite.Run(t, new(WebhooksHandlerTestSuite))
}

func (s *WebhooksHandlerTestSuite) TestGatewayWebhookHandlerSuccess() {
	order := newTestOrder(s.T())
	payment := s.newProcessingPayment(order, false)

	event := gateway.WebhookEvent{
		Reference:   payment.Gateway.TransactionRef,
		Outcome:     gateway.OutcomeSuccessful,
		ProviderRef: "flw-2",
	}

	s.provider.On("ParseWebhook", mock.Anything).Return(event, nil).Once()
	s.paymentRepo.On("GetByTransactionRef", mock.Anything, payment.Gateway.TransactionRef).Return(payment, nil).Once()
	s.paymentRepo.On("GetByID", mock.Anything, payment.ID).Return(payment, nil).Once()
	s.paymentRepo.On("Update", mock.Anything, payment).Return(nil).Twice()
	s.orderRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil).Once()
	s.orderRepo.On("Update", mock.Anything, order).Return(nil).Once()

	w, r := executeRequest(s.T(), http.MethodPost, "/webhooks/flutterwave", nil)
	r = withURLParam(r, "provider", "flutterwave")

	s.app.GatewayWebhookHandler(w, r)

	s.Equal(http.StatusOK, w.Code)
	s.Equal(domain.PaymentSuccessful, payment.Status)
	s.Equal(domain.MirrorPaid, order.Payment.Status)
	s.Equal([]string{"payment.succeeded"}, s.events.Kinds())
}

func (s *WebhooksHandlerTestSuite) TestGatewayWebhookHandlerUnknownProvider() {
	w, r := executeRequest(s.T(), http.MethodPost, "/webhooks/nope", nil)
	r = withURLParam(r, "provider", "nope")

	s.app.GatewayWebhookHandler(w, r)

	s.Equal(http.StatusNotFound, w.Code)
}

func (s *WebhooksHandlerTestSuite) TestGatewayWebhookHandlerBadSignature() {
	s.provider.On("ParseWebhook", mock.Anything).
		Return(gateway.WebhookEvent{}, errors.New("webhook signature mismatch")).Once()

	w, r := executeRequest(s.T(), http.MethodPost, "/webhooks/flutterwave", nil)
	r = withURLParam(r, "provider", "flutterwave")

	s.app.GatewayWebhookHandler(w, r)

	s.Equal(http.StatusBadRequest, w.Code)
}

// An unknown reference is acknowledged so the rail stops retrying.
func (s *WebhooksHandlerTestSuite) TestGatewayWebhookHandlerUnmatchedReferenceAcked() {
	event := gateway.WebhookEvent{
		Reference: "txn-unknown",
		Outcome:   gateway.OutcomeSuccessful,
	}

	s.provider.On("ParseWebhook", mock.Anything).Return(event, nil).Once()
	s.paymentRepo.On("GetByTransactionRef", mock.Anything, "txn-unknown").Return(nil, domain.ErrRecordNotFound).Once()

	w, r := executeRequest(s.T(), http.MethodPost, "/webhooks/flutterwave", nil)
	r = withURLParam(r, "provider", "flutterwave")

	s.app.GatewayWebhookHandler(w, r)

	s.Equal(http.StatusOK, w.Code)
}

// A duplicate delivery of the same success is a no-op but still acknowledged.
func (s *WebhooksHandlerTestSuite) TestGatewayWebhookHandlerDuplicateDelivery() {
	order := newTestOrder(s.T())
	payment := s.newProcessingPayment(order, false)

	event := gateway.WebhookEvent{
		Reference: payment.Gateway.TransactionRef,
		Outcome:   gateway.OutcomeSuccessful,
	}

	s.provider.On("ParseWebhook", mock.Anything).Return(event, nil).Twice()
	s.paymentRepo.On("GetByTransactionRef", mock.Anything, payment.Gateway.TransactionRef).Return(payment, nil).Twice()
	s.paymentRepo.On("GetByID", mock.Anything, payment.ID).Return(payment, nil).Twice()
	s.paymentRepo.On("Update", mock.Anything, payment).Return(nil).Twice()
	s.orderRepo.On("GetByID", mock.Anything, order.ID).Return(order, nil).Twice()
	s.orderRepo.On("Update", mock.Anything, order).Return(nil).Once()

	for range 2 {
		w, r := executeRequest(s.T(), http.MethodPost, "/webhooks/flutterwave", nil)
		r = withURLParam(r, "provider", "flutterwave")

		s.app.GatewayWebhookHandler(w, r)

		s.Equal(http.StatusOK, w.Code)
	}

	s.Equal(domain.PaymentSuccessful, payment.Status)
	s.Equal([]string{"payment.succeeded"}, s.events.Kinds())
	s.paymentRepo.AssertExpectations(s.T())
	s.orderRepo.AssertExpectations(s.T())
}
