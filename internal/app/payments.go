package app

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sokomart/marketplace-api/api"
	"github.com/sokomart/marketplace-api/internal/domain"
	"github.com/sokomart/marketplace-api/internal/payments"
)

func (app *Application) InitiatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req api.InitiatePaymentRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(req)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			app.failedValidationResponse(w, r, validationErrors)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	order, err := app.orderRepo.GetByID(r.Context(), req.OrderId)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	result, err := app.orchestrator.Initiate(
		r.Context(),
		order,
		order.BusinessID,
		domain.PaymentMethod(req.Method),
		payments.PayerContact{
			Name:  req.PayerName,
			Email: req.PayerEmail,
			Phone: req.PayerPhone,
		},
		req.Escrow,
	)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	logger := app.contextGetLogger(r)
	logger.Info("payment initiated",
		"payment_id", result.Payment.ID,
		"order_id", order.ID,
		"method", result.Payment.Method,
		"status", result.Payment.Status,
	)

	resp := api.InitiatePaymentResponse{
		PaymentId:      result.Payment.ID,
		TransactionRef: result.Payment.Gateway.TransactionRef,
		Status:         string(result.Payment.Status),
		RedirectUrl:    result.RedirectURL,
		Amount:         toAmountBreakdown(result.Payment.Amount),
		ReceiptNumber:  result.Payment.Receipt.Number,
	}

	app.writeJSON(w, http.StatusCreated, resp, nil)
}

func (app *Application) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	payment, err := app.paymentRepo.GetByID(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, toPaymentResponse(payment), nil)
}

func (app *Application) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	payment, err := app.orchestrator.Verify(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	resp := api.VerifyPaymentResponse{
		PaymentId: payment.ID,
		Status:    string(payment.Status),
		Message:   verifyMessage(payment.Status),
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}

func verifyMessage(status domain.PaymentStatus) string {
	switch status {
	case domain.PaymentProcessing:
		return "payment is still being processed"
	case domain.PaymentSuccessful, domain.PaymentHeldInEscrow, domain.PaymentReleased:
		return "payment completed"
	case domain.PaymentFailed:
		return "payment failed"
	default:
		return "payment is in state " + string(status)
	}
}

// ConfirmDeliveryHandler lets the buyer release a held escrow after receiving
// the goods.
func (app *Application) ConfirmDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	payment, err := app.orchestrator.ReleaseEscrow(r.Context(), chi.URLParam(r, "paymentId"), "delivery_confirmed")
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, toPaymentResponse(payment), nil)
}
