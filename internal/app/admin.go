package app

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sokomart/marketplace-api/api"
)

func (app *Application) AdminGetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	payment, err := app.paymentRepo.GetByID(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, toAdminPaymentResponse(payment), nil)
}

func (app *Application) ReleaseEscrowHandler(w http.ResponseWriter, r *http.Request) {
	var req api.ReleaseEscrowRequest

	err := app.readJSON(w, r, &req)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reason := req.Reason
	if reason == "" {
		reason = "manual"
	}

	payment, err := app.orchestrator.ReleaseEscrow(r.Context(), chi.URLParam(r, "paymentId"), reason)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, toAdminPaymentResponse(payment), nil)
}

func (app *Application) DisputeEscrowHandler(w http.ResponseWriter, r *http.Request) {
	var req api.DisputeEscrowRequest

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

	payment, err := app.orchestrator.DisputeEscrow(r.Context(), chi.URLParam(r, "paymentId"), req.Note)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, toAdminPaymentResponse(payment), nil)
}

func (app *Application) RefundHandler(w http.ResponseWriter, r *http.Request) {
	var req api.RefundRequest

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

	payment, err := app.orchestrator.ProcessRefund(r.Context(), chi.URLParam(r, "paymentId"), req.Amount, req.Reason)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	logger := app.contextGetLogger(r)
	logger.Info("refund processed", "payment_id", payment.ID, "amount", req.Amount, "status", payment.Status)

	app.writeJSON(w, http.StatusOK, toAdminPaymentResponse(payment), nil)
}

func (app *Application) StalePaymentsHandler(w http.ResponseWriter, r *http.Request) {
	stale, err := app.orchestrator.StaleProcessing(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.StalePaymentsResponse{
		Payments: make([]api.AdminPaymentResponse, 0, len(stale)),
	}
	for i := range stale {
		resp.Payments = append(resp.Payments, toAdminPaymentResponse(&stale[i]))
	}

	app.writeJSON(w, http.StatusOK, resp, nil)
}

func (app *Application) SweepEscrowsHandler(w http.ResponseWriter, r *http.Request) {
	released, err := app.orchestrator.ReleaseDueEscrows(r.Context())
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.writeJSON(w, http.StatusOK, api.EscrowSweepResponse{Released: released}, nil)
}
