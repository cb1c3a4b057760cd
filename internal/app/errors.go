package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sokomart/marketplace-api/api"
	"github.com/sokomart/marketplace-api/internal/domain"
	appvalidator "github.com/sokomart/marketplace-api/internal/validator"
)

const ErrInternalServer = "The server encountered a problem and could not process your request"

func (app *Application) logError(r *http.Request, err error) {
	logger := app.contextGetLogger(r)

	logger.Error(err.Error(),
		slog.String("request_method", r.Method),
		slog.String("request_url", r.URL.String()),
	)
}

func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	resp := api.ErrorResponse{
		Message:   message,
		RequestId: uuid.NewString(),
		Timestamp: time.Now(),
	}

	err := app.writeJSON(w, status, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request, message ...string) {
	msg := "the requested resource could not be found"
	if len(message) > 0 {
		msg = message[0]
	}
	app.errorResponse(w, r, http.StatusNotFound, msg)
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, errs validator.ValidationErrors) {
	fieldErrors := make([]api.ValidationError, 0, len(errs))

	for _, fieldErr := range errs {
		fieldErrors = append(fieldErrors, api.ValidationError{
			Field: fieldErr.Field(),
			Issue: appvalidator.ValidationMessage(fieldErr),
		})
	}

	resp := api.ValidationErrorResponse{
		Message:          "Validation failed",
		ValidationErrors: fieldErrors,
	}

	err := app.writeJSON(w, http.StatusUnprocessableEntity, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (app *Application) editConflictResponse(w http.ResponseWriter, r *http.Request) {
	message := "unable to update the record due to a concurrent update, please try again"
	app.errorResponse(w, r, http.StatusConflict, message)
}

func (app *Application) unauthorizedAccessResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusUnauthorized, "you are not authorized to access this resource")
}

// domainErrorResponse maps the error taxonomy coming out of the orchestrator
// and the repositories to HTTP responses.
func (app *Application) domainErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *domain.ValidationError
	var stateErr *domain.InvalidStateError
	var gatewayErr *domain.GatewayError

	switch {
	case errors.As(err, &validationErr):
		app.badRequestResponse(w, r, validationErr)
	case errors.As(err, &stateErr):
		app.errorResponse(w, r, http.StatusConflict, stateErr.Error())
	case errors.As(err, &gatewayErr):
		app.logError(r, gatewayErr)
		app.errorResponse(w, r, http.StatusBadGateway, fmt.Sprintf("payment provider %s is unavailable, please try again", gatewayErr.Provider))
	case errors.Is(err, domain.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	case errors.Is(err, domain.ErrEditConflict), errors.Is(err, domain.ErrPaymentLocked):
		app.editConflictResponse(w, r)
	case errors.Is(err, domain.ErrUnmatchedReference):
		app.notFoundResponse(w, r, "no payment matches the given reference")
	default:
		app.serverErrorResponse(w, r, err)
	}
}
