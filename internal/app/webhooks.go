package app

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sokomart/marketplace-api/internal/domain"
)

// GatewayWebhookHandler receives asynchronous payment results. The provider
// path segment selects the adapter that verifies the signature and decodes
// the event. An unmatched reference is acknowledged with 200 so the rail does
// not retry forever; everything needed for later reconciliation is logged.
func (app *Application) GatewayWebhookHandler(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	providerName := chi.URLParam(r, "provider")

	provider, ok := app.gateways.ByName(providerName)
	if !ok {
		app.notFoundResponse(w, r, "unknown payment provider")
		return
	}

	event, err := provider.ParseWebhook(r)
	if err != nil {
		logger.Warn("webhook rejected", "provider", providerName, "error", err)
		app.badRequestResponse(w, r, errors.New("invalid webhook payload"))
		return
	}

	err = app.orchestrator.ApplyGatewayResult(r.Context(), event)
	if err != nil {
		if errors.Is(err, domain.ErrUnmatchedReference) {
			logger.Warn("webhook for unknown reference acknowledged", "provider", providerName, "tx_ref", event.Reference)
			w.WriteHeader(http.StatusOK)
			return
		}

		app.serverErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
