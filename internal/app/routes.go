package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		app.notFoundResponse(w, req)
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(otelchi.Middleware("marketplace-api", otelchi.WithChiRoutes(r)))
	r.Use(app.recoverPanic)
	r.Use(app.attachLogger)
	r.Use(app.sessionManager.LoadAndSave)

	r.Get("/health", app.GetHealth)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", app.CreateOrderHandler)

		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", app.GetOrderHandler)
			r.Patch("/status", app.UpdateOrderStatusHandler)
			r.Patch("/delivery", app.UpdateDeliveryStatusHandler)
		})
	})

	r.With(app.rateLimit(2, 4)).Route("/payments", func(r chi.Router) {
		r.Post("/", app.InitiatePaymentHandler)

		r.Route("/{paymentId}", func(r chi.Router) {
			r.Get("/", app.GetPaymentHandler)
			r.Post("/verify", app.VerifyPaymentHandler)
			r.Post("/confirm-delivery", app.ConfirmDeliveryHandler)
		})
	})

	r.With(app.rateLimit(10, 20)).Post("/webhooks/{provider}", app.GatewayWebhookHandler)

	r.With(app.requireAdmin).Route("/admin", func(r chi.Router) {
		r.Get("/payments/stale", app.StalePaymentsHandler)
		r.Get("/payments/{paymentId}", app.AdminGetPaymentHandler)
		r.Post("/payments/{paymentId}/release", app.ReleaseEscrowHandler)
		r.Post("/payments/{paymentId}/dispute", app.DisputeEscrowHandler)
		r.Post("/payments/{paymentId}/refund", app.RefundHandler)
		r.Post("/escrows/sweep", app.SweepEscrowsHandler)
	})

	return r
}
