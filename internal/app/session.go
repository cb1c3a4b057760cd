package app

import (
	"log/slog"
	"net/http"
)

type sessionKey string

const (
	SessionKeyBuyerId = sessionKey("buyerID")
)

func (s sessionKey) String() string {
	return string(s)
}

type contextKey string

const loggerContextKey = contextKey("logger")

// contextGetLogger returns the request-scoped logger attached by the logging
// middleware, falling back to the application logger.
func (app *Application) contextGetLogger(r *http.Request) *slog.Logger {
	logger, ok := r.Context().Value(loggerContextKey).(*slog.Logger)
	if !ok {
		return app.logger
	}

	return logger
}

// contextGetBuyerId returns the buyer id stored in the session, or the empty
// string for anonymous requests.
func (app *Application) contextGetBuyerId(r *http.Request) string {
	return app.sessionManager.GetString(r.Context(), SessionKeyBuyerId.String())
}
