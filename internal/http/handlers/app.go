package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"ledgersync/internal/infra"
	"ledgersync/internal/ledger"
	"ledgersync/internal/middleware"
)

// TenantResolver maps a session user to the church it belongs to.
type TenantResolver interface {
	TenantIDByUserID(ctx context.Context, userID string) (string, error)
}

type App struct {
	Integrations *ledger.Service
	Tenants      TenantResolver
	Logger       infra.Logger
}

func NewApp(integrations *ledger.Service, tenants TenantResolver, logger infra.Logger) *App {
	return &App{Integrations: integrations, Tenants: tenants, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
