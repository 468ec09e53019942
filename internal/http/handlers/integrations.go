package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra/credentials"
	"ledgersync/internal/ledger"
)

type integrationRequest struct {
	Action            string `json:"action"`
	Code              string `json:"code"`
	AuthorizationCode string `json:"authorizationCode"`
	ExternalAccountID string `json:"externalAccountId"`
	RealmID           string `json:"realmId"`
}

func (req integrationRequest) code() string {
	if c := strings.TrimSpace(req.Code); c != "" {
		return c
	}
	return strings.TrimSpace(req.AuthorizationCode)
}

func (req integrationRequest) accountHint() string {
	if id := strings.TrimSpace(req.ExternalAccountID); id != "" {
		return id
	}
	return strings.TrimSpace(req.RealmID)
}

type syncResponse struct {
	Success bool `json:"success"`
	Synced  int  `json:"synced"`
	Total   int  `json:"total"`
}

type authorizeResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// churchID resolves the acting church from the session. It writes the error
// response itself and reports false when the request cannot proceed.
func (a *App) churchID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return "", false
	}
	churchID, err := a.Tenants.TenantIDByUserID(r.Context(), userID)
	switch {
	case err == nil:
		return churchID, true
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "no church membership for this user")
	default:
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("resolve church failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to resolve church")
	}
	return "", false
}

func (a *App) IntegrationStatus(w http.ResponseWriter, r *http.Request) {
	churchID, ok := a.churchID(w, r)
	if !ok {
		return
	}
	st, err := a.Integrations.Status(r.Context(), churchID, chi.URLParam(r, "provider"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, st)
}

func (a *App) IntegrationAuthorize(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.churchID(w, r); !ok {
		return
	}
	u, state, err := a.Integrations.AuthorizeURL(chi.URLParam(r, "provider"))
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, authorizeResponse{URL: u, State: state})
}

func (a *App) IntegrationAction(w http.ResponseWriter, r *http.Request) {
	churchID, ok := a.churchID(w, r)
	if !ok {
		return
	}
	var req integrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	action, err := ledger.ParseAction(req.Action)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	provider := chi.URLParam(r, "provider")

	switch action {
	case ledger.ActionConnect:
		st, err := a.Integrations.Connect(r.Context(), churchID, provider, req.code(), req.accountHint())
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		a.json(w, http.StatusOK, st)
	case ledger.ActionSync:
		res, err := a.Integrations.Sync(r.Context(), churchID, provider)
		if err != nil {
			if res.Total > 0 {
				a.Logger.Warn().
					Err(err).
					Str("church_id", churchID).
					Str("provider", provider).
					Int("synced", res.Synced).
					Int("total", res.Total).
					Msg("ledger sync stopped before the batch finished")
			}
			a.writeServiceError(w, r, err)
			return
		}
		a.json(w, http.StatusOK, syncResponse{Success: true, Synced: res.Synced, Total: res.Total})
	}
}

func (a *App) IntegrationDisconnect(w http.ResponseWriter, r *http.Request) {
	churchID, ok := a.churchID(w, r)
	if !ok {
		return
	}
	if err := a.Integrations.Disconnect(r.Context(), churchID, chi.URLParam(r, "provider")); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, ledger.Status{Connected: false})
}

func (a *App) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	provider := chi.URLParam(r, "provider")
	switch {
	case errors.Is(err, ledger.ErrUnknownProvider):
		a.error(w, http.StatusNotFound, "not_found", "unknown integration")
	case errors.Is(err, ledger.ErrUnknownAction):
		a.error(w, http.StatusBadRequest, "bad_request", "action must be connect or sync")
	case errors.Is(err, ledger.ErrMissingCode):
		a.error(w, http.StatusBadRequest, "bad_request", "authorization code is required")
	case errors.Is(err, ledger.ErrNotConfigured):
		a.error(w, http.StatusBadRequest, "not_configured", provider+" integration is not configured")
	case errors.Is(err, ledger.ErrMissingAccount):
		a.error(w, http.StatusBadRequest, "missing_account", "externalAccountId is missing or not reachable with this authorization")
	case errors.Is(err, domain.ErrNotConnected):
		a.error(w, http.StatusBadRequest, "not_connected", provider+" is not connected")
	case errors.Is(err, ledger.ErrSyncInProgress):
		a.error(w, http.StatusConflict, "sync_in_progress", "a sync is already running")
	case errors.Is(err, credentials.ErrConcurrentUpdate):
		a.error(w, http.StatusConflict, "conflict", "settings changed concurrently, retry")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "church not found")
	case ledger.IsUpstream(err):
		a.Logger.Warn().Err(err).Str("provider", provider).Msg("ledger provider request failed")
		a.error(w, http.StatusBadGateway, "upstream_error", "failed to reach "+provider)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		a.Logger.Warn().Err(err).Str("provider", provider).Msg("integration request cancelled")
		a.error(w, http.StatusGatewayTimeout, "timeout", "request cancelled before completion")
	default:
		a.Logger.Error().Err(err).Str("provider", provider).Msg("integration request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
