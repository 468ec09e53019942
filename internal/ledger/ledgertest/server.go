// Package ledgertest runs an in-process imitation of the QuickBooks and Xero
// endpoints the ledger clients call.
package ledgertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ledgersync/internal/infra"
	"ledgersync/internal/ledger"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	RedirectURI  = "https://app.example.com/callback"
	XeroTenantID = "xero-org-1"
)

// Server answers token, connections and transaction requests. Token responses
// always carry access_token "tok", refresh_token "ref" and expires_in 3600.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	tokenForms  []map[string]string
	posts       []Post
	tokenStatus int
	rejectAfter int
}

// Post is one transaction-creation request the server received.
type Post struct {
	Provider string
	Account  string
	Token    string
	Body     map[string]any
}

func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{tokenStatus: http.StatusOK, rejectAfter: -1}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", s.token)
	mux.HandleFunc("/connections", s.connections)
	mux.HandleFunc("/api.xro/2.0/BankTransactions", s.xeroPost)
	mux.HandleFunc("/v3/company/", s.quickBooksPost)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *Server) app() infra.OAuthAppConfig {
	return infra.OAuthAppConfig{
		ClientID:     ClientID,
		ClientSecret: ClientSecret,
		RedirectURI:  RedirectURI,
		BaseURL:      s.URL,
	}
}

// QuickBooks returns a configured client pointed at the server.
func (s *Server) QuickBooks() *ledger.QuickBooks {
	return ledger.NewQuickBooks(ledger.QuickBooksOptions{
		Config:     infra.QuickBooksConfig{OAuthAppConfig: s.app(), DonationItemID: "1"},
		TokenURL:   s.URL + "/oauth/token",
		HTTPClient: ledger.NewHTTPClient(5 * time.Second),
	})
}

// Xero returns a configured client pointed at the server.
func (s *Server) Xero() *ledger.Xero {
	return ledger.NewXero(ledger.XeroOptions{
		Config:     infra.XeroConfig{OAuthAppConfig: s.app()},
		TokenURL:   s.URL + "/oauth/token",
		HTTPClient: ledger.NewHTTPClient(5 * time.Second),
	})
}

// FailTokens makes the token endpoint answer with status.
func (s *Server) FailTokens(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenStatus = status
}

// RejectPostsAfter accepts the first n transaction posts and rejects the rest
// with HTTP 400.
func (s *Server) RejectPostsAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAfter = n
}

// TokenForms returns the form bodies posted to the token endpoint.
func (s *Server) TokenForms() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.tokenForms...)
}

// Posts returns the transaction posts received so far.
func (s *Server) Posts() []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Post(nil), s.posts...)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if r.Method != http.MethodPost || !ok || user != ClientID || pass != ClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	s.mu.Lock()
	s.tokenForms = append(s.tokenForms, form)
	status := s.tokenStatus
	s.mu.Unlock()
	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"error": "invalid_grant"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  "tok",
		"refresh_token": "ref",
		"expires_in":    3600,
		"token_type":    "bearer",
	})
}

func (s *Server) connections(w http.ResponseWriter, r *http.Request) {
	if bearer(r) == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, []map[string]string{{
		"id":         "conn-1",
		"tenantId":   XeroTenantID,
		"tenantName": "Grace Fellowship",
		"tenantType": "ORGANISATION",
	}})
}

func (s *Server) quickBooksPost(w http.ResponseWriter, r *http.Request) {
	realm := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v3/company/"), "/salesreceipt")
	id, status := s.record(r, "quickbooks", realm)
	if status != http.StatusOK {
		writeJSON(w, status, map[string]any{"Fault": map[string]string{"type": "ValidationFault"}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"SalesReceipt": map[string]string{"Id": id}})
}

func (s *Server) xeroPost(w http.ResponseWriter, r *http.Request) {
	id, status := s.record(r, "xero", r.Header.Get("Xero-tenant-id"))
	if status != http.StatusOK {
		writeJSON(w, status, map[string]string{"Type": "ValidationException"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"BankTransactions": []map[string]string{{"BankTransactionID": id}},
	})
}

func (s *Server) record(r *http.Request, provider, account string) (string, int) {
	if r.Method != http.MethodPost || bearer(r) == "" {
		return "", http.StatusUnauthorized
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return "", http.StatusBadRequest
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, Post{Provider: provider, Account: account, Token: bearer(r), Body: body})
	n := len(s.posts)
	if s.rejectAfter >= 0 && n > s.rejectAfter {
		return "", http.StatusBadRequest
	}
	return fmt.Sprintf("%s-%d", provider, n), http.StatusOK
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
