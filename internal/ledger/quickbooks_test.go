package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
)

func newTestQuickBooks(baseURL string) *QuickBooks {
	return NewQuickBooks(QuickBooksOptions{
		Config: infra.QuickBooksConfig{
			OAuthAppConfig: infra.OAuthAppConfig{
				ClientID:     testApp.ClientID,
				ClientSecret: testApp.ClientSecret,
				RedirectURI:  testApp.RedirectURI,
				BaseURL:      baseURL,
			},
			DonationItemID: "7",
		},
		HTTPClient: NewHTTPClient(time.Second),
	})
}

func TestQuickBooksPostDonation(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/company/realm-1/salesreceipt", r.URL.Path)
		assert.Equal(t, "65", r.URL.Query().Get("minorversion"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"SalesReceipt":{"Id":"145","SyncToken":"0"},"time":"2024-03-05T10:00:00Z"}`))
	}))
	defer srv.Close()

	qb := newTestQuickBooks(srv.URL)
	cred := domain.ProviderCredential{Provider: "quickbooks", ExternalAccountID: "realm-1", AccessToken: "tok"}
	d := domain.Donation{
		ID:          "don-9",
		AmountCents: 1250,
		DonatedAt:   time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC),
		FundName:    "Missions",
	}

	id, err := qb.PostDonation(context.Background(), cred, d, "USD")

	require.NoError(t, err)
	assert.Equal(t, "145", id)
	assert.Equal(t, "2024-03-05", body["TxnDate"])
	assert.Equal(t, "Church donation don-9", body["PrivateNote"])
	assert.Equal(t, map[string]any{"value": "Donation from Anonymous"}, body["CustomerMemo"])
	assert.Equal(t, map[string]any{"value": "USD"}, body["CurrencyRef"])

	lines, ok := body["Line"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.Equal(t, 12.5, line["Amount"])
	assert.Equal(t, "SalesItemLineDetail", line["DetailType"])
	assert.Equal(t, "Donation - Missions", line["Description"])
	detail := line["SalesItemLineDetail"].(map[string]any)
	assert.Equal(t, map[string]any{"value": "7"}, detail["ItemRef"])
	assert.Equal(t, float64(1), detail["Qty"])
}

func TestQuickBooksPostDonationNamesPayer(t *testing.T) {
	qb := newTestQuickBooks("http://unused")
	receipt := qb.salesReceipt(domain.Donation{ID: "d1", AmountCents: 100, DonorName: "Ruth Boaz"}, "EUR")
	assert.Equal(t, "Donation from Ruth Boaz", receipt.CustomerMemo.Value)
	assert.Equal(t, "EUR", receipt.CurrencyRef.Value)
}

func TestQuickBooksPostDonationRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Fault":{"type":"AUTHENTICATION"}}`))
	}))
	defer srv.Close()

	qb := newTestQuickBooks(srv.URL)
	_, err := qb.PostDonation(context.Background(), domain.ProviderCredential{ExternalAccountID: "r", AccessToken: "t"}, domain.Donation{ID: "d"}, "USD")

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusUnauthorized, ue.Status)
	assert.Equal(t, "quickbooks", ue.Provider)
}

func plainOKServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("OK"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQuickBooksPostDonationAcceptsUnreadableSuccess(t *testing.T) {
	qb := newTestQuickBooks(plainOKServer(t).URL)

	id, err := qb.PostDonation(context.Background(), domain.ProviderCredential{ExternalAccountID: "r", AccessToken: "t"}, domain.Donation{ID: "d"}, "USD")

	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestQuickBooksResolveAccountNeedsRealm(t *testing.T) {
	qb := newTestQuickBooks("http://unused")
	assert.True(t, qb.RequiresAccount())

	_, err := qb.ResolveAccount(context.Background(), "tok", "")
	require.ErrorIs(t, err, ErrMissingAccount)

	realm, err := qb.ResolveAccount(context.Background(), "tok", " r1 ")
	require.NoError(t, err)
	assert.Equal(t, "r1", realm)
}

func TestQuickBooksAuthorizeURL(t *testing.T) {
	qb := newTestQuickBooks("http://unused")
	raw, err := qb.AuthorizeURL("st")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "appcenter.intuit.com", u.Host)
	assert.Equal(t, "com.intuit.quickbooks.accounting", u.Query().Get("scope"))
	assert.Equal(t, "st", u.Query().Get("state"))
}

func TestQuickBooksConfigured(t *testing.T) {
	assert.True(t, newTestQuickBooks("http://unused").Configured())
	assert.False(t, NewQuickBooks(QuickBooksOptions{}).Configured())
}
