package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
	"ledgersync/internal/infra/credentials"
)

const (
	xeroTokenURL     = "https://identity.xero.com/connect/token"
	xeroAuthorizeURL = "https://login.xero.com/identity/connect/authorize"
	xeroScope        = "offline_access accounting.transactions accounting.contacts"
	xeroAnonymous    = "Anonymous Donor"
)

type XeroOptions struct {
	Config       infra.XeroConfig
	TokenURL     string
	AuthorizeURL string
	HTTPClient   *resty.Client
}

// Xero posts donations as RECEIVE bank transactions.
type Xero struct {
	*TokenClient
	cfg          infra.XeroConfig
	authorizeURL string
	http         *resty.Client
}

func NewXero(opts XeroOptions) *Xero {
	if opts.TokenURL == "" {
		opts.TokenURL = xeroTokenURL
	}
	if opts.AuthorizeURL == "" {
		opts.AuthorizeURL = xeroAuthorizeURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(0)
	}
	if opts.Config.IncomeAccountCode == "" {
		opts.Config.IncomeAccountCode = "200"
	}
	if opts.Config.BankAccountCode == "" {
		opts.Config.BankAccountCode = "090"
	}
	return &Xero{
		TokenClient:  NewTokenClient(credentials.ProviderXero, opts.TokenURL, opts.Config.OAuthAppConfig, opts.HTTPClient),
		cfg:          opts.Config,
		authorizeURL: opts.AuthorizeURL,
		http:         opts.HTTPClient,
	}
}

func (x *Xero) Name() string          { return credentials.ProviderXero }
func (x *Xero) Configured() bool      { return x.cfg.Complete() }
func (x *Xero) RequiresAccount() bool { return false }

func (x *Xero) AuthorizeURL(state string) (string, error) {
	return authorizeURL(x.authorizeURL, x.cfg.OAuthAppConfig, xeroScope, state)
}

type xeroConnection struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenantId"`
	TenantName string `json:"tenantName"`
	TenantType string `json:"tenantType"`
}

// ResolveAccount lists the organisations the token can reach. Without a hint
// it picks the first one; a hint must name one of them.
func (x *Xero) ResolveAccount(ctx context.Context, accessToken, hint string) (string, error) {
	resp, err := x.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		Get(x.base() + "/connections")
	if err != nil {
		return "", &UpstreamError{Provider: x.Name(), Op: "list connections", Err: err}
	}
	if !resp.IsSuccess() {
		return "", &UpstreamError{Provider: x.Name(), Op: "list connections", Status: resp.StatusCode(), Body: resp.String()}
	}
	var conns []xeroConnection
	if err := json.Unmarshal(resp.Body(), &conns); err != nil {
		return "", &UpstreamError{Provider: x.Name(), Op: "list connections", Status: resp.StatusCode(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(conns) == 0 {
		return "", ErrNoAccounts
	}
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return conns[0].TenantID, nil
	}
	for _, c := range conns {
		if c.TenantID == hint {
			return c.TenantID, nil
		}
	}
	return "", fmt.Errorf("xero organisation %q is not authorised for this token: %w", hint, ErrMissingAccount)
}

type xeroContact struct {
	Name string `json:"Name"`
}

type xeroLineItem struct {
	Description string      `json:"Description"`
	Quantity    int         `json:"Quantity"`
	UnitAmount  json.Number `json:"UnitAmount"`
	AccountCode string      `json:"AccountCode"`
}

type xeroBankAccount struct {
	Code string `json:"Code"`
}

type xeroBankTransaction struct {
	Type         string          `json:"Type"`
	Contact      xeroContact     `json:"Contact"`
	LineItems    []xeroLineItem  `json:"LineItems"`
	BankAccount  xeroBankAccount `json:"BankAccount"`
	Date         string          `json:"Date"`
	Reference    string          `json:"Reference"`
	CurrencyCode string          `json:"CurrencyCode"`
}

type xeroBankTransactions struct {
	BankTransactions []xeroBankTransaction `json:"BankTransactions"`
}

type xeroBankTransactionsResponse struct {
	BankTransactions []struct {
		BankTransactionID string `json:"BankTransactionID"`
	} `json:"BankTransactions"`
}

func (x *Xero) bankTransaction(d domain.Donation, currency string) xeroBankTransactions {
	return xeroBankTransactions{BankTransactions: []xeroBankTransaction{{
		Type:    "RECEIVE",
		Contact: xeroContact{Name: payerName(d, xeroAnonymous)},
		LineItems: []xeroLineItem{{
			Description: donationDescription(d),
			Quantity:    1,
			UnitAmount:  amount(d.AmountCents),
			AccountCode: x.cfg.IncomeAccountCode,
		}},
		BankAccount:  xeroBankAccount{Code: x.cfg.BankAccountCode},
		Date:         txnDate(d),
		Reference:    "Donation " + d.ID,
		CurrencyCode: currency,
	}}}
}

func (x *Xero) PostDonation(ctx context.Context, cred domain.ProviderCredential, d domain.Donation, currency string) (string, error) {
	resp, err := x.http.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		SetHeader("Xero-tenant-id", cred.ExternalAccountID).
		SetHeader("Content-Type", "application/json").
		SetBody(x.bankTransaction(d, currency)).
		Post(x.base() + "/api.xro/2.0/BankTransactions")
	if err != nil {
		return "", &UpstreamError{Provider: x.Name(), Op: "create bank transaction", Err: err}
	}
	if !resp.IsSuccess() {
		return "", &UpstreamError{Provider: x.Name(), Op: "create bank transaction", Status: resp.StatusCode(), Body: resp.String()}
	}
	var out xeroBankTransactionsResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil || len(out.BankTransactions) == 0 {
		return "", nil
	}
	return out.BankTransactions[0].BankTransactionID, nil
}

func (x *Xero) base() string {
	return strings.TrimRight(x.cfg.BaseURL, "/")
}
