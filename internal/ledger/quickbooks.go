package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
	"ledgersync/internal/infra/credentials"
)

const (
	quickBooksTokenURL     = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	quickBooksAuthorizeURL = "https://appcenter.intuit.com/connect/oauth2"
	quickBooksScope        = "com.intuit.quickbooks.accounting"
	quickBooksMinorVersion = "65"
	quickBooksAnonymous    = "Anonymous"
)

type QuickBooksOptions struct {
	Config       infra.QuickBooksConfig
	TokenURL     string
	AuthorizeURL string
	HTTPClient   *resty.Client
}

// QuickBooks posts donations as sales receipts against a single donation item.
type QuickBooks struct {
	*TokenClient
	cfg          infra.QuickBooksConfig
	authorizeURL string
	http         *resty.Client
}

func NewQuickBooks(opts QuickBooksOptions) *QuickBooks {
	if opts.TokenURL == "" {
		opts.TokenURL = quickBooksTokenURL
	}
	if opts.AuthorizeURL == "" {
		opts.AuthorizeURL = quickBooksAuthorizeURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = NewHTTPClient(0)
	}
	if opts.Config.DonationItemID == "" {
		opts.Config.DonationItemID = "1"
	}
	return &QuickBooks{
		TokenClient:  NewTokenClient(credentials.ProviderQuickBooks, opts.TokenURL, opts.Config.OAuthAppConfig, opts.HTTPClient),
		cfg:          opts.Config,
		authorizeURL: opts.AuthorizeURL,
		http:         opts.HTTPClient,
	}
}

func (q *QuickBooks) Name() string          { return credentials.ProviderQuickBooks }
func (q *QuickBooks) Configured() bool      { return q.cfg.Complete() }
func (q *QuickBooks) RequiresAccount() bool { return true }

func (q *QuickBooks) AuthorizeURL(state string) (string, error) {
	return authorizeURL(q.authorizeURL, q.cfg.OAuthAppConfig, quickBooksScope, state)
}

// ResolveAccount returns the realm id. QuickBooks passes it on the OAuth
// callback as realmId, so it has to come from the caller.
func (q *QuickBooks) ResolveAccount(_ context.Context, _ string, hint string) (string, error) {
	realm := strings.TrimSpace(hint)
	if realm == "" {
		return "", ErrMissingAccount
	}
	return realm, nil
}

type qbRef struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type qbMemo struct {
	Value string `json:"value"`
}

type qbSalesItemLineDetail struct {
	ItemRef   qbRef       `json:"ItemRef"`
	Qty       int         `json:"Qty"`
	UnitPrice json.Number `json:"UnitPrice"`
}

type qbLine struct {
	Amount              json.Number           `json:"Amount"`
	DetailType          string                `json:"DetailType"`
	Description         string                `json:"Description,omitempty"`
	SalesItemLineDetail qbSalesItemLineDetail `json:"SalesItemLineDetail"`
}

type qbSalesReceipt struct {
	Line         []qbLine `json:"Line"`
	TxnDate      string   `json:"TxnDate"`
	CustomerMemo qbMemo   `json:"CustomerMemo"`
	PrivateNote  string   `json:"PrivateNote"`
	CurrencyRef  qbRef    `json:"CurrencyRef"`
}

type qbSalesReceiptResponse struct {
	SalesReceipt struct {
		ID string `json:"Id"`
	} `json:"SalesReceipt"`
}

func (q *QuickBooks) salesReceipt(d domain.Donation, currency string) qbSalesReceipt {
	total := amount(d.AmountCents)
	return qbSalesReceipt{
		Line: []qbLine{{
			Amount:      total,
			DetailType:  "SalesItemLineDetail",
			Description: donationDescription(d),
			SalesItemLineDetail: qbSalesItemLineDetail{
				ItemRef:   qbRef{Value: q.cfg.DonationItemID},
				Qty:       1,
				UnitPrice: total,
			},
		}},
		TxnDate:      txnDate(d),
		CustomerMemo: qbMemo{Value: "Donation from " + payerName(d, quickBooksAnonymous)},
		PrivateNote:  "Church donation " + d.ID,
		CurrencyRef:  qbRef{Value: currency},
	}
}

func (q *QuickBooks) PostDonation(ctx context.Context, cred domain.ProviderCredential, d domain.Donation, currency string) (string, error) {
	endpoint := fmt.Sprintf("%s/v3/company/%s/salesreceipt",
		strings.TrimRight(q.cfg.BaseURL, "/"), url.PathEscape(cred.ExternalAccountID))
	resp, err := q.http.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("minorversion", quickBooksMinorVersion).
		SetBody(q.salesReceipt(d, currency)).
		Post(endpoint)
	if err != nil {
		return "", &UpstreamError{Provider: q.Name(), Op: "create sales receipt", Err: err}
	}
	if !resp.IsSuccess() {
		return "", &UpstreamError{Provider: q.Name(), Op: "create sales receipt", Status: resp.StatusCode(), Body: resp.String()}
	}
	// A 2xx means the receipt exists upstream; an unreadable body only costs
	// us the external id.
	var out qbSalesReceiptResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", nil
	}
	return out.SalesReceipt.ID, nil
}
