package ledger

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"ledgersync/internal/domain"
)

const defaultCurrency = "USD"

// amount converts minor units to a two-decimal JSON number.
func amount(cents int64) json.Number {
	return json.Number(decimal.New(cents, -2).StringFixed(2))
}

// currencyCode normalizes an ISO 4217 code. ok is false when code had to be
// replaced by the default.
func currencyCode(code string) (string, bool) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return defaultCurrency, false
	}
	return unit.String(), true
}

// txnDate is the calendar day the donation was made, in UTC.
func txnDate(d domain.Donation) string {
	at := d.DonatedAt
	if at.IsZero() {
		at = d.CreatedAt
	}
	return at.UTC().Format(time.DateOnly)
}

func donationDescription(d domain.Donation) string {
	if fund := strings.TrimSpace(d.FundName); fund != "" {
		return "Donation - " + fund
	}
	return "Donation"
}

func payerName(d domain.Donation, anonymous string) string {
	if name := strings.TrimSpace(d.DonorName); name != "" {
		return name
	}
	return anonymous
}
