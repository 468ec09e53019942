package domain

import "time"

// ProviderCredential is the decoded OAuth credential a tenant holds for one
// ledger provider.
type ProviderCredential struct {
	Provider          string
	ExternalAccountID string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         time.Time
}

// ExpiresWithin reports whether the access token expires before now+skew.
// A zero ExpiresAt is treated as already expired.
func (c ProviderCredential) ExpiresWithin(now time.Time, skew time.Duration) bool {
	if c.ExpiresAt.IsZero() {
		return true
	}
	return !now.Add(skew).Before(c.ExpiresAt)
}

// LedgerSync marks a donation as mirrored into a provider.
type LedgerSync struct {
	DonationID string
	Provider   string
	ExternalID string
	SyncedAt   time.Time
}
