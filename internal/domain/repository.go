package domain

import "context"

// DonationRepository reads donations for ledger mirroring and records which
// ones have been mirrored.
type DonationRepository interface {
	ListUnsynced(ctx context.Context, churchID, provider string, limit int) ([]Donation, error)
	MarkSynced(ctx context.Context, churchID string, sync LedgerSync) error
}

// ChurchRepository reads tenant records.
type ChurchRepository interface {
	GetByID(ctx context.Context, id string) (*Church, error)
}
