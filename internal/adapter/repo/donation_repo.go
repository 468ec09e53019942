package repo

import (
	"context"
	"fmt"
	"time"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
	"ledgersync/internal/sqlinline"
)

// DonationRepositoryPG implements domain.DonationRepository using PostgreSQL.
type DonationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewDonationRepository creates a new donation repo.
func NewDonationRepository(sql infra.SQLExecutor) *DonationRepositoryPG {
	return &DonationRepositoryPG{sql: sql}
}

// ListUnsynced returns up to limit completed donations of the church that have
// no sync marker for provider, oldest first.
func (r *DonationRepositoryPG) ListUnsynced(ctx context.Context, churchID, provider string, limit int) ([]domain.Donation, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListUnsyncedDonations, churchID, string(domain.DonationStatusCompleted), provider, limit)
	if err != nil {
		return nil, fmt.Errorf("list unsynced donations: %w", err)
	}
	defer rows.Close()

	var items []domain.Donation
	for rows.Next() {
		var d domain.Donation
		if err := rows.Scan(
			&d.ID,
			&d.ChurchID,
			&d.AmountCents,
			&d.Status,
			&d.Method,
			&d.DonatedAt,
			&d.DonorName,
			&d.DonorEmail,
			&d.FundName,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan donation: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// MarkSynced records that a donation now exists in the provider's ledger.
// Marking twice is harmless.
func (r *DonationRepositoryPG) MarkSynced(ctx context.Context, churchID string, sync domain.LedgerSync) error {
	syncedAt := sync.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	if _, err := r.sql.Exec(ctx, sqlinline.QInsertLedgerSync, sync.DonationID, churchID, sync.Provider, sync.ExternalID, syncedAt); err != nil {
		return fmt.Errorf("mark donation synced: %w", err)
	}
	return nil
}

var _ domain.DonationRepository = (*DonationRepositoryPG)(nil)
