package ledger

import (
	"github.com/go-redis/redis/v8"

	"ledgersync/internal/adapter/repo"
	"ledgersync/internal/infra"
	"ledgersync/internal/infra/credentials"
)

// NewServiceFromConfig wires both providers, the Postgres-backed stores and
// the sync engine. Sync locks live in Redis when rdb is non-nil and in
// process memory otherwise.
func NewServiceFromConfig(cfg *infra.Config, sql infra.SQLExecutor, rdb *redis.Client, logger infra.Logger) *Service {
	httpClient := NewHTTPClient(cfg.Ledger.HTTPTimeout)
	providers := NewRegistry(
		NewQuickBooks(QuickBooksOptions{Config: cfg.QuickBooks, HTTPClient: httpClient}),
		NewXero(XeroOptions{Config: cfg.Xero, HTTPClient: httpClient}),
	)

	var locker Locker = NewLocalLocker()
	if rdb != nil {
		locker = NewRedisLocker(rdb)
	}

	store := credentials.NewStore(sql)
	syncer := NewSyncer(SyncerOptions{
		Credentials: store,
		Donations:   repo.NewDonationRepository(sql),
		Churches:    repo.NewChurchRepository(sql),
		Locker:      locker,
		Logger:      logger,
		BatchSize:   cfg.Ledger.BatchSize,
		RefreshSkew: cfg.Ledger.RefreshSkew,
		CallTimeout: cfg.Ledger.HTTPTimeout,
		LockTTL:     cfg.Ledger.LockTTL,
	})
	return NewService(providers, store, syncer, logger)
}
