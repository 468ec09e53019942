package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
)

const defaultBatchSize = 100

// CredentialStore persists provider credentials per church.
type CredentialStore interface {
	Load(ctx context.Context, churchID, provider string) (*domain.ProviderCredential, error)
	Save(ctx context.Context, churchID string, cred domain.ProviderCredential) error
	Remove(ctx context.Context, churchID, provider string) error
}

// Result summarizes one sync run. Total is the number of donations attempted,
// Synced the number the provider accepted.
type Result struct {
	Synced int `json:"synced"`
	Total  int `json:"total"`
}

type SyncerOptions struct {
	Credentials CredentialStore
	Donations   domain.DonationRepository
	Churches    domain.ChurchRepository
	Locker      Locker
	Logger      infra.Logger
	BatchSize   int
	RefreshSkew time.Duration
	CallTimeout time.Duration
	LockTTL     time.Duration
}

// Syncer mirrors a church's completed donations into one provider.
type Syncer struct {
	credentials CredentialStore
	donations   domain.DonationRepository
	churches    domain.ChurchRepository
	locker      Locker
	logger      infra.Logger
	batchSize   int
	refreshSkew time.Duration
	callTimeout time.Duration
	lockTTL     time.Duration
	now         func() time.Time
}

func NewSyncer(opts SyncerOptions) *Syncer {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.RefreshSkew <= 0 {
		opts.RefreshSkew = 5 * time.Minute
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultHTTPTimeout
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.Locker == nil {
		opts.Locker = NewLocalLocker()
	}
	return &Syncer{
		credentials: opts.Credentials,
		donations:   opts.Donations,
		churches:    opts.Churches,
		locker:      opts.Locker,
		logger:      opts.Logger,
		batchSize:   opts.BatchSize,
		refreshSkew: opts.RefreshSkew,
		callTimeout: opts.CallTimeout,
		lockTTL:     opts.LockTTL,
		now:         time.Now,
	}
}

// Sync posts up to one batch of unsynced donations, oldest first. A donation
// the provider rejects is logged and skipped; it stays unsynced and is picked
// up again by the next run. Cancelling ctx stops the run between donations and
// returns the counts so far together with the context error.
func (s *Syncer) Sync(ctx context.Context, churchID string, p Provider) (Result, error) {
	release, err := s.locker.Acquire(ctx, syncLockKey(churchID, p.Name()), s.lockTTL)
	if err != nil {
		return Result{}, err
	}
	defer release()

	cred, err := s.credentials.Load(ctx, churchID, p.Name())
	if err != nil {
		return Result{}, err
	}
	if cred.ExpiresWithin(s.now(), s.refreshSkew) {
		if cred, err = s.refresh(ctx, churchID, p, *cred); err != nil {
			return Result{}, err
		}
	}

	church, err := s.churches.GetByID(ctx, churchID)
	if err != nil {
		return Result{}, fmt.Errorf("load church: %w", err)
	}
	currency, ok := currencyCode(church.Currency)
	if !ok {
		s.logger.Warn().
			Str("church_id", churchID).
			Str("currency", church.Currency).
			Msg("church currency is not a valid ISO 4217 code, posting as " + currency)
	}

	pending, err := s.donations.ListUnsynced(ctx, churchID, p.Name(), s.batchSize)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(pending)}
	for _, d := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		externalID, err := s.post(ctx, p, *cred, d, currency)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.logger.Warn().
				Err(err).
				Str("church_id", churchID).
				Str("provider", p.Name()).
				Str("donation_id", d.ID).
				Msg("ledger post failed")
			continue
		}
		res.Synced++
		if externalID == "" {
			s.logger.Warn().
				Str("church_id", churchID).
				Str("provider", p.Name()).
				Str("donation_id", d.ID).
				Msg("provider accepted donation without returning an id")
		}
		mark := domain.LedgerSync{DonationID: d.ID, Provider: p.Name(), ExternalID: externalID, SyncedAt: s.now()}
		if err := s.donations.MarkSynced(context.WithoutCancel(ctx), churchID, mark); err != nil {
			s.logger.Error().
				Err(err).
				Str("church_id", churchID).
				Str("provider", p.Name()).
				Str("donation_id", d.ID).
				Str("external_id", externalID).
				Msg("posted donation could not be marked synced")
		}
	}

	s.logger.Info().
		Str("church_id", churchID).
		Str("provider", p.Name()).
		Int("synced", res.Synced).
		Int("total", res.Total).
		Msg("ledger sync finished")
	return res, nil
}

func (s *Syncer) post(ctx context.Context, p Provider, cred domain.ProviderCredential, d domain.Donation, currency string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	return p.PostDonation(callCtx, cred, d, currency)
}

// refresh renews an expiring access token and persists it before any donation
// is posted. Providers that rotate refresh tokens invalidate the old one, so
// the new pair has to be stored even if the run fails afterwards.
func (s *Syncer) refresh(ctx context.Context, churchID string, p Provider, cred domain.ProviderCredential) (*domain.ProviderCredential, error) {
	tok, err := p.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh %s token: %w", p.Name(), err)
	}
	cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	cred.ExpiresAt = tok.ExpiresAt
	if err := s.credentials.Save(ctx, churchID, cred); err != nil {
		return nil, fmt.Errorf("store refreshed %s token: %w", p.Name(), err)
	}
	s.logger.Debug().Str("church_id", churchID).Str("provider", p.Name()).Msg("access token refreshed")
	return &cred, nil
}
