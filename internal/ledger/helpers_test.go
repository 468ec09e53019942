package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ledgersync/internal/adapter/repo"
	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
	"ledgersync/internal/infra/credentials"
	"ledgersync/internal/pgfake"
)

// stubProvider records every call and accepts the first accept posts
// (all posts when accept is negative).
type stubProvider struct {
	name            string
	configured      bool
	requiresAccount bool
	accept          int

	mu         sync.Mutex
	posts      []domain.Donation
	tokens     []string
	currencies []string
	exchanges  int
	refreshes  int

	exchangeTok Token
	exchangeErr error
	refreshTok  Token
	refreshErr  error
	account     string
	afterPost   func(n int)
}

func newStubProvider(name string) *stubProvider {
	return &stubProvider{name: name, configured: true, accept: -1, account: "acct-1"}
}

func (p *stubProvider) Name() string          { return p.name }
func (p *stubProvider) Configured() bool      { return p.configured }
func (p *stubProvider) RequiresAccount() bool { return p.requiresAccount }

func (p *stubProvider) AuthorizeURL(state string) (string, error) {
	return "https://auth.example.com/?state=" + state, nil
}

func (p *stubProvider) Exchange(context.Context, string) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchanges++
	return p.exchangeTok, p.exchangeErr
}

func (p *stubProvider) Refresh(context.Context, string) (Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshes++
	return p.refreshTok, p.refreshErr
}

func (p *stubProvider) ResolveAccount(_ context.Context, _ string, hint string) (string, error) {
	if hint != "" {
		return hint, nil
	}
	return p.account, nil
}

func (p *stubProvider) PostDonation(_ context.Context, cred domain.ProviderCredential, d domain.Donation, currency string) (string, error) {
	p.mu.Lock()
	p.posts = append(p.posts, d)
	p.tokens = append(p.tokens, cred.AccessToken)
	p.currencies = append(p.currencies, currency)
	n := len(p.posts)
	hook := p.afterPost
	p.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if p.accept >= 0 && n > p.accept {
		return "", &UpstreamError{Provider: p.name, Op: "post", Status: 400, Body: "rejected"}
	}
	return "ext-" + d.ID, nil
}

func (p *stubProvider) postedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.posts))
	for _, d := range p.posts {
		out = append(out, d.ID)
	}
	return out
}

type fixture struct {
	db     *pgfake.DB
	store  *credentials.Store
	syncer *Syncer
	locker *LocalLocker
	now    time.Time
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	db := pgfake.New()
	store := credentials.NewStore(db)
	locker := NewLocalLocker()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewSyncer(SyncerOptions{
		Credentials: store,
		Donations:   repo.NewDonationRepository(db),
		Churches:    repo.NewChurchRepository(db),
		Locker:      locker,
		Logger:      infra.NopLogger(),
		BatchSize:   batchSize,
	})
	s.now = func() time.Time { return now }
	return &fixture{db: db, store: store, syncer: s, locker: locker, now: now}
}

func (f *fixture) connect(t *testing.T, churchID, provider string, expiresAt time.Time) {
	t.Helper()
	require.NoError(t, f.store.Save(context.Background(), churchID, domain.ProviderCredential{
		Provider:          provider,
		ExternalAccountID: "acct-1",
		AccessToken:       "tok",
		RefreshToken:      "ref",
		ExpiresAt:         expiresAt,
	}))
}

func (f *fixture) addCompleted(churchID string, n int) {
	for i := 0; i < n; i++ {
		f.db.AddDonation(domain.Donation{
			ID:          fmt.Sprintf("don-%d", i+1),
			ChurchID:    churchID,
			AmountCents: int64(1000 * (i + 1)),
			Status:      domain.DonationStatusCompleted,
			DonatedAt:   time.Date(2024, 5, i+1, 15, 0, 0, 0, time.UTC),
		})
	}
}
