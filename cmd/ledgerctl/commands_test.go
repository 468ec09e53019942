package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ledgersync/internal/adapter/repo"
	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
	"ledgersync/internal/infra/credentials"
	"ledgersync/internal/ledger"
	"ledgersync/internal/ledger/ledgertest"
	"ledgersync/internal/pgfake"
)

func testDeps(t *testing.T, db *pgfake.DB) deps {
	t.Helper()
	srv := ledgertest.NewServer(t)
	store := credentials.NewStore(db)
	syncer := ledger.NewSyncer(ledger.SyncerOptions{
		Credentials: store,
		Donations:   repo.NewDonationRepository(db),
		Churches:    repo.NewChurchRepository(db),
		Logger:      infra.NopLogger(),
	})
	svc := ledger.NewService(ledger.NewRegistry(srv.QuickBooks(), srv.Xero()), store, syncer, infra.NopLogger())
	return deps{
		openService: func(context.Context) (*ledger.Service, func(), error) {
			return svc, func() {}, nil
		},
		migrate: func(context.Context) (infra.MigrationReport, error) {
			return infra.MigrationReport{Applied: []int64{1}, Version: 1}, nil
		},
	}
}

func run(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(d)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seedConnected(t *testing.T, db *pgfake.DB) {
	t.Helper()
	db.AddChurch("c1", "USD", map[string]any{"theme": "light"})
	err := credentials.NewStore(db).Save(context.Background(), "c1", domain.ProviderCredential{
		Provider:          "xero",
		ExternalAccountID: ledgertest.XeroTenantID,
		AccessToken:       "tok",
		RefreshToken:      "ref",
		ExpiresAt:         time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("seed credential: %v", err)
	}
}

func TestMigrateCommand(t *testing.T) {
	out, err := run(t, testDeps(t, pgfake.New()), "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "applied version 1") || !strings.Contains(out, "now at version 1") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestMigrateCommandUpToDate(t *testing.T) {
	d := testDeps(t, pgfake.New())
	d.migrate = func(context.Context) (infra.MigrationReport, error) {
		return infra.MigrationReport{Version: 1}, nil
	}
	out, err := run(t, d, "migrate")
	if err != nil || !strings.Contains(out, "up to date at version 1") {
		t.Fatalf("migrate: out=%q err=%v", out, err)
	}
}

func TestMigrateCommandReportsPartialRun(t *testing.T) {
	d := testDeps(t, pgfake.New())
	d.migrate = func(context.Context) (infra.MigrationReport, error) {
		return infra.MigrationReport{Applied: []int64{1}}, errors.New("apply migrations: version 2 failed")
	}
	out, err := run(t, d, "migrate")
	if err == nil {
		t.Fatal("expected migrate to fail")
	}
	if !strings.Contains(out, "applied version 1") {
		t.Fatalf("applied versions not reported: %q", out)
	}
}

func TestStatusSyncDisconnect(t *testing.T) {
	db := pgfake.New()
	seedConnected(t, db)
	db.AddDonation(domain.Donation{ID: "d1", ChurchID: "c1", AmountCents: 700, Status: domain.DonationStatusCompleted})
	db.AddDonation(domain.Donation{ID: "d2", ChurchID: "c1", AmountCents: 900, Status: domain.DonationStatusCompleted})
	d := testDeps(t, db)

	out, err := run(t, d, "status", "--tenant", "c1", "--provider", "Xero")
	if err != nil || !strings.Contains(out, "xero: connected (account "+ledgertest.XeroTenantID+")") {
		t.Fatalf("status: out=%q err=%v", out, err)
	}

	out, err = run(t, d, "sync", "--tenant", "c1", "--provider", "xero")
	if err != nil || !strings.Contains(out, "2 of 2 synced") {
		t.Fatalf("sync: out=%q err=%v", out, err)
	}

	out, err = run(t, d, "disconnect", "--tenant", "c1", "--provider", "xero")
	if err != nil || !strings.Contains(out, "xero disconnected") {
		t.Fatalf("disconnect: out=%q err=%v", out, err)
	}
	if got := db.Settings("c1"); len(got) != 1 || got["theme"] != "light" {
		t.Fatalf("settings after disconnect: %v", got)
	}

	out, err = run(t, d, "status", "--tenant", "c1", "--provider", "xero")
	if err != nil || !strings.Contains(out, "xero: not connected") {
		t.Fatalf("status after disconnect: out=%q err=%v", out, err)
	}
}

func TestSyncCommandNotConnected(t *testing.T) {
	db := pgfake.New()
	db.AddChurch("c1", "USD", nil)

	_, err := run(t, testDeps(t, db), "sync", "--tenant", "c1", "--provider", "quickbooks")

	if !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("expected not connected, got %v", err)
	}
}

func TestCommandsRequireTarget(t *testing.T) {
	if _, err := run(t, testDeps(t, pgfake.New()), "sync", "--tenant", "c1"); err == nil {
		t.Fatal("expected missing --provider to fail")
	}
}
