package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
	"ledgersync/internal/sqlinline"
)

const (
	ProviderQuickBooks = "quickbooks"
	ProviderXero       = "xero"
)

const defaultPatchAttempts = 3

var (
	// ErrUnknownProvider is returned for a provider with no registered key set.
	ErrUnknownProvider = errors.New("unknown ledger provider")
	// ErrConcurrentUpdate is returned when every patch attempt lost the
	// settings_version race.
	ErrConcurrentUpdate = errors.New("church settings changed concurrently")
)

// keySet names the four settings keys one provider owns.
type keySet struct {
	account string
	access  string
	refresh string
	expiry  string
}

func (k keySet) all() []string {
	return []string{k.account, k.access, k.refresh, k.expiry}
}

var providerKeys = map[string]keySet{
	ProviderQuickBooks: {
		account: "quickbooksRealmId",
		access:  "quickbooksAccessToken",
		refresh: "quickbooksRefreshToken",
		expiry:  "quickbooksTokenExpiry",
	},
	ProviderXero: {
		account: "xeroTenantId",
		access:  "xeroAccessToken",
		refresh: "xeroRefreshToken",
		expiry:  "xeroTokenExpiry",
	},
}

// Keys returns the settings keys owned by provider.
func Keys(provider string) ([]string, error) {
	ks, ok := providerKeys[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return ks.all(), nil
}

// Store reads and writes provider credentials inside a church's settings
// document. Every write is a read-modify-write guarded by settings_version, so
// unrelated keys written by other features are never lost.
type Store struct {
	sql         infra.SQLExecutor
	maxAttempts int
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, maxAttempts: defaultPatchAttempts}
}

// Load returns the stored credential, or domain.ErrNotConnected when the
// access token or the external account id is missing.
func (s *Store) Load(ctx context.Context, churchID, provider string) (*domain.ProviderCredential, error) {
	ks, ok := providerKeys[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	settings, _, err := s.read(ctx, churchID)
	if err != nil {
		return nil, err
	}
	return decode(provider, ks, settings)
}

// Save merges the credential's namespaced keys into the settings document.
func (s *Store) Save(ctx context.Context, churchID string, cred domain.ProviderCredential) error {
	ks, ok := providerKeys[cred.Provider]
	if !ok {
		return ErrUnknownProvider
	}
	if strings.TrimSpace(cred.AccessToken) == "" || strings.TrimSpace(cred.ExternalAccountID) == "" {
		return errors.New("credential requires an access token and an external account id")
	}
	return s.patch(ctx, churchID, func(settings map[string]any) bool {
		encode(ks, cred, settings)
		return true
	})
}

// Remove deletes the provider's keys and leaves every other key in place.
// Removing an absent credential is a no-op and does not bump the version.
func (s *Store) Remove(ctx context.Context, churchID, provider string) error {
	ks, ok := providerKeys[provider]
	if !ok {
		return ErrUnknownProvider
	}
	return s.patch(ctx, churchID, func(settings map[string]any) bool {
		changed := false
		for _, key := range ks.all() {
			if _, present := settings[key]; present {
				delete(settings, key)
				changed = true
			}
		}
		return changed
	})
}

// Settings returns a decoded copy of the whole settings document.
func (s *Store) Settings(ctx context.Context, churchID string) (map[string]any, error) {
	settings, _, err := s.read(ctx, churchID)
	return settings, err
}

func (s *Store) read(ctx context.Context, churchID string) (map[string]any, int64, error) {
	var raw []byte
	var version int64
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectChurchSettings, churchID).Scan(&raw, &version); err != nil {
		if infra.IsNoRows(err) {
			return nil, 0, domain.ErrNotFound
		}
		return nil, 0, fmt.Errorf("load church settings: %w", err)
	}
	settings := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return nil, 0, fmt.Errorf("decode church settings: %w", err)
		}
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, version, nil
}

// patch applies mutate to the current document and writes it back only if
// nobody else wrote in between. mutate returning false skips the write.
func (s *Store) patch(ctx context.Context, churchID string, mutate func(map[string]any) bool) error {
	attempts := s.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		settings, version, err := s.read(ctx, churchID)
		if err != nil {
			return err
		}
		if !mutate(settings) {
			return nil
		}
		raw, err := json.Marshal(settings)
		if err != nil {
			return fmt.Errorf("encode church settings: %w", err)
		}
		tag, err := s.sql.Exec(ctx, sqlinline.QUpdateChurchSettings, churchID, raw, version)
		if err != nil {
			return fmt.Errorf("save church settings: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}
	}
	return ErrConcurrentUpdate
}

func encode(ks keySet, cred domain.ProviderCredential, settings map[string]any) {
	settings[ks.account] = cred.ExternalAccountID
	settings[ks.access] = cred.AccessToken
	settings[ks.refresh] = cred.RefreshToken
	settings[ks.expiry] = cred.ExpiresAt.UTC().Format(time.RFC3339)
}

func decode(provider string, ks keySet, settings map[string]any) (*domain.ProviderCredential, error) {
	cred := &domain.ProviderCredential{
		Provider:          provider,
		ExternalAccountID: stringValue(settings[ks.account]),
		AccessToken:       stringValue(settings[ks.access]),
		RefreshToken:      stringValue(settings[ks.refresh]),
	}
	if cred.AccessToken == "" || cred.ExternalAccountID == "" {
		return nil, domain.ErrNotConnected
	}
	cred.ExpiresAt = timeValue(settings[ks.expiry])
	return cred, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// timeValue accepts RFC 3339 strings and unix milliseconds. Anything else
// decodes to the zero time, which callers treat as expired.
func timeValue(v any) time.Time {
	switch t := v.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t)); err == nil {
			return parsed.UTC()
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	}
	return time.Time{}
}
