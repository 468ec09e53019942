// Package pgfake is an in-memory stand-in for infra.SQLExecutor that
// understands the inline queries in internal/sqlinline. Tests use it in place
// of a live Postgres.
package pgfake

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ledgersync/internal/domain"
	"ledgersync/internal/sqlinline"
)

// Church is a stored tenant row.
type Church struct {
	ID       string
	Name     string
	Currency string
	Settings []byte
	Version  int64
}

// DB holds the fake tables. Zero value is not usable; call New.
type DB struct {
	mu sync.Mutex

	churches  map[string]*Church
	members   map[string]string
	donations []domain.Donation
	syncs     map[string]domain.LedgerSync

	// Err, when set, is returned by every call.
	Err error
	// BeforeSettingsUpdate runs (without the lock held) before each settings
	// update is applied, which lets tests interleave a competing writer.
	BeforeSettingsUpdate func()

	settingsUpdates int
}

func New() *DB {
	return &DB{
		churches: map[string]*Church{},
		members:  map[string]string{},
		syncs:    map[string]domain.LedgerSync{},
	}
}

// AddChurch inserts a tenant with the given settings document.
func (d *DB) AddChurch(id, currency string, settings map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, _ := json.Marshal(settings)
	if settings == nil {
		raw = []byte(`{}`)
	}
	d.churches[id] = &Church{ID: id, Name: "Church " + id, Currency: currency, Settings: raw}
}

// AddMember links a user to a church.
func (d *DB) AddMember(userID, churchID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[userID] = churchID
}

// AddDonation appends a donation row.
func (d *DB) AddDonation(don domain.Donation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if don.CreatedAt.IsZero() {
		don.CreatedAt = time.Date(2024, 1, 1, 0, 0, len(d.donations), 0, time.UTC)
	}
	d.donations = append(d.donations, don)
}

// Settings decodes the stored settings document of a church.
func (d *DB) Settings(churchID string) map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.churches[churchID]
	if !ok {
		return nil
	}
	out := map[string]any{}
	_ = json.Unmarshal(c.Settings, &out)
	return out
}

// SetSetting writes one key the way an unrelated feature would, bumping the
// version.
func (d *DB) SetSetting(churchID, key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.churches[churchID]
	if !ok {
		return
	}
	settings := map[string]any{}
	_ = json.Unmarshal(c.Settings, &settings)
	settings[key] = value
	c.Settings, _ = json.Marshal(settings)
	c.Version++
}

// SettingsVersion returns the current version counter of a church.
func (d *DB) SettingsVersion(churchID string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.churches[churchID]; ok {
		return c.Version
	}
	return -1
}

// SettingsUpdates counts update statements that matched a row.
func (d *DB) SettingsUpdates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settingsUpdates
}

// Synced returns the marker for a donation/provider pair.
func (d *DB) Synced(donationID, provider string) (domain.LedgerSync, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.syncs[syncKey(donationID, provider)]
	return s, ok
}

func syncKey(donationID, provider string) string {
	return donationID + "|" + provider
}

func (d *DB) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if d.Err != nil {
		return pgconn.CommandTag{}, d.Err
	}
	switch query {
	case sqlinline.QUpdateChurchSettings:
		if hook := d.BeforeSettingsUpdate; hook != nil {
			hook()
		}
		if len(args) != 3 {
			return pgconn.CommandTag{}, fmt.Errorf("pgfake: update settings args = %d", len(args))
		}
		id, _ := args[0].(string)
		raw, _ := args[1].([]byte)
		version, _ := args[2].(int64)
		d.mu.Lock()
		defer d.mu.Unlock()
		c, ok := d.churches[id]
		if !ok || c.Version != version {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		}
		c.Settings = append([]byte(nil), raw...)
		c.Version++
		d.settingsUpdates++
		return pgconn.NewCommandTag("UPDATE 1"), nil
	case sqlinline.QInsertLedgerSync:
		if len(args) != 5 {
			return pgconn.CommandTag{}, fmt.Errorf("pgfake: insert sync args = %d", len(args))
		}
		donationID, _ := args[0].(string)
		provider, _ := args[2].(string)
		externalID, _ := args[3].(string)
		syncedAt, _ := args[4].(time.Time)
		d.mu.Lock()
		defer d.mu.Unlock()
		key := syncKey(donationID, provider)
		if _, exists := d.syncs[key]; exists {
			return pgconn.NewCommandTag("INSERT 0 0"), nil
		}
		d.syncs[key] = domain.LedgerSync{DonationID: donationID, Provider: provider, ExternalID: externalID, SyncedAt: syncedAt}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("pgfake: unexpected exec: %s", query)
}

func (d *DB) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	if d.Err != nil {
		return row{err: d.Err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch query {
	case sqlinline.QSelectChurchMembership:
		userID, _ := args[0].(string)
		churchID, ok := d.members[userID]
		if !ok {
			return row{err: pgx.ErrNoRows}
		}
		return row{vals: []any{churchID}}
	case sqlinline.QSelectChurchSettings:
		id, _ := args[0].(string)
		c, ok := d.churches[id]
		if !ok {
			return row{err: pgx.ErrNoRows}
		}
		return row{vals: []any{append([]byte(nil), c.Settings...), c.Version}}
	case sqlinline.QSelectChurch:
		id, _ := args[0].(string)
		c, ok := d.churches[id]
		if !ok {
			return row{err: pgx.ErrNoRows}
		}
		created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		return row{vals: []any{c.ID, c.Name, c.Currency, append([]byte(nil), c.Settings...), c.Version, created, created}}
	}
	return row{err: fmt.Errorf("pgfake: unexpected query_row: %s", query)}
}

func (d *DB) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	if query != sqlinline.QListUnsyncedDonations {
		return nil, fmt.Errorf("pgfake: unexpected query: %s", query)
	}
	if len(args) != 4 {
		return nil, fmt.Errorf("pgfake: list donations args = %d", len(args))
	}
	churchID, _ := args[0].(string)
	status, _ := args[1].(string)
	provider, _ := args[2].(string)
	limit, _ := args[3].(int)

	d.mu.Lock()
	defer d.mu.Unlock()
	var matched []domain.Donation
	for _, don := range d.donations {
		if don.ChurchID != churchID || string(don.Status) != status {
			continue
		}
		if _, done := d.syncs[syncKey(don.ID, provider)]; done {
			continue
		}
		matched = append(matched, don)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([][]any, 0, len(matched))
	for _, don := range matched {
		out = append(out, []any{
			don.ID, don.ChurchID, don.AmountCents, string(don.Status), don.Method, don.DonatedAt,
			don.DonorName, don.DonorEmail, don.FundName, don.CreatedAt,
		})
	}
	return &rows{data: out}, nil
}

type row struct {
	vals []any
	err  error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

type rows struct {
	data [][]any
	idx  int
}

func (r *rows) Close()                                       {}
func (r *rows) Err() error                                   { return nil }
func (r *rows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rows) RawValues() [][]byte                          { return nil }
func (r *rows) Conn() *pgx.Conn                              { return nil }

func (r *rows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *rows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return pgx.ErrNoRows
	}
	return assign(dest, r.data[r.idx-1])
}

func (r *rows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.data) {
		return nil, pgx.ErrNoRows
	}
	return r.data[r.idx-1], nil
}

func assign(dest []any, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("pgfake: scan %d dest for %d columns", len(dest), len(vals))
	}
	for i, v := range vals {
		ptr := reflect.ValueOf(dest[i])
		if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
			return fmt.Errorf("pgfake: dest %d is not a pointer", i)
		}
		target := ptr.Elem()
		val := reflect.ValueOf(v)
		switch {
		case !val.IsValid():
			target.Set(reflect.Zero(target.Type()))
		case val.Type().AssignableTo(target.Type()):
			target.Set(val)
		case val.Type().ConvertibleTo(target.Type()):
			target.Set(val.Convert(target.Type()))
		default:
			return fmt.Errorf("pgfake: cannot scan %T into %s", v, target.Type())
		}
	}
	return nil
}
