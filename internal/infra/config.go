package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	DBMaxConns       int32
	AllowedOrigins   []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QuickBooks QuickBooksConfig
	Xero       XeroConfig
	Ledger     LedgerConfig
}

// OAuthAppConfig holds the process-wide OAuth application registration for one provider.
type OAuthAppConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BaseURL      string
}

// Complete reports whether the client id, secret and redirect URI are all set.
func (c OAuthAppConfig) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

type QuickBooksConfig struct {
	OAuthAppConfig
	DonationItemID string
}

type XeroConfig struct {
	OAuthAppConfig
	IncomeAccountCode string
	BankAccountCode   string
}

// LedgerConfig tunes the sync engine.
type LedgerConfig struct {
	BatchSize   int
	HTTPTimeout time.Duration
	RefreshSkew time.Duration
	LockTTL     time.Duration
}

const (
	minWriteTimeout   = 120 * time.Second
	minLockTTL        = 10 * time.Minute
	syncResponseGrace = 30 * time.Second
)

// MaxBatchDuration is the longest one sync batch can spend waiting on the
// provider.
func (c LedgerConfig) MaxBatchDuration() time.Duration {
	if c.BatchSize <= 0 {
		return 0
	}
	return time.Duration(c.BatchSize) * c.HTTPTimeout
}

func (c LedgerConfig) coveringBatch(floor time.Duration) time.Duration {
	if d := c.MaxBatchDuration() + syncResponseGrace; d > floor {
		return d
	}
	return floor
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		HTTPReadTimeout: time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPIdleTimeout: time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		DBMaxConns:      int32(getEnvInt("DB_MAX_CONNS", 10)),
		AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),
		RedisAddr:       strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		QuickBooks: QuickBooksConfig{
			OAuthAppConfig: OAuthAppConfig{
				ClientID:     strings.TrimSpace(os.Getenv("QUICKBOOKS_CLIENT_ID")),
				ClientSecret: strings.TrimSpace(os.Getenv("QUICKBOOKS_CLIENT_SECRET")),
				RedirectURI:  strings.TrimSpace(os.Getenv("QUICKBOOKS_REDIRECT_URI")),
				BaseURL:      getEnv("QUICKBOOKS_BASE_URL", "https://quickbooks.api.intuit.com"),
			},
			DonationItemID: getEnv("QUICKBOOKS_DONATION_ITEM_ID", "1"),
		},
		Xero: XeroConfig{
			OAuthAppConfig: OAuthAppConfig{
				ClientID:     strings.TrimSpace(os.Getenv("XERO_CLIENT_ID")),
				ClientSecret: strings.TrimSpace(os.Getenv("XERO_CLIENT_SECRET")),
				RedirectURI:  strings.TrimSpace(os.Getenv("XERO_REDIRECT_URI")),
				BaseURL:      getEnv("XERO_BASE_URL", "https://api.xero.com"),
			},
			IncomeAccountCode: getEnv("XERO_INCOME_ACCOUNT_CODE", "200"),
			BankAccountCode:   getEnv("XERO_BANK_ACCOUNT_CODE", "090"),
		},
		Ledger: LedgerConfig{
			BatchSize:   getEnvInt("LEDGER_BATCH_SIZE", 100),
			HTTPTimeout: time.Second * time.Duration(getEnvInt("LEDGER_HTTP_TIMEOUT_SECONDS", 20)),
			RefreshSkew: time.Second * time.Duration(getEnvInt("LEDGER_REFRESH_SKEW_SECONDS", 300)),
		},
	}

	// A sync request holds both its connection and the sync lock for a whole
	// batch, so by default both outlast every provider call in one batch.
	cfg.HTTPWriteTimeout = getEnvSeconds("HTTP_WRITE_TIMEOUT_SECONDS", cfg.Ledger.coveringBatch(minWriteTimeout))
	cfg.Ledger.LockTTL = getEnvSeconds("LEDGER_LOCK_TTL_SECONDS", cfg.Ledger.coveringBatch(minLockTTL))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.Ledger.BatchSize <= 0 {
		return nil, fmt.Errorf("LEDGER_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	return time.Second * time.Duration(getEnvInt(key, int(fallback/time.Second)))
}
