package models

import "time"

// Config represents the application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Supabase    SupabaseConfig
	Auth        AuthConfig
	Avatar      ProviderConfig
	Speech      SpeechConfig
	Workflow    ProviderConfig
	Payments    PaymentsConfig
	Formance    FormanceConfig
	Credits     CreditsConfig
	Idempotency IdempotencyConfig
	CatalogFile string
	LogLevel    string
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
}

// Store backends selectable through STORE_BACKEND
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"
)

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Backend         string
	Path            string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// SupabaseConfig holds the PostgREST endpoint and service-role key
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Timeout    time.Duration
	MaxRetries int
}

// AuthConfig controls bearer-token verification
type AuthConfig struct {
	JWTSecret string
	Required  bool
}

// ProviderConfig holds connection settings shared by every upstream provider
type ProviderConfig struct {
	Name            string
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	RateLimit       float64
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// SpeechConfig extends ProviderConfig with synthesis defaults
type SpeechConfig struct {
	ProviderConfig
	Model    string
	MaxChars int
}

// PaymentsConfig holds Stripe credentials and redirect targets
type PaymentsConfig struct {
	SecretKey     string
	WebhookSecret string
	SiteURL       string
}

// FormanceConfig holds Formance Stack connection settings for the credit journal
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Enabled reports whether the journal mirror should be started
func (c FormanceConfig) Enabled() bool {
	return c.StackURL != ""
}

// CreditsConfig holds reservation housekeeping settings
type CreditsConfig struct {
	ReservationTTL time.Duration
	SweepSchedule  string
	SweepBatchSize int
}

// IdempotencyConfig selects the replay cache backend
type IdempotencyConfig struct {
	RedisURL string
	TTL      time.Duration
}
