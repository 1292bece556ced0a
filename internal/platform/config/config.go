package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full deployment-provided configuration of the API process.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:3001"`
	// StorageBackend is "memory" or "postgres".
	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	// AuthMode is "jwt" (verify bearer tokens) or "dev" (trust X-Debug-Subject).
	AuthMode   string `env:"AUTH_MODE" envDefault:"jwt"`
	DevSubject string `env:"DEV_SUBJECT"`
	// TrustProxy takes client IPs from forwarding headers. Only set behind a trusted proxy.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`
}

// AuthConfig configures the identity provider client, token verification and the
// fallback session issuer.
type AuthConfig struct {
	ProviderURL string `env:"SUPABASE_URL"`
	AnonKey     string `env:"SUPABASE_ANON_KEY"`
	ServiceKey  string `env:"SUPABASE_SERVICE_KEY"`

	// JWTSecret is the shared HS* secret used both to verify provider tokens and to
	// sign fallback tokens.
	JWTSecret string `env:"JWT_SECRET"`
	// JWTAudience is stamped into locally minted tokens. It is never enforced on verify.
	JWTAudience string `env:"JWT_AUDIENCE" envDefault:"authenticated"`
	// JWKSURL overrides the provider's published key set location.
	JWKSURL string `env:"JWT_JWKS_URL"`
	// JWKSRefreshInterval is the minimum gap between key set downloads for unknown kids.
	JWKSRefreshInterval time.Duration `env:"JWT_JWKS_REFRESH_INTERVAL" envDefault:"30s"`

	ClockSkew       time.Duration `env:"JWT_CLOCK_SKEW" envDefault:"30s"`
	FallbackTTL     time.Duration `env:"FALLBACK_TOKEN_TTL" envDefault:"1h"`
	PendingTTL      time.Duration `env:"PENDING_TOKEN_TTL" envDefault:"10m"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
}

// JWKS returns the key set URL, derived from the provider URL unless overridden.
func (c AuthConfig) JWKS() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}
	if c.ProviderURL == "" {
		return ""
	}
	return strings.TrimRight(c.ProviderURL, "/") + "/auth/v1/.well-known/jwks.json"
}

// Secrets lists values that must never appear in responses or logs.
func (c AuthConfig) Secrets() []string {
	return []string{c.JWTSecret, c.ServiceKey}
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	Migrate         bool          `env:"DB_MIGRATE" envDefault:"false"`
}

type RateLimitConfig struct {
	// LoginPerMinute bounds login/signup attempts per client IP.
	LoginPerMinute int `env:"LOGIN_RATE_PER_MIN" envDefault:"20"`
	LoginBurst     int `env:"LOGIN_BURST" envDefault:"5"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// The .env file is optional; a missing file is not an error.
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.Server.StorageBackend {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", c.Server.StorageBackend))
	}
	switch c.Server.AuthMode {
	case "dev":
	case "jwt":
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when AUTH_MODE=jwt"))
		}
		if c.Auth.ProviderURL == "" || c.Auth.AnonKey == "" {
			errs = append(errs, errors.New("SUPABASE_URL and SUPABASE_ANON_KEY are required when AUTH_MODE=jwt"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be jwt or dev, got %q", c.Server.AuthMode))
	}
	if c.Auth.ClockSkew < 0 {
		errs = append(errs, errors.New("JWT_CLOCK_SKEW must not be negative"))
	}
	if c.Auth.FallbackTTL <= 0 || c.Auth.PendingTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	return errors.Join(errs...)
}
