// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// secretPlaceholder is the value shipped in .env.example; using it outside
// development is a fatal misconfiguration.
const secretPlaceholder = "change-this"

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the symmetric HS256 signing secret shared by all services.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// OTPTTL is the login OTP lifetime (e.g. "5m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPMaxAttempts is the number of wrong OTP submissions tolerated before the code is blocked.
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// OTPBlockMinutes is how long a blocked OTP stays blocked.
	OTPBlockMinutes int `mapstructure:"OTP_BLOCK_MINUTES"`
	// OTPResendCooldown is the minimum gap between OTP issues for one user (e.g. "60s").
	OTPResendCooldown string `mapstructure:"OTP_RESEND_COOLDOWN"`
	// OTPRequestLimit is the max OTP issues per user per flood window before a lockout.
	OTPRequestLimit int `mapstructure:"OTP_REQUEST_LIMIT"`
	// OTPRequestBlockMinutes is the lockout applied when the flood limit is hit.
	OTPRequestBlockMinutes int `mapstructure:"OTP_REQUEST_BLOCK_MINUTES"`
	// SessionTTL is the refresh-token session lifetime (e.g. "168h").
	SessionTTL string `mapstructure:"SESSION_TTL"`
	// JanitorInterval is the maintenance sweep interval (e.g. "1h").
	JanitorInterval string `mapstructure:"JANITOR_INTERVAL"`
	// DisableJanitor skips starting the maintenance scheduler (useful in tests and one-off jobs).
	DisableJanitor bool `mapstructure:"DISABLE_JANITOR"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`

	// KafkaBrokers is a comma-separated broker list; empty disables event emission.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic is the topic for auth events.
	KafkaTopic string `mapstructure:"KAFKA_TOPIC"`
	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables OTel export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`

	// LokiURL is where the telemetry worker pushes events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment. Missing .env is ignored. Env vars override .env. A missing or
// placeholder JWT_SECRET outside development fails here, never per-request.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // .env is optional

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h")
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_MAX_ATTEMPTS", 3)
	v.SetDefault("OTP_BLOCK_MINUTES", 15)
	v.SetDefault("OTP_RESEND_COOLDOWN", "60s")
	v.SetDefault("OTP_REQUEST_LIMIT", 5)
	v.SetDefault("OTP_REQUEST_BLOCK_MINUTES", 60)
	v.SetDefault("SESSION_TTL", "168h")
	v.SetDefault("JANITOR_INTERVAL", "1h")
	v.SetDefault("DISABLE_JANITOR", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "authcore-events")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "authcore-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if err := cfg.checkSecret(); err != nil {
		return nil, err
	}
	if cfg.OTPMaxAttempts <= 0 {
		return nil, errors.New("config: OTP_MAX_ATTEMPTS must be positive")
	}
	if cfg.OTPBlockMinutes <= 0 {
		return nil, errors.New("config: OTP_BLOCK_MINUTES must be positive")
	}

	return &cfg, nil
}

// checkSecret enforces the signing-secret policy: required always, and the
// known placeholder is rejected outside development.
func (c *Config) checkSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if strings.Contains(c.JWTSecret, secretPlaceholder) && !c.IsDevelopment() {
		return errors.New("config: JWT_SECRET is still the placeholder value; set a real secret")
	}
	return nil
}

// IsDevelopment reports whether the app runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// AccessTTL parses JWTAccessTTL. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// OTPLifetime parses OTPTTL. Returns 5m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration {
	d, err := time.ParseDuration(c.OTPTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// ResendCooldown parses OTPResendCooldown. Returns 60s if unset or invalid.
func (c *Config) ResendCooldown() time.Duration {
	d, err := time.ParseDuration(c.OTPResendCooldown)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// SessionLifetime parses SessionTTL. Returns 168h if unset or invalid.
func (c *Config) SessionLifetime() time.Duration {
	d, err := time.ParseDuration(c.SessionTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// SweepInterval parses JanitorInterval. Returns 1h if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.JanitorInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// KafkaBrokersList splits KafkaBrokers into broker addresses. A nil result
// means event emission is disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
