// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FailPolicy decides how a blacklist lookup behaves when the shared tier is
// unreachable or times out: fail closed treats the token as blacklisted, fail
// open accepts it.
type FailPolicy string

const (
	FailClosed FailPolicy = "closed"
	FailOpen   FailPolicy = "open"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN for the principal directory; empty disables it.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the address of the shared blacklist tier (e.g. localhost:6379); empty disables the shared tier.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB is the Redis logical database number.
	RedisDB int `mapstructure:"REDIS_DB"`
	// JWTSecret is the token signing secret; must be at least 32 bytes.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim; validated on decode.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim; validated on decode.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAlgorithm is the HMAC signing algorithm: HS256, HS384, or HS512.
	JWTAlgorithm string `mapstructure:"JWT_ALGORITHM"`
	// JWTAccessTTL is the access token lifetime (e.g. "1h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "720h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// JWTClockSkew is the leeway applied to exp/nbf checks (default "0s": none).
	JWTClockSkew string `mapstructure:"JWT_CLOCK_SKEW"`
	// EnableBlacklist toggles revocation tracking entirely. When false, Add is
	// a no-op and every lookup reports not blacklisted.
	EnableBlacklist bool `mapstructure:"ENABLE_BLACKLIST"`
	// MaxSessionsPerPrincipal caps concurrent sessions per principal; the
	// oldest session is evicted when the cap would be exceeded.
	MaxSessionsPerPrincipal int `mapstructure:"MAX_SESSIONS_PER_PRINCIPAL"`
	// BlacklistFailPolicy is "closed" or "open"; applied when a shared-tier
	// read fails or times out. This must be an explicit operator decision.
	BlacklistFailPolicy string `mapstructure:"BLACKLIST_FAIL_POLICY"`
	// BlacklistTimeout bounds each shared-tier read (e.g. "2s").
	BlacklistTimeout string `mapstructure:"BLACKLIST_TIMEOUT"`
	// ValidationCacheTTL is the freshness window for cached validation
	// results; it bounds revocation staleness on a single instance.
	ValidationCacheTTL string `mapstructure:"VALIDATION_CACHE_TTL"`
	// CleanupInterval is how often the janitor sweeps local stores.
	CleanupInterval string `mapstructure:"CLEANUP_INTERVAL"`
	// RefreshRefetchPrincipal, when true and a directory is configured, makes
	// Refresh re-fetch the principal record instead of carrying the presented
	// token's roles/permissions forward.
	RefreshRefetchPrincipal bool `mapstructure:"REFRESH_REFETCH_PRINCIPAL"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317); empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// AuditKafkaBrokers is a comma-separated list of Kafka broker addresses;
	// when set, security events are also produced to Kafka.
	AuditKafkaBrokers string `mapstructure:"AUDIT_KAFKA_BROKERS"`
	// AuditKafkaTopic is the Kafka topic for security events.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// AuditKafkaGroupID is the consumer group used by the audit worker.
	AuditKafkaGroupID string `mapstructure:"AUDIT_KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "ai-core-platform")
	v.SetDefault("JWT_AUDIENCE", "api")
	v.SetDefault("JWT_ALGORITHM", "HS256")
	v.SetDefault("JWT_ACCESS_TTL", "1h")
	v.SetDefault("JWT_REFRESH_TTL", "720h") // 30d
	v.SetDefault("JWT_CLOCK_SKEW", "0s")
	v.SetDefault("ENABLE_BLACKLIST", true)
	v.SetDefault("MAX_SESSIONS_PER_PRINCIPAL", 10)
	v.SetDefault("BLACKLIST_FAIL_POLICY", string(FailClosed))
	v.SetDefault("BLACKLIST_TIMEOUT", "2s")
	v.SetDefault("VALIDATION_CACHE_TTL", "1m")
	v.SetDefault("CLEANUP_INTERVAL", "5m")
	v.SetDefault("REFRESH_REFETCH_PRINCIPAL", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("AUDIT_KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "security-events")
	v.SetDefault("AUDIT_KAFKA_GROUP_ID", "security-audit-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("config: JWT_SECRET must be at least 32 bytes")
	}
	switch cfg.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, errors.New("config: JWT_ALGORITHM must be HS256, HS384, or HS512")
	}
	switch FailPolicy(cfg.BlacklistFailPolicy) {
	case FailClosed, FailOpen:
	default:
		return nil, errors.New("config: BLACKLIST_FAIL_POLICY must be closed or open")
	}
	if cfg.MaxSessionsPerPrincipal <= 0 {
		return nil, errors.New("config: MAX_SESSIONS_PER_PRINCIPAL must be positive")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// ClockSkew parses JWTClockSkew as a time.Duration. Returns 0 (no leeway) if unset or invalid.
func (c *Config) ClockSkew() time.Duration {
	d, err := time.ParseDuration(c.JWTClockSkew)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// SharedTimeout parses BlacklistTimeout. Returns 2s if unset or invalid.
func (c *Config) SharedTimeout() time.Duration {
	d, err := time.ParseDuration(c.BlacklistTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// CacheTTL parses ValidationCacheTTL. Returns 1m if unset or invalid.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.ValidationCacheTTL)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// SweepInterval parses CleanupInterval. Returns 5m if unset or invalid.
func (c *Config) SweepInterval() time.Duration {
	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// FailPolicyValue returns the parsed fail policy; FailClosed when unset.
func (c *Config) FailPolicyValue() FailPolicy {
	if FailPolicy(c.BlacklistFailPolicy) == FailOpen {
		return FailOpen
	}
	return FailClosed
}

// AuditKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka audit sink is enabled (non-empty list) and to create the producer.
func (c *Config) AuditKafkaBrokersList() []string {
	if c == nil || c.AuditKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AuditKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
