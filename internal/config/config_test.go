package config

import (
	"os"
	"testing"
	"time"
)

const testSecret = "unit-test-signing-secret-0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.JWTIssuer != "ai-core-platform" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "ai-core-platform")
	}
	if cfg.JWTAudience != "api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "api")
	}
	if cfg.JWTAlgorithm != "HS256" {
		t.Errorf("JWTAlgorithm = %q, want HS256", cfg.JWTAlgorithm)
	}
	if got := cfg.AccessTTL(); got != time.Hour {
		t.Errorf("AccessTTL = %v, want 1h", got)
	}
	if got := cfg.RefreshTTL(); got != 720*time.Hour {
		t.Errorf("RefreshTTL = %v, want 720h", got)
	}
	if got := cfg.ClockSkew(); got != 0 {
		t.Errorf("ClockSkew = %v, want 0", got)
	}
	if !cfg.EnableBlacklist {
		t.Error("EnableBlacklist should default to true")
	}
	if cfg.MaxSessionsPerPrincipal != 10 {
		t.Errorf("MaxSessionsPerPrincipal = %d, want 10", cfg.MaxSessionsPerPrincipal)
	}
	if got := cfg.FailPolicyValue(); got != FailClosed {
		t.Errorf("FailPolicyValue = %q, want closed", got)
	}
	if got := cfg.SharedTimeout(); got != 2*time.Second {
		t.Errorf("SharedTimeout = %v, want 2s", got)
	}
	if got := cfg.CacheTTL(); got != time.Minute {
		t.Errorf("CacheTTL = %v, want 1m", got)
	}
	if got := cfg.SweepInterval(); got != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", got)
	}
	if cfg.RefreshRefetchPrincipal {
		t.Error("RefreshRefetchPrincipal should default to false")
	}
	if cfg.AuditKafkaTopic != "security-events" {
		t.Errorf("AuditKafkaTopic = %q, want security-events", cfg.AuditKafkaTopic)
	}
}

func TestLoad_ShortSecretFatal(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", "too-short")

	if _, err := Load(); err == nil {
		t.Fatal("Load with short secret: want error, got nil")
	}
}

func TestLoad_MissingSecretFatal(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load without secret: want error, got nil")
	}
}

func TestLoad_InvalidAlgorithm(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", testSecret)
	os.Setenv("JWT_ALGORITHM", "RS256")

	if _, err := Load(); err == nil {
		t.Fatal("Load with RS256: want error, got nil")
	}
}

func TestLoad_InvalidFailPolicy(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", testSecret)
	os.Setenv("BLACKLIST_FAIL_POLICY", "maybe")

	if _, err := Load(); err == nil {
		t.Fatal("Load with bad fail policy: want error, got nil")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", testSecret)
	os.Setenv("GRPC_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("JWT_ACCESS_TTL", "30m")
	os.Setenv("BLACKLIST_FAIL_POLICY", "open")
	os.Setenv("MAX_SESSIONS_PER_PRINCIPAL", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want :9090", cfg.GRPCAddr)
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want custom-issuer", cfg.JWTIssuer)
	}
	if got := cfg.AccessTTL(); got != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want 30m", got)
	}
	if got := cfg.FailPolicyValue(); got != FailOpen {
		t.Errorf("FailPolicyValue = %q, want open", got)
	}
	if cfg.MaxSessionsPerPrincipal != 3 {
		t.Errorf("MaxSessionsPerPrincipal = %d, want 3", cfg.MaxSessionsPerPrincipal)
	}
}

func TestAuditKafkaBrokersList(t *testing.T) {
	cfg := &Config{AuditKafkaBrokers: " broker1:9092 , broker2:9092,, "}
	got := cfg.AuditKafkaBrokersList()
	if len(got) != 2 || got[0] != "broker1:9092" || got[1] != "broker2:9092" {
		t.Errorf("AuditKafkaBrokersList = %v", got)
	}

	cfg = &Config{}
	if got := cfg.AuditKafkaBrokersList(); got != nil {
		t.Errorf("empty brokers: got %v, want nil", got)
	}
}
