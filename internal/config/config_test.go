package config

import (
	"strings"
	"testing"
	"time"

	"shop-ledger/internal/core"
)

var configKeys = []string{
	"STORE_DRIVER", "DATABASE_URL", "MIGRATE_ON_START", "SERVER_PORT", "ALLOWED_ORIGINS", "JWT_SECRET",
	"OPERATION_TIMEOUT", "LEDGER_DERIVATION", "AUDIT_SINK",
	"LOG_LEVEL", "LOG_FORMAT", "LOG_TIME_FORMAT", "LOG_OUTPUT",
}

// clearEnv blanks every key so getEnv falls back to defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/shop")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreDriver != DriverPostgres {
		t.Errorf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q", cfg.ServerPort)
	}
	if cfg.OperationTimeout != 10*time.Second {
		t.Errorf("OperationTimeout = %v", cfg.OperationTimeout)
	}
	if cfg.LedgerDerivation != core.DerivationAtomic {
		t.Errorf("LedgerDerivation = %q", cfg.LedgerDerivation)
	}
	if cfg.AuditSink != AuditLog {
		t.Errorf("AuditSink = %q", cfg.AuditSink)
	}
	if cfg.MigrateOnStart {
		t.Error("MigrateOnStart should default to false")
	}
	if got := cfg.GetLoggerConfig(); got.Level != "info" || got.Format != "console" || got.Output != "stdout" {
		t.Errorf("logger config = %+v", got)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("OPERATION_TIMEOUT", "250ms")
	t.Setenv("LEDGER_DERIVATION", "best_effort")
	t.Setenv("AUDIT_SINK", "none")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("MIGRATE_ON_START", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Errorf("StoreDriver = %q", cfg.StoreDriver)
	}
	if cfg.OperationTimeout != 250*time.Millisecond {
		t.Errorf("OperationTimeout = %v", cfg.OperationTimeout)
	}
	if cfg.LedgerDerivation != core.DerivationBestEffort {
		t.Errorf("LedgerDerivation = %q", cfg.LedgerDerivation)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %q", cfg.AllowedOrigins)
	}
	if !cfg.MigrateOnStart {
		t.Error("MigrateOnStart should be true")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"postgres without url", map[string]string{}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "sqlite"}, "STORE_DRIVER"},
		{"bad timeout", map[string]string{"STORE_DRIVER": "memory", "OPERATION_TIMEOUT": "soon"}, "OPERATION_TIMEOUT"},
		{"negative timeout", map[string]string{"STORE_DRIVER": "memory", "OPERATION_TIMEOUT": "-1s"}, "OPERATION_TIMEOUT"},
		{"bad derivation", map[string]string{"STORE_DRIVER": "memory", "LEDGER_DERIVATION": "eventually"}, "LEDGER_DERIVATION"},
		{"postgres audit on memory", map[string]string{"STORE_DRIVER": "memory", "AUDIT_SINK": "postgres"}, "AUDIT_SINK"},
		{"unknown audit sink", map[string]string{"STORE_DRIVER": "memory", "AUDIT_SINK": "kafka"}, "AUDIT_SINK"},
		{"bad migrate flag", map[string]string{"STORE_DRIVER": "memory", "MIGRATE_ON_START": "maybe"}, "MIGRATE_ON_START"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %s", err, tc.wantErr)
			}
		})
	}
}

func TestRequireJWTSecret(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireJWTSecret(); err == nil {
		t.Fatal("expected error for empty secret")
	}
	cfg.JWTSecret = "s3cret"
	if err := cfg.RequireJWTSecret(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
