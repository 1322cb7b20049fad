// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"shop-ledger/internal/core"
	"shop-ledger/internal/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	AuditLog      = "log"
	AuditPostgres = "postgres"
	AuditNone     = "none"
)

type Config struct {
	// Storage
	StoreDriver    string
	DatabaseURL    string
	MigrateOnStart bool

	// HTTP
	ServerPort     string
	AllowedOrigins []string
	JWTSecret      string

	// Domain
	OperationTimeout time.Duration
	LedgerDerivation core.LedgerDerivation
	AuditSink        string

	// Logging
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads the environment. Callers load .env beforehand with godotenv.
func Load() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("OPERATION_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid OPERATION_TIMEOUT: %w", err)
	}
	derivation, err := core.ParseLedgerDerivation(getEnv("LEDGER_DERIVATION", string(core.DerivationAtomic)))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_DERIVATION: %w", err)
	}
	migrateOnStart, err := strconv.ParseBool(getEnv("MIGRATE_ON_START", "false"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIGRATE_ON_START: %w", err)
	}

	config := &Config{
		StoreDriver:      strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		MigrateOnStart:   migrateOnStart,
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		OperationTimeout: timeout,
		LedgerDerivation: derivation,
		AuditSink:        strings.ToLower(getEnv("AUDIT_SINK", AuditLog)),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:    getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:        getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.StoreDriver)
	}
	switch c.AuditSink {
	case AuditLog, AuditNone:
	case AuditPostgres:
		if c.StoreDriver != DriverPostgres {
			return fmt.Errorf("AUDIT_SINK=postgres requires STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("AUDIT_SINK must be log, postgres or none, got %q", c.AuditSink)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must be positive")
	}
	return nil
}

// RequireJWTSecret is checked by the HTTP server only; the CLI does not verify tokens.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
