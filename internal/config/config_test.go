package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeEnv(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	return path
}

func TestLoadFromDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "REDIS_ADDRESS", "LOG_LEVEL", "LOCK_TTL_SECONDS", "ALERT_COUNT_CACHE_SECONDS"} {
		t.Setenv(key, "")
	}
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("expected a missing file to be ignored, got %v", err)
	}
	if cfg.Port != 8080 || cfg.LogLevel != "info" || cfg.LockTTL != 30*time.Second || cfg.AlertCountCache != 15*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.DatabaseURL != "" || cfg.RedisAddress != "" {
		t.Fatalf("expected no backing services by default, got %+v", cfg)
	}
}

func TestLoadFromFileAndEnvironment(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("LOCK_TTL_SECONDS", "")
	t.Setenv("ALERT_COUNT_CACHE_SECONDS", "")
	t.Setenv("LOG_LEVEL", "DEBUG")

	path := writeEnv(t, "PORT=9090\nDATABASE_URL=postgres://ledger@localhost/ledger\nREDIS_ADDRESS=localhost:6379\nLOG_LEVEL=warn\nLOCK_TTL_SECONDS=5\n")
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.DatabaseURL != "postgres://ledger@localhost/ledger" || cfg.RedisAddress != "localhost:6379" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected process environment to win, got %q", cfg.LogLevel)
	}
	if cfg.LockTTL != 5*time.Second {
		t.Fatalf("expected 5s lock ttl, got %s", cfg.LockTTL)
	}
}

func TestLoadFromRejectsBadNumbers(t *testing.T) {
	t.Setenv("LOCK_TTL_SECONDS", "")
	t.Setenv("PORT", "eighty")
	if _, err := LoadFrom(writeEnv(t, "")); err == nil {
		t.Fatalf("expected invalid PORT to fail")
	}

	t.Setenv("PORT", "")
	t.Setenv("LOCK_TTL_SECONDS", "-1")
	if _, err := LoadFrom(writeEnv(t, "")); err == nil {
		t.Fatalf("expected invalid LOCK_TTL_SECONDS to fail")
	}
}

func TestLoadFromDatabaseTuning(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "")
	t.Setenv("DB_PING_ATTEMPTS", "")
	cfg, err := LoadFrom(writeEnv(t, "DB_MAX_CONNS=8\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBMaxConns != 8 || cfg.DBPingAttempts != 5 {
		t.Fatalf("unexpected database tuning %+v", cfg)
	}

	t.Setenv("DB_PING_ATTEMPTS", "0")
	if _, err := LoadFrom(writeEnv(t, "")); err == nil {
		t.Fatalf("expected zero ping attempts to be refused")
	}
}
