package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	DatabaseURL string
	DBMaxConns  int
	// DBPingAttempts lets the server wait for a database that starts
	// alongside it.
	DBPingAttempts int

	// RedisAddress enables distributed document locks and the alert count
	// cache. Empty keeps both in-process.
	RedisAddress    string
	RedisPassword   string
	LogLevel        string
	LockTTL         time.Duration
	AlertCountCache time.Duration
}

func Load() (Config, error) {
	return LoadFrom(filepath.Join(".", ".env"))
}

// LoadFrom reads envPath when it exists; process environment wins over the
// file for every key.
func LoadFrom(envPath string) (Config, error) {
	values := map[string]string{}
	fileValues, err := godotenv.Read(envPath)
	switch {
	case err == nil:
		values = fileValues
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", envPath, err)
	}
	lookup := func(key string) string {
		return firstNonEmpty(os.Getenv(key), values[key])
	}

	cfg := Config{
		Port:            8080,
		DatabaseURL:     lookup("DATABASE_URL"),
		RedisAddress:    lookup("REDIS_ADDRESS"),
		RedisPassword:   lookup("REDIS_PASSWORD"),
		DBPingAttempts:  5,
		LogLevel:        "info",
		LockTTL:         30 * time.Second,
		AlertCountCache: 15 * time.Second,
	}

	if portRaw := lookup("PORT"); portRaw != "" {
		port, err := strconv.Atoi(portRaw)
		if err != nil || port <= 0 {
			return Config{}, fmt.Errorf("invalid PORT: %q", portRaw)
		}
		cfg.Port = port
	}
	if cfg.DBMaxConns, err = positiveInt(lookup("DB_MAX_CONNS"), "DB_MAX_CONNS", 0); err != nil {
		return Config{}, err
	}
	if cfg.DBPingAttempts, err = positiveInt(lookup("DB_PING_ATTEMPTS"), "DB_PING_ATTEMPTS", cfg.DBPingAttempts); err != nil {
		return Config{}, err
	}
	if level := lookup("LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if cfg.LockTTL, err = seconds(lookup("LOCK_TTL_SECONDS"), "LOCK_TTL_SECONDS", cfg.LockTTL); err != nil {
		return Config{}, err
	}
	if cfg.AlertCountCache, err = seconds(lookup("ALERT_COUNT_CACHE_SECONDS"), "ALERT_COUNT_CACHE_SECONDS", cfg.AlertCountCache); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func seconds(raw, key string, fallback time.Duration) (time.Duration, error) {
	n, err := positiveInt(raw, key, int(fallback/time.Second))
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func positiveInt(raw, key string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func firstNonEmpty(candidates ...string) string {
	for _, candidate := range candidates {
		if value := strings.TrimSpace(candidate); value != "" {
			return value
		}
	}
	return ""
}
