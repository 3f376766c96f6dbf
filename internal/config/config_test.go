package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// setRequiredEnv задаёт минимальный набор обязательных переменных.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("VM_DB_HOST", "localhost")
	t.Setenv("VM_DB_USER", "vocab")
	t.Setenv("VM_DB_PASSWORD", "secret")
	t.Setenv("VM_DB_NAME", "vocab")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if cfg.Port != 8050 {
		t.Errorf("Port = %d, ожидалось 8050", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидался info", cfg.LogLevel)
	}
	if cfg.CacheBackend != CacheBackendMemory {
		t.Errorf("CacheBackend = %q, ожидался memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %v, ожидалось 15m", cfg.CacheTTL)
	}
	if cfg.BlockThreshold != 0.2 {
		t.Errorf("BlockThreshold = %v, ожидалось 0.2", cfg.BlockThreshold)
	}
	if cfg.LevelCeiling != model.LevelC2 {
		t.Errorf("LevelCeiling = %v, ожидался C2", cfg.LevelCeiling)
	}
	if cfg.WarmupEnabled {
		t.Error("WarmupEnabled = true, ожидалось false")
	}
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("VM_DB_HOST", "")

	if _, err := Load(); err == nil {
		t.Error("ожидалась ошибка при незаданном VM_DB_HOST")
	}
}

func TestLoadRedisRequiresAddr(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VM_CACHE_BACKEND", "redis")

	if _, err := Load(); err == nil {
		t.Error("ожидалась ошибка: VM_REDIS_ADDR обязателен при backend=redis")
	}

	t.Setenv("VM_REDIS_ADDR", "localhost:6379")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q", cfg.RedisAddr)
	}
}

func TestLoadInvalidThreshold(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VM_BLOCK_THRESHOLD", "1.5")

	if _, err := Load(); err == nil {
		t.Error("ожидалась ошибка: порог вне диапазона [0, 1]")
	}
}

func TestLoadWarmupRequiresScopes(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("VM_WARMUP_ENABLED", "true")

	if _, err := Load(); err == nil {
		t.Error("ожидалась ошибка: VM_WARMUP_SCOPES обязательна при включённом прогреве")
	}
}

func TestParseWarmupScopes(t *testing.T) {
	scopes, err := parseWarmupScopes("de:A1,A2;en:B1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(scopes) != 2 {
		t.Fatalf("scope'ов %d, ожидалось 2", len(scopes))
	}
	if scopes[0].Language != "de" || len(scopes[0].Levels) != 2 {
		t.Errorf("scope 0: %+v", scopes[0])
	}
	if scopes[1].Language != "en" || scopes[1].Levels[0] != model.LevelB1 {
		t.Errorf("scope 1: %+v", scopes[1])
	}

	invalid := []string{"de", "de:", "DE:A1", "de:Z9"}
	for _, raw := range invalid {
		if _, err := parseWarmupScopes(raw); err == nil {
			t.Errorf("parseWarmupScopes(%q): ожидалась ошибка", raw)
		}
	}

	if scopes, err := parseWarmupScopes(""); err != nil || scopes != nil {
		t.Errorf("пустая строка: scopes=%v err=%v", scopes, err)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost: "db", DBPort: 5432, DBUser: "u", DBPassword: "p",
		DBName: "vocab", DBSSLMode: "disable",
	}
	want := "postgres://u:p@db:5432/vocab?sslmode=disable"
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN = %q, ожидалось %q", got, want)
	}
}
