// Пакет config — загрузка и валидация конфигурации Vocab Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды кэша.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// WarmupScope — пара язык/уровни для прогрева кэша при старте.
type WarmupScope struct {
	// Language — код языка (ISO 639-1)
	Language string
	// Levels — уровни CEFR
	Levels []model.CEFRLevel
}

// Config содержит все параметры конфигурации Vocab Module.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (диапазон 8050-8059)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера (по умолчанию 30s)
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера (по умолчанию 60s)
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера (по умолчанию 120s)
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown (по умолчанию 5s)
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Пользователь PostgreSQL
	DBUser string
	// Пароль PostgreSQL
	DBPassword string
	// Имя базы данных
	DBName string
	// Режим SSL (disable, require, verify-ca, verify-full)
	DBSSLMode string
	// Таймаут запроса к хранилищу
	StoreTimeout time.Duration

	// --- Кэш ---

	// Бэкенд кэша (memory, redis)
	CacheBackend string
	// TTL записей кэша (по умолчанию 15m)
	CacheTTL time.Duration
	// Таймаут операции кэш-бэкенда (по умолчанию 200ms)
	CacheTimeout time.Duration
	// Максимум записей in-memory кэша
	CacheMaxEntries int
	// Адрес Redis (host:port)
	RedisAddr string
	// Пароль Redis
	RedisPassword string
	// Номер базы Redis
	RedisDB int

	// --- Lookup ---

	// Таймаут ожидания чужого in-flight резолвера
	FlightWaitTimeout time.Duration
	// Количество ретраев неполной инвалидации
	InvalidationRetries int

	// --- Оценка сегментов ---

	// Порог доли неизвестных слов по умолчанию
	BlockThreshold float64
	// Потолок CEFR по умолчанию
	LevelCeiling model.CEFRLevel
	// Служебные слова, исключаемые из значимых токенов (через запятую)
	Stopwords []string

	// --- Прогрев кэша ---

	// Включён ли прогрев при старте
	WarmupEnabled bool
	// Scope'ы прогрева: "de:A1,A2;en:A1"
	WarmupScopes []WarmupScope

	// --- JWT / Keycloak ---

	// URL JWKS endpoint Keycloak; пустая строка отключает аутентификацию
	JWKSURL string
	// Ожидаемый issuer JWT (может быть пустым)
	JWTIssuer string
	// Путь к CA-сертификату для TLS к Keycloak
	KeycloakCACert string
	// Группы IdP, маппящиеся в роль admin
	AdminGroups []string
	// Группы IdP, маппящиеся в роль learner
	LearnerGroups []string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Dephealth ---

	// Имя группы в метриках топологии
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Лейбл isentry=yes для всех зависимостей
	DephealthIsEntry bool
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// VM_PORT — порт HTTP-сервера (по умолчанию 8050)
	cfg.Port, err = getEnvInt("VM_PORT", 8050)
	if err != nil {
		return nil, fmt.Errorf("VM_PORT: %w", err)
	}

	// VM_LOG_LEVEL — уровень логирования (по умолчанию info)
	logLevel := getEnvDefault("VM_LOG_LEVEL", "info")
	cfg.LogLevel, err = parseLogLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("VM_LOG_LEVEL: %w", err)
	}

	// VM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("VM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("VM_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("VM_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("VM_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("VM_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// VM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("VM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("VM_DB_HOST")
	if err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("VM_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("VM_DB_PORT: %w", err)
	}
	cfg.DBUser, err = getEnvRequired("VM_DB_USER")
	if err != nil {
		return nil, err
	}
	cfg.DBPassword, err = getEnvRequired("VM_DB_PASSWORD")
	if err != nil {
		return nil, err
	}
	cfg.DBName, err = getEnvRequired("VM_DB_NAME")
	if err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("VM_DB_SSLMODE", "disable")

	// VM_STORE_TIMEOUT — таймаут запроса к хранилищу (по умолчанию 5s)
	cfg.StoreTimeout, err = getEnvDuration("VM_STORE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_STORE_TIMEOUT: %w", err)
	}

	// --- Кэш ---

	// VM_CACHE_BACKEND — бэкенд кэша (по умолчанию memory)
	cfg.CacheBackend = getEnvDefault("VM_CACHE_BACKEND", CacheBackendMemory)
	if cfg.CacheBackend != CacheBackendMemory && cfg.CacheBackend != CacheBackendRedis {
		return nil, fmt.Errorf("VM_CACHE_BACKEND: недопустимый бэкенд %q, допустимые: memory, redis", cfg.CacheBackend)
	}

	// VM_CACHE_TTL — TTL записей кэша (по умолчанию 15m)
	cfg.CacheTTL, err = getEnvDuration("VM_CACHE_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_CACHE_TTL: %w", err)
	}

	// VM_CACHE_TIMEOUT — таймаут операции кэша (по умолчанию 200ms).
	// Превышение трактуется как недоступность кэша, не как ошибка запроса.
	cfg.CacheTimeout, err = getEnvDuration("VM_CACHE_TIMEOUT", 200*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("VM_CACHE_TIMEOUT: %w", err)
	}

	// VM_CACHE_MAX_ENTRIES — максимум записей in-memory кэша (по умолчанию 100000)
	cfg.CacheMaxEntries, err = getEnvInt("VM_CACHE_MAX_ENTRIES", 100000)
	if err != nil {
		return nil, fmt.Errorf("VM_CACHE_MAX_ENTRIES: %w", err)
	}
	if cfg.CacheMaxEntries < 1 {
		return nil, fmt.Errorf("VM_CACHE_MAX_ENTRIES: значение должно быть >= 1")
	}

	// Redis обязателен только при VM_CACHE_BACKEND=redis
	if cfg.CacheBackend == CacheBackendRedis {
		cfg.RedisAddr, err = getEnvRequired("VM_REDIS_ADDR")
		if err != nil {
			return nil, err
		}
	} else {
		cfg.RedisAddr = getEnvDefault("VM_REDIS_ADDR", "")
	}
	cfg.RedisPassword = getEnvDefault("VM_REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvInt("VM_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("VM_REDIS_DB: %w", err)
	}

	// --- Lookup ---

	// VM_FLIGHT_WAIT_TIMEOUT — ожидание чужого резолвера (по умолчанию 3s)
	cfg.FlightWaitTimeout, err = getEnvDuration("VM_FLIGHT_WAIT_TIMEOUT", 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_FLIGHT_WAIT_TIMEOUT: %w", err)
	}

	// VM_INVALIDATION_RETRIES — ретраи неполной инвалидации (по умолчанию 2)
	cfg.InvalidationRetries, err = getEnvInt("VM_INVALIDATION_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("VM_INVALIDATION_RETRIES: %w", err)
	}
	if cfg.InvalidationRetries < 0 {
		return nil, fmt.Errorf("VM_INVALIDATION_RETRIES: значение должно быть >= 0")
	}

	// --- Оценка сегментов ---

	// VM_BLOCK_THRESHOLD — порог доли неизвестных слов (по умолчанию 0.2)
	cfg.BlockThreshold, err = getEnvFloat("VM_BLOCK_THRESHOLD", 0.2)
	if err != nil {
		return nil, fmt.Errorf("VM_BLOCK_THRESHOLD: %w", err)
	}
	if cfg.BlockThreshold < 0 || cfg.BlockThreshold > 1 {
		return nil, fmt.Errorf("VM_BLOCK_THRESHOLD: значение %v вне диапазона [0, 1]", cfg.BlockThreshold)
	}

	// VM_LEVEL_CEILING — потолок CEFR по умолчанию (по умолчанию C2 — не ограничивает)
	ceiling := getEnvDefault("VM_LEVEL_CEILING", "C2")
	cfg.LevelCeiling, err = model.ParseCEFRLevel(ceiling)
	if err != nil {
		return nil, fmt.Errorf("VM_LEVEL_CEILING: %w", err)
	}

	// VM_STOPWORDS — служебные слова через запятую
	cfg.Stopwords = splitNonEmpty(getEnvDefault("VM_STOPWORDS", ""), ",")

	// --- Прогрев кэша ---

	cfg.WarmupEnabled, err = getEnvBool("VM_WARMUP_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("VM_WARMUP_ENABLED: %w", err)
	}

	// VM_WARMUP_SCOPES — формат "de:A1,A2;en:A1"
	cfg.WarmupScopes, err = parseWarmupScopes(getEnvDefault("VM_WARMUP_SCOPES", ""))
	if err != nil {
		return nil, fmt.Errorf("VM_WARMUP_SCOPES: %w", err)
	}
	if cfg.WarmupEnabled && len(cfg.WarmupScopes) == 0 {
		return nil, fmt.Errorf("VM_WARMUP_SCOPES: обязательна при VM_WARMUP_ENABLED=true")
	}

	// --- JWT / Keycloak ---

	// VM_JWKS_URL — пустая строка отключает аутентификацию (dev-режим)
	cfg.JWKSURL = getEnvDefault("VM_JWKS_URL", "")
	cfg.JWTIssuer = getEnvDefault("VM_JWT_ISSUER", "")
	cfg.KeycloakCACert = getEnvDefault("VM_KEYCLOAK_CA_CERT", "")
	cfg.AdminGroups = splitNonEmpty(getEnvDefault("VM_ADMIN_GROUPS", "platform-admins"), ",")
	cfg.LearnerGroups = splitNonEmpty(getEnvDefault("VM_LEARNER_GROUPS", "learners"), ",")

	cfg.JWKSClientTimeout, err = getEnvDuration("VM_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("VM_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("VM_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("VM_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_JWT_LEEWAY: %w", err)
	}

	// --- Dephealth ---

	cfg.DephealthGroup = getEnvDefault("VM_DEPHEALTH_GROUP", "lingvostream")
	cfg.DephealthCheckInterval, err = getEnvDuration("VM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("VM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseWarmupScopes разбирает строку формата "de:A1,A2;en:A1".
func parseWarmupScopes(raw string) ([]WarmupScope, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var scopes []WarmupScope
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lang, levelsRaw, found := strings.Cut(part, ":")
		if !found {
			return nil, fmt.Errorf("некорректный scope %q, ожидается формат язык:уровень[,уровень]", part)
		}
		lang = strings.TrimSpace(lang)
		if err := model.ValidateLanguage(lang); err != nil {
			return nil, fmt.Errorf("scope %q: %w", part, err)
		}

		var levels []model.CEFRLevel
		for _, l := range splitNonEmpty(levelsRaw, ",") {
			level, err := model.ParseCEFRLevel(l)
			if err != nil {
				return nil, fmt.Errorf("scope %q: %w", part, err)
			}
			levels = append(levels, level)
		}
		if len(levels) == 0 {
			return nil, fmt.Errorf("scope %q: не указаны уровни", part)
		}

		scopes = append(scopes, WarmupScope{Language: lang, Levels: levels})
	}
	return scopes, nil
}

// splitNonEmpty разбивает строку по разделителю, отбрасывая пустые элементы
// и обрезая пробелы.
func splitNonEmpty(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvFloat возвращает вещественное значение переменной окружения или значение по умолчанию.
func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное вещественное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
