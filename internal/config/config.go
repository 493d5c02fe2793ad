// Пакет config — загрузка и валидация конфигурации filedrop
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранилища метаданных.
const (
	// BackendJSON — единый files.json на диске (по умолчанию)
	BackendJSON = "json"
	// BackendSession — отдельный in-memory набор на каждую сессию
	BackendSession = "session"
	// BackendPostgres — таблица в PostgreSQL
	BackendPostgres = "postgres"
)

// Config содержит все параметры конфигурации filedrop.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Бэкенд хранилища метаданных (json, session, postgres)
	StoreBackend string
	// Путь к files.json (бэкенд json)
	DataFile string
	// Путь к каталогу блобов загруженных файлов
	UploadDir string
	// Путь к каталогу картинок-аватаров
	AvatarDir string
	// Требовать ли пароль удаления при загрузке
	RequireDeletePassword bool
	// Максимальный размер загружаемого файла в байтах (0 — без лимита)
	MaxFileSize int64
	// DSN PostgreSQL (бэкенд postgres)
	DatabaseURL string
	// TTL неактивной сессии (бэкенд session)
	SessionTTL time.Duration
	// Максимум одновременных сессий (бэкенд session)
	SessionMax int
	// Путь к TLS сертификату (опционально)
	TLSCert string
	// Путь к TLS приватному ключу (опционально)
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// FD_PORT — порт HTTP-сервера (по умолчанию 3000)
	port, err := getEnvInt("FD_PORT", 3000)
	if err != nil {
		return nil, fmt.Errorf("FD_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("FD_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// FD_STORE_BACKEND — бэкенд хранилища метаданных (по умолчанию json)
	cfg.StoreBackend = getEnvDefault("FD_STORE_BACKEND", BackendJSON)
	validBackends := map[string]bool{BackendJSON: true, BackendSession: true, BackendPostgres: true}
	if !validBackends[cfg.StoreBackend] {
		return nil, fmt.Errorf("FD_STORE_BACKEND: недопустимое значение %q, допустимые: json, session, postgres",
			cfg.StoreBackend)
	}

	// FD_DATA_FILE — путь к файлу метаданных (по умолчанию files.json)
	cfg.DataFile = getEnvDefault("FD_DATA_FILE", "files.json")

	// FD_UPLOAD_DIR — каталог блобов (по умолчанию public/uploads)
	cfg.UploadDir = getEnvDefault("FD_UPLOAD_DIR", "public/uploads")

	// FD_AVATAR_DIR — каталог аватаров (по умолчанию public/profile)
	cfg.AvatarDir = getEnvDefault("FD_AVATAR_DIR", "public/profile")

	// FD_REQUIRE_DELETE_PASSWORD — требовать пароль удаления (по умолчанию true)
	cfg.RequireDeletePassword, err = getEnvBool("FD_REQUIRE_DELETE_PASSWORD", true)
	if err != nil {
		return nil, fmt.Errorf("FD_REQUIRE_DELETE_PASSWORD: %w", err)
	}

	// FD_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 100 MB)
	maxFileSize, err := getEnvInt64("FD_MAX_FILE_SIZE", 104857600)
	if err != nil {
		return nil, fmt.Errorf("FD_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize < 0 {
		return nil, fmt.Errorf("FD_MAX_FILE_SIZE: значение не может быть отрицательным")
	}
	cfg.MaxFileSize = maxFileSize

	// FD_DATABASE_URL — обязательный для бэкенда postgres
	cfg.DatabaseURL = getEnvDefault("FD_DATABASE_URL", "")
	if cfg.StoreBackend == BackendPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("FD_DATABASE_URL: обязателен при FD_STORE_BACKEND=postgres")
	}

	// FD_SESSION_TTL — TTL неактивной сессии (по умолчанию 1h)
	cfg.SessionTTL, err = getEnvDuration("FD_SESSION_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FD_SESSION_TTL: %w", err)
	}

	// FD_SESSION_MAX — максимум одновременных сессий (по умолчанию 1024)
	cfg.SessionMax, err = getEnvInt("FD_SESSION_MAX", 1024)
	if err != nil {
		return nil, fmt.Errorf("FD_SESSION_MAX: %w", err)
	}
	if cfg.SessionMax <= 0 {
		return nil, fmt.Errorf("FD_SESSION_MAX: значение должно быть положительным")
	}

	// FD_TLS_CERT / FD_TLS_KEY — опциональны, но только парой
	cfg.TLSCert = getEnvDefault("FD_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("FD_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("FD_TLS_CERT и FD_TLS_KEY должны задаваться вместе")
	}

	// FD_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FD_LOG_LEVEL: %w", err)
	}

	// FD_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FD_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// FD_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FD_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_SHUTDOWN_TIMEOUT: %w", err)
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

// --- Вспомогательные функции ---

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

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h)", val)
	}
	return d, nil
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
