// Пакет config — загрузка и валидация конфигурации filegate
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

// Режимы выдачи файлов пользователю.
const (
	// DownloadModePresigned — редирект на временную подписанную ссылку S3.
	DownloadModePresigned = "presigned"
	// DownloadModeProxy — проксирование содержимого через сервис.
	DownloadModeProxy = "proxy"
)

// Config содержит все параметры конфигурации filegate.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Токены и пароли ---

	// Секрет подписи JWT (HS256)
	JWTSecret string
	// Время жизни токена
	JWTTTL time.Duration
	// Стоимость bcrypt (4-31)
	BcryptCost int

	// --- Объектное хранилище (S3) ---

	// Endpoint S3-совместимого хранилища (пустой — AWS по умолчанию)
	S3Endpoint string
	// Регион S3
	S3Region string
	// Имя bucket
	S3Bucket string
	// Ключ доступа (пустой — credentials из окружения/IAM)
	S3AccessKey string
	// Секретный ключ
	S3SecretKey string
	// Path-style адресация (нужна для MinIO)
	S3ForcePathStyle bool
	// Время жизни подписанной ссылки на скачивание
	SignedURLTTL time.Duration

	// --- Выдача файлов ---

	// Режим выдачи: presigned или proxy
	DownloadMode string
	// Максимальный размер загружаемого архива, МБ
	MaxUploadMB int

	// --- Ограничение частоты запросов ---

	// Закрываться при недоступности хранилища счётчиков
	// (по умолчанию false — запросы пропускаются)
	RateLimitFailClosed bool

	// --- Наследуемый обработчик альбомов ---

	// Включение обработчика POST /album/download
	LegacyEnabled bool
	// Путь к JSON-файлу с описаниями альбомов
	LegacyAlbumsPath string
	// Каталог с файлами альбомов
	LegacyFilesDir string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FG_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("FG_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// FG_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FG_LOG_LEVEL: %w", err)
	}

	// FG_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// FG_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FG_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	// FG_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("FG_DB_HOST")
	if err != nil {
		return nil, err
	}

	// FG_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("FG_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FG_DB_PORT: %w", err)
	}

	// FG_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("FG_DB_NAME")
	if err != nil {
		return nil, err
	}

	// FG_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("FG_DB_USER")
	if err != nil {
		return nil, err
	}

	// FG_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("FG_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// FG_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("FG_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("FG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Токены и пароли ---

	// FG_JWT_SECRET — обязательный, минимум 32 символа
	cfg.JWTSecret, err = getEnvRequired("FG_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("FG_JWT_SECRET: длина %d меньше минимальной 32", len(cfg.JWTSecret))
	}

	// FG_JWT_TTL — время жизни токена (по умолчанию 24h)
	cfg.JWTTTL, err = getEnvDuration("FG_JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FG_JWT_TTL: %w", err)
	}

	// FG_BCRYPT_COST — стоимость bcrypt (по умолчанию 12)
	cfg.BcryptCost, err = getEnvInt("FG_BCRYPT_COST", 12)
	if err != nil {
		return nil, fmt.Errorf("FG_BCRYPT_COST: %w", err)
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, fmt.Errorf("FG_BCRYPT_COST: значение %d вне допустимого диапазона 4-31", cfg.BcryptCost)
	}

	// --- Объектное хранилище ---

	// FG_S3_ENDPOINT — endpoint S3 (опционально, для MinIO и т.п.)
	cfg.S3Endpoint = strings.TrimRight(getEnvDefault("FG_S3_ENDPOINT", ""), "/")

	// FG_S3_REGION — регион (по умолчанию us-east-1)
	cfg.S3Region = getEnvDefault("FG_S3_REGION", "us-east-1")

	// FG_S3_BUCKET — обязательный
	cfg.S3Bucket, err = getEnvRequired("FG_S3_BUCKET")
	if err != nil {
		return nil, err
	}

	// FG_S3_ACCESS_KEY / FG_S3_SECRET_KEY — статические credentials (опционально)
	cfg.S3AccessKey = getEnvDefault("FG_S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvDefault("FG_S3_SECRET_KEY", "")
	if (cfg.S3AccessKey == "") != (cfg.S3SecretKey == "") {
		return nil, fmt.Errorf("FG_S3_ACCESS_KEY и FG_S3_SECRET_KEY задаются только вместе")
	}

	// FG_S3_FORCE_PATH_STYLE — path-style адресация (по умолчанию false)
	cfg.S3ForcePathStyle, err = getEnvBool("FG_S3_FORCE_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("FG_S3_FORCE_PATH_STYLE: %w", err)
	}

	// FG_SIGNED_URL_TTL — время жизни подписанной ссылки (по умолчанию 1h)
	cfg.SignedURLTTL, err = getEnvDuration("FG_SIGNED_URL_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FG_SIGNED_URL_TTL: %w", err)
	}

	// --- Выдача файлов ---

	// FG_DOWNLOAD_MODE — режим выдачи (по умолчанию presigned)
	cfg.DownloadMode = getEnvDefault("FG_DOWNLOAD_MODE", DownloadModePresigned)
	if cfg.DownloadMode != DownloadModePresigned && cfg.DownloadMode != DownloadModeProxy {
		return nil, fmt.Errorf("FG_DOWNLOAD_MODE: недопустимое значение %q, допустимые: presigned, proxy", cfg.DownloadMode)
	}

	// FG_MAX_UPLOAD_MB — максимальный размер архива (по умолчанию 100)
	cfg.MaxUploadMB, err = getEnvInt("FG_MAX_UPLOAD_MB", 100)
	if err != nil {
		return nil, fmt.Errorf("FG_MAX_UPLOAD_MB: %w", err)
	}
	if cfg.MaxUploadMB < 1 || cfg.MaxUploadMB > 10240 {
		return nil, fmt.Errorf("FG_MAX_UPLOAD_MB: значение %d вне допустимого диапазона 1-10240", cfg.MaxUploadMB)
	}

	// --- Ограничение частоты запросов ---

	// FG_RATE_LIMIT_FAIL_CLOSED — поведение при отказе хранилища счётчиков
	cfg.RateLimitFailClosed, err = getEnvBool("FG_RATE_LIMIT_FAIL_CLOSED", false)
	if err != nil {
		return nil, fmt.Errorf("FG_RATE_LIMIT_FAIL_CLOSED: %w", err)
	}

	// --- Наследуемый обработчик альбомов ---

	// FG_LEGACY_ENABLED — включение обработчика альбомов (по умолчанию false)
	cfg.LegacyEnabled, err = getEnvBool("FG_LEGACY_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("FG_LEGACY_ENABLED: %w", err)
	}

	if cfg.LegacyEnabled {
		// FG_LEGACY_ALBUMS_PATH — обязательный при включённом обработчике
		cfg.LegacyAlbumsPath, err = getEnvRequired("FG_LEGACY_ALBUMS_PATH")
		if err != nil {
			return nil, err
		}
		// FG_LEGACY_FILES_DIR — обязательный при включённом обработчике
		cfg.LegacyFilesDir, err = getEnvRequired("FG_LEGACY_FILES_DIR")
		if err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// MaxUploadBytes возвращает лимит размера загрузки в байтах.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
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
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
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
