// Пакет config — загрузка и валидация конфигурации PDF Tools
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Корневая директория данных (счётчики, отзывы, контакты)
	DataDir string
	// Директория загруженных исходников
	UploadDir string
	// Директория готовых артефактов
	OutputDir string
	// Директория записей индекса заданий
	IndexDir string
	// Максимальный размер одного файла в байтах
	MaxFileSize int64
	// Максимальное количество файлов в одной склейке
	MaxMergeFiles int
	// TTL артефактов сжатия и zip-архивов
	CompressTTL time.Duration
	// TTL артефактов склейки
	MergeTTL time.Duration
	// Интервал запуска очистки просроченных заданий
	SweepInterval time.Duration
	// Имя или путь бинарника Ghostscript
	GhostscriptBin string
	// Жёсткий таймаут одного запуска Ghostscript
	GhostscriptTimeout time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Минимальный интервал между письмами с одного IP
	EmailCooldown time.Duration

	// SMTP-параметры отправки писем. Пустой SMTPHost отключает email.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	// Адрес отправителя писем
	MailFrom string
	// Имя сервиса в письмах и подписях
	SiteName string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// PT_PORT — порт HTTP-сервера (по умолчанию 4000)
	cfg.Port, err = getEnvInt("PT_PORT", 4000)
	if err != nil {
		return nil, fmt.Errorf("PT_PORT: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PT_PORT: значение %d вне допустимого диапазона", cfg.Port)
	}

	// PT_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("PT_DATA_DIR")
	if err != nil {
		return nil, err
	}

	// Рабочие директории по умолчанию — внутри PT_DATA_DIR
	cfg.UploadDir = getEnvDefault("PT_UPLOAD_DIR", filepath.Join(cfg.DataDir, "uploads"))
	cfg.OutputDir = getEnvDefault("PT_OUTPUT_DIR", filepath.Join(cfg.DataDir, "outputs"))
	cfg.IndexDir = getEnvDefault("PT_INDEX_DIR", filepath.Join(cfg.DataDir, "index"))

	// PT_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 50 MB)
	cfg.MaxFileSize, err = getEnvInt64("PT_MAX_FILE_SIZE", 52428800)
	if err != nil {
		return nil, fmt.Errorf("PT_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("PT_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// PT_MAX_MERGE_FILES — лимит исходников в склейке (по умолчанию 50)
	cfg.MaxMergeFiles, err = getEnvInt("PT_MAX_MERGE_FILES", 50)
	if err != nil {
		return nil, fmt.Errorf("PT_MAX_MERGE_FILES: %w", err)
	}
	if cfg.MaxMergeFiles < 2 {
		return nil, fmt.Errorf("PT_MAX_MERGE_FILES: значение %d должно быть >= 2", cfg.MaxMergeFiles)
	}

	// PT_COMPRESS_TTL — TTL результатов сжатия и zip (по умолчанию 15m)
	cfg.CompressTTL, err = getEnvDuration("PT_COMPRESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PT_COMPRESS_TTL: %w", err)
	}

	// PT_MERGE_TTL — TTL результатов склейки (по умолчанию 1h)
	cfg.MergeTTL, err = getEnvDuration("PT_MERGE_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PT_MERGE_TTL: %w", err)
	}

	// PT_SWEEP_INTERVAL — интервал очистки просроченных заданий (по умолчанию 60s)
	cfg.SweepInterval, err = getEnvDuration("PT_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PT_SWEEP_INTERVAL: %w", err)
	}

	// PT_GS_BIN — бинарник Ghostscript (по умолчанию gs)
	cfg.GhostscriptBin = getEnvDefault("PT_GS_BIN", "gs")

	// PT_GS_TIMEOUT — жёсткий таймаут Ghostscript (по умолчанию 180s)
	cfg.GhostscriptTimeout, err = getEnvDuration("PT_GS_TIMEOUT", 180*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PT_GS_TIMEOUT: %w", err)
	}

	// PT_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PT_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PT_LOG_LEVEL: %w", err)
	}

	// PT_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PT_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PT_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// PT_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("PT_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PT_SHUTDOWN_TIMEOUT: %w", err)
	}

	// PT_EMAIL_COOLDOWN — интервал между письмами с одного IP (по умолчанию 30s)
	cfg.EmailCooldown, err = getEnvDuration("PT_EMAIL_COOLDOWN", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PT_EMAIL_COOLDOWN: %w", err)
	}

	// SMTP — опционально, пустой PT_SMTP_HOST отключает отправку писем
	cfg.SMTPHost = getEnvDefault("PT_SMTP_HOST", "")
	cfg.SMTPPort, err = getEnvInt("PT_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("PT_SMTP_PORT: %w", err)
	}
	cfg.SMTPUser = getEnvDefault("PT_SMTP_USER", "")
	cfg.SMTPPass = getEnvDefault("PT_SMTP_PASS", "")
	cfg.MailFrom = getEnvDefault("PT_MAIL_FROM", "noreply@localhost")
	cfg.SiteName = getEnvDefault("PT_SITE_NAME", "PDF Tools")

	return cfg, nil
}

// EmailEnabled сообщает, настроена ли отправка писем.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 15m, 1h)", val)
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
