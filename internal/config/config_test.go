package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setEnvVars устанавливает переменные окружения для теста и возвращает
// функцию очистки. Всегда вызывать defer cleanup().
func setEnvVars(t *testing.T, vars map[string]string) func() {
	t.Helper()

	// Сохраняем оригинальные значения
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for k := range vars {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
	}

	// Устанавливаем новые
	for k, v := range vars {
		os.Setenv(k, v)
	}

	return func() {
		for k := range vars {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// clearAllPTEnvVars очищает все переменные окружения PT_* для чистого теста.
func clearAllPTEnvVars(t *testing.T) func() {
	t.Helper()
	keys := []string{
		"PT_PORT", "PT_DATA_DIR", "PT_UPLOAD_DIR", "PT_OUTPUT_DIR", "PT_INDEX_DIR",
		"PT_MAX_FILE_SIZE", "PT_MAX_MERGE_FILES",
		"PT_COMPRESS_TTL", "PT_MERGE_TTL", "PT_SWEEP_INTERVAL",
		"PT_GS_BIN", "PT_GS_TIMEOUT",
		"PT_LOG_LEVEL", "PT_LOG_FORMAT", "PT_SHUTDOWN_TIMEOUT",
		"PT_EMAIL_COOLDOWN",
		"PT_SMTP_HOST", "PT_SMTP_PORT", "PT_SMTP_USER", "PT_SMTP_PASS",
		"PT_MAIL_FROM", "PT_SITE_NAME",
	}
	originals := make(map[string]string)
	origSet := make(map[string]bool)
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
			origSet[k] = true
		}
		os.Unsetenv(k)
	}
	return func() {
		for _, k := range keys {
			if origSet[k] {
				os.Setenv(k, originals[k])
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

// requiredEnvVars возвращает минимальный набор обязательных переменных.
func requiredEnvVars() map[string]string {
	return map[string]string{
		"PT_DATA_DIR": "/tmp/pdftools",
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cleanup := clearAllPTEnvVars(t)
	defer cleanup()

	cleanupVars := setEnvVars(t, requiredEnvVars())
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	// Проверяем значения по умолчанию
	if cfg.Port != 4000 {
		t.Errorf("Port: ожидалось 4000, получено %d", cfg.Port)
	}
	if cfg.UploadDir != filepath.Join("/tmp/pdftools", "uploads") {
		t.Errorf("UploadDir: ожидалось поддиректорию uploads, получено %q", cfg.UploadDir)
	}
	if cfg.OutputDir != filepath.Join("/tmp/pdftools", "outputs") {
		t.Errorf("OutputDir: ожидалось поддиректорию outputs, получено %q", cfg.OutputDir)
	}
	if cfg.IndexDir != filepath.Join("/tmp/pdftools", "index") {
		t.Errorf("IndexDir: ожидалось поддиректорию index, получено %q", cfg.IndexDir)
	}
	if cfg.MaxFileSize != 52428800 {
		t.Errorf("MaxFileSize: ожидалось 52428800, получено %d", cfg.MaxFileSize)
	}
	if cfg.MaxMergeFiles != 50 {
		t.Errorf("MaxMergeFiles: ожидалось 50, получено %d", cfg.MaxMergeFiles)
	}
	if cfg.CompressTTL != 15*time.Minute {
		t.Errorf("CompressTTL: ожидалось 15m, получено %v", cfg.CompressTTL)
	}
	if cfg.MergeTTL != time.Hour {
		t.Errorf("MergeTTL: ожидалось 1h, получено %v", cfg.MergeTTL)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("SweepInterval: ожидалось 60s, получено %v", cfg.SweepInterval)
	}
	if cfg.GhostscriptBin != "gs" {
		t.Errorf("GhostscriptBin: ожидалось 'gs', получено %q", cfg.GhostscriptBin)
	}
	if cfg.GhostscriptTimeout != 180*time.Second {
		t.Errorf("GhostscriptTimeout: ожидалось 180s, получено %v", cfg.GhostscriptTimeout)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: ожидалось INFO, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat: ожидалось 'json', получено %q", cfg.LogFormat)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout: ожидалось 5s, получено %v", cfg.ShutdownTimeout)
	}
	if cfg.EmailCooldown != 30*time.Second {
		t.Errorf("EmailCooldown: ожидалось 30s, получено %v", cfg.EmailCooldown)
	}
	if cfg.EmailEnabled() {
		t.Error("EmailEnabled: без PT_SMTP_HOST должно быть false")
	}
}

func TestLoad_AllCustomValues(t *testing.T) {
	cleanup := clearAllPTEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["PT_PORT"] = "4010"
	vars["PT_UPLOAD_DIR"] = "/mnt/fast/uploads"
	vars["PT_OUTPUT_DIR"] = "/mnt/fast/outputs"
	vars["PT_INDEX_DIR"] = "/mnt/fast/index"
	vars["PT_MAX_FILE_SIZE"] = "10485760"
	vars["PT_MAX_MERGE_FILES"] = "20"
	vars["PT_COMPRESS_TTL"] = "5m"
	vars["PT_MERGE_TTL"] = "2h"
	vars["PT_SWEEP_INTERVAL"] = "30s"
	vars["PT_GS_BIN"] = "/usr/local/bin/gs"
	vars["PT_GS_TIMEOUT"] = "60s"
	vars["PT_LOG_LEVEL"] = "debug"
	vars["PT_LOG_FORMAT"] = "text"
	vars["PT_EMAIL_COOLDOWN"] = "10s"
	vars["PT_SMTP_HOST"] = "smtp.example.com"
	vars["PT_SMTP_PORT"] = "465"
	vars["PT_MAIL_FROM"] = "robot@example.com"

	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if cfg.Port != 4010 {
		t.Errorf("Port: ожидалось 4010, получено %d", cfg.Port)
	}
	if cfg.UploadDir != "/mnt/fast/uploads" {
		t.Errorf("UploadDir: ожидалось '/mnt/fast/uploads', получено %q", cfg.UploadDir)
	}
	if cfg.MaxFileSize != 10485760 {
		t.Errorf("MaxFileSize: ожидалось 10485760, получено %d", cfg.MaxFileSize)
	}
	if cfg.MaxMergeFiles != 20 {
		t.Errorf("MaxMergeFiles: ожидалось 20, получено %d", cfg.MaxMergeFiles)
	}
	if cfg.CompressTTL != 5*time.Minute {
		t.Errorf("CompressTTL: ожидалось 5m, получено %v", cfg.CompressTTL)
	}
	if cfg.MergeTTL != 2*time.Hour {
		t.Errorf("MergeTTL: ожидалось 2h, получено %v", cfg.MergeTTL)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("SweepInterval: ожидалось 30s, получено %v", cfg.SweepInterval)
	}
	if cfg.GhostscriptBin != "/usr/local/bin/gs" {
		t.Errorf("GhostscriptBin: ожидалось '/usr/local/bin/gs', получено %q", cfg.GhostscriptBin)
	}
	if cfg.GhostscriptTimeout != 60*time.Second {
		t.Errorf("GhostscriptTimeout: ожидалось 60s, получено %v", cfg.GhostscriptTimeout)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: ожидалось DEBUG, получено %v", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat: ожидалось 'text', получено %q", cfg.LogFormat)
	}
	if cfg.EmailCooldown != 10*time.Second {
		t.Errorf("EmailCooldown: ожидалось 10s, получено %v", cfg.EmailCooldown)
	}
	if !cfg.EmailEnabled() {
		t.Error("EmailEnabled: при заданном PT_SMTP_HOST должно быть true")
	}
	if cfg.SMTPPort != 465 {
		t.Errorf("SMTPPort: ожидалось 465, получено %d", cfg.SMTPPort)
	}
	if cfg.MailFrom != "robot@example.com" {
		t.Errorf("MailFrom: ожидалось 'robot@example.com', получено %q", cfg.MailFrom)
	}
}

func TestLoad_MissingDataDir(t *testing.T) {
	cleanup := clearAllPTEnvVars(t)
	defer cleanup()

	_, err := Load()
	if err == nil {
		t.Error("ожидалась ошибка при отсутствии PT_DATA_DIR")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ноль", "0"},
		{"отрицательный", "-1"},
		{"выше диапазона", "70000"},
		{"не число", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearAllPTEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars["PT_PORT"] = tt.value
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			_, err := Load()
			if err == nil {
				t.Errorf("ожидалась ошибка для PT_PORT=%s", tt.value)
			}
		})
	}
}

func TestLoad_InvalidMaxFileSize(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"не число", "abc"},
		{"нулевое", "0"},
		{"отрицательное", "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := clearAllPTEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars["PT_MAX_FILE_SIZE"] = tt.value
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			_, err := Load()
			if err == nil {
				t.Errorf("ожидалась ошибка для PT_MAX_FILE_SIZE=%s", tt.value)
			}
		})
	}
}

func TestLoad_InvalidMaxMergeFiles(t *testing.T) {
	cleanup := clearAllPTEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["PT_MAX_MERGE_FILES"] = "1"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Error("ожидалась ошибка для PT_MAX_MERGE_FILES=1")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	durationVars := []string{
		"PT_COMPRESS_TTL", "PT_MERGE_TTL", "PT_SWEEP_INTERVAL",
		"PT_GS_TIMEOUT", "PT_SHUTDOWN_TIMEOUT", "PT_EMAIL_COOLDOWN",
	}

	for _, varName := range durationVars {
		t.Run(varName, func(t *testing.T) {
			cleanup := clearAllPTEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars[varName] = "not-a-duration"
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			_, err := Load()
			if err == nil {
				t.Errorf("ожидалась ошибка для невалидного %s", varName)
			}
		})
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	cleanup := clearAllPTEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["PT_LOG_LEVEL"] = "invalid"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Error("ожидалась ошибка для невалидного PT_LOG_LEVEL")
	}
}

func TestLoad_InvalidLogFormat(t *testing.T) {
	cleanup := clearAllPTEnvVars(t)
	defer cleanup()

	vars := requiredEnvVars()
	vars["PT_LOG_FORMAT"] = "yaml"
	cleanupVars := setEnvVars(t, vars)
	defer cleanupVars()

	_, err := Load()
	if err == nil {
		t.Error("ожидалась ошибка для невалидного PT_LOG_FORMAT")
	}
}

func TestLoad_ValidLogLevels(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cleanup := clearAllPTEnvVars(t)
			defer cleanup()

			vars := requiredEnvVars()
			vars["PT_LOG_LEVEL"] = tt.input
			cleanupVars := setEnvVars(t, vars)
			defer cleanupVars()

			cfg, err := Load()
			if err != nil {
				t.Fatalf("неожиданная ошибка: %v", err)
			}
			if cfg.LogLevel != tt.expected {
				t.Errorf("LogLevel: ожидалось %v, получено %v", tt.expected, cfg.LogLevel)
			}
		})
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"json", "json"},
		{"text", "text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				LogLevel:  slog.LevelInfo,
				LogFormat: tt.format,
			}
			logger := SetupLogger(cfg)
			if logger == nil {
				t.Fatal("SetupLogger вернул nil")
			}
		})
	}
}
