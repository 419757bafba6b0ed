// Точка входа PDF Tools — backend сжатия и склейки PDF.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bigkaa/pdftools/internal/api/handlers"
	"github.com/bigkaa/pdftools/internal/api/middleware"
	"github.com/bigkaa/pdftools/internal/config"
	"github.com/bigkaa/pdftools/internal/pdf/gs"
	"github.com/bigkaa/pdftools/internal/server"
	"github.com/bigkaa/pdftools/internal/service"
	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/contacts"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
	"github.com/bigkaa/pdftools/internal/storage/reviews"
	"github.com/bigkaa/pdftools/internal/storage/stats"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("PDF Tools запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("data_dir", cfg.DataDir),
	)

	// --- Инициализация компонентов ---

	// 1. Хранилища файлов: загрузки и готовые артефакты
	uploads, err := artifact.New(cfg.UploadDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища загрузок", slog.String("error", err.Error()))
		os.Exit(1)
	}
	outputs, err := artifact.New(cfg.OutputDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища артефактов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Индекс заданий: карта строится из {job_id}.json на диске
	idx, err := jobindex.New(cfg.IndexDir, logger)
	if err != nil {
		logger.Error("Ошибка инициализации индекса заданий", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := idx.BuildFromDir(); err != nil {
		logger.Error("Ошибка построения индекса заданий", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Стартовая сверка: убираем scratch-файлы и сирот после
	// возможного аварийного завершения
	service.NewReconciler(uploads, outputs, idx, logger).RunOnce()

	if total, used, available, err := getDiskUsage(cfg.DataDir); err == nil {
		logger.Info("Дисковое пространство",
			slog.Int64("total_bytes", total),
			slog.Int64("used_bytes", used),
			slog.Int64("available_bytes", available),
		)
	} else {
		logger.Warn("Ошибка получения информации о диске", slog.String("error", err.Error()))
	}

	// 3. Плоские файлы: счётчик, агрегат оценок, контакты
	counter := stats.New(filepath.Join(cfg.DataDir, "stats.json"))
	reviewsStore := reviews.New(filepath.Join(cfg.DataDir, "reviews.json"))
	contactsStore := contacts.New(filepath.Join(cfg.DataDir, "contacts.json"))

	// 4. Ghostscript
	runner := gs.NewRunner(cfg.GhostscriptBin, cfg.GhostscriptTimeout, logger)

	// 5. Сервисы
	compressSvc := service.NewCompressService(uploads, outputs, idx, runner, counter, cfg.CompressTTL, logger)
	mergeSvc := service.NewMergeService(uploads, outputs, idx, counter, cfg.MergeTTL, logger)
	zipSvc := service.NewZipService(outputs, idx, cfg.CompressTTL, logger)
	downloadSvc := service.NewDownloadService(outputs, idx, logger)

	// SMTP опционален: без PT_SMTP_HOST маршрут email отвечает 503
	var mailer service.Mailer
	if cfg.EmailEnabled() {
		client, err := service.NewSMTPClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
		if err != nil {
			logger.Error("Ошибка инициализации SMTP-клиента", slog.String("error", err.Error()))
			os.Exit(1)
		}
		mailer = client
		logger.Info("Отправка писем настроена", slog.String("smtp_host", cfg.SMTPHost))
	} else {
		logger.Warn("PT_SMTP_HOST не задан, отправка писем отключена")
	}
	emailSvc := service.NewEmailService(outputs, idx, contactsStore, mailer, cfg.MailFrom, cfg.SiteName, logger)

	// 6. Фоновая очистка просроченных заданий
	ctx := context.Background()
	sweeper := service.NewSweeper(uploads, outputs, idx, cfg.SweepInterval, logger)
	sweeper.Start(ctx)

	// 7. API
	api := handlers.NewAPI(handlers.Deps{
		CompressSvc:   compressSvc,
		MergeSvc:      mergeSvc,
		ZipSvc:        zipSvc,
		DownloadSvc:   downloadSvc,
		EmailSvc:      emailSvc,
		Counter:       counter,
		Reviews:       reviewsStore,
		Uploads:       uploads,
		MaxFileSize:   cfg.MaxFileSize,
		MaxMergeFiles: cfg.MaxMergeFiles,
		EmailLimiter:  middleware.NewCooldownLimiter(cfg.EmailCooldown),
		Logger:        logger,
	})

	// 8. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, api.Routes())

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")
	sweeper.Stop()

	logger.Info("PDF Tools остановлен")
}
