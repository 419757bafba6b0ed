// handler.go — API собирает все обработчики и маршруты сервиса.
package handlers

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/pdftools/internal/api/middleware"
	"github.com/bigkaa/pdftools/internal/service"
	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/reviews"
	"github.com/bigkaa/pdftools/internal/storage/stats"
)

// API — единый обработчик всех endpoints сервиса.
type API struct {
	compressSvc *service.CompressService
	mergeSvc    *service.MergeService
	zipSvc      *service.ZipService
	downloadSvc *service.DownloadService
	emailSvc    *service.EmailService

	counter *stats.Counter
	reviews *reviews.Store
	uploads *artifact.Store

	maxFileSize   int64
	maxMergeFiles int
	emailLimiter  *middleware.CooldownLimiter

	logger *slog.Logger
}

// Deps — зависимости API.
type Deps struct {
	CompressSvc *service.CompressService
	MergeSvc    *service.MergeService
	ZipSvc      *service.ZipService
	DownloadSvc *service.DownloadService
	EmailSvc    *service.EmailService

	Counter *stats.Counter
	Reviews *reviews.Store
	Uploads *artifact.Store

	MaxFileSize   int64
	MaxMergeFiles int
	EmailLimiter  *middleware.CooldownLimiter

	Logger *slog.Logger
}

// NewAPI создаёт единый обработчик.
func NewAPI(deps Deps) *API {
	return &API{
		compressSvc:   deps.CompressSvc,
		mergeSvc:      deps.MergeSvc,
		zipSvc:        deps.ZipSvc,
		downloadSvc:   deps.DownloadSvc,
		emailSvc:      deps.EmailSvc,
		counter:       deps.Counter,
		reviews:       deps.Reviews,
		uploads:       deps.Uploads,
		maxFileSize:   deps.MaxFileSize,
		maxMergeFiles: deps.MaxMergeFiles,
		emailLimiter:  deps.EmailLimiter,
		logger:        deps.Logger.With(slog.String("component", "api")),
	}
}

// Routes возвращает маршруты API.
// /metrics регистрируется отдельно в server, вне этих маршрутов.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/v1/pdf/compress", a.Compress)
	r.Post("/v1/pdf/merge", a.Merge)

	r.Post("/v1/jobs/zip", a.Zip)
	r.Get("/v1/jobs/{job_id}/download", a.Download)

	r.Get("/v1/stats/summary", a.StatsSummary)

	r.Get("/v1/reviews/summary", a.ReviewsSummary)
	r.Post("/v1/reviews", a.AddReview)

	r.With(a.emailLimiter.Middleware).Post("/v1/email/send", a.SendEmail)

	r.Get("/health", a.Health)

	return r
}
