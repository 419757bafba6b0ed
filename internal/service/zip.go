// zip.go — сервис упаковки готовых артефактов в zip-архив.
//
// Клиент присылает пары (job_id, token); пары, не проходящие проверку
// доступа, молча отбрасываются — архив собирается из оставшихся.
// Архив регистрируется как самостоятельное задание, артефакты-участники
// живут по своим TTL независимо от него.
package service

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/archive"
	"github.com/bigkaa/pdftools/internal/domain/model"
	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
)

// Prometheus метрики упаковки
var (
	zipJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_zip_jobs_total",
		Help: "Количество заданий упаковки по результату",
	}, []string{"result"})
)

// ZipItem — ссылка на артефакт для включения в архив.
type ZipItem struct {
	JobID string `json:"job_id"`
	Token string `json:"token"`
}

// ZipResult — результат задания упаковки для ответа API.
type ZipResult struct {
	JobID       string    `json:"job_id"`
	DownloadURL string    `json:"download_url"`
	FileCount   int       `json:"count"`
	OutputBytes int64     `json:"output_bytes"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ZipService — сервис сборки zip-архива из готовых артефактов.
type ZipService struct {
	outputs *artifact.Store
	idx     *jobindex.Index
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewZipService создаёт сервис упаковки.
func NewZipService(
	outputs *artifact.Store,
	idx *jobindex.Index,
	ttl time.Duration,
	logger *slog.Logger,
) *ZipService {
	return &ZipService{
		outputs: outputs,
		idx:     idx,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "zip_service")),
		now:     time.Now,
	}
}

// Bundle собирает архив из валидных элементов items.
// Если ни один элемент не прошёл проверку — 404 not_found.
func (s *ZipService) Bundle(items []ZipItem) (*ZipResult, *ServiceError) {
	if len(items) == 0 {
		zipJobsTotal.WithLabelValues("rejected").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeInvalidRequest,
			Message:    "At least one job reference is required",
		}
	}

	now := s.now().UTC()
	isExpired := func(rec *model.JobRecord) bool { return rec.IsExpired(now) }

	var entries []archive.Entry
	seen := make(map[string]int)
	for _, item := range items {
		rec, serr := resolveJob(s.idx, item.JobID, item.Token, isExpired)
		if serr != nil {
			s.logger.Warn("Элемент архива отброшен",
				slog.String("job_id", item.JobID),
				slog.String("reason", serr.Code),
			)
			continue
		}
		if !s.outputs.Exists(rec.OutputPath) {
			s.logger.Warn("Элемент архива отброшен: артефакт отсутствует на диске",
				slog.String("job_id", item.JobID),
			)
			continue
		}

		entries = append(entries, archive.Entry{
			Path: s.outputs.FullPath(rec.OutputPath),
			Name: uniqueName(rec.OutputFilename, seen),
		})
	}

	if len(entries) == 0 {
		zipJobsTotal.WithLabelValues("rejected").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    "No downloadable files found for the given references",
		}
	}

	output, err := s.outputs.SaveFunc("files.zip", func(w io.Writer) error {
		return archive.WriteZip(w, entries)
	})
	if err != nil {
		s.logger.Error("Ошибка сборки архива",
			slog.Int("entries", len(entries)),
			slog.String("error", err.Error()),
		)
		zipJobsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeProcessingFailed,
			Message:    "Failed to build zip archive",
		}
	}

	rec := &model.JobRecord{
		JobID:          model.NewJobID(model.KindZip),
		Kind:           model.KindZip,
		OutputPath:     output.StoragePath,
		OutputFilename: "files.zip",
		ContentType:    "application/zip",
		AccessToken:    model.NewAccessToken(),
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
		OutputBytes:    output.Size,
	}

	if err := s.idx.Put(rec); err != nil {
		s.outputs.Delete(output.StoragePath)
		s.logger.Error("Ошибка записи задания в индекс",
			slog.String("job_id", rec.JobID),
			slog.String("error", err.Error()),
		)
		zipJobsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to register job",
		}
	}

	zipJobsTotal.WithLabelValues("success").Inc()

	s.logger.Info("Архив собран",
		slog.String("job_id", rec.JobID),
		slog.Int("files", len(entries)),
		slog.Int64("output_bytes", output.Size),
	)

	return &ZipResult{
		JobID:       rec.JobID,
		DownloadURL: rec.DownloadURL(),
		FileCount:   len(entries),
		OutputBytes: output.Size,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// uniqueName устраняет коллизии имён внутри архива: file.pdf, file_2.pdf...
func uniqueName(name string, seen map[string]int) string {
	seen[name]++
	if seen[name] == 1 {
		return name
	}

	ext := ""
	base := name
	if i := len(name) - 4; i > 0 && name[i] == '.' {
		base, ext = name[:i], name[i:]
	}
	return base + "_" + strconv.Itoa(seen[name]) + ext
}
