// merge.go — сервис склейки PDF.
//
// Исходники уже сохранены обработчиком в uploads; сервис проверяет
// каждый, склеивает читаемые и сразу удаляет все исходные копии —
// в отличие от сжатия, исходники склейки задание не переживают.
// Нечитаемый исходник либо отбрасывается (skip_locked), либо
// отклоняет запрос целиком.
package service

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/domain/model"
	"github.com/bigkaa/pdftools/internal/pdf/merge"
	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
	"github.com/bigkaa/pdftools/internal/storage/stats"
)

// Prometheus метрики склейки
var (
	mergeJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_merge_jobs_total",
		Help: "Количество заданий склейки по результату",
	}, []string{"result"})

	mergeSkippedFilesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_merge_skipped_files_total",
		Help: "Количество исходников, отброшенных при склейке",
	})
)

// MergeSource — один исходник склейки, уже сохранённый в uploads.
type MergeSource struct {
	// StoragePath — путь файла относительно директории загрузок
	StoragePath string
	// Filename — оригинальное имя файла
	Filename string
	// Password — пользовательский пароль (пусто, если файл не защищён)
	Password string
	// Size — размер файла в байтах
	Size int64
}

// MergeOutput — описание артефакта склейки в ответе API.
type MergeOutput struct {
	Filename    string    `json:"filename"`
	Bytes       int64     `json:"bytes"`
	Pages       int       `json:"pages"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// MergeResult — результат задания склейки для ответа API.
type MergeResult struct {
	JobID        string      `json:"job_id"`
	Output       MergeOutput `json:"output"`
	MergedFiles  int         `json:"merged_files"`
	SkippedFiles []string    `json:"skipped_files,omitempty"`
}

// MergeService — сервис склейки нескольких PDF в один.
type MergeService struct {
	uploads *artifact.Store
	outputs *artifact.Store
	idx     *jobindex.Index
	counter *stats.Counter
	ttl     time.Duration
	logger  *slog.Logger
}

// NewMergeService создаёт сервис склейки.
func NewMergeService(
	uploads *artifact.Store,
	outputs *artifact.Store,
	idx *jobindex.Index,
	counter *stats.Counter,
	ttl time.Duration,
	logger *slog.Logger,
) *MergeService {
	return &MergeService{
		uploads: uploads,
		outputs: outputs,
		idx:     idx,
		counter: counter,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "merge_service")),
	}
}

// Merge склеивает исходники в порядке их следования.
// outputName — имя результата для скачивания (пусто → merged.pdf).
// skipLocked — отбрасывать нечитаемые исходники вместо отказа всего
// запроса.
func (s *MergeService) Merge(sources []MergeSource, outputName string, skipLocked bool) (*MergeResult, *ServiceError) {
	// Все исходные копии удаляются при любом исходе
	defer func() {
		for _, src := range sources {
			s.uploads.Delete(src.StoragePath)
		}
	}()

	if len(sources) < 2 {
		mergeJobsTotal.WithLabelValues("rejected").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusUnprocessableEntity,
			Code:       apierrors.CodeInvalidRequest,
			Message:    "At least 2 files are required for merging",
		}
	}

	// Проверяем каждый исходник; защищённые расшифровываются во
	// временные копии внутри uploads
	var (
		readable   []string
		skipped    []string
		inputBytes int64
		tempCopies []string
	)
	defer func() {
		for _, path := range tempCopies {
			os.Remove(path)
		}
	}()

	for _, src := range sources {
		path, err := merge.Probe(merge.Input{
			Path:     s.uploads.FullPath(src.StoragePath),
			Password: src.Password,
		}, s.uploads.Dir())
		if err != nil {
			if !skipLocked {
				mergeJobsTotal.WithLabelValues("rejected").Inc()
				return nil, &ServiceError{
					StatusCode: http.StatusUnprocessableEntity,
					Code:       apierrors.CodeInvalidOrEncryptedPDF,
					Message:    "File '" + src.Filename + "' cannot be opened as PDF",
				}
			}
			s.logger.Warn("Исходник склейки отброшен",
				slog.String("filename", src.Filename),
				slog.String("error", err.Error()),
			)
			skipped = append(skipped, src.Filename)
			mergeSkippedFilesTotal.Inc()
			continue
		}
		if path != s.uploads.FullPath(src.StoragePath) {
			tempCopies = append(tempCopies, path)
		}
		readable = append(readable, path)
		inputBytes += src.Size
	}

	if len(readable) < 2 {
		mergeJobsTotal.WithLabelValues("rejected").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusUnprocessableEntity,
			Code:       apierrors.CodeInvalidOrEncryptedPDF,
			Message:    "Fewer than 2 files could be opened as PDF",
		}
	}

	if outputName == "" {
		outputName = "merged.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(outputName), ".pdf") {
		outputName += ".pdf"
	}

	scratch := s.outputs.ScratchPath(outputName)
	if err := merge.Merge(readable, scratch); err != nil {
		s.outputs.Discard(scratch)
		s.logger.Error("Ошибка склейки",
			slog.Int("files", len(readable)),
			slog.String("error", err.Error()),
		)
		mergeJobsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeProcessingFailed,
			Message:    "Failed to merge PDF files",
		}
	}

	output, err := s.outputs.Publish(scratch)
	if err != nil {
		s.outputs.Discard(scratch)
		s.logger.Error("Ошибка публикации артефакта склейки",
			slog.String("error", err.Error()),
		)
		mergeJobsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to store merged file",
		}
	}

	// Количество страниц результата — справочное поле ответа
	pages, err := merge.PageCount(s.outputs.FullPath(output.StoragePath))
	if err != nil {
		s.logger.Warn("Ошибка подсчёта страниц результата",
			slog.String("error", err.Error()),
		)
	}

	now := time.Now().UTC()
	rec := &model.JobRecord{
		JobID:          model.NewJobID(model.KindMerge),
		Kind:           model.KindMerge,
		OutputPath:     output.StoragePath,
		OutputFilename: outputName,
		ContentType:    "application/pdf",
		AccessToken:    model.NewAccessToken(),
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
		InputBytes:     inputBytes,
		OutputBytes:    output.Size,
	}

	if err := s.idx.Put(rec); err != nil {
		s.outputs.Delete(output.StoragePath)
		s.logger.Error("Ошибка записи задания в индекс",
			slog.String("job_id", rec.JobID),
			slog.String("error", err.Error()),
		)
		mergeJobsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to register job",
		}
	}

	if err := s.counter.Bump(); err != nil {
		s.logger.Warn("Ошибка обновления счётчика обработанных",
			slog.String("error", err.Error()),
		)
	}

	mergeJobsTotal.WithLabelValues("success").Inc()

	s.logger.Info("Склейка завершена",
		slog.String("job_id", rec.JobID),
		slog.Int("merged", len(readable)),
		slog.Int("skipped", len(skipped)),
		slog.Int64("output_bytes", output.Size),
	)

	return &MergeResult{
		JobID: rec.JobID,
		Output: MergeOutput{
			Filename:    outputName,
			Bytes:       output.Size,
			Pages:       pages,
			DownloadURL: rec.DownloadURL(),
			ExpiresAt:   rec.ExpiresAt,
		},
		MergedFiles:  len(readable),
		SkippedFiles: skipped,
	}, nil
}
