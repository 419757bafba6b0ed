// compress.go — сервис сжатия PDF.
//
// Последовательность: сохранить исходник в uploads → выделить
// scratch-путь в outputs → запустить Ghostscript → опубликовать артефакт
// → записать задание в индекс. Исходник живёт вместе с заданием и
// удаляется очисткой по истечении TTL.
package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/domain/model"
	"github.com/bigkaa/pdftools/internal/pdf/gs"
	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
	"github.com/bigkaa/pdftools/internal/storage/stats"
)

// pdfMagic — сигнатура начала PDF-файла.
var pdfMagic = []byte("%PDF-")

// Prometheus метрики сжатия
var (
	compressJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pt_compress_jobs_total",
		Help: "Количество заданий сжатия по результату",
	}, []string{"result"})

	compressDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pt_compress_duration_seconds",
		Help:    "Длительность сжатия в секундах",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
	})

	compressBytesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pt_compress_bytes_saved_total",
		Help: "Суммарный сэкономленный объём в байтах",
	})
)

// CompressInput — описание исходника в ответе API.
type CompressInput struct {
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
}

// CompressOutput — описание артефакта в ответе API.
type CompressOutput struct {
	Filename         string    `json:"filename"`
	Bytes            int64     `json:"bytes"`
	CompressionRatio float64   `json:"compression_ratio"`
	DownloadURL      string    `json:"download_url"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// CompressResult — результат задания сжатия для ответа API.
type CompressResult struct {
	JobID  string         `json:"job_id"`
	Input  CompressInput  `json:"input"`
	Output CompressOutput `json:"output"`
}

// CompressService — сервис сжатия одного PDF.
type CompressService struct {
	uploads *artifact.Store
	outputs *artifact.Store
	idx     *jobindex.Index
	runner  *gs.Runner
	counter *stats.Counter
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCompressService создаёт сервис сжатия.
func NewCompressService(
	uploads *artifact.Store,
	outputs *artifact.Store,
	idx *jobindex.Index,
	runner *gs.Runner,
	counter *stats.Counter,
	ttl time.Duration,
	logger *slog.Logger,
) *CompressService {
	return &CompressService{
		uploads: uploads,
		outputs: outputs,
		idx:     idx,
		runner:  runner,
		counter: counter,
		ttl:     ttl,
		logger:  logger.With(slog.String("component", "compress_service")),
	}
}

// Compress сжимает PDF из reader и регистрирует задание.
// filename — оригинальное имя файла, opts — параметры сжатия.
func (s *CompressService) Compress(ctx context.Context, reader io.Reader, filename string, opts gs.Options) (*CompressResult, *ServiceError) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, &ServiceError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeInvalidRequest,
			Message:    "Invalid compression options: " + err.Error(),
		}
	}

	// Проверяем сигнатуру до записи на диск
	buffered, serr := requirePDFMagic(reader)
	if serr != nil {
		compressJobsTotal.WithLabelValues("rejected").Inc()
		return nil, serr
	}

	// Сохраняем исходник
	upload, err := s.uploads.Save(buffered, filename)
	if err != nil {
		s.logger.Error("Ошибка сохранения исходника",
			slog.String("filename", filename),
			slog.String("error", err.Error()),
		)
		compressJobsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to store uploaded file",
		}
	}

	// Ghostscript пишет результат сразу в хранилище артефактов
	scratch := s.outputs.ScratchPath(compressedName(filename))

	if err := s.runner.Compress(ctx, upload.FullPath, scratch, opts); err != nil {
		s.outputs.Discard(scratch)
		s.uploads.Delete(upload.StoragePath)

		if errors.Is(err, gs.ErrTimeout) {
			compressJobsTotal.WithLabelValues("timeout").Inc()
			return nil, &ServiceError{
				StatusCode: http.StatusUnprocessableEntity,
				Code:       apierrors.CodeProcessingFailed,
				Message:    "Compression took too long and was aborted",
			}
		}

		compressJobsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusUnprocessableEntity,
			Code:       apierrors.CodeProcessingFailed,
			Message:    "Failed to compress PDF",
		}
	}

	output, err := s.outputs.Publish(scratch)
	if err != nil {
		s.outputs.Discard(scratch)
		s.uploads.Delete(upload.StoragePath)
		s.logger.Error("Ошибка публикации артефакта",
			slog.String("scratch", scratch),
			slog.String("error", err.Error()),
		)
		compressJobsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to store compressed file",
		}
	}

	now := time.Now().UTC()
	rec := &model.JobRecord{
		JobID:          model.NewJobID(model.KindCompress),
		Kind:           model.KindCompress,
		InputPaths:     []string{upload.StoragePath},
		OutputPath:     output.StoragePath,
		OutputFilename: compressedName(filename),
		ContentType:    "application/pdf",
		AccessToken:    model.NewAccessToken(),
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
		InputBytes:     upload.Size,
		OutputBytes:    output.Size,
	}

	if err := s.idx.Put(rec); err != nil {
		s.outputs.Delete(output.StoragePath)
		s.uploads.Delete(upload.StoragePath)
		s.logger.Error("Ошибка записи задания в индекс",
			slog.String("job_id", rec.JobID),
			slog.String("error", err.Error()),
		)
		compressJobsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to register job",
		}
	}

	// Счётчик обработанных — best-effort, ошибка не роняет задание
	if err := s.counter.Bump(); err != nil {
		s.logger.Warn("Ошибка обновления счётчика обработанных",
			slog.String("error", err.Error()),
		)
	}

	duration := time.Since(start)
	compressJobsTotal.WithLabelValues("success").Inc()
	compressDurationSeconds.Observe(duration.Seconds())
	if saved := upload.Size - output.Size; saved > 0 {
		compressBytesSaved.Add(float64(saved))
	}

	s.logger.Info("Сжатие завершено",
		slog.String("job_id", rec.JobID),
		slog.Int64("input_bytes", upload.Size),
		slog.Int64("output_bytes", output.Size),
		slog.Duration("duration", duration),
	)

	return &CompressResult{
		JobID: rec.JobID,
		Input: CompressInput{
			Filename: filename,
			Bytes:    rec.InputBytes,
		},
		Output: CompressOutput{
			Filename:         rec.OutputFilename,
			Bytes:            rec.OutputBytes,
			CompressionRatio: rec.CompressionRatio(),
			DownloadURL:      rec.DownloadURL(),
			ExpiresAt:        rec.ExpiresAt,
		},
	}, nil
}

// requirePDFMagic читает сигнатуру и возвращает reader с возвращённым
// префиксом. Файл без %PDF- в начале отклоняется до запуска Ghostscript.
func requirePDFMagic(reader io.Reader) (io.Reader, *ServiceError) {
	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to read uploaded file",
		}
	}
	if !bytes.Equal(head[:n], pdfMagic) {
		return nil, &ServiceError{
			StatusCode: http.StatusUnsupportedMediaType,
			Code:       apierrors.CodeInvalidFileType,
			Message:    "Only PDF files are accepted",
		}
	}
	return io.MultiReader(bytes.NewReader(head[:n]), reader), nil
}

// compressedName формирует имя результата: report.pdf → report_compressed.pdf.
func compressedName(filename string) string {
	base := filename
	if len(base) > 4 && base[len(base)-4:] == ".pdf" {
		base = base[:len(base)-4]
	}
	return base + "_compressed.pdf"
}
