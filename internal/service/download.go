// download.go — сервис скачивания артефактов.
package service

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/domain/model"
	"github.com/bigkaa/pdftools/internal/storage/artifact"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
)

// DownloadService — сервис отдачи артефактов по job_id + token.
type DownloadService struct {
	outputs *artifact.Store
	idx     *jobindex.Index
	logger  *slog.Logger
	now     func() time.Time
}

// NewDownloadService создаёт сервис скачивания.
func NewDownloadService(
	outputs *artifact.Store,
	idx *jobindex.Index,
	logger *slog.Logger,
) *DownloadService {
	return &DownloadService{
		outputs: outputs,
		idx:     idx,
		logger:  logger.With(slog.String("component", "download_service")),
		now:     time.Now,
	}
}

// Resolve проверяет доступ к артефакту задания.
// Возвращает запись или ошибку: 404 для неизвестного job_id,
// 403 для неверного токена и истёкшего TTL (ссылка просрочена, даже
// если очистка ещё не удалила файлы), 404 если файл уже исчез с диска.
func (s *DownloadService) Resolve(jobID, token string) (*model.JobRecord, *ServiceError) {
	now := s.now().UTC()
	rec, serr := resolveJob(s.idx, jobID, token, func(r *model.JobRecord) bool {
		return r.IsExpired(now)
	})
	if serr != nil {
		return nil, serr
	}

	if !s.outputs.Exists(rec.OutputPath) {
		s.logger.Warn("Запись задания без артефакта на диске",
			slog.String("job_id", jobID),
			slog.String("output_path", rec.OutputPath),
		)
		return nil, &ServiceError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    "Job not found",
		}
	}

	return rec, nil
}

// Serve отдаёт артефакт клиенту через http.ServeContent.
// Range requests обрабатываются автоматически.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, jobID, token string) *ServiceError {
	rec, serr := s.Resolve(jobID, token)
	if serr != nil {
		return serr
	}

	file, err := s.outputs.Open(rec.OutputPath)
	if err != nil {
		s.logger.Error("Ошибка открытия артефакта",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to read file",
		}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		s.logger.Error("Ошибка stat артефакта",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return &ServiceError{
			StatusCode: http.StatusInternalServerError,
			Code:       apierrors.CodeInternalError,
			Message:    "Failed to read file",
		}
	}

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", rec.OutputFilename))

	http.ServeContent(w, r, rec.OutputFilename, stat.ModTime(), file)

	s.logger.Debug("Артефакт отдан",
		slog.String("job_id", jobID),
		slog.String("filename", rec.OutputFilename),
		slog.Int64("size", rec.OutputBytes),
	)

	return nil
}
