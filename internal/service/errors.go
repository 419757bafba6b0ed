// errors.go — типизированная ошибка сервисного слоя.
package service

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/domain/model"
	"github.com/bigkaa/pdftools/internal/storage/jobindex"
)

// ServiceError — ошибка операции с HTTP-кодом и машиночитаемым кодом.
// Message безопасен для передачи клиенту, внутренние детали остаются в логах.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Write пишет ошибку в ResponseWriter в стандартном формате API.
func (e *ServiceError) Write(w http.ResponseWriter) {
	apierrors.WriteError(w, e.StatusCode, e.Code, e.Message)
}

// resolveJob ищет задание и проверяет право доступа к его артефакту.
// Используется скачиванием, упаковкой в zip и отправкой письма — правила
// одни и те же:
//   - неизвестный job_id → 404 not_found
//   - несовпадающий токен → 403 forbidden (сравнение за постоянное время)
//   - истёкший TTL → 403 forbidden, даже если очистка ещё не прошла
func resolveJob(idx *jobindex.Index, jobID, token string, isExpired func(*model.JobRecord) bool) (*model.JobRecord, *ServiceError) {
	rec := idx.Get(jobID)
	if rec == nil {
		return nil, &ServiceError{
			StatusCode: http.StatusNotFound,
			Code:       apierrors.CodeNotFound,
			Message:    "Job not found",
		}
	}

	if subtle.ConstantTimeCompare([]byte(rec.AccessToken), []byte(token)) != 1 {
		return nil, &ServiceError{
			StatusCode: http.StatusForbidden,
			Code:       apierrors.CodeForbidden,
			Message:    "Invalid download token",
		}
	}

	if isExpired(rec) {
		return nil, &ServiceError{
			StatusCode: http.StatusForbidden,
			Code:       apierrors.CodeForbidden,
			Message:    "Download link has expired",
		}
	}

	return rec, nil
}
