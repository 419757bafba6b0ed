// Пакет errors — конструкторы стандартных ошибок API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib допускаем осознанно

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок API.
const (
	CodeInvalidRequest        = "invalid_request"
	CodeInvalidFileType       = "invalid_file_type"
	CodeFileTooLarge          = "file_too_large"
	CodeInvalidOrEncryptedPDF = "invalid_or_encrypted_pdf"
	CodeProcessingFailed      = "processing_failed"
	CodeNotFound              = "not_found"
	CodeForbidden             = "forbidden"
	CodeInvalidRating         = "invalid_rating"
	CodeTooManyRequests       = "too_many_requests"
	CodeInternalError         = "internal_error"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// InvalidRequest — 400 некорректные входные данные.
func InvalidRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidRequest, message)
}

// InvalidFileType — 415 файл не является PDF.
func InvalidFileType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnsupportedMediaType, CodeInvalidFileType, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// InvalidOrEncryptedPDF — 422 файл не открывается как PDF.
func InvalidOrEncryptedPDF(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnprocessableEntity, CodeInvalidOrEncryptedPDF, message)
}

// ProcessingFailed — 500 обработка не удалась.
func ProcessingFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeProcessingFailed, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Forbidden — 403 доступ запрещён.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// InvalidRating — 400 оценка вне диапазона 1..5.
func InvalidRating(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeInvalidRating, message)
}

// TooManyRequests — 429 превышен лимит запросов.
func TooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, CodeTooManyRequests, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
