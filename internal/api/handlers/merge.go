// merge.go — HTTP handler склейки PDF.
package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/service"
)

// Merge обрабатывает POST /v1/pdf/merge.
// Multipart form: files (несколько, порядок сохраняется), passwords
// (опционально, по одному на файл в том же порядке), skip_locked,
// output_name (опционально).
func (a *API) Merge(w http.ResponseWriter, r *http.Request) {
	limit := a.maxFileSize*int64(a.maxMergeFiles) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if isBodyTooLarge(err) {
			apierrors.FileTooLarge(w, "Combined upload size exceeds the limit")
			return
		}
		apierrors.InvalidRequest(w, "Malformed multipart request")
		return
	}

	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		apierrors.WriteError(w, http.StatusUnprocessableEntity, apierrors.CodeInvalidRequest, "Field 'files' is required")
		return
	}
	parts := r.MultipartForm.File["files"]
	if len(parts) > a.maxMergeFiles {
		apierrors.WriteError(w, http.StatusUnprocessableEntity, apierrors.CodeInvalidRequest,
			fmt.Sprintf("At most %d files can be merged", a.maxMergeFiles))
		return
	}

	// Пароли защищённых файлов — параллельный files список
	passwords := r.MultipartForm.Value["passwords"]
	skipLocked := r.FormValue("skip_locked") == "true"

	// Сохраняем исходники в порядке их следования в форме.
	// Дальше ими владеет сервис: он удалит их при любом исходе.
	var sources []service.MergeSource
	for i, part := range parts {
		if part.Size > a.maxFileSize {
			a.cleanupSources(sources)
			apierrors.FileTooLarge(w, fmt.Sprintf("File %q exceeds the %d MB limit", part.Filename, a.maxFileSize>>20))
			return
		}
		if !hasPDFExt(part.Filename) {
			a.cleanupSources(sources)
			apierrors.InvalidFileType(w, fmt.Sprintf("File %q is not a PDF", part.Filename))
			return
		}

		f, err := part.Open()
		if err != nil {
			a.cleanupSources(sources)
			apierrors.InternalError(w, "Failed to read uploaded file")
			return
		}

		saved, err := a.uploads.Save(f, part.Filename)
		f.Close()
		if err != nil {
			a.cleanupSources(sources)
			a.logger.Error("Ошибка сохранения исходника склейки",
				slog.String("filename", part.Filename),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Failed to store uploaded file")
			return
		}

		password := ""
		if i < len(passwords) {
			password = passwords[i]
		}
		sources = append(sources, service.MergeSource{
			StoragePath: saved.StoragePath,
			Filename:    part.Filename,
			Password:    password,
			Size:        saved.Size,
		})
	}

	result, serr := a.mergeSvc.Merge(sources, r.FormValue("output_name"), skipLocked)
	if serr != nil {
		serr.Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// cleanupSources удаляет уже сохранённые исходники при отказе до вызова сервиса.
func (a *API) cleanupSources(sources []service.MergeSource) {
	for _, src := range sources {
		if err := a.uploads.Delete(src.StoragePath); err != nil {
			a.logger.Warn("Ошибка удаления исходника",
				slog.String("storage_path", src.StoragePath),
				slog.String("error", err.Error()),
			)
		}
	}
}
