// compress.go — HTTP handler сжатия PDF.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/pdf/gs"
)

// multipartOverhead — запас к лимиту тела на заголовки multipart.
const multipartOverhead = 1 << 20

// Compress обрабатывает POST /v1/pdf/compress.
// Multipart form: file (обязательно), compression, downsample_dpi,
// remove_metadata (опционально).
func (a *API) Compress(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if isBodyTooLarge(err) {
			apierrors.FileTooLarge(w, fmt.Sprintf("File exceeds the %d MB limit", a.maxFileSize>>20))
			return
		}
		apierrors.InvalidRequest(w, "Malformed multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apierrors.InvalidRequest(w, "Field 'file' is required")
		return
	}
	defer file.Close()

	if header.Size > a.maxFileSize {
		apierrors.FileTooLarge(w, fmt.Sprintf("File exceeds the %d MB limit", a.maxFileSize>>20))
		return
	}
	if !hasPDFExt(header.Filename) {
		apierrors.InvalidFileType(w, "Only PDF files are accepted")
		return
	}

	opts := gs.Options{
		Quality:        gs.Quality(r.FormValue("compression")),
		RemoveMetadata: r.FormValue("remove_metadata") == "true",
	}
	if dpi := r.FormValue("downsample_dpi"); dpi != "" {
		n, err := strconv.Atoi(dpi)
		if err != nil {
			apierrors.InvalidRequest(w, "Field 'downsample_dpi' must be an integer")
			return
		}
		opts.DownsampleDPI = n
	}

	result, serr := a.compressSvc.Compress(r.Context(), file, header.Filename, opts)
	if serr != nil {
		serr.Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// hasPDFExt проверяет расширение имени файла.
func hasPDFExt(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

// isBodyTooLarge распознаёт превышение MaxBytesReader.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
