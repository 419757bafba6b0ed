// jobs.go — HTTP handlers заданий: упаковка в zip и скачивание.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/service"
)

// zipRequest — тело запроса POST /v1/jobs/zip.
type zipRequest struct {
	Items []service.ZipItem `json:"items"`
}

// Zip обрабатывает POST /v1/jobs/zip.
// Собирает архив из готовых артефактов по парам (job_id, token).
func (a *API) Zip(w http.ResponseWriter, r *http.Request) {
	var req zipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.InvalidRequest(w, "Malformed JSON body")
		return
	}

	result, serr := a.zipSvc.Bundle(req.Items)
	if serr != nil {
		serr.Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(result)
}

// Download обрабатывает GET /v1/jobs/{job_id}/download?token=...
func (a *API) Download(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	token := r.URL.Query().Get("token")

	if serr := a.downloadSvc.Serve(w, r, jobID, token); serr != nil {
		serr.Write(w)
	}
}
