// email.go — HTTP handler отправки артефакта письмом.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/service"
)

// SendEmail обрабатывает POST /v1/email/send.
// Частота ограничена CooldownLimiter на уровне маршрута.
func (a *API) SendEmail(w http.ResponseWriter, r *http.Request) {
	var req service.EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.InvalidRequest(w, "Malformed JSON body")
		return
	}

	if serr := a.emailSvc.Send(r.Context(), req); serr != nil {
		serr.Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
}
