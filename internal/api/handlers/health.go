// health.go — health endpoint.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bigkaa/pdftools/internal/config"
)

// startedAt — момент старта процесса для расчёта uptime.
var startedAt = time.Now()

// Health обрабатывает GET /health.
// Возвращает 200, если процесс жив. Зависимости не проверяются.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		"version":        config.Version,
		"service":        "pdftools",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
