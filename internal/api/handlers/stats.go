// stats.go — HTTP handler публичного счётчика обработанных файлов.
package handlers

import (
	"encoding/json"
	"net/http"
)

// StatsSummary обрабатывает GET /v1/stats/summary.
func (a *API) StatsSummary(w http.ResponseWriter, _ *http.Request) {
	s := a.counter.Summary()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(s)
}
