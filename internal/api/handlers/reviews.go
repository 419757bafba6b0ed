// reviews.go — HTTP handlers агрегата оценок.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/pdftools/internal/api/errors"
	"github.com/bigkaa/pdftools/internal/storage/reviews"
)

// reviewRequest — тело запроса POST /v1/reviews.
type reviewRequest struct {
	Rating int `json:"rating"`
}

// reviewSummary — агрегат оценок для ответа API.
// Имена reviewCount/ratingValue совпадают с разметкой aggregateRating,
// которую потребляет фронтенд.
type reviewSummary struct {
	ReviewCount  int64            `json:"reviewCount"`
	RatingValue  float64          `json:"ratingValue"`
	Distribution map[string]int64 `json:"distribution"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ReviewsSummary обрабатывает GET /v1/reviews/summary.
func (a *API) ReviewsSummary(w http.ResponseWriter, _ *http.Request) {
	agg := a.reviews.Summary()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(toReviewSummary(agg))
}

// AddReview обрабатывает POST /v1/reviews.
// Принимает оценку 1..5 и возвращает обновлённый агрегат.
func (a *API) AddReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.InvalidRequest(w, "Malformed JSON body")
		return
	}

	if req.Rating < 1 || req.Rating > 5 {
		apierrors.InvalidRating(w, "Field 'rating' must be between 1 and 5")
		return
	}

	agg, err := a.reviews.Add(req.Rating)
	if err != nil {
		a.logger.Error("Ошибка сохранения оценки",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Failed to store review")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toReviewSummary(agg))
}

// toReviewSummary преобразует агрегат хранилища в ответ API.
func toReviewSummary(agg reviews.Aggregate) reviewSummary {
	return reviewSummary{
		ReviewCount:  agg.Count,
		RatingValue:  agg.Average(),
		Distribution: agg.Distribution,
		UpdatedAt:    agg.UpdatedAt,
	}
}
