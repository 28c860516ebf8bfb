package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// ReviewsHandler handles book review endpoints.
type ReviewsHandler struct {
	DB      *sql.DB
	Service *circulation.Service
}

type submitReviewRequest struct {
	Rating int    `json:"rating"`
	Text   string `json:"review_text"`
}

// List handles GET /api/reviews. Members only see their own reviews.
func (h *ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	reviews, err := store.ListReviews(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list reviews", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	jsonResponse(w, http.StatusOK, reviews)
}

// Submit handles POST /api/titles/{id}/reviews.
func (h *ReviewsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	titleID, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid title id")
		return
	}

	var req submitReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.SubmitReview(r.Context(), GetClaims(r.Context()).Actor(), titleID, req.Rating, req.Text)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// Moderate handles POST /api/reviews/{id}/moderate.
func (h *ReviewsHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid review id")
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.ModerateReview(r.Context(), GetClaims(r.Context()).Actor(), id, req.Decision, req.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}
