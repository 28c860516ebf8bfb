package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// TitlesHandler handles catalog endpoints.
type TitlesHandler struct {
	DB      *sql.DB
	Service *circulation.Service
}

type titleRequest struct {
	ISBN        string `json:"isbn"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	Year        int    `json:"year"`
	Genre       string `json:"genre"`
	TotalCopies int    `json:"total_copies"`
}

func (req titleRequest) toModel() *model.Title {
	return &model.Title{
		ISBN:        req.ISBN,
		Title:       req.Title,
		Author:      req.Author,
		Publisher:   req.Publisher,
		Year:        req.Year,
		Genre:       req.Genre,
		TotalCopies: req.TotalCopies,
	}
}

type setTotalRequest struct {
	TotalCopies *int `json:"total_copies"`
}

// List handles GET /api/titles.
func (h *TitlesHandler) List(w http.ResponseWriter, r *http.Request) {
	titles, err := store.ListTitles(r.Context(), h.DB, r.URL.Query().Get("q"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list titles")
		return
	}
	if titles == nil {
		titles = []model.Title{}
	}
	jsonResponse(w, http.StatusOK, titles)
}

// Get handles GET /api/titles/{id}.
func (h *TitlesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid title id")
		return
	}

	title, err := store.GetTitle(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get title")
		return
	}
	if title == nil || title.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "title not found")
		return
	}

	out, err := store.CountOpenLoans(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to count loans")
		return
	}
	holds, err := store.ListReservations(r.Context(), h.DB, store.Filter{
		TitleID: id, Status: model.ReservationStatusPending,
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}

	reviews, err := store.ListReviews(r.Context(), h.DB, store.Filter{
		TitleID: id, Status: model.ReviewStatusApproved,
	})
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list reviews")
		return
	}
	if reviews == nil {
		reviews = []model.Review{}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"title":                title,
		"open_loans":           out,
		"pending_reservations": len(holds),
		"reviews":              reviews,
	})
}

// Create handles POST /api/titles.
func (h *TitlesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.CreateTitle(r.Context(), GetClaims(r.Context()).Actor(), req.toModel())
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, res.Title)
}

// Update handles PUT /api/titles/{id}.
func (h *TitlesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid title id")
		return
	}

	var req titleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t := req.toModel()
	t.ID = id
	res, err := h.Service.UpdateTitle(r.Context(), GetClaims(r.Context()).Actor(), t)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res.Title)
}

// SetTotal handles PUT /api/titles/{id}/total.
func (h *TitlesHandler) SetTotal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid title id")
		return
	}

	var req setTotalRequest
	if err := decodeJSON(r, &req); err != nil || req.TotalCopies == nil {
		jsonError(w, http.StatusBadRequest, "total_copies required")
		return
	}

	res, err := h.Service.SetTotal(r.Context(), GetClaims(r.Context()).Actor(), id, *req.TotalCopies)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res.Title)
}

// Delete handles DELETE /api/titles/{id}.
func (h *TitlesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid title id")
		return
	}

	if err := h.Service.DeleteTitle(r.Context(), GetClaims(r.Context()).Actor(), id); err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "title deleted"})
}
