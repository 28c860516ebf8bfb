package api

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// CirculationHandler handles request, reservation, loan and fine endpoints.
type CirculationHandler struct {
	DB      *sql.DB
	Service *circulation.Service
}

type submitRequest struct {
	TitleID int64  `json:"title_id"`
	Notes   string `json:"notes"`
}

type reviewRequest struct {
	Decision circulation.Decision `json:"decision"`
	Notes    string               `json:"notes"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type issueLoanRequest struct {
	PatronID int64  `json:"patron_id"`
	TitleID  int64  `json:"title_id"`
	LoanDays int    `json:"loan_days"`
	Notes    string `json:"notes"`
}

// decodeOptional decodes a body that may be empty.
func decodeOptional(r *http.Request, target any) error {
	if err := decodeJSON(r, target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ListRequests handles GET /api/requests.
func (h *CirculationHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	requests, err := store.ListRequests(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list requests", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.CirculationRequest{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// SubmitRequest handles POST /api/requests.
func (h *CirculationHandler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TitleID <= 0 {
		jsonError(w, http.StatusBadRequest, "title_id required")
		return
	}

	res, err := h.Service.SubmitRequest(r.Context(), GetClaims(r.Context()).Actor(), req.TitleID, req.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// ReviewRequest handles POST /api/requests/{id}/review.
func (h *CirculationHandler) ReviewRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.ReviewRequest(r.Context(), GetClaims(r.Context()).Actor(), id, req.Decision, req.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// FulfillRequest handles POST /api/requests/{id}/fulfill.
func (h *CirculationHandler) FulfillRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	res, err := h.Service.FulfillRequest(r.Context(), GetClaims(r.Context()).Actor(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// ListReservations handles GET /api/reservations.
func (h *CirculationHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	reservations, err := store.ListReservations(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list reservations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}
	if reservations == nil {
		reservations = []model.Reservation{}
	}
	jsonResponse(w, http.StatusOK, reservations)
}

// CreateReservation handles POST /api/reservations.
func (h *CirculationHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TitleID <= 0 {
		jsonError(w, http.StatusBadRequest, "title_id required")
		return
	}

	res, err := h.Service.CreateReservation(r.Context(), GetClaims(r.Context()).Actor(), req.TitleID, req.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// FulfillReservation handles POST /api/reservations/{id}/fulfill.
func (h *CirculationHandler) FulfillReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req notesRequest
	if err := decodeOptional(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.FulfillReservation(r.Context(), GetClaims(r.Context()).Actor(), id, req.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// CancelReservation handles POST /api/reservations/{id}/cancel.
func (h *CirculationHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	var req notesRequest
	if err := decodeOptional(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.CancelReservation(r.Context(), GetClaims(r.Context()).Actor(), id, req.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// ListLoans handles GET /api/loans.
func (h *CirculationHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	loans, err := store.ListLoans(r.Context(), h.DB, f)
	if err != nil {
		slog.Error("failed to list loans", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list loans")
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// GetLoan handles GET /api/loans/{key}, where key is a numeric ID or a loan
// reference.
func (h *CirculationHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var loan *model.Loan
	var err error
	if id, perr := strconv.ParseInt(key, 10, 64); perr == nil {
		loan, err = store.GetLoan(r.Context(), h.DB, id)
	} else {
		loan, err = store.GetLoanByRef(r.Context(), h.DB, key)
	}
	if err != nil {
		slog.Error("failed to get loan", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get loan")
		return
	}

	claims := GetClaims(r.Context())
	if loan == nil || (!isStaff(claims) && loan.PatronID != claims.PatronID) {
		jsonError(w, http.StatusNotFound, "loan not found")
		return
	}

	fine, err := store.GetFineByLoan(r.Context(), h.DB, loan.ID)
	if err != nil {
		slog.Error("failed to get fine", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get loan")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"loan": loan,
		"fine": fine,
	})
}

// IssueLoan handles POST /api/loans.
func (h *CirculationHandler) IssueLoan(w http.ResponseWriter, r *http.Request) {
	var req issueLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PatronID <= 0 || req.TitleID <= 0 {
		jsonError(w, http.StatusBadRequest, "patron_id and title_id required")
		return
	}

	res, err := h.Service.IssueLoan(r.Context(), GetClaims(r.Context()).Actor(),
		req.PatronID, req.TitleID, req.LoanDays, req.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusCreated, res)
}

// ReturnLoan handles POST /api/loans/{id}/return.
func (h *CirculationHandler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid loan id")
		return
	}

	var req notesRequest
	if err := decodeOptional(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.ReturnLoan(r.Context(), GetClaims(r.Context()).Actor(), id, req.Notes)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// Sweep handles POST /api/circulation/sweep.
func (h *CirculationHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.SweepOverdue(r.Context(), GetClaims(r.Context()).Actor())
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// ListFines handles GET /api/fines.
func (h *CirculationHandler) ListFines(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	fines, err := store.ListFines(r.Context(), h.DB, store.FineFilter{
		PaidStatus: f.Status,
		PatronID:   f.PatronID,
		Limit:      f.Limit,
		Offset:     f.Offset,
	})
	if err != nil {
		slog.Error("failed to list fines", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list fines")
		return
	}
	if fines == nil {
		fines = []model.Fine{}
	}
	jsonResponse(w, http.StatusOK, fines)
}

// PayFine handles POST /api/fines/{id}/pay.
func (h *CirculationHandler) PayFine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid fine id")
		return
	}

	res, err := h.Service.PayFine(r.Context(), GetClaims(r.Context()).Actor(), id)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}
