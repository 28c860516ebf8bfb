package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// PatronsHandler handles patron management endpoints.
type PatronsHandler struct {
	DB      *sql.DB
	Service *circulation.Service
}

type createPatronRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	FullName string     `json:"full_name"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

type updatePatronRequest struct {
	FullName string     `json:"full_name"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/patrons.
func (h *PatronsHandler) List(w http.ResponseWriter, r *http.Request) {
	patrons, err := store.ListPatrons(r.Context(), h.DB, r.URL.Query().Get("status"))
	if err != nil {
		slog.Error("failed to list patrons", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list patrons")
		return
	}
	if patrons == nil {
		patrons = []model.Patron{}
	}
	jsonResponse(w, http.StatusOK, patrons)
}

// Create handles POST /api/patrons. Staff-created accounts start active.
func (h *PatronsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPatronRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" || req.Role == "" {
		jsonError(w, http.StatusBadRequest, "username, password, and role required")
		return
	}
	if !req.Role.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	claims := GetClaims(r.Context())
	if !model.HasPermission(claims.Role, req.Role) {
		jsonError(w, http.StatusForbidden, "cannot grant a role above your own")
		return
	}

	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	patron, err := store.CreatePatron(r.Context(), h.DB, &model.Patron{
		Username:     req.Username,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Email:        req.Email,
		Role:         req.Role,
		Status:       model.PatronStatusActive,
	})
	if err != nil {
		jsonError(w, http.StatusConflict, "username already exists")
		return
	}

	slog.Info("patron created", "user", claims.Username, "new_user", req.Username, "role", req.Role)
	jsonResponse(w, http.StatusCreated, patron)
}

// Get handles GET /api/patrons/{id}.
func (h *PatronsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid patron id")
		return
	}

	patron, err := store.GetPatron(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get patron", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get patron")
		return
	}
	if patron == nil {
		jsonError(w, http.StatusNotFound, "patron not found")
		return
	}

	jsonResponse(w, http.StatusOK, patron)
}

// Update handles PUT /api/patrons/{id}. An empty role leaves the role as is.
func (h *PatronsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid patron id")
		return
	}

	var req updatePatronRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Role != "" && !req.Role.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	claims := GetClaims(r.Context())
	target, err := store.GetPatron(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get patron", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get patron")
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "patron not found")
		return
	}
	if !model.HasPermission(claims.Role, target.Role) {
		jsonError(w, http.StatusForbidden, "cannot modify a patron above your own role")
		return
	}

	roleChange := req.Role != "" && req.Role != target.Role
	if roleChange && !model.HasPermission(claims.Role, req.Role) {
		jsonError(w, http.StatusForbidden, "cannot grant a role above your own")
		return
	}

	var patron *model.Patron
	err = db.RunInTx(r.Context(), h.DB, func(tx *sql.Tx) error {
		if err := store.UpdatePatronProfile(r.Context(), tx, id, req.FullName, req.Email); err != nil {
			return err
		}
		if roleChange {
			if err := store.UpdatePatronRole(r.Context(), tx, id, req.Role); err != nil {
				return err
			}
		}
		var err error
		patron, err = store.GetPatron(r.Context(), tx, id)
		return err
	})
	if err != nil {
		slog.Error("failed to update patron", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update patron")
		return
	}

	if roleChange {
		slog.Info("patron role updated", "user", claims.Username, "target_user", target.Username, "new_role", req.Role)
	}
	jsonResponse(w, http.StatusOK, patron)
}

// SetStatus handles PUT /api/patrons/{id}/status.
func (h *PatronsHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid patron id")
		return
	}

	var req setStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.Service.SetPatronStatus(r.Context(), GetClaims(r.Context()).Actor(), id, req.Status)
	if err != nil {
		serviceError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// ResetPassword handles PUT /api/patrons/{id}/password.
func (h *PatronsHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid patron id")
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := GetClaims(r.Context())
	target, err := store.GetPatron(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get patron", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get patron")
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "patron not found")
		return
	}
	if !model.HasPermission(claims.Role, target.Role) {
		jsonError(w, http.StatusForbidden, "cannot modify a patron above your own role")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdatePatronPassword(r.Context(), h.DB, id, string(hash)); err != nil {
		slog.Error("failed to reset password", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	slog.Info("patron password reset", "user", claims.Username, "target_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/patrons/{id}.
func (h *PatronsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid patron id")
		return
	}

	claims := GetClaims(r.Context())
	if claims.PatronID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	target, err := store.GetPatron(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get patron", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get patron")
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "patron not found")
		return
	}
	if !model.HasPermission(claims.Role, target.Role) {
		jsonError(w, http.StatusForbidden, "cannot delete a patron above your own role")
		return
	}

	if err := store.DeletePatron(r.Context(), h.DB, id); err != nil {
		slog.Error("failed to delete patron", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete patron")
		return
	}

	slog.Info("patron deleted", "user", claims.Username, "deleted_user", target.Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "patron deleted"})
}
