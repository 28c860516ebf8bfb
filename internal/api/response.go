package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// serviceError maps a circulation error onto an HTTP status.
func serviceError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, circulation.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, circulation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, circulation.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, circulation.ErrInvalidState),
		errors.Is(err, circulation.ErrOutOfStock),
		errors.Is(err, circulation.ErrAlreadySettled),
		errors.Is(err, store.ErrVersionConflict):
		status = http.StatusConflict
	default:
		slog.Error("circulation operation failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	jsonError(w, status, err.Error())
}

// pathID parses the {id} path parameter.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

// listFilter reads the common list parameters. Members only ever see their
// own rows.
func listFilter(r *http.Request) (store.Filter, error) {
	f := store.Filter{Status: r.URL.Query().Get("status")}

	var err error
	if f.PatronID, err = queryInt64(r, "patron_id"); err != nil {
		return f, err
	}
	if f.TitleID, err = queryInt64(r, "title_id"); err != nil {
		return f, err
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		return f, err
	}
	offset, err := queryInt64(r, "offset")
	if err != nil {
		return f, err
	}
	f.Limit, f.Offset = int(limit), int(offset)

	if claims := GetClaims(r.Context()); !isStaff(claims) && claims != nil {
		f.PatronID = claims.PatronID
	}
	return f, nil
}
