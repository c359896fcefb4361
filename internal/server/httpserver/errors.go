package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jk100/archiv-admin/internal/errs"
)

type errorBody struct {
	Error string `json:"error"`
}

// statusOf maps core errors onto HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInvalidCredentials), errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrFileDelete), errors.Is(err, errs.ErrBackend):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status and msg, falling back to the status text.
func writeError(w http.ResponseWriter, err error, msg string) {
	code := statusOf(err)
	if msg == "" {
		msg = http.StatusText(code)
	}
	writeJSON(w, code, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
