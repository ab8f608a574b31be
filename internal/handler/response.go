// Package handler turns HTTP requests into service calls and service results
// into JSON responses.
//
// Every error response has the same shape:
//
//	{"error": "not_found", "message": "user not found with id abc123"}
//
// so the frontend can always read .message regardless of the status code.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/evergreeners/internal/apperror"
)

// maxBodyBytes bounds JSON request bodies. Profile updates get
// maxProfileBodyBytes since they may carry a base64 avatar.
const (
	maxBodyBytes        = 1 << 20
	maxProfileBodyBytes = 5<<20 + 64<<10
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are gone already; all we can do is log.
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError maps the apperror taxonomy to a status code. Errors outside the
// taxonomy become a generic 500 so SQL or file paths never reach clients.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, errorType := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, errorType = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrPrecondition):
		status, errorType = http.StatusBadRequest, "precondition_failed"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, errorType = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status, errorType = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, errorType = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, errorType = http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		status, errorType = http.StatusInternalServerError, "upstream_error"
	}

	writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message})
}

// readJSON decodes a single JSON object from the request body into dst.
// The returned error is an apperror validation error, ready for writeError.
func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return readJSONLimit(w, r, dst, maxBodyBytes)
}

func readJSONLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", fmt.Sprintf("request body must not exceed %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body must not be empty")
		default:
			return apperror.ValidationFailed("body", "invalid JSON body")
		}
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}
