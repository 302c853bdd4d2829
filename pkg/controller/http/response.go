package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/usecase"
	"github.com/secmon-lab/tasklane/pkg/utils/errutil"
)

const maxJSONBody = 1 << 20

// envelope wraps every JSON response
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// quotaData is attached to a rejected upload
type quotaData struct {
	AllowedCount int `json:"allowedCount"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body envelope) {
	data, err := json.Marshal(body)
	if err != nil {
		errutil.HandleHTTP(r.Context(), r, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}

func writeData(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	writeJSON(w, r, status, envelope{Success: true, Message: message, Data: data})
}

// errorStatus maps use case errors to a status code and a client facing
// message. Anything unknown is an internal error whose details stay in the
// log.
func errorStatus(err error) (int, string) {
	var qe *usecase.QuotaExceededError
	switch {
	case errors.As(err, &qe):
		return http.StatusBadRequest, qe.Error()
	case errors.Is(err, usecase.ErrTaskNotFound):
		return http.StatusNotFound, "Task not found"
	case errors.Is(err, usecase.ErrDocumentNotFound):
		return http.StatusNotFound, "Document not found"
	case errors.Is(err, usecase.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, usecase.ErrForbidden):
		return http.StatusForbidden, "Access denied"
	case errors.Is(err, usecase.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, usecase.ErrConflict):
		return http.StatusConflict, message(err, usecase.ErrConflict)
	case errors.Is(err, usecase.ErrValidation):
		return http.StatusBadRequest, message(err, usecase.ErrValidation)
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// message drops the sentinel text from the end of a wrapped error
func message(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := errorStatus(err)
	errutil.HandleHTTP(r.Context(), r, err, status)

	body := envelope{Success: false, Message: msg}
	var qe *usecase.QuotaExceededError
	if errors.As(err, &qe) {
		body.Data = quotaData{AllowedCount: qe.AllowedCount}
	}
	writeJSON(w, r, status, body)
}

// decodeJSON reads a bounded JSON body into v
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return goerr.Wrap(usecase.ErrValidation, "invalid request body", goerr.V("reason", err.Error()))
	}
	return nil
}
