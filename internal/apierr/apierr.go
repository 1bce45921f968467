// Package apierr renders the JSON error envelope shared by every endpoint.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/tahcohcat/pizzeria-ops/internal/logger"
	"github.com/tahcohcat/pizzeria-ops/internal/services"
)

const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeInternal     = "internal"
)

// ErrorResponse is the error body returned by the API.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
}

// ToStatusCode maps an error code to its HTTP status.
func ToStatusCode(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeConflict:
		return http.StatusConflict
	case CodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Write sends an error envelope with the status matching code.
func Write(w http.ResponseWriter, r *http.Request, code, message string) {
	WriteJSON(w, ToStatusCode(code), ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// Code classifies an error returned by the services.
func Code(err error) string {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return CodeBadRequest
	case errors.Is(err, services.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrInsufficientStock):
		return CodeConflict
	case errors.Is(err, services.ErrInvalidInput):
		return CodeBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return CodeUnauthorized
	case errors.Is(err, services.ErrAccountDisabled):
		return CodeForbidden
	default:
		return CodeInternal
	}
}

// WriteError maps err to an envelope. Internal errors are logged and their
// details kept out of the response.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code := Code(err)
	if code == CodeInternal {
		logger.New().WithError(err).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
		Write(w, r, code, "internal server error")
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		Write(w, r, code, validationMessage(verrs))
		return
	}
	Write(w, r, code, err.Error())
}

func validationMessage(verrs validator.ValidationErrors) string {
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}
