package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Success   bool             `json:"success"`
	ErrorKind domain.ErrorKind `json:"error_kind,omitempty"`
	Error     string           `json:"error"`
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindStateInvalid, domain.KindStateExpired, domain.KindInvalidInput,
		domain.KindMediaKindMismatch, domain.KindMediaUnreachable:
		return http.StatusBadRequest
	case domain.KindAuthDenied, domain.KindCredentialError:
		return http.StatusUnauthorized
	case domain.KindNoConnection, domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindNoPostableAsset, domain.KindPartialCarouselFailure, domain.KindProviderRejected:
		return http.StatusUnprocessableEntity
	case domain.KindNotConfigured, domain.KindUnsupported:
		return http.StatusNotImplemented
	case domain.KindProviderUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("http: encode response: %v", err)
	}
}

// writeError writes err with the status of its kind. Internal errors are
// logged and replaced with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	message := domain.ProviderMessage(err)
	if kind == domain.KindInternal {
		logger.Slog().ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	writeJSON(w, StatusFor(kind), errorResponse{
		ErrorKind: kind,
		Error:     message,
	})
}
