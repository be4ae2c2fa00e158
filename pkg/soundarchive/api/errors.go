package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/sound-archive/pkg/soundarchive"
)

// ErrorBody is the JSON envelope for every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code         string   `json:"code"`
	Message      string   `json:"message"`
	Field        string   `json:"field,omitempty"`
	Part         string   `json:"part,omitempty"`
	OrphanedKeys []string `json:"orphaned_keys,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, soundarchive.ErrAdminUnavailable):
		return http.StatusServiceUnavailable, "admin_unavailable"
	case errors.Is(err, soundarchive.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, soundarchive.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, soundarchive.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, soundarchive.ErrPartialFailure):
		return http.StatusBadGateway, "partial_failure"
	case errors.Is(err, soundarchive.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, soundarchive.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	detail := ErrorDetail{Code: code, Message: err.Error()}

	var verr *soundarchive.ValidationError
	if errors.As(err, &verr) {
		detail.Field = verr.Field
		detail.Message = verr.Error()
	}
	var uerr *soundarchive.UploadError
	if errors.As(err, &uerr) {
		detail.Part = uerr.Part
		detail.OrphanedKeys = uerr.OrphanedKeys
	}

	switch {
	case status >= 500:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
		if status == http.StatusInternalServerError {
			detail.Message = http.StatusText(status)
		}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		// do not echo verification details back to callers
		detail.Message = http.StatusText(status)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorBody{Error: detail})
}

func badRequest(w http.ResponseWriter, r *http.Request, field, reason string) {
	writeError(w, r, soundarchive.NewValidationError(field, reason))
}
