package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/xraph/smsrelay"
)

// writeServiceError maps relay errors to HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr     *smsrelay.ValidationError
		relayErr *smsrelay.RelayError
	)

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "Missing required fields: "+strings.Join(vErr.Fields, ", "))
	case errors.Is(err, smsrelay.ErrDeviceNotFound):
		writeError(w, http.StatusNotFound, "Device not found")
	case errors.As(err, &relayErr):
		writeError(w, http.StatusInternalServerError, "Failed to send message to Telegram: "+relayErr.Err.Error())
	case errors.Is(err, smsrelay.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	case errors.Is(err, smsrelay.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, msgRateLimited)
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"request_id", RequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}
