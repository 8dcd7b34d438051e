package api

import (
	"crypto/subtle"
	"net/http"
)

const headerAPIKey = "X-Api-Key"

// requireAPIKey rejects requests whose X-Api-Key does not match the
// configured key. An unset key rejects everything.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	want := []byte(h.config.APIKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(headerAPIKey))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			h.logger.WarnContext(r.Context(), "unauthorized request",
				"path", r.URL.Path,
				"request_id", RequestID(r.Context()),
			)
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
