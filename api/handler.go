// Package api provides the HTTP surface of smsrelay.
//
// Three POST routes under /api relay messages and manage device
// registrations. Each passes through rate limiting, the API key gate and
// JSON Schema validation, in that order, before reaching the relay service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/xraph/smsrelay"
	"github.com/xraph/smsrelay/observability"
	"github.com/xraph/smsrelay/ratelimit"
)

// Handler is the root HTTP handler for smsrelay.
type Handler struct {
	relay   *smsrelay.Relay
	config  Config
	limiter *ratelimit.Limiter
	metrics *observability.Metrics
	logger  *slog.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithMetrics enables per-request Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithLimiter replaces the limiter built from Config.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// NewHandler creates the HTTP handler for r.
func NewHandler(r *smsrelay.Relay, cfg Config, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Handler{
		relay:  r,
		config: cfg,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.limiter == nil {
		h.limiter = ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)
	}

	h.registerRoutes()
	h.handler = h.withMiddleware(h.mux)
	return h
}

func (h *Handler) registerRoutes() {
	h.mux.Handle("POST /api/sendToTelegram", h.apiRoute(sendSchema, h.sendToTelegram))
	h.mux.Handle("POST /api/registerDevice", h.apiRoute(registerSchema, h.registerDevice))
	h.mux.Handle("POST /api/processSms", h.apiRoute(processSchema, h.processSms))

	h.mux.HandleFunc("GET /ping", h.ping)
	h.mux.HandleFunc("GET /{$}", h.root)

	// Catch-all so unknown paths and wrong methods both get the JSON 404.
	h.mux.HandleFunc("/", h.notFound)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Limiter returns the rate limiter guarding /api routes.
func (h *Handler) Limiter() *ratelimit.Limiter {
	return h.limiter
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.panicRecovery(h.requestID(h.logging(h.instrument(next))))
}

// apiRoute wraps an /api handler with rate limiting, the key gate and body
// validation.
func (h *Handler) apiRoute(s *requestSchema, next http.HandlerFunc) http.Handler {
	return h.rateLimit(h.requireAPIKey(h.validateBody(s, next)))
}

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}

func writeSuccess(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, envelope{Status: statusSuccess, Message: msg})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Status: statusError, Message: msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
