package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusSource yields the current harvest snapshot.
type StatusSource interface {
	Snapshot() Snapshot
}

// Handler exposes harvest status over HTTP.
type Handler struct {
	source StatusSource
	logger *zap.Logger
}

// NewHandler wires the status source and logger.
func NewHandler(source StatusSource, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, logger: logger}
}

// Routes mounts the status endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/v1/harvest", func(r chi.Router) {
		r.Use(requestIDMiddleware)
		r.Use(h.recoverMiddleware)
		r.Get("/status", h.getStatus)
	})
}

func (h *Handler) getStatus(w http.ResponseWriter, _ *http.Request) {
	if h.source == nil {
		h.writeError(w, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	h.writeJSON(w, http.StatusOK, h.source.Snapshot())
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				reqID, _ := r.Context().Value(requestIDKey{}).(string)
				h.logger.Error("panic recovered", zap.Any("error", rec), zap.String("request_id", reqID))
				h.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
