package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"chess-worker/bridge"
	"chess-worker/config"
)

type handler struct {
	b     *bridge.Bridge
	store *config.Store
	log   zerolog.Logger
}

func newRouter(b *bridge.Bridge, store *config.Store, log zerolog.Logger) http.Handler {
	h := &handler{b: b, store: store, log: log.With().Str("component", "http").Logger()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "queued": h.b.Queued()})
	})
	r.Get("/api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.store.Get())
	})
	r.Post("/api/request", h.request)
	r.Get("/ws", h.serveWS)
	return r
}

func (h *handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug().
			Str("rid", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// request runs one worker request and answers with its final response.
func (h *handler) request(w http.ResponseWriter, r *http.Request) {
	var req bridge.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, bridge.Response{Action: bridge.ActionError, Error: err.Error()})
		return
	}
	p := h.b.Submit(req)
	resp, err := p.Wait(r.Context())
	if r.Context().Err() != nil {
		p.Cancel()
		return
	}
	writeJSON(w, statusFor(err), resp)
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, bridge.ErrBadRequest), errors.Is(err, bridge.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, bridge.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
