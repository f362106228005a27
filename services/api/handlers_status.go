package api

import (
	"net/http"
	"time"
)

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   Version,
		"timestamp": a.now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	for _, p := range a.ready {
		if err := p.Ping(ctx); err != nil {
			a.log.Warn().Err(err).Msg("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
