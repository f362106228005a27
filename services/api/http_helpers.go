package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

const timeLayout = "2006-01-02 15:04:05"

func decodeJSON(r *http.Request, dest any) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	respondMessage(w, status, err.Error())
}

// respondMessage writes {"error": message}.
func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"error": message})
}

func respondBadBody(w http.ResponseWriter, err error) {
	respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
}

func (a *API) internalError(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	respondMessage(w, http.StatusInternalServerError, "Internal server error")
}

// respondStoreError maps persistence errors onto responses. notFound is the
// message for directory.ErrNotFound.
func (a *API) respondStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		respondMessage(w, http.StatusNotFound, notFound)
	case errors.Is(err, directory.ErrConflict):
		respondMessage(w, http.StatusConflict, "Resource already exists")
	default:
		a.internalError(w, r, err)
	}
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 5*time.Second)
}

// pathID parses a numeric route parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// principal returns the caller bound by the auth gate. Only call it from
// routes that are not Open.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

// record appends an audit event for the current request. The acting principal
// defaults to the caller.
func (a *API) record(ctx context.Context, r *http.Request, entry audit.Entry) error {
	if entry.Actor == nil {
		entry.Actor = principal(r)
	}
	entry.Request = audit.RequestInfoFrom(r)
	return a.ledger.Append(ctx, entry)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
