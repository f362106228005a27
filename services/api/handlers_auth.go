package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin authenticates a mailbox when the address names a known domain,
// and a user by email otherwise.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		respondMessage(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if local, domainName, ok := strings.Cut(req.Email, "@"); ok {
		domain, err := a.repo.FindDomainByName(ctx, domainName)
		switch {
		case err == nil:
			a.loginMailbox(ctx, w, r, domain, local, req.Password)
			return
		case !errors.Is(err, directory.ErrNotFound):
			a.internalError(w, r, err)
			return
		}
	}
	a.loginUser(ctx, w, r, req.Email, req.Password)
}

func (a *API) loginUser(ctx context.Context, w http.ResponseWriter, r *http.Request, email, password string) {
	user, err := a.repo.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		a.rejectLogin(ctx, w, r, email, auth.KindUser, nil)
		return
	case err != nil:
		a.internalError(w, r, err)
		return
	}
	a.completeLogin(ctx, w, r, email, user.Principal(), user.PasswordHash, password)
}

func (a *API) loginMailbox(ctx context.Context, w http.ResponseWriter, r *http.Request, domain directory.Domain, name, password string) {
	address := name + "@" + domain.Name
	mailbox, err := a.repo.FindMailbox(ctx, domain.ID, name)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		a.rejectLogin(ctx, w, r, address, auth.KindMailbox, nil)
		return
	case err != nil:
		a.internalError(w, r, err)
		return
	}
	a.completeLogin(ctx, w, r, address, mailbox.Principal(), mailbox.PasswordHash, password)
}

func (a *API) completeLogin(ctx context.Context, w http.ResponseWriter, r *http.Request, identifier string, p auth.Principal, hash, password string) {
	if !auth.VerifyPassword(password, hash) {
		a.rejectLogin(ctx, w, r, identifier, p.Kind(), audit.ID(p.PrincipalID()))
		return
	}

	if !p.IsActive() {
		err := a.record(ctx, r, audit.Entry{
			EventType:  string(p.Kind()) + ".login.failed",
			EntityType: audit.EntityType(p.Kind()),
			EntityID:   audit.ID(p.PrincipalID()),
			Actor:      p,
			NewValue:   map[string]any{"reason": "account_not_active"},
			Status:     audit.StatusFailure,
		})
		if err != nil {
			a.internalError(w, r, err)
			return
		}
		respondMessage(w, http.StatusForbidden, "Account is not active")
		return
	}

	token, err := a.tokens.Issue(ctx, p)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	if err := a.ledger.LogLogin(ctx, identifier, true, p.Kind(), audit.ID(p.PrincipalID()), audit.RequestInfoFrom(r)); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (a *API) rejectLogin(ctx context.Context, w http.ResponseWriter, r *http.Request, identifier string, kind auth.Kind, id *int64) {
	if err := a.ledger.LogLogin(ctx, identifier, false, kind, id, audit.RequestInfoFrom(r)); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondMessage(w, http.StatusUnauthorized, "Invalid credentials")
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	token, _ := auth.BearerToken(r)

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	removed, err := a.tokens.Revoke(ctx, token)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	if !removed {
		// Revoked concurrently after the gate resolved it.
		respondJSON(w, http.StatusOK, map[string]any{"message": "Token not found"})
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  string(p.Kind()) + ".logout",
		EntityType: audit.EntityType(p.Kind()),
		EntityID:   audit.ID(p.PrincipalID()),
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Logged out successfully"})
}

func (a *API) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	count, err := a.tokens.RevokeAll(ctx, p)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  string(p.Kind()) + ".logout_all",
		EntityType: audit.EntityType(p.Kind()),
		EntityID:   audit.ID(p.PrincipalID()),
		NewValue:   map[string]any{"sessions_count": count},
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":        "All sessions logged out successfully",
		"sessions_count": count,
	})
}
