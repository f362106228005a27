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

type createUserRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstname" validate:"required,min=2,max=100"`
	LastName  string `json:"lastname" validate:"required,min=2,max=100"`
	Role      string `json:"role" validate:"required,oneof=administrator user"`
	Active    *bool  `json:"active"`
}

type updateUserRequest struct {
	Email     *string `json:"email" validate:"omitnil,email,max=255"`
	FirstName *string `json:"firstname" validate:"omitnil,min=2,max=100"`
	LastName  *string `json:"lastname" validate:"omitnil,min=2,max=100"`
	Role      *string `json:"role" validate:"omitnil,oneof=administrator user"`
	Active    *bool   `json:"active"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

func userSnapshot(u directory.User) map[string]any {
	return map[string]any{
		"email":     u.Email,
		"firstname": u.FirstName,
		"lastname":  u.LastName,
		"role":      string(u.Role),
		"active":    u.Active,
	}
}

func (a *API) loadUser(w http.ResponseWriter, r *http.Request) (directory.User, bool) {
	id, ok := pathID(r, "userID")
	if !ok {
		respondMessage(w, http.StatusNotFound, "User not found")
		return directory.User{}, false
	}
	user, err := a.repo.GetUser(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, r, err, "User not found")
		return directory.User{}, false
	}
	return user, true
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	users, err := a.repo.ListUsers(ctx)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"users": mapSlice(users, newUserJSON),
		"total": len(users),
	})
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, ok := a.loadUser(w, r.WithContext(ctx))
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"user": newUserJSON(user)})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if !a.validateRequest(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	user := directory.User{
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         auth.Role(req.Role),
		Active:       req.Active == nil || *req.Active,
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.repo.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, directory.ErrConflict) {
			respondMessage(w, http.StatusConflict, "User with this email already exists")
			return
		}
		a.internalError(w, r, err)
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "user.created",
		EntityType: audit.EntityUser,
		EntityID:   audit.ID(user.ID),
		NewValue:   userSnapshot(user),
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"user":    newUserJSON(user),
	})
}

func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, ok := a.loadUser(w, r.WithContext(ctx))
	if !ok {
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	if !a.validateRequest(w, r, &req) {
		return
	}

	before := user
	changed := false
	if req.Email != nil {
		user.Email, changed = strings.TrimSpace(*req.Email), true
	}
	if req.FirstName != nil {
		user.FirstName, changed = *req.FirstName, true
	}
	if req.LastName != nil {
		user.LastName, changed = *req.LastName, true
	}
	if req.Role != nil {
		user.Role, changed = auth.Role(*req.Role), true
	}
	if req.Active != nil {
		user.Active, changed = *req.Active, true
	}

	if changed {
		if err := a.repo.UpdateUser(ctx, &user); err != nil {
			if errors.Is(err, directory.ErrConflict) {
				respondMessage(w, http.StatusConflict, "Email is already taken")
				return
			}
			a.respondStoreError(w, r, err, "User not found")
			return
		}
		if err := a.recordUserChange(ctx, r, before, user); err != nil {
			a.internalError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    newUserJSON(user),
	})
}

func (a *API) recordUserChange(ctx context.Context, r *http.Request, before, after directory.User) error {
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "user.updated",
		EntityType: audit.EntityUser,
		EntityID:   audit.ID(after.ID),
		OldValue:   userSnapshot(before),
		NewValue:   userSnapshot(after),
	}); err != nil {
		return err
	}
	event, flipped := activationEvent("user", before.Active, after.Active)
	if !flipped {
		return nil
	}
	return a.record(ctx, r, audit.Entry{
		EventType:  event,
		EntityType: audit.EntityUser,
		EntityID:   audit.ID(after.ID),
		OldValue:   map[string]any{"active": before.Active},
		NewValue:   map[string]any{"active": after.Active},
	})
}

func (a *API) handleSetUserPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, ok := a.loadUser(w, r.WithContext(ctx))
	if !ok {
		return
	}
	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil || req.Password == "" {
		respondMessage(w, http.StatusBadRequest, "Password is required")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	user.PasswordHash = hash
	if err := a.repo.UpdateUser(ctx, &user); err != nil {
		a.respondStoreError(w, r, err, "User not found")
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "user.password_changed_by_admin",
		EntityType: audit.EntityUser,
		EntityID:   audit.ID(user.ID),
		NewValue:   map[string]any{"password_changed": true},
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

func (a *API) handleLogoutUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, ok := a.loadUser(w, r.WithContext(ctx))
	if !ok {
		return
	}
	removed, err := a.tokens.RevokeAll(ctx, user.Principal())
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "user.logout_all_by_admin",
		EntityType: audit.EntityUser,
		EntityID:   audit.ID(user.ID),
		NewValue:   map[string]any{"sessions_removed": removed},
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":          "All user sessions logged out successfully",
		"sessions_removed": removed,
	})
}

func userDomainPayload(u directory.User, d directory.Domain) map[string]any {
	return map[string]any{
		"user_id":     u.ID,
		"user_email":  u.Email,
		"domain_id":   d.ID,
		"domain_name": d.Name,
	}
}

func (a *API) loadUserAndDomain(w http.ResponseWriter, r *http.Request) (directory.User, directory.Domain, bool) {
	user, ok := a.loadUser(w, r)
	if !ok {
		return directory.User{}, directory.Domain{}, false
	}
	domainID, ok := pathID(r, "domainID")
	if !ok {
		respondMessage(w, http.StatusNotFound, "Domain not found")
		return directory.User{}, directory.Domain{}, false
	}
	domain, err := a.repo.GetDomain(r.Context(), domainID)
	if err != nil {
		a.respondStoreError(w, r, err, "Domain not found")
		return directory.User{}, directory.Domain{}, false
	}
	return user, domain, true
}

func (a *API) handleAssignDomain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, domain, ok := a.loadUserAndDomain(w, r.WithContext(ctx))
	if !ok {
		return
	}
	if err := a.repo.AssignDomain(ctx, user.ID, domain.ID); err != nil {
		if errors.Is(err, directory.ErrConflict) {
			respondMessage(w, http.StatusConflict, "User already assigned to this domain")
			return
		}
		a.internalError(w, r, err)
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "user_domain.assigned",
		EntityType: audit.EntityUserDomain,
		EntityID:   audit.ID(domain.ID),
		NewValue:   userDomainPayload(user, domain),
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":     "User assigned to domain successfully",
		"user_id":     user.ID,
		"domain_id":   domain.ID,
		"domain_name": domain.Name,
	})
}

func (a *API) handleUnassignDomain(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	user, domain, ok := a.loadUserAndDomain(w, r.WithContext(ctx))
	if !ok {
		return
	}
	if err := a.repo.UnassignDomain(ctx, user.ID, domain.ID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			respondMessage(w, http.StatusNotFound, "User is not assigned to this domain")
			return
		}
		a.internalError(w, r, err)
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "user_domain.unassigned",
		EntityType: audit.EntityUserDomain,
		EntityID:   audit.ID(domain.ID),
		OldValue:   userDomainPayload(user, domain),
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "User unassigned from domain successfully"})
}
