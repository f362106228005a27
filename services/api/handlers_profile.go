package api

import (
	"net/http"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

const minPasswordLength = 8

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch p := principal(r).(type) {
	case auth.User:
		respondJSON(w, http.StatusOK, map[string]any{
			"id":        p.ID,
			"email":     p.Email,
			"firstname": p.FirstName,
			"lastname":  p.LastName,
			"role":      string(p.Role),
			"active":    p.Active,
			"type":      string(auth.KindUser),
		})
	case auth.Mailbox:
		respondJSON(w, http.StatusOK, map[string]any{
			"id":     p.ID,
			"name":   p.Name,
			"email":  p.Address(),
			"domain": p.DomainName,
			"active": p.Active,
			"type":   string(auth.KindMailbox),
		})
	}
}

func (a *API) handleChangeOwnPassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	switch {
	case req.CurrentPassword == "":
		respondMessage(w, http.StatusBadRequest, `Field "current_password" is required`)
		return
	case req.NewPassword == "":
		respondMessage(w, http.StatusBadRequest, `Field "new_password" is required`)
		return
	case len(req.NewPassword) < minPasswordLength:
		respondMessage(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	p := principal(r)
	var currentHash string
	var save func(hash string) error
	switch v := p.(type) {
	case auth.User:
		user, err := a.repo.GetUser(ctx, v.ID)
		if err != nil {
			a.respondStoreError(w, r, err, "User not found")
			return
		}
		currentHash = user.PasswordHash
		save = func(hash string) error {
			user.PasswordHash = hash
			return a.repo.UpdateUser(ctx, &user)
		}
	case auth.Mailbox:
		mailbox, err := a.repo.GetMailbox(ctx, v.ID)
		if err != nil {
			a.respondStoreError(w, r, err, "Mailbox not found")
			return
		}
		currentHash = mailbox.PasswordHash
		save = func(hash string) error {
			mailbox.PasswordHash = hash
			return a.repo.UpdateMailbox(ctx, &mailbox)
		}
	}

	if !auth.VerifyPassword(req.CurrentPassword, currentHash) {
		respondMessage(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	if err := save(hash); err != nil {
		a.internalError(w, r, err)
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  string(p.Kind()) + ".password_changed",
		EntityType: audit.EntityType(p.Kind()),
		EntityID:   audit.ID(p.PrincipalID()),
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

func (a *API) handleOwnDomains(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(r).(auth.User)
	if !ok {
		respondMessage(w, http.StatusForbidden, "Mailboxes cannot access domain list")
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var (
		domains []directory.Domain
		err     error
	)
	if auth.IsAdministrator(user) {
		domains, err = a.repo.ListDomains(ctx)
	} else {
		domains, err = a.repo.ListDomainsByID(ctx, user.DomainIDs)
	}
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"domains": mapSlice(domains, newDomainJSON),
		"total":   len(domains),
	})
}
