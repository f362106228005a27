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

type createMailboxRequest struct {
	Name       string  `json:"name" validate:"required,min=1,max=255"`
	Password   string  `json:"password" validate:"required,min=8"`
	Active     *bool   `json:"active"`
	FooterText *string `json:"footer_text"`
}

type updateMailboxRequest struct {
	Name       *string `json:"name" validate:"omitnil,min=1,max=255"`
	Password   *string `json:"password" validate:"omitnil,min=8"`
	Active     *bool   `json:"active"`
	FooterText *string `json:"footer_text"`
}

func mailboxState(m directory.Mailbox) map[string]any {
	return map[string]any{
		"name":        m.Name,
		"active":      m.Active,
		"footer_text": m.FooterText,
	}
}

// loadMailbox resolves the path domain and a mailbox inside it. A mailbox
// that belongs to another domain is reported as missing.
func (a *API) loadMailbox(w http.ResponseWriter, r *http.Request) (directory.Domain, directory.Mailbox, bool) {
	domain, ok := a.loadDomain(w, r)
	if !ok {
		return directory.Domain{}, directory.Mailbox{}, false
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondMessage(w, http.StatusNotFound, "Mailbox not found")
		return directory.Domain{}, directory.Mailbox{}, false
	}
	mailbox, err := a.repo.GetMailbox(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, r, err, "Mailbox not found")
		return directory.Domain{}, directory.Mailbox{}, false
	}
	if mailbox.DomainID != domain.ID {
		respondMessage(w, http.StatusNotFound, "Mailbox not found")
		return directory.Domain{}, directory.Mailbox{}, false
	}
	if !auth.CanManageMailbox(principal(r), mailbox.ID, mailbox.DomainID) {
		respondMessage(w, http.StatusForbidden, "Access denied")
		return directory.Domain{}, directory.Mailbox{}, false
	}
	return domain, mailbox, true
}

func (a *API) handleListMailboxes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	domain, ok := a.loadDomain(w, r.WithContext(ctx))
	if !ok {
		return
	}
	mailboxes, err := a.repo.ListMailboxes(ctx, domain.ID)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"domain_id":   domain.ID,
		"domain_name": domain.Name,
		"mailboxes":   mapSlice(mailboxes, newMailboxJSON),
		"total":       len(mailboxes),
	})
}

func (a *API) handleCreateMailbox(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	domain, ok := a.loadDomain(w, r.WithContext(ctx))
	if !ok {
		return
	}
	var req createMailboxRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if !a.validateRequest(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	mailbox := directory.Mailbox{
		DomainID:     domain.ID,
		Name:         req.Name,
		PasswordHash: hash,
		Active:       req.Active == nil || *req.Active,
		FooterText:   req.FooterText,
	}
	if err := a.repo.CreateMailbox(ctx, &mailbox); err != nil {
		if errors.Is(err, directory.ErrConflict) {
			respondMessage(w, http.StatusConflict, "Mailbox with this name already exists in this domain")
			return
		}
		a.internalError(w, r, err)
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "mailbox.created",
		EntityType: audit.EntityMailbox,
		EntityID:   audit.ID(mailbox.ID),
		NewValue: map[string]any{
			"domain_id":   mailbox.DomainID,
			"name":        mailbox.Name,
			"active":      mailbox.Active,
			"footer_text": mailbox.FooterText,
		},
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Mailbox created successfully",
		"mailbox": newMailboxJSON(mailbox),
	})
}

func (a *API) handleUpdateMailbox(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	_, mailbox, ok := a.loadMailbox(w, r.WithContext(ctx))
	if !ok {
		return
	}
	var req updateMailboxRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		req.Name = &name
	}
	if !a.validateRequest(w, r, &req) {
		return
	}

	before := mailbox
	changed := false
	if req.Name != nil {
		mailbox.Name, changed = *req.Name, true
	}
	if req.Password != nil {
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			a.internalError(w, r, err)
			return
		}
		mailbox.PasswordHash, changed = hash, true
	}
	if req.Active != nil {
		mailbox.Active, changed = *req.Active, true
	}
	if req.FooterText != nil {
		mailbox.FooterText, changed = req.FooterText, true
	}

	if changed {
		if err := a.repo.UpdateMailbox(ctx, &mailbox); err != nil {
			if errors.Is(err, directory.ErrConflict) {
				respondMessage(w, http.StatusConflict, "Mailbox with this name already exists in this domain")
				return
			}
			a.respondStoreError(w, r, err, "Mailbox not found")
			return
		}
		if err := a.recordMailboxChange(ctx, r, before, mailbox); err != nil {
			a.internalError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Mailbox updated successfully",
		"mailbox": newMailboxJSON(mailbox),
	})
}

func (a *API) recordMailboxChange(ctx context.Context, r *http.Request, before, after directory.Mailbox) error {
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "mailbox.updated",
		EntityType: audit.EntityMailbox,
		EntityID:   audit.ID(after.ID),
		OldValue:   mailboxState(before),
		NewValue:   mailboxState(after),
	}); err != nil {
		return err
	}
	event, flipped := activationEvent("mailbox", before.Active, after.Active)
	if !flipped {
		return nil
	}
	return a.record(ctx, r, audit.Entry{
		EventType:  event,
		EntityType: audit.EntityMailbox,
		EntityID:   audit.ID(after.ID),
		OldValue:   map[string]any{"active": before.Active},
		NewValue:   map[string]any{"active": after.Active},
	})
}

func (a *API) handleSetMailboxPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	_, mailbox, ok := a.loadMailbox(w, r.WithContext(ctx))
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
	mailbox.PasswordHash = hash
	if err := a.repo.UpdateMailbox(ctx, &mailbox); err != nil {
		a.respondStoreError(w, r, err, "Mailbox not found")
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "mailbox.password_changed_by_admin",
		EntityType: audit.EntityMailbox,
		EntityID:   audit.ID(mailbox.ID),
		NewValue: map[string]any{
			"mailbox_name": mailbox.Name,
			"domain_id":    mailbox.DomainID,
		},
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

func (a *API) handleDeleteMailbox(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	_, mailbox, ok := a.loadMailbox(w, r.WithContext(ctx))
	if !ok {
		return
	}
	if err := a.repo.DeleteMailbox(ctx, mailbox.ID); err != nil {
		a.respondStoreError(w, r, err, "Mailbox not found")
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "mailbox.deleted",
		EntityType: audit.EntityMailbox,
		EntityID:   audit.ID(mailbox.ID),
		OldValue: map[string]any{
			"id":          mailbox.ID,
			"domain_id":   mailbox.DomainID,
			"name":        mailbox.Name,
			"active":      mailbox.Active,
			"footer_text": mailbox.FooterText,
		},
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Mailbox deleted successfully"})
}

func (a *API) handleLogoutMailbox(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	_, mailbox, ok := a.loadMailbox(w, r.WithContext(ctx))
	if !ok {
		return
	}
	removed, err := a.tokens.RevokeAll(ctx, mailbox.Principal())
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "mailbox.logout_all_by_admin",
		EntityType: audit.EntityMailbox,
		EntityID:   audit.ID(mailbox.ID),
		NewValue: map[string]any{
			"mailbox_name":   mailbox.Name,
			"domain_id":      mailbox.DomainID,
			"tokens_removed": removed,
		},
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":        "All mailbox sessions logged out successfully",
		"tokens_removed": removed,
	})
}
