package api

import (
	"net/http"
	"strings"

	"mailadmin/services/audit"
	"mailadmin/services/directory"
)

type createAliasRequest struct {
	Name   string `json:"name" validate:"required,min=1,max=255"`
	To     string `json:"to" validate:"required,email,max=255"`
	Active *bool  `json:"active"`
}

type updateAliasRequest struct {
	Name   *string `json:"name" validate:"omitnil,min=1,max=255"`
	To     *string `json:"to" validate:"omitnil,email,max=255"`
	Active *bool   `json:"active"`
}

func aliasState(a directory.Alias) map[string]any {
	return map[string]any{"name": a.Name, "to": a.To, "active": a.Active}
}

func (a *API) loadAlias(w http.ResponseWriter, r *http.Request) (directory.Alias, bool) {
	domain, ok := a.loadDomain(w, r)
	if !ok {
		return directory.Alias{}, false
	}
	id, ok := pathID(r, "id")
	if !ok {
		respondMessage(w, http.StatusNotFound, "Alias not found")
		return directory.Alias{}, false
	}
	alias, err := a.repo.GetAlias(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, r, err, "Alias not found")
		return directory.Alias{}, false
	}
	if alias.DomainID != domain.ID {
		respondMessage(w, http.StatusNotFound, "Alias not found")
		return directory.Alias{}, false
	}
	return alias, true
}

func (a *API) handleListAliases(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	domain, ok := a.loadDomain(w, r.WithContext(ctx))
	if !ok {
		return
	}
	aliases, err := a.repo.ListAliases(ctx, domain.ID)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"domain_id":   domain.ID,
		"domain_name": domain.Name,
		"aliases":     mapSlice(aliases, newAliasJSON),
		"total":       len(aliases),
	})
}

func (a *API) handleCreateAlias(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	domain, ok := a.loadDomain(w, r.WithContext(ctx))
	if !ok {
		return
	}
	var req createAliasRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	req.Name, req.To = strings.TrimSpace(req.Name), strings.TrimSpace(req.To)
	if !a.validateRequest(w, r, &req) {
		return
	}

	alias := directory.Alias{
		DomainID: domain.ID,
		Name:     req.Name,
		To:       req.To,
		Active:   req.Active == nil || *req.Active,
	}
	if err := a.repo.CreateAlias(ctx, &alias); err != nil {
		a.respondStoreError(w, r, err, "Domain not found")
		return
	}
	newValue := aliasState(alias)
	newValue["domain_id"] = alias.DomainID
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "alias.created",
		EntityType: audit.EntityAlias,
		EntityID:   audit.ID(alias.ID),
		NewValue:   newValue,
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Alias created successfully",
		"alias":   newAliasJSON(alias),
	})
}

func (a *API) handleUpdateAlias(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	alias, ok := a.loadAlias(w, r.WithContext(ctx))
	if !ok {
		return
	}
	var req updateAliasRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	if !a.validateRequest(w, r, &req) {
		return
	}

	before := alias
	changed := false
	if req.Name != nil {
		alias.Name, changed = strings.TrimSpace(*req.Name), true
	}
	if req.To != nil {
		alias.To, changed = strings.TrimSpace(*req.To), true
	}
	if req.Active != nil {
		alias.Active, changed = *req.Active, true
	}

	if changed {
		if err := a.repo.UpdateAlias(ctx, &alias); err != nil {
			a.respondStoreError(w, r, err, "Alias not found")
			return
		}
		entries := []audit.Entry{{
			EventType:  "alias.updated",
			EntityType: audit.EntityAlias,
			EntityID:   audit.ID(alias.ID),
			OldValue:   aliasState(before),
			NewValue:   aliasState(alias),
		}}
		if event, flipped := activationEvent("alias", before.Active, alias.Active); flipped {
			entries = append(entries, audit.Entry{
				EventType:  event,
				EntityType: audit.EntityAlias,
				EntityID:   audit.ID(alias.ID),
				OldValue:   map[string]any{"active": before.Active},
				NewValue:   map[string]any{"active": alias.Active},
			})
		}
		for _, entry := range entries {
			if err := a.record(ctx, r, entry); err != nil {
				a.internalError(w, r, err)
				return
			}
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Alias updated successfully",
		"alias":   newAliasJSON(alias),
	})
}

func (a *API) handleDeleteAlias(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	alias, ok := a.loadAlias(w, r.WithContext(ctx))
	if !ok {
		return
	}
	if err := a.repo.DeleteAlias(ctx, alias.ID); err != nil {
		a.respondStoreError(w, r, err, "Alias not found")
		return
	}
	oldValue := aliasState(alias)
	oldValue["domain_id"] = alias.DomainID
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "alias.deleted",
		EntityType: audit.EntityAlias,
		EntityID:   audit.ID(alias.ID),
		OldValue:   oldValue,
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Alias deleted successfully"})
}
