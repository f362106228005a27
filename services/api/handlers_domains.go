package api

import (
	"errors"
	"net/http"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

type createDomainRequest struct {
	Name string `json:"name" validate:"required,min=3,max=255,domainname"`
}

type updateDomainRequest struct {
	Name   *string `json:"name" validate:"omitnil,min=3,max=255,domainname"`
	Active *bool   `json:"active"`
}

func domainSnapshot(d directory.Domain) map[string]any {
	return map[string]any{"name": d.Name, "active": d.Active}
}

// activationEvent names the follow-up event recorded when an active flag flips.
func activationEvent(entity string, before, after bool) (string, bool) {
	switch {
	case !before && after:
		return entity + ".activated", true
	case before && !after:
		return entity + ".deactivated", true
	}
	return "", false
}

func (a *API) handleListDomains(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	domains, err := a.repo.ListDomains(ctx)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"domains": mapSlice(domains, newDomainJSON),
		"total":   len(domains),
	})
}

func (a *API) handleCreateDomain(w http.ResponseWriter, r *http.Request) {
	var req createDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	req.Name = directory.NormalizeDomainName(req.Name)
	if !a.validateRequest(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	domain := directory.Domain{Name: req.Name, Active: true}
	if err := a.repo.CreateDomain(ctx, &domain); err != nil {
		if errors.Is(err, directory.ErrConflict) {
			respondMessage(w, http.StatusConflict, "Domain with this name already exists")
			return
		}
		a.internalError(w, r, err)
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "domain.created",
		EntityType: audit.EntityDomain,
		EntityID:   audit.ID(domain.ID),
		NewValue:   domainSnapshot(domain),
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "Domain created successfully",
		"domain":  newDomainJSON(domain),
	})
}

func (a *API) handleUpdateDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "domainID")
	if !ok {
		respondMessage(w, http.StatusNotFound, "Domain not found")
		return
	}
	var req updateDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	if req.Name != nil {
		name := directory.NormalizeDomainName(*req.Name)
		req.Name = &name
	}
	if !a.validateRequest(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	domain, err := a.repo.GetDomain(ctx, id)
	if err != nil {
		a.respondStoreError(w, r, err, "Domain not found")
		return
	}
	before := domain
	if req.Name != nil {
		domain.Name = *req.Name
	}
	if req.Active != nil {
		domain.Active = *req.Active
	}
	if err := a.repo.UpdateDomain(ctx, &domain); err != nil {
		if errors.Is(err, directory.ErrConflict) {
			respondMessage(w, http.StatusConflict, "Domain with this name already exists")
			return
		}
		a.respondStoreError(w, r, err, "Domain not found")
		return
	}

	oldValue, newValue := domainSnapshot(before), domainSnapshot(domain)
	entries := []audit.Entry{{
		EventType:  "domain.updated",
		EntityType: audit.EntityDomain,
		EntityID:   audit.ID(domain.ID),
		OldValue:   oldValue,
		NewValue:   newValue,
	}}
	if event, flipped := activationEvent("domain", before.Active, domain.Active); flipped {
		entries = append(entries, audit.Entry{
			EventType:  event,
			EntityType: audit.EntityDomain,
			EntityID:   audit.ID(domain.ID),
			OldValue:   oldValue,
			NewValue:   newValue,
		})
	}
	for _, entry := range entries {
		if err := a.record(ctx, r, entry); err != nil {
			a.internalError(w, r, err)
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Domain updated successfully",
		"domain":  newDomainJSON(domain),
	})
}

func (a *API) handleDeleteDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "domainID")
	if !ok {
		respondMessage(w, http.StatusNotFound, "Domain not found")
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	domain, err := a.repo.GetDomain(ctx, id)
	if err != nil {
		a.respondStoreError(w, r, err, "Domain not found")
		return
	}
	if err := a.repo.DeleteDomain(ctx, id); err != nil {
		a.respondStoreError(w, r, err, "Domain not found")
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "domain.deleted",
		EntityType: audit.EntityDomain,
		EntityID:   audit.ID(id),
		OldValue:   domainSnapshot(domain),
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Domain deleted successfully"})
}

// loadDomain checks that the caller may act on the path domain before looking
// it up, so unassigned callers cannot probe which domains exist.
func (a *API) loadDomain(w http.ResponseWriter, r *http.Request) (directory.Domain, bool) {
	id, ok := pathID(r, "domainID")
	if !ok {
		respondMessage(w, http.StatusNotFound, "Domain not found")
		return directory.Domain{}, false
	}
	if !auth.CanAccessDomain(principal(r), id) {
		respondMessage(w, http.StatusForbidden, "Access denied")
		return directory.Domain{}, false
	}
	domain, err := a.repo.GetDomain(r.Context(), id)
	if err != nil {
		a.respondStoreError(w, r, err, "Domain not found")
		return directory.Domain{}, false
	}
	return domain, true
}

func (a *API) handleDomainManagers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	domain, ok := a.loadDomain(w, r.WithContext(ctx))
	if !ok {
		return
	}
	managers, err := a.repo.DomainManagers(ctx, domain.ID)
	if err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"domain_id":   domain.ID,
		"domain_name": domain.Name,
		"managers":    mapSlice(managers, newUserJSON),
		"total":       len(managers),
	})
}
