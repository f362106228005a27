package api

import (
	"errors"
	"net/http"
	"strconv"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
)

func (a *API) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	query := r.URL.Query()

	page, err := strconv.Atoi(query.Get("page"))
	if err != nil {
		page = 1
	}

	// Ids below 1 count as missing. Only non-admin users are told about a
	// malformed value; mailboxes are rejected by the query engine.
	var domainID *int64
	if raw := query.Get("domain_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		_, isUser := p.(auth.User)
		switch {
		case err == nil && id > 0:
			domainID = &id
		case err != nil && isUser && !auth.IsAdministrator(p):
			respondMessage(w, http.StatusBadRequest, `Parameter "domain_id" must be an integer`)
			return
		}
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	res, err := a.audits.List(ctx, p, page, domainID)
	if err != nil {
		var qerr *audit.Error
		if !errors.As(err, &qerr) {
			a.internalError(w, r, err)
			return
		}
		switch {
		case errors.Is(qerr, audit.ErrValidation):
			respondMessage(w, http.StatusBadRequest, qerr.Message)
		case errors.Is(qerr, audit.ErrAccessDenied):
			respondMessage(w, http.StatusForbidden, qerr.Message)
		case errors.Is(qerr, audit.ErrNotFound):
			respondMessage(w, http.StatusNotFound, qerr.Message)
		default:
			a.internalError(w, r, err)
		}
		return
	}

	body := map[string]any{
		"logs": mapSlice(res.Events, newAuditLogJSON),
		"pagination": map[string]any{
			"page":        res.Pagination.Page,
			"page_size":   res.Pagination.PageSize,
			"total_items": res.Pagination.TotalItems,
			"total_pages": res.Pagination.TotalPages,
		},
	}
	if res.Domain != nil {
		body["domain_id"] = res.Domain.DomainID
		body["domain_name"] = res.Domain.DomainName
	}
	respondJSON(w, http.StatusOK, body)
}
