package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

var autoresponderDateLayouts = []string{
	time.DateOnly,
	time.DateTime,
	time.RFC3339,
}

type updateFooterRequest struct {
	FooterText *string `json:"footer_text" validate:"omitnil,max=65535"`
}

type putAutoresponderRequest struct {
	Subject string `json:"subject" validate:"required,max=255"`
	Body    string `json:"body" validate:"required"`
	Active  *bool  `json:"active"`
	// Dates are left unchanged when omitted and cleared when empty.
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

// selfMailbox returns the calling mailbox or writes 403 for user principals.
func selfMailbox(w http.ResponseWriter, r *http.Request) (auth.Mailbox, bool) {
	m, ok := principal(r).(auth.Mailbox)
	if !ok {
		respondMessage(w, http.StatusForbidden, "This endpoint is only for mailboxes")
	}
	return m, ok
}

func autoresponderState(a directory.Autoresponder) map[string]any {
	return map[string]any{
		"active":     a.Active,
		"subject":    a.Subject,
		"body":       a.Body,
		"start_date": formatOptionalTime(a.StartDate),
		"end_date":   formatOptionalTime(a.EndDate),
	}
}

// parseAutoresponderDate applies a date field from the request onto current.
func parseAutoresponderDate(raw *string, current *time.Time) (*time.Time, bool) {
	if raw == nil {
		return current, true
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return nil, true
	}
	for _, layout := range autoresponderDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

func (a *API) handleGetFooter(w http.ResponseWriter, r *http.Request) {
	self, ok := selfMailbox(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	mailbox, err := a.repo.GetMailbox(ctx, self.ID)
	if err != nil {
		a.respondStoreError(w, r, err, "Mailbox not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":          mailbox.ID,
		"footer_text": mailbox.FooterText,
	})
}

func (a *API) handleUpdateFooter(w http.ResponseWriter, r *http.Request) {
	self, ok := selfMailbox(w, r)
	if !ok {
		return
	}
	var req updateFooterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	if !a.validateRequest(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	mailbox, err := a.repo.GetMailbox(ctx, self.ID)
	if err != nil {
		a.respondStoreError(w, r, err, "Mailbox not found")
		return
	}
	before := mailbox.FooterText
	mailbox.FooterText = req.FooterText
	if err := a.repo.UpdateMailbox(ctx, &mailbox); err != nil {
		a.respondStoreError(w, r, err, "Mailbox not found")
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "mailbox.footer_updated",
		EntityType: audit.EntityMailbox,
		EntityID:   audit.ID(mailbox.ID),
		OldValue:   map[string]any{"footer_text": before},
		NewValue:   map[string]any{"footer_text": mailbox.FooterText},
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":          mailbox.ID,
		"footer_text": mailbox.FooterText,
	})
}

func (a *API) handleGetAutoresponder(w http.ResponseWriter, r *http.Request) {
	self, ok := selfMailbox(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	ar, err := a.repo.GetAutoresponder(ctx, self.ID)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		respondJSON(w, http.StatusOK, map[string]any{
			"autoresponder": nil,
			"message":       "No autoresponder configured",
		})
	case err != nil:
		a.internalError(w, r, err)
	default:
		respondJSON(w, http.StatusOK, map[string]any{"autoresponder": newAutoresponderJSON(ar)})
	}
}

func (a *API) handlePutAutoresponder(w http.ResponseWriter, r *http.Request) {
	self, ok := selfMailbox(w, r)
	if !ok {
		return
	}
	var req putAutoresponderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadBody(w, err)
		return
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if !a.validateRequest(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	current, err := a.repo.GetAutoresponder(ctx, self.ID)
	exists := err == nil
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		a.internalError(w, r, err)
		return
	}

	next := current
	next.MailboxID = self.ID
	next.Subject = req.Subject
	next.Body = req.Body
	if req.Active != nil {
		next.Active = *req.Active
	}
	if next.StartDate, ok = parseAutoresponderDate(req.StartDate, current.StartDate); !ok {
		respondMessage(w, http.StatusBadRequest, "Invalid start_date format")
		return
	}
	if next.EndDate, ok = parseAutoresponderDate(req.EndDate, current.EndDate); !ok {
		respondMessage(w, http.StatusBadRequest, "Invalid end_date format")
		return
	}
	if next.StartDate != nil && next.EndDate != nil && next.EndDate.Before(*next.StartDate) {
		respondMessage(w, http.StatusBadRequest, "end_date must not be before start_date")
		return
	}

	if err := a.repo.SaveAutoresponder(ctx, &next); err != nil {
		a.respondStoreError(w, r, err, "Mailbox not found")
		return
	}

	entry := audit.Entry{
		EventType:  "autoresponder.created",
		EntityType: audit.EntityAutoresponder,
		EntityID:   audit.ID(self.ID),
		NewValue:   autoresponderState(next),
	}
	if exists {
		entry.EventType = "autoresponder.updated"
		entry.OldValue = autoresponderState(current)
	}
	if err := a.record(ctx, r, entry); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message":       "Autoresponder updated successfully",
		"autoresponder": newAutoresponderJSON(next),
	})
}

func (a *API) handleDeleteAutoresponder(w http.ResponseWriter, r *http.Request) {
	self, ok := selfMailbox(w, r)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	current, err := a.repo.GetAutoresponder(ctx, self.ID)
	if err != nil {
		a.respondStoreError(w, r, err, "No autoresponder to delete")
		return
	}
	if err := a.repo.DeleteAutoresponder(ctx, self.ID); err != nil {
		a.respondStoreError(w, r, err, "No autoresponder to delete")
		return
	}
	if err := a.record(ctx, r, audit.Entry{
		EventType:  "autoresponder.deleted",
		EntityType: audit.EntityAutoresponder,
		EntityID:   audit.ID(self.ID),
		OldValue:   autoresponderState(current),
	}); err != nil {
		a.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"message": "Autoresponder deleted successfully"})
}
