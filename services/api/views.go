package api

import (
	"mailadmin/services/audit"
	"mailadmin/services/directory"
)

type domainJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newDomainJSON(d directory.Domain) domainJSON {
	return domainJSON{
		ID:        d.ID,
		Name:      d.Name,
		Active:    d.Active,
		CreatedAt: formatTime(d.CreatedAt),
		UpdatedAt: formatTime(d.UpdatedAt),
	}
}

type userJSON struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Role      string `json:"role"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newUserJSON(u directory.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: formatTime(u.CreatedAt),
		UpdatedAt: formatTime(u.UpdatedAt),
	}
}

type mailboxJSON struct {
	ID                     int64   `json:"id"`
	DomainID               int64   `json:"domain_id"`
	Name                   string  `json:"name"`
	Active                 bool    `json:"active"`
	FooterText             *string `json:"footer_text"`
	HasActiveAutoresponder bool    `json:"has_active_autoresponder"`
	CreatedAt              string  `json:"created_at"`
	UpdatedAt              string  `json:"updated_at"`
}

func newMailboxJSON(m directory.Mailbox) mailboxJSON {
	return mailboxJSON{
		ID:                     m.ID,
		DomainID:               m.DomainID,
		Name:                   m.Name,
		Active:                 m.Active,
		FooterText:             m.FooterText,
		HasActiveAutoresponder: m.AutoresponderActive,
		CreatedAt:              formatTime(m.CreatedAt),
		UpdatedAt:              formatTime(m.UpdatedAt),
	}
}

type aliasJSON struct {
	ID        int64  `json:"id"`
	DomainID  int64  `json:"domain_id"`
	Name      string `json:"name"`
	To        string `json:"to"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func newAliasJSON(a directory.Alias) aliasJSON {
	return aliasJSON{
		ID:        a.ID,
		DomainID:  a.DomainID,
		Name:      a.Name,
		To:        a.To,
		Active:    a.Active,
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

type autoresponderJSON struct {
	ID        int64   `json:"id"`
	Active    bool    `json:"active"`
	Subject   string  `json:"subject"`
	Body      string  `json:"body"`
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

func newAutoresponderJSON(a directory.Autoresponder) autoresponderJSON {
	return autoresponderJSON{
		ID:        a.ID,
		Active:    a.Active,
		Subject:   a.Subject,
		Body:      a.Body,
		StartDate: formatOptionalTime(a.StartDate),
		EndDate:   formatOptionalTime(a.EndDate),
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

type auditLogJSON struct {
	ID         int64          `json:"id"`
	ActorType  string         `json:"actor_type"`
	ActorID    *int64         `json:"actor_id"`
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   *int64         `json:"entity_id"`
	OldValue   map[string]any `json:"old_value"`
	NewValue   map[string]any `json:"new_value"`
	IPAddress  *string        `json:"ip_address"`
	UserAgent  *string        `json:"user_agent"`
	Status     string         `json:"status"`
	CreatedAt  string         `json:"created_at"`
}

func newAuditLogJSON(e audit.Event) auditLogJSON {
	return auditLogJSON{
		ID:         e.ID,
		ActorType:  string(e.ActorType),
		ActorID:    e.ActorID,
		EventType:  e.EventType,
		EntityType: string(e.EntityType),
		EntityID:   e.EntityID,
		OldValue:   e.OldValue,
		NewValue:   e.NewValue,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		Status:     string(e.Status),
		CreatedAt:  formatTime(e.CreatedAt),
	}
}

func mapSlice[T, V any](items []T, fn func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
