// Package audit records immutable audit events and answers scoped,
// paginated queries over them.
package audit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"mailadmin/services/auth"
)

// EntityType classifies the subject of an event.
type EntityType string

const (
	EntityDomain        EntityType = "domain"
	EntityAlias         EntityType = "alias"
	EntityMailbox       EntityType = "mailbox"
	EntityAutoresponder EntityType = "autoresponder"
	EntityUser          EntityType = "user"
	EntityUserDomain    EntityType = "user_domain"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityDomain, EntityAlias, EntityMailbox, EntityAutoresponder, EntityUser, EntityUserDomain:
		return true
	}
	return false
}

// ActorType is the kind of actor that triggered an event.
type ActorType string

const (
	ActorUser    ActorType = "user"
	ActorMailbox ActorType = "mailbox"
	ActorSystem  ActorType = "system"
)

// Status is the outcome recorded on an event.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Actor identifies who triggered an event. System actors carry no id.
type Actor struct {
	Type ActorType
	ID   *int64
}

// ActorOf classifies p; a nil principal is the system.
func ActorOf(p auth.Principal) Actor {
	switch v := p.(type) {
	case auth.User:
		return Actor{Type: ActorUser, ID: &v.ID}
	case auth.Mailbox:
		return Actor{Type: ActorMailbox, ID: &v.ID}
	default:
		return Actor{Type: ActorSystem}
	}
}

// Event is one stored audit record. Events are never updated or deleted.
type Event struct {
	ID         int64          `json:"id"`
	ActorType  ActorType      `json:"actor_type"`
	ActorID    *int64         `json:"actor_id"`
	EventType  string         `json:"event_type"`
	EntityType EntityType     `json:"entity_type"`
	EntityID   *int64         `json:"entity_id"`
	OldValue   map[string]any `json:"old_value"`
	NewValue   map[string]any `json:"new_value"`
	IPAddress  *string        `json:"ip_address"`
	UserAgent  *string        `json:"user_agent"`
	Status     Status         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
}

const maxIPLength = 45

// RequestInfo is the client metadata copied onto events.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// RequestInfoFrom extracts the client address and user agent from r. It
// expects chi's RealIP middleware to have normalised RemoteAddr.
func RequestInfoFrom(r *http.Request) *RequestInfo {
	if r == nil {
		return nil
	}
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ip = strings.TrimSpace(ip)
	if len(ip) > maxIPLength {
		ip = ip[:maxIPLength]
	}
	return &RequestInfo{IPAddress: ip, UserAgent: r.UserAgent()}
}

// ID returns a pointer to id, for the nullable entity and actor columns.
func ID(id int64) *int64 {
	return &id
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
