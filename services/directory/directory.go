// Package directory holds the mail domain inventory: domains, users and their
// domain assignments, mailboxes, aliases and autoresponders.
package directory

import (
	"regexp"
	"strings"
	"time"

	"mailadmin/services/auth"
)

var domainNamePattern = regexp.MustCompile(`(?i)^[a-z0-9]+([\-.][a-z0-9]+)*\.[a-z]{2,}$`)

// ValidDomainName reports whether name is an acceptable mail domain.
func ValidDomainName(name string) bool {
	return len(name) >= 3 && len(name) <= 255 && domainNamePattern.MatchString(name)
}

// NormalizeDomainName trims and lowercases a domain name.
func NormalizeDomainName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type Domain struct {
	ID        int64
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         auth.Role
	Active       bool
	// DomainIDs is populated on reads; writes ignore it.
	DomainIDs []int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Principal returns the authorization view of u.
func (u User) Principal() auth.User {
	return auth.User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		Active:    u.Active,
		DomainIDs: u.DomainIDs,
	}
}

type Mailbox struct {
	ID           int64
	DomainID     int64
	DomainName   string
	Name         string
	PasswordHash string
	Active       bool
	FooterText   *string
	// AutoresponderActive is true when an autoresponder exists and is enabled.
	AutoresponderActive bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Address returns name@domain.
func (m Mailbox) Address() string {
	return m.Name + "@" + m.DomainName
}

// Principal returns the authorization view of m.
func (m Mailbox) Principal() auth.Mailbox {
	return auth.Mailbox{
		ID:         m.ID,
		DomainID:   m.DomainID,
		Name:       m.Name,
		DomainName: m.DomainName,
		Active:     m.Active,
	}
}

type Alias struct {
	ID        int64
	DomainID  int64
	Name      string
	To        string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Autoresponder is the out-of-office reply of one mailbox.
type Autoresponder struct {
	ID        int64
	MailboxID int64
	Active    bool
	Subject   string
	Body      string
	StartDate *time.Time
	EndDate   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
