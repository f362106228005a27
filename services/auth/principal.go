// Package auth resolves bearer tokens to principals and enforces per-route
// authorization policies.
package auth

import "slices"

// Kind names the token namespace a principal authenticates in.
type Kind string

const (
	KindUser    Kind = "user"
	KindMailbox Kind = "mailbox"
)

// Role is the administrative role of a user principal.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleUser          Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdministrator || r == RoleUser
}

// Principal is an authenticated actor. It is implemented only by User and
// Mailbox; callers type-switch on the concrete value.
type Principal interface {
	Kind() Kind
	PrincipalID() int64
	IsActive() bool

	principal()
}

// User is an administrative or regular user account.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Role      Role
	Active    bool
	// DomainIDs are the domains assigned to the user at resolve time.
	DomainIDs []int64
}

func (User) Kind() Kind           { return KindUser }
func (u User) PrincipalID() int64 { return u.ID }
func (u User) IsActive() bool     { return u.Active }
func (User) principal()           {}

// AssignedTo reports whether the domain is in the user's assigned set.
func (u User) AssignedTo(domainID int64) bool {
	return slices.Contains(u.DomainIDs, domainID)
}

// Mailbox is a mailbox account logging in with its full address.
type Mailbox struct {
	ID         int64
	DomainID   int64
	Name       string
	DomainName string
	Active     bool
}

func (Mailbox) Kind() Kind           { return KindMailbox }
func (m Mailbox) PrincipalID() int64 { return m.ID }
func (m Mailbox) IsActive() bool     { return m.Active }
func (Mailbox) principal()           {}

// Address returns the mailbox's email address.
func (m Mailbox) Address() string {
	return m.Name + "@" + m.DomainName
}
