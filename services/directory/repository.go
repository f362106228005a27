package directory

import (
	"context"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
)

type DomainStore interface {
	// ListDomains returns every domain ordered by name.
	ListDomains(ctx context.Context) ([]Domain, error)
	// ListDomainsByID returns the named domains ordered by name.
	ListDomainsByID(ctx context.Context, ids []int64) ([]Domain, error)
	GetDomain(ctx context.Context, id int64) (Domain, error)
	FindDomainByName(ctx context.Context, name string) (Domain, error)
	CreateDomain(ctx context.Context, d *Domain) error
	UpdateDomain(ctx context.Context, d *Domain) error
	// DeleteDomain removes the domain with its aliases, mailboxes and assignments.
	DeleteDomain(ctx context.Context, id int64) error
	// DomainManagers returns the users assigned to the domain.
	DomainManagers(ctx context.Context, domainID int64) ([]User, error)
}

type UserStore interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u *User) error
	UpdateUser(ctx context.Context, u *User) error
	// AssignDomain returns ErrConflict when the pair already exists.
	AssignDomain(ctx context.Context, userID, domainID int64) error
	// UnassignDomain returns ErrNotFound when the pair does not exist.
	UnassignDomain(ctx context.Context, userID, domainID int64) error
}

type MailboxStore interface {
	ListMailboxes(ctx context.Context, domainID int64) ([]Mailbox, error)
	GetMailbox(ctx context.Context, id int64) (Mailbox, error)
	FindMailbox(ctx context.Context, domainID int64, name string) (Mailbox, error)
	CreateMailbox(ctx context.Context, m *Mailbox) error
	UpdateMailbox(ctx context.Context, m *Mailbox) error
	DeleteMailbox(ctx context.Context, id int64) error
}

type AliasStore interface {
	ListAliases(ctx context.Context, domainID int64) ([]Alias, error)
	GetAlias(ctx context.Context, id int64) (Alias, error)
	CreateAlias(ctx context.Context, a *Alias) error
	UpdateAlias(ctx context.Context, a *Alias) error
	DeleteAlias(ctx context.Context, id int64) error
}

type AutoresponderStore interface {
	GetAutoresponder(ctx context.Context, mailboxID int64) (Autoresponder, error)
	// SaveAutoresponder creates or replaces the mailbox's autoresponder.
	SaveAutoresponder(ctx context.Context, a *Autoresponder) error
	DeleteAutoresponder(ctx context.Context, mailboxID int64) error
}

// Repository is everything the API needs from persistence.
type Repository interface {
	DomainStore
	UserStore
	MailboxStore
	AliasStore
	AutoresponderStore
	auth.TokenRepository
	audit.DomainLookup

	Ping(ctx context.Context) error
}
