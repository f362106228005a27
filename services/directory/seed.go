package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
)

// Fixtures is the YAML document accepted by Seeder.Apply.
type Fixtures struct {
	Domains []DomainFixture `yaml:"domains"`
	Users   []UserFixture   `yaml:"users"`
}

type DomainFixture struct {
	Name      string           `yaml:"name"`
	Active    *bool            `yaml:"active"`
	Mailboxes []MailboxFixture `yaml:"mailboxes"`
	Aliases   []AliasFixture   `yaml:"aliases"`
}

type MailboxFixture struct {
	Name       string  `yaml:"name"`
	Password   string  `yaml:"password"`
	Active     *bool   `yaml:"active"`
	FooterText *string `yaml:"footer_text"`
}

type AliasFixture struct {
	Name   string `yaml:"name"`
	To     string `yaml:"to"`
	Active *bool  `yaml:"active"`
}

type UserFixture struct {
	Email     string   `yaml:"email"`
	Password  string   `yaml:"password"`
	FirstName string   `yaml:"firstname"`
	LastName  string   `yaml:"lastname"`
	Role      string   `yaml:"role"`
	Active    *bool    `yaml:"active"`
	Domains   []string `yaml:"domains"`
}

// LoadFixtures decodes a fixtures document, rejecting unknown keys.
func LoadFixtures(r io.Reader) (Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Fixtures{}, fmt.Errorf("decode fixtures: %w", err)
	}
	return f, nil
}

// SeedReport counts the records a seeding run created.
type SeedReport struct {
	Domains     int
	Users       int
	Assignments int
	Mailboxes   int
	Aliases     int
}

// Seeder creates initial records and records them in the audit ledger as the
// system actor. Records that already exist are left untouched.
type Seeder struct {
	repo   Repository
	ledger *audit.Ledger
	log    zerolog.Logger
}

func NewSeeder(repo Repository, ledger *audit.Ledger, log zerolog.Logger) *Seeder {
	return &Seeder{repo: repo, ledger: ledger, log: log}
}

// SeedAdmin creates an administrator with the given credentials unless a user
// with that email exists. It reports whether a user was created.
func (s *Seeder) SeedAdmin(ctx context.Context, email, password string) (bool, error) {
	_, err := s.repo.FindUserByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case !isNotFound(err):
		return false, err
	}

	created, err := s.createUser(ctx, UserFixture{
		Email:     email,
		Password:  password,
		FirstName: "Admin",
		LastName:  "Admin",
		Role:      string(auth.RoleAdministrator),
	})
	if err != nil {
		return false, err
	}
	s.log.Info().Str("email", email).Int64("user_id", created.ID).Msg("seeded administrator")
	return true, nil
}

// Apply creates every fixture record that does not exist yet.
func (s *Seeder) Apply(ctx context.Context, f Fixtures) (SeedReport, error) {
	var report SeedReport
	domainIDs := make(map[string]int64, len(f.Domains))

	for _, df := range f.Domains {
		domain, created, err := s.ensureDomain(ctx, df)
		if err != nil {
			return report, err
		}
		if created {
			report.Domains++
		}
		domainIDs[domain.Name] = domain.ID

		for _, mf := range df.Mailboxes {
			created, err := s.ensureMailbox(ctx, domain, mf)
			if err != nil {
				return report, err
			}
			if created {
				report.Mailboxes++
			}
		}
		for _, af := range df.Aliases {
			created, err := s.ensureAlias(ctx, domain, af)
			if err != nil {
				return report, err
			}
			if created {
				report.Aliases++
			}
		}
	}

	for _, uf := range f.Users {
		user, err := s.repo.FindUserByEmail(ctx, uf.Email)
		switch {
		case isNotFound(err):
			if user, err = s.createUser(ctx, uf); err != nil {
				return report, err
			}
			report.Users++
		case err != nil:
			return report, err
		}

		for _, name := range uf.Domains {
			domainID, ok := domainIDs[NormalizeDomainName(name)]
			if !ok {
				d, err := s.repo.FindDomainByName(ctx, NormalizeDomainName(name))
				if err != nil {
					return report, fmt.Errorf("user %s: domain %s: %w", uf.Email, name, err)
				}
				domainID = d.ID
			}
			err := s.repo.AssignDomain(ctx, user.ID, domainID)
			switch {
			case errors.Is(err, ErrConflict):
				continue
			case err != nil:
				return report, err
			}
			report.Assignments++
			if err := s.record(ctx, "user_domain.assigned", audit.EntityUserDomain, domainID, map[string]any{
				"user_id":     user.ID,
				"user_email":  user.Email,
				"domain_id":   domainID,
				"domain_name": NormalizeDomainName(name),
			}); err != nil {
				return report, err
			}
		}
	}

	s.log.Info().
		Int("domains", report.Domains).
		Int("users", report.Users).
		Int("assignments", report.Assignments).
		Int("mailboxes", report.Mailboxes).
		Int("aliases", report.Aliases).
		Msg("fixtures applied")
	return report, nil
}

func (s *Seeder) ensureDomain(ctx context.Context, df DomainFixture) (Domain, bool, error) {
	name := NormalizeDomainName(df.Name)
	if !ValidDomainName(name) {
		return Domain{}, false, fmt.Errorf("invalid domain name %q", df.Name)
	}
	existing, err := s.repo.FindDomainByName(ctx, name)
	switch {
	case err == nil:
		return existing, false, nil
	case !isNotFound(err):
		return Domain{}, false, err
	}

	d := Domain{Name: name, Active: boolOr(df.Active, true)}
	if err := s.repo.CreateDomain(ctx, &d); err != nil {
		return Domain{}, false, err
	}
	err = s.record(ctx, "domain.created", audit.EntityDomain, d.ID, map[string]any{
		"name":   d.Name,
		"active": d.Active,
	})
	return d, true, err
}

func (s *Seeder) ensureMailbox(ctx context.Context, domain Domain, mf MailboxFixture) (bool, error) {
	name := strings.TrimSpace(mf.Name)
	_, err := s.repo.FindMailbox(ctx, domain.ID, name)
	switch {
	case err == nil:
		return false, nil
	case !isNotFound(err):
		return false, err
	}

	hash, err := auth.HashPassword(mf.Password)
	if err != nil {
		return false, fmt.Errorf("mailbox %s@%s: %w", name, domain.Name, err)
	}
	m := Mailbox{
		DomainID:     domain.ID,
		Name:         name,
		PasswordHash: hash,
		Active:       boolOr(mf.Active, true),
		FooterText:   mf.FooterText,
	}
	if err := s.repo.CreateMailbox(ctx, &m); err != nil {
		return false, err
	}
	return true, s.record(ctx, "mailbox.created", audit.EntityMailbox, m.ID, map[string]any{
		"domain_id":   m.DomainID,
		"name":        m.Name,
		"active":      m.Active,
		"footer_text": m.FooterText,
	})
}

func (s *Seeder) ensureAlias(ctx context.Context, domain Domain, af AliasFixture) (bool, error) {
	existing, err := s.repo.ListAliases(ctx, domain.ID)
	if err != nil {
		return false, err
	}
	for _, a := range existing {
		if a.Name == af.Name && a.To == af.To {
			return false, nil
		}
	}

	a := Alias{DomainID: domain.ID, Name: af.Name, To: af.To, Active: boolOr(af.Active, true)}
	if err := s.repo.CreateAlias(ctx, &a); err != nil {
		return false, err
	}
	return true, s.record(ctx, "alias.created", audit.EntityAlias, a.ID, map[string]any{
		"domain_id": a.DomainID,
		"name":      a.Name,
		"to":        a.To,
		"active":    a.Active,
	})
}

func (s *Seeder) createUser(ctx context.Context, uf UserFixture) (User, error) {
	role := auth.Role(uf.Role)
	if role == "" {
		role = auth.RoleUser
	}
	if !role.Valid() {
		return User{}, fmt.Errorf("user %s: invalid role %q", uf.Email, uf.Role)
	}
	hash, err := auth.HashPassword(uf.Password)
	if err != nil {
		return User{}, fmt.Errorf("user %s: %w", uf.Email, err)
	}
	u := User{
		Email:        strings.TrimSpace(uf.Email),
		PasswordHash: hash,
		FirstName:    uf.FirstName,
		LastName:     uf.LastName,
		Role:         role,
		Active:       boolOr(uf.Active, true),
	}
	if err := s.repo.CreateUser(ctx, &u); err != nil {
		return User{}, err
	}
	return u, s.record(ctx, "user.created", audit.EntityUser, u.ID, map[string]any{
		"email":     u.Email,
		"firstname": u.FirstName,
		"lastname":  u.LastName,
		"role":      string(u.Role),
		"active":    u.Active,
	})
}

func (s *Seeder) record(ctx context.Context, eventType string, entity audit.EntityType, id int64, newValue map[string]any) error {
	return s.ledger.Append(ctx, audit.Entry{
		EventType:  eventType,
		EntityType: entity,
		EntityID:   audit.ID(id),
		NewValue:   newValue,
	})
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
