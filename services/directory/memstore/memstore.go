// Package memstore is an in-process implementation of the directory and audit
// repositories. It backs tests and STORE_DRIVER=memory.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

type tokenRow struct {
	kind      auth.Kind
	ownerID   int64
	createdAt time.Time
}

type assignment struct {
	userID   int64
	domainID int64
}

// Store keeps every record in maps guarded by one mutex. Ids are assigned from
// a single sequence shared by all tables.
type Store struct {
	mu  sync.RWMutex
	seq int64
	now func() time.Time

	domains        map[int64]directory.Domain
	users          map[int64]directory.User
	assignments    map[assignment]struct{}
	mailboxes      map[int64]directory.Mailbox
	aliases        map[int64]directory.Alias
	autoresponders map[int64]directory.Autoresponder // keyed by mailbox id
	tokens         map[string]tokenRow
	events         []audit.Event
}

var (
	_ directory.Repository = (*Store)(nil)
	_ audit.Repository     = (*Store)(nil)
)

func New() *Store {
	return &Store{
		now:            time.Now,
		domains:        make(map[int64]directory.Domain),
		users:          make(map[int64]directory.User),
		assignments:    make(map[assignment]struct{}),
		mailboxes:      make(map[int64]directory.Mailbox),
		aliases:        make(map[int64]directory.Alias),
		autoresponders: make(map[int64]directory.Autoresponder),
		tokens:         make(map[string]tokenRow),
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

func sortedValues[K comparable, V any](m map[K]V, keep func(V) bool, less func(a, b V) int) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, less)
	return out
}

// Domains

func (s *Store) ListDomains(context.Context) ([]directory.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.domains, nil, byDomainName), nil
}

func (s *Store) ListDomainsByID(_ context.Context, ids []int64) ([]directory.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.domains, func(d directory.Domain) bool {
		return slices.Contains(ids, d.ID)
	}, byDomainName), nil
}

func byDomainName(a, b directory.Domain) int { return cmp.Compare(a.Name, b.Name) }

func (s *Store) GetDomain(_ context.Context, id int64) (directory.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[id]
	if !ok {
		return directory.Domain{}, directory.ErrNotFound
	}
	return d, nil
}

func (s *Store) FindDomainByName(_ context.Context, name string) (directory.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if d.Name == name {
			return d, nil
		}
	}
	return directory.Domain{}, directory.ErrNotFound
}

func (s *Store) CreateDomain(_ context.Context, d *directory.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.domains {
		if existing.Name == d.Name {
			return directory.ErrConflict
		}
	}
	now := s.stamp()
	d.ID, d.CreatedAt, d.UpdatedAt = s.nextID(), now, now
	s.domains[d.ID] = *d
	return nil
}

func (s *Store) UpdateDomain(_ context.Context, d *directory.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.domains[d.ID]
	if !ok {
		return directory.ErrNotFound
	}
	for _, existing := range s.domains {
		if existing.ID != d.ID && existing.Name == d.Name {
			return directory.ErrConflict
		}
	}
	d.CreatedAt, d.UpdatedAt = current.CreatedAt, s.stamp()
	s.domains[d.ID] = *d
	return nil
}

func (s *Store) DeleteDomain(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[id]; !ok {
		return directory.ErrNotFound
	}
	delete(s.domains, id)
	for key := range s.assignments {
		if key.domainID == id {
			delete(s.assignments, key)
		}
	}
	for aliasID, a := range s.aliases {
		if a.DomainID == id {
			delete(s.aliases, aliasID)
		}
	}
	for mailboxID, m := range s.mailboxes {
		if m.DomainID == id {
			s.dropMailbox(mailboxID)
		}
	}
	return nil
}

func (s *Store) DomainManagers(_ context.Context, domainID int64) ([]directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := sortedValues(s.users, func(u directory.User) bool {
		_, ok := s.assignments[assignment{userID: u.ID, domainID: domainID}]
		return ok
	}, func(a, b directory.User) int { return cmp.Compare(a.Email, b.Email) })
	for i := range out {
		out[i] = s.withDomains(out[i])
	}
	return out, nil
}

func (s *Store) DomainScope(_ context.Context, domainID int64) (audit.DomainScope, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[domainID]
	if !ok {
		return audit.DomainScope{}, false, nil
	}
	scope := audit.DomainScope{DomainID: d.ID, DomainName: d.Name}
	for id, a := range s.aliases {
		if a.DomainID == domainID {
			scope.AliasIDs = append(scope.AliasIDs, id)
		}
	}
	for id, m := range s.mailboxes {
		if m.DomainID == domainID {
			scope.MailboxIDs = append(scope.MailboxIDs, id)
		}
	}
	for key := range s.assignments {
		if key.domainID == domainID {
			scope.UserIDs = append(scope.UserIDs, key.userID)
		}
	}
	slices.Sort(scope.AliasIDs)
	slices.Sort(scope.MailboxIDs)
	slices.Sort(scope.UserIDs)
	return scope, true, nil
}
