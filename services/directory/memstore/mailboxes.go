package memstore

import (
	"cmp"
	"context"

	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

// view fills the derived mailbox fields.
func (s *Store) view(m directory.Mailbox) directory.Mailbox {
	m.DomainName = s.domains[m.DomainID].Name
	ar, ok := s.autoresponders[m.ID]
	m.AutoresponderActive = ok && ar.Active
	return m
}

func (s *Store) ListMailboxes(_ context.Context, domainID int64) ([]directory.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := sortedValues(s.mailboxes, func(m directory.Mailbox) bool {
		return m.DomainID == domainID
	}, func(a, b directory.Mailbox) int { return cmp.Compare(a.Name, b.Name) })
	for i := range out {
		out[i] = s.view(out[i])
	}
	return out, nil
}

func (s *Store) GetMailbox(_ context.Context, id int64) (directory.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mailboxes[id]
	if !ok {
		return directory.Mailbox{}, directory.ErrNotFound
	}
	return s.view(m), nil
}

func (s *Store) FindMailbox(_ context.Context, domainID int64, name string) (directory.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mailboxes {
		if m.DomainID == domainID && m.Name == name {
			return s.view(m), nil
		}
	}
	return directory.Mailbox{}, directory.ErrNotFound
}

func (s *Store) nameTaken(domainID int64, name string, except int64) bool {
	for _, m := range s.mailboxes {
		if m.ID != except && m.DomainID == domainID && m.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) CreateMailbox(_ context.Context, m *directory.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[m.DomainID]; !ok {
		return directory.ErrNotFound
	}
	if s.nameTaken(m.DomainID, m.Name, 0) {
		return directory.ErrConflict
	}
	now := s.stamp()
	m.ID, m.CreatedAt, m.UpdatedAt = s.nextID(), now, now
	s.mailboxes[m.ID] = *m
	*m = s.view(*m)
	return nil
}

func (s *Store) UpdateMailbox(_ context.Context, m *directory.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.mailboxes[m.ID]
	if !ok {
		return directory.ErrNotFound
	}
	if s.nameTaken(current.DomainID, m.Name, m.ID) {
		return directory.ErrConflict
	}
	m.DomainID, m.CreatedAt, m.UpdatedAt = current.DomainID, current.CreatedAt, s.stamp()
	s.mailboxes[m.ID] = *m
	return nil
}

func (s *Store) DeleteMailbox(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mailboxes[id]; !ok {
		return directory.ErrNotFound
	}
	s.dropMailbox(id)
	return nil
}

// dropMailbox removes a mailbox with its autoresponder and tokens. The caller
// holds the write lock.
func (s *Store) dropMailbox(id int64) {
	delete(s.mailboxes, id)
	delete(s.autoresponders, id)
	for value, row := range s.tokens {
		if row.kind == auth.KindMailbox && row.ownerID == id {
			delete(s.tokens, value)
		}
	}
}

func (s *Store) GetAutoresponder(_ context.Context, mailboxID int64) (directory.Autoresponder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.autoresponders[mailboxID]
	if !ok {
		return directory.Autoresponder{}, directory.ErrNotFound
	}
	return a, nil
}

func (s *Store) SaveAutoresponder(_ context.Context, a *directory.Autoresponder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mailboxes[a.MailboxID]; !ok {
		return directory.ErrNotFound
	}
	now := s.stamp()
	if current, ok := s.autoresponders[a.MailboxID]; ok {
		a.ID, a.CreatedAt = current.ID, current.CreatedAt
	} else {
		a.ID, a.CreatedAt = s.nextID(), now
	}
	a.UpdatedAt = now
	s.autoresponders[a.MailboxID] = *a
	return nil
}

func (s *Store) DeleteAutoresponder(_ context.Context, mailboxID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.autoresponders[mailboxID]; !ok {
		return directory.ErrNotFound
	}
	delete(s.autoresponders, mailboxID)
	return nil
}
