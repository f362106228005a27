package memstore

import (
	"cmp"
	"context"

	"mailadmin/services/directory"
)

func (s *Store) ListAliases(_ context.Context, domainID int64) ([]directory.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedValues(s.aliases, func(a directory.Alias) bool {
		return a.DomainID == domainID
	}, func(a, b directory.Alias) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	}), nil
}

func (s *Store) GetAlias(_ context.Context, id int64) (directory.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.aliases[id]
	if !ok {
		return directory.Alias{}, directory.ErrNotFound
	}
	return a, nil
}

func (s *Store) CreateAlias(_ context.Context, a *directory.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[a.DomainID]; !ok {
		return directory.ErrNotFound
	}
	now := s.stamp()
	a.ID, a.CreatedAt, a.UpdatedAt = s.nextID(), now, now
	s.aliases[a.ID] = *a
	return nil
}

func (s *Store) UpdateAlias(_ context.Context, a *directory.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.aliases[a.ID]
	if !ok {
		return directory.ErrNotFound
	}
	a.DomainID, a.CreatedAt, a.UpdatedAt = current.DomainID, current.CreatedAt, s.stamp()
	s.aliases[a.ID] = *a
	return nil
}

func (s *Store) DeleteAlias(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.aliases[id]; !ok {
		return directory.ErrNotFound
	}
	delete(s.aliases, id)
	return nil
}
