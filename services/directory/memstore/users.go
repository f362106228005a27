package memstore

import (
	"cmp"
	"context"
	"slices"

	"mailadmin/services/directory"
)

func (s *Store) withDomains(u directory.User) directory.User {
	ids := []int64{}
	for key := range s.assignments {
		if key.userID == u.ID {
			ids = append(ids, key.domainID)
		}
	}
	slices.Sort(ids)
	u.DomainIDs = ids
	return u
}

func (s *Store) ListUsers(context.Context) ([]directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := sortedValues(s.users, nil, func(a, b directory.User) int { return cmp.Compare(a.ID, b.ID) })
	for i := range out {
		out[i] = s.withDomains(out[i])
	}
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return directory.User{}, directory.ErrNotFound
	}
	return s.withDomains(u), nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (directory.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return s.withDomains(u), nil
		}
	}
	return directory.User{}, directory.ErrNotFound
}

func (s *Store) CreateUser(_ context.Context, u *directory.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return directory.ErrConflict
		}
	}
	now := s.stamp()
	u.ID, u.CreatedAt, u.UpdatedAt = s.nextID(), now, now
	u.DomainIDs = []int64{}
	s.users[u.ID] = *u
	return nil
}

func (s *Store) UpdateUser(_ context.Context, u *directory.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.users[u.ID]
	if !ok {
		return directory.ErrNotFound
	}
	for _, existing := range s.users {
		if existing.ID != u.ID && existing.Email == u.Email {
			return directory.ErrConflict
		}
	}
	u.CreatedAt, u.UpdatedAt = current.CreatedAt, s.stamp()
	stored := *u
	stored.DomainIDs = nil
	s.users[u.ID] = stored
	return nil
}

func (s *Store) AssignDomain(_ context.Context, userID, domainID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return directory.ErrNotFound
	}
	if _, ok := s.domains[domainID]; !ok {
		return directory.ErrNotFound
	}
	key := assignment{userID: userID, domainID: domainID}
	if _, ok := s.assignments[key]; ok {
		return directory.ErrConflict
	}
	s.assignments[key] = struct{}{}
	return nil
}

func (s *Store) UnassignDomain(_ context.Context, userID, domainID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := assignment{userID: userID, domainID: domainID}
	if _, ok := s.assignments[key]; !ok {
		return directory.ErrNotFound
	}
	delete(s.assignments, key)
	return nil
}
