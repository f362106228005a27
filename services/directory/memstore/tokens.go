package memstore

import (
	"cmp"
	"context"
	"slices"
	"time"

	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

func (s *Store) InsertToken(_ context.Context, kind auth.Kind, ownerID int64, value string, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tokens[value]; ok {
		return directory.ErrConflict
	}
	s.tokens[value] = tokenRow{kind: kind, ownerID: ownerID, createdAt: createdAt}
	return nil
}

func (s *Store) LookupToken(_ context.Context, kind auth.Kind, value string) (auth.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.tokens[value]
	if !ok || row.kind != kind {
		return nil, auth.ErrTokenNotFound
	}
	switch kind {
	case auth.KindUser:
		if u, ok := s.users[row.ownerID]; ok {
			return s.withDomains(u).Principal(), nil
		}
	case auth.KindMailbox:
		if m, ok := s.mailboxes[row.ownerID]; ok {
			return s.view(m).Principal(), nil
		}
	}
	return nil, auth.ErrTokenNotFound
}

func (s *Store) DeleteToken(_ context.Context, kind auth.Kind, value string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tokens[value]
	if !ok || row.kind != kind {
		return false, nil
	}
	delete(s.tokens, value)
	return true, nil
}

func (s *Store) OwnerTokens(_ context.Context, kind auth.Kind, ownerID int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type owned struct {
		value     string
		createdAt time.Time
	}
	var rows []owned
	for value, row := range s.tokens {
		if row.kind == kind && row.ownerID == ownerID {
			rows = append(rows, owned{value: value, createdAt: row.createdAt})
		}
	}
	slices.SortFunc(rows, func(a, b owned) int {
		return cmp.Or(a.createdAt.Compare(b.createdAt), cmp.Compare(a.value, b.value))
	})
	values := make([]string, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.value)
	}
	return values, nil
}
