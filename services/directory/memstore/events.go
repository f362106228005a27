package memstore

import (
	"context"
	"slices"

	"mailadmin/services/audit"
)

func (s *Store) Insert(_ context.Context, e *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.events) + 1)
	s.events = append(s.events, *e)
	return nil
}

func (s *Store) Count(_ context.Context, f audit.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.events {
		if f.Matches(e) {
			n++
		}
	}
	return n, nil
}

// Find walks events newest first. Ids grow with insertion order, which matches
// created_at DESC, id DESC.
func (s *Store) Find(_ context.Context, f audit.Filter, offset, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []audit.Event{}
	skipped := 0
	for _, e := range slices.Backward(s.events) {
		if !f.Matches(e) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) ListAfter(_ context.Context, afterID int64, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []audit.Event{}
	for _, e := range s.events {
		if e.ID <= afterID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}
