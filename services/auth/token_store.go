package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"mailadmin/pkg/metrics"
)

const tokenBytes = 16

// TokenRepository persists bearer tokens in one namespace per principal kind.
type TokenRepository interface {
	// InsertToken stores value for the owner in the kind's namespace.
	InsertToken(ctx context.Context, kind Kind, ownerID int64, value string, createdAt time.Time) error
	// LookupToken returns the owner of value, active or not, or ErrTokenNotFound.
	LookupToken(ctx context.Context, kind Kind, value string) (Principal, error)
	// DeleteToken removes value and reports whether it existed.
	DeleteToken(ctx context.Context, kind Kind, value string) (bool, error)
	// OwnerTokens lists the token values currently held by the owner.
	OwnerTokens(ctx context.Context, kind Kind, ownerID int64) ([]string, error)
}

// TokenStore issues, resolves and revokes bearer tokens for both principal kinds.
type TokenStore struct {
	repo TokenRepository
	now  func() time.Time
}

// NewTokenStore returns a TokenStore over repo.
func NewTokenStore(repo TokenRepository) *TokenStore {
	return &TokenStore{repo: repo, now: time.Now}
}

// Issue creates a new session token for p. Collisions are not retried.
func (s *TokenStore) Issue(ctx context.Context, p Principal) (string, error) {
	if p == nil {
		return "", errors.New("principal is required")
	}
	value, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := s.repo.InsertToken(ctx, p.Kind(), p.PrincipalID(), value, s.now().UTC()); err != nil {
		return "", fmt.Errorf("store %s token: %w", p.Kind(), err)
	}
	metrics.TokensIssued.WithLabelValues(string(p.Kind())).Inc()
	return value, nil
}

// Resolve returns the active principal bound to value, checking user tokens
// before mailbox tokens. Unknown tokens and tokens of inactive principals both
// yield ErrTokenNotFound.
func (s *TokenStore) Resolve(ctx context.Context, value string) (Principal, error) {
	if value == "" {
		return nil, ErrTokenNotFound
	}
	for _, kind := range []Kind{KindUser, KindMailbox} {
		p, err := s.repo.LookupToken(ctx, kind, value)
		switch {
		case errors.Is(err, ErrTokenNotFound):
			continue
		case err != nil:
			return nil, fmt.Errorf("lookup %s token: %w", kind, err)
		}
		if p.IsActive() {
			return p, nil
		}
	}
	return nil, ErrTokenNotFound
}

// Revoke deletes value from the user namespace, or from the mailbox namespace
// when no user token matched. It reports whether a token was removed.
func (s *TokenStore) Revoke(ctx context.Context, value string) (bool, error) {
	for _, kind := range []Kind{KindUser, KindMailbox} {
		removed, err := s.repo.DeleteToken(ctx, kind, value)
		if err != nil {
			return false, fmt.Errorf("delete %s token: %w", kind, err)
		}
		if removed {
			return true, nil
		}
	}
	return false, nil
}

// RevokeAll deletes every token p holds and returns how many were removed.
// Tokens are read first and deleted one by one without locking, so a token
// issued concurrently may survive.
func (s *TokenStore) RevokeAll(ctx context.Context, p Principal) (int, error) {
	if p == nil {
		return 0, errors.New("principal is required")
	}
	values, err := s.repo.OwnerTokens(ctx, p.Kind(), p.PrincipalID())
	if err != nil {
		return 0, fmt.Errorf("list %s tokens: %w", p.Kind(), err)
	}
	count := 0
	for _, value := range values {
		removed, err := s.repo.DeleteToken(ctx, p.Kind(), value)
		if err != nil {
			return count, fmt.Errorf("delete %s token: %w", p.Kind(), err)
		}
		if removed {
			count++
		}
	}
	return count, nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
