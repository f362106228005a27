package auth

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

type ownerKey struct {
	kind Kind
	id   int64
}

type fakeTokens struct {
	owners map[ownerKey]Principal
	tokens map[Kind]map[string]int64
}

func newFakeTokens(principals ...Principal) *fakeTokens {
	f := &fakeTokens{
		owners: map[ownerKey]Principal{},
		tokens: map[Kind]map[string]int64{KindUser: {}, KindMailbox: {}},
	}
	for _, p := range principals {
		f.owners[ownerKey{p.Kind(), p.PrincipalID()}] = p
	}
	return f
}

func (f *fakeTokens) InsertToken(_ context.Context, kind Kind, ownerID int64, value string, _ time.Time) error {
	if _, ok := f.tokens[kind][value]; ok {
		return errors.New("duplicate token")
	}
	f.tokens[kind][value] = ownerID
	return nil
}

func (f *fakeTokens) LookupToken(_ context.Context, kind Kind, value string) (Principal, error) {
	id, ok := f.tokens[kind][value]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return f.owners[ownerKey{kind, id}], nil
}

func (f *fakeTokens) DeleteToken(_ context.Context, kind Kind, value string) (bool, error) {
	if _, ok := f.tokens[kind][value]; !ok {
		return false, nil
	}
	delete(f.tokens[kind], value)
	return true, nil
}

func (f *fakeTokens) OwnerTokens(_ context.Context, kind Kind, ownerID int64) ([]string, error) {
	var out []string
	for value, id := range f.tokens[kind] {
		if id == ownerID {
			out = append(out, value)
		}
	}
	return out, nil
}

func (f *fakeTokens) setActive(p Principal, active bool) {
	switch v := p.(type) {
	case User:
		v.Active = active
		f.owners[ownerKey{KindUser, v.ID}] = v
	case Mailbox:
		v.Active = active
		f.owners[ownerKey{KindMailbox, v.ID}] = v
	}
}

func TestTokenStoreIssueAndResolve(t *testing.T) {
	ctx := context.Background()
	admin := User{ID: 1, Email: "a@a.pl", Role: RoleAdministrator, Active: true}
	box := Mailbox{ID: 1, DomainID: 3, Name: "info", DomainName: "example.com", Active: true}
	repo := newFakeTokens(admin, box)
	store := NewTokenStore(repo)

	userToken, err := store.Issue(ctx, admin)
	if err != nil {
		t.Fatalf("Issue(user) error = %v", err)
	}
	if len(userToken) != 32 {
		t.Fatalf("token length = %d, want 32", len(userToken))
	}
	if _, err := hex.DecodeString(userToken); err != nil {
		t.Fatalf("token %q is not hex: %v", userToken, err)
	}

	boxToken, err := store.Issue(ctx, box)
	if err != nil {
		t.Fatalf("Issue(mailbox) error = %v", err)
	}
	if boxToken == userToken {
		t.Fatalf("expected distinct tokens")
	}

	got, err := store.Resolve(ctx, userToken)
	if err != nil {
		t.Fatalf("Resolve(user) error = %v", err)
	}
	if u, ok := got.(User); !ok || u.ID != admin.ID {
		t.Fatalf("Resolve(user) = %#v, want user 1", got)
	}

	got, err = store.Resolve(ctx, boxToken)
	if err != nil {
		t.Fatalf("Resolve(mailbox) error = %v", err)
	}
	if m, ok := got.(Mailbox); !ok || m.ID != box.ID {
		t.Fatalf("Resolve(mailbox) = %#v, want mailbox 1", got)
	}
}

func TestTokenStoreResolveHidesInactiveAndUnknown(t *testing.T) {
	ctx := context.Background()
	user := User{ID: 7, Role: RoleUser, Active: true}
	repo := newFakeTokens(user)
	store := NewTokenStore(repo)

	token, err := store.Issue(ctx, user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	repo.setActive(user, false)

	tests := []struct {
		name  string
		token string
	}{
		{name: "inactive owner", token: token},
		{name: "unknown token", token: "00000000000000000000000000000000"},
		{name: "empty token", token: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := store.Resolve(ctx, tt.token)
			if !errors.Is(err, ErrTokenNotFound) {
				t.Fatalf("Resolve() error = %v, want ErrTokenNotFound", err)
			}
			if p != nil {
				t.Fatalf("Resolve() principal = %#v, want nil", p)
			}
		})
	}
}

func TestTokenStoreRevoke(t *testing.T) {
	ctx := context.Background()
	box := Mailbox{ID: 4, Active: true}
	repo := newFakeTokens(box)
	store := NewTokenStore(repo)

	token, err := store.Issue(ctx, box)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	removed, err := store.Revoke(ctx, token)
	if err != nil || !removed {
		t.Fatalf("Revoke() = %v, %v; want true, nil", removed, err)
	}
	removed, err = store.Revoke(ctx, token)
	if err != nil || removed {
		t.Fatalf("second Revoke() = %v, %v; want false, nil", removed, err)
	}
	if _, err := store.Resolve(ctx, token); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("Resolve() after revoke error = %v", err)
	}
}

func TestTokenStoreRevokeAllCountsOnlyOwnTokens(t *testing.T) {
	ctx := context.Background()
	alice := User{ID: 1, Role: RoleUser, Active: true}
	bob := User{ID: 2, Role: RoleUser, Active: true}
	box := Mailbox{ID: 1, Active: true}
	repo := newFakeTokens(alice, bob, box)
	store := NewTokenStore(repo)

	for i := 0; i < 3; i++ {
		if _, err := store.Issue(ctx, alice); err != nil {
			t.Fatalf("Issue(alice) error = %v", err)
		}
	}
	bobToken, err := store.Issue(ctx, bob)
	if err != nil {
		t.Fatalf("Issue(bob) error = %v", err)
	}
	// Same numeric id, other namespace.
	boxToken, err := store.Issue(ctx, box)
	if err != nil {
		t.Fatalf("Issue(box) error = %v", err)
	}

	n, err := store.RevokeAll(ctx, alice)
	if err != nil {
		t.Fatalf("RevokeAll() error = %v", err)
	}
	if n != 3 {
		t.Fatalf("RevokeAll() = %d, want 3", n)
	}
	if _, err := store.Resolve(ctx, bobToken); err != nil {
		t.Fatalf("bob token should survive: %v", err)
	}
	if _, err := store.Resolve(ctx, boxToken); err != nil {
		t.Fatalf("mailbox token should survive: %v", err)
	}

	n, err = store.RevokeAll(ctx, alice)
	if err != nil || n != 0 {
		t.Fatalf("second RevokeAll() = %d, %v; want 0, nil", n, err)
	}
}
