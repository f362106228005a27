package audit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"mailadmin/services/auth"
)

type stubDomains map[int64]DomainScope

func (s stubDomains) DomainScope(_ context.Context, id int64) (DomainScope, bool, error) {
	d, ok := s[id]
	return d, ok, nil
}

func seedEvents(repo *sliceRepo, entries ...Event) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, e := range entries {
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if e.Status == "" {
			e.Status = StatusSuccess
		}
		_ = repo.Insert(context.Background(), &e)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total int64
		want  int
	}{
		{0, 0}, {1, 1}, {49, 1}, {50, 1}, {51, 2}, {100, 2}, {101, 3},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total); got != tt.want {
			t.Fatalf("TotalPages(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestQueryEngineAdminSeesEverythingPaged(t *testing.T) {
	repo := &sliceRepo{}
	var events []Event
	for i := 0; i < 120; i++ {
		events = append(events, Event{EventType: "domain.updated", EntityType: EntityDomain, EntityID: ID(int64(i%7 + 1))})
	}
	seedEvents(repo, events...)

	engine := NewQueryEngine(repo, stubDomains{})
	admin := auth.User{ID: 1, Role: auth.RoleAdministrator, Active: true}

	tests := []struct {
		page     int
		wantPage int
		wantLen  int
	}{
		{page: 0, wantPage: 1, wantLen: 50},
		{page: -3, wantPage: 1, wantLen: 50},
		{page: 2, wantPage: 2, wantLen: 50},
		{page: 3, wantPage: 3, wantLen: 20},
		{page: 9, wantPage: 9, wantLen: 0},
		{page: math.MaxInt / 10, wantPage: math.MaxInt / 10, wantLen: 0},
		{page: math.MaxInt, wantPage: math.MaxInt, wantLen: 0},
	}
	for _, tt := range tests {
		// domain_id is ignored for administrators, even when unknown.
		res, err := engine.List(context.Background(), admin, tt.page, ID(999))
		if err != nil {
			t.Fatalf("List(page=%d) error = %v", tt.page, err)
		}
		if res.Pagination.Page != tt.wantPage || len(res.Events) != tt.wantLen {
			t.Fatalf("List(page=%d) page=%d len=%d; want %d, %d", tt.page, res.Pagination.Page, len(res.Events), tt.wantPage, tt.wantLen)
		}
		if res.Pagination.PageSize != 50 || res.Pagination.TotalItems != 120 || res.Pagination.TotalPages != 3 {
			t.Fatalf("pagination = %+v", res.Pagination)
		}
		if res.Domain != nil {
			t.Fatalf("admin result carries a domain")
		}
	}

	first, _ := engine.List(context.Background(), admin, 1, nil)
	for i := 1; i < len(first.Events); i++ {
		if first.Events[i].CreatedAt.After(first.Events[i-1].CreatedAt) {
			t.Fatalf("events not ordered newest first at %d", i)
		}
	}
}

func TestQueryEngineDomainScope(t *testing.T) {
	repo := &sliceRepo{}
	seedEvents(repo,
		Event{EventType: "domain.updated", EntityType: EntityDomain, EntityID: ID(42)},
		Event{EventType: "domain.updated", EntityType: EntityDomain, EntityID: ID(43)},
		Event{EventType: "alias.created", EntityType: EntityAlias, EntityID: ID(7)},
		Event{EventType: "alias.created", EntityType: EntityAlias, EntityID: ID(99)},
		Event{EventType: "mailbox.created", EntityType: EntityMailbox, EntityID: ID(9)},
		Event{EventType: "autoresponder.created", EntityType: EntityAutoresponder, EntityID: ID(9)},
		Event{EventType: "autoresponder.created", EntityType: EntityAutoresponder, EntityID: ID(10)},
		Event{EventType: "user_domain.assigned", EntityType: EntityUserDomain, EntityID: ID(42)},
		Event{EventType: "user.updated", EntityType: EntityUser, EntityID: ID(2)},
		Event{EventType: "user.updated", EntityType: EntityUser, EntityID: ID(3)},
		Event{EventType: "user.login.failed", EntityType: EntityUser},
	)

	domains := stubDomains{
		42: {DomainID: 42, DomainName: "example.com", AliasIDs: []int64{7}, MailboxIDs: []int64{9}, UserIDs: []int64{2}},
	}
	engine := NewQueryEngine(repo, domains)
	manager := auth.User{ID: 2, Role: auth.RoleUser, Active: true, DomainIDs: []int64{42}}

	res, err := engine.List(context.Background(), manager, 1, ID(42))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := map[string]bool{
		"domain/42": true, "alias/7": true, "mailbox/9": true,
		"autoresponder/9": true, "user_domain/42": true, "user/2": true,
	}
	if len(res.Events) != len(want) {
		t.Fatalf("visible events = %d, want %d: %+v", len(res.Events), len(want), res.Events)
	}
	for _, e := range res.Events {
		key := string(e.EntityType) + "/" + strconv.FormatInt(*e.EntityID, 10)
		if !want[key] {
			t.Fatalf("unexpected visible event %s", key)
		}
	}
	if res.Domain == nil || res.Domain.DomainName != "example.com" {
		t.Fatalf("result domain = %+v", res.Domain)
	}
	if res.Pagination.TotalItems != 6 || res.Pagination.TotalPages != 1 {
		t.Fatalf("pagination = %+v", res.Pagination)
	}
}

func TestQueryEngineEmptyDomainMatchesOnlyDomainEvents(t *testing.T) {
	repo := &sliceRepo{}
	seedEvents(repo,
		Event{EventType: "domain.created", EntityType: EntityDomain, EntityID: ID(5)},
		Event{EventType: "alias.created", EntityType: EntityAlias, EntityID: ID(1)},
		Event{EventType: "mailbox.created", EntityType: EntityMailbox, EntityID: ID(1)},
	)
	engine := NewQueryEngine(repo, stubDomains{5: {DomainID: 5, DomainName: "empty.org"}})
	manager := auth.User{ID: 2, Role: auth.RoleUser, Active: true, DomainIDs: []int64{5}}

	res, err := engine.List(context.Background(), manager, 1, ID(5))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].EntityType != EntityDomain {
		t.Fatalf("events = %+v, want only the domain event", res.Events)
	}
}

func TestQueryEngineRejections(t *testing.T) {
	engine := NewQueryEngine(&sliceRepo{}, stubDomains{42: {DomainID: 42, DomainName: "example.com"}})
	manager := auth.User{ID: 2, Role: auth.RoleUser, Active: true, DomainIDs: []int64{42, 77}}
	box := auth.Mailbox{ID: 9, DomainID: 42, Active: true}

	tests := []struct {
		name     string
		p        auth.Principal
		domainID *int64
		wantKind error
		wantMsg  string
	}{
		{name: "mailbox with domain", p: box, domainID: ID(42), wantKind: ErrAccessDenied, wantMsg: "Access denied"},
		{name: "mailbox without domain", p: box, wantKind: ErrAccessDenied, wantMsg: "Access denied"},
		{name: "user without domain", p: manager, wantKind: ErrValidation, wantMsg: `Parameter "domain_id" is required for non-admin users`},
		{name: "unassigned existing domain", p: auth.User{ID: 3, Role: auth.RoleUser, Active: true}, domainID: ID(42), wantKind: ErrAccessDenied, wantMsg: "Access denied to this domain"},
		{name: "unassigned missing domain", p: manager, domainID: ID(1000), wantKind: ErrAccessDenied, wantMsg: "Access denied to this domain"},
		{name: "assigned but deleted domain", p: manager, domainID: ID(77), wantKind: ErrNotFound, wantMsg: "Domain not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.List(context.Background(), tt.p, 1, tt.domainID)
			if !errors.Is(err, tt.wantKind) {
				t.Fatalf("List() error = %v, want %v", err, tt.wantKind)
			}
			var qerr *Error
			if !errors.As(err, &qerr) || qerr.Message != tt.wantMsg {
				t.Fatalf("List() message = %v, want %q", err, tt.wantMsg)
			}
		})
	}
}

func TestFilterMatches(t *testing.T) {
	f := ScopeFilter(DomainScope{DomainID: 42})
	tests := []struct {
		name string
		e    Event
		want bool
	}{
		{name: "domain itself", e: Event{EntityType: EntityDomain, EntityID: ID(42)}, want: true},
		{name: "assignment", e: Event{EntityType: EntityUserDomain, EntityID: ID(42)}, want: true},
		{name: "alias outside domain", e: Event{EntityType: EntityAlias, EntityID: ID(7)}, want: false},
		{name: "null entity", e: Event{EntityType: EntityUser}, want: false},
		{name: "other domain", e: Event{EntityType: EntityDomain, EntityID: ID(41)}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Matches(tt.e); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
	if !(Filter{}).Matches(Event{EntityType: EntityUser}) {
		t.Fatalf("global filter must match everything")
	}
}
