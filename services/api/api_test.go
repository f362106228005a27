package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/rs/zerolog"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
	"mailadmin/services/directory"
	"mailadmin/services/directory/memstore"
)

const testPassword = "secret-pass"

type fixture struct {
	store   *memstore.Store
	handler http.Handler

	domain      directory.Domain
	otherDomain directory.Domain
	admin       directory.User
	user        directory.User
	mailbox     directory.Mailbox
	foreign     directory.Mailbox

	adminToken   string
	userToken    string
	mailboxToken string
}

type fixtureOption func(*Options)

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	f := &fixture{store: store}

	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	f.domain = directory.Domain{Name: "example.com", Active: true}
	f.otherDomain = directory.Domain{Name: "other.org", Active: true}
	for _, d := range []*directory.Domain{&f.domain, &f.otherDomain} {
		if err := store.CreateDomain(ctx, d); err != nil {
			t.Fatalf("CreateDomain(%s): %v", d.Name, err)
		}
	}

	f.admin = directory.User{Email: "admin@corp.test", PasswordHash: hash, FirstName: "Ada", LastName: "Admin", Role: auth.RoleAdministrator, Active: true}
	f.user = directory.User{Email: "user@corp.test", PasswordHash: hash, FirstName: "Uma", LastName: "User", Role: auth.RoleUser, Active: true}
	for _, u := range []*directory.User{&f.admin, &f.user} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s): %v", u.Email, err)
		}
	}
	if err := store.AssignDomain(ctx, f.user.ID, f.domain.ID); err != nil {
		t.Fatalf("AssignDomain: %v", err)
	}
	f.user.DomainIDs = []int64{f.domain.ID}

	f.mailbox = directory.Mailbox{DomainID: f.domain.ID, Name: "info", PasswordHash: hash, Active: true}
	f.foreign = directory.Mailbox{DomainID: f.otherDomain.ID, Name: "sales", PasswordHash: hash, Active: true}
	for _, m := range []*directory.Mailbox{&f.mailbox, &f.foreign} {
		if err := store.CreateMailbox(ctx, m); err != nil {
			t.Fatalf("CreateMailbox(%s): %v", m.Name, err)
		}
	}

	options := Options{Repo: store, Events: store, Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&options)
	}
	api, err := New(options)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.handler = api.Router(RouterOptions{})

	tokens := auth.NewTokenStore(store)
	issue := func(p auth.Principal) string {
		token, err := tokens.Issue(ctx, p)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		return token
	}
	f.adminToken = issue(f.admin.Principal())
	f.userToken = issue(f.user.Principal())
	f.mailboxToken = issue(f.mailbox.Principal())
	return f
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "api-test")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var payload map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, payload
}

// events returns every stored audit event, oldest first.
func (f *fixture) events(t *testing.T) []audit.Event {
	t.Helper()
	events, err := f.store.ListAfter(context.Background(), 0, 1000)
	if err != nil {
		t.Fatalf("ListAfter: %v", err)
	}
	return events
}

func (f *fixture) eventTypes(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, e := range f.events(t) {
		out = append(out, e.EventType)
	}
	return out
}

func (f *fixture) lastEvent(t *testing.T) audit.Event {
	t.Helper()
	events := f.events(t)
	if len(events) == 0 {
		t.Fatal("no audit events recorded")
	}
	return events[len(events)-1]
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func expectError(t *testing.T, payload map[string]any, want string) {
	t.Helper()
	if got := payload["error"]; got != want {
		t.Fatalf("error = %v, want %q", got, want)
	}
}

func TestStatusIsOpen(t *testing.T) {
	f := newFixture(t)
	rec, payload := f.do(t, http.MethodGet, "/api/status", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if payload["status"] != "ok" || payload["version"] != Version {
		t.Fatalf("status payload = %v", payload)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
}

type unreachableEvents struct {
	audit.Repository
}

func (unreachableEvents) Ping(context.Context) error {
	return errors.New("audit database unreachable")
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name   string
		opts   []fixtureOption
		status int
		body   string
	}{
		{name: "all stores reachable", status: http.StatusOK, body: "ready"},
		{
			name:   "audit store unreachable",
			opts:   []fixtureOption{func(o *Options) { o.Events = unreachableEvents{Repository: o.Events} }},
			status: http.StatusServiceUnavailable,
			body:   "unavailable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.opts...)
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			if rec.Code != tt.status || rec.Body.String() != tt.body {
				t.Fatalf("readyz = %d %q, want %d %q", rec.Code, rec.Body.String(), tt.status, tt.body)
			}
		})
	}
}

func TestGateDecisions(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		method  string
		path    string
		token   string
		status  int
		message string
	}{
		{name: "missing token", method: http.MethodGet, path: "/api/domains", status: http.StatusUnauthorized, message: "Missing or invalid authorization token"},
		{name: "unknown token", method: http.MethodGet, path: "/api/domains", token: "deadbeef", status: http.StatusUnauthorized, message: "Invalid or expired token"},
		{name: "user on admin route", method: http.MethodGet, path: "/api/domains", token: f.userToken, status: http.StatusForbidden, message: "Insufficient permissions"},
		{name: "mailbox on admin route", method: http.MethodGet, path: "/api/users", token: f.mailboxToken, status: http.StatusForbidden, message: "Insufficient permissions"},
		{name: "admin on admin route", method: http.MethodGet, path: "/api/domains", token: f.adminToken, status: http.StatusOK},
		{name: "route policy overrides group", method: http.MethodGet, path: fmt.Sprintf("/api/domains/%d/managers", f.domain.ID), token: f.userToken, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, payload := f.do(t, tt.method, tt.path, tt.token, nil)
			expectStatus(t, rec, tt.status)
			if tt.message != "" {
				expectError(t, payload, tt.message)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		password  string
		status    int
		event     string
		wantActor bool
	}{
		{name: "user success", email: "user@corp.test", password: testPassword, status: http.StatusOK, event: "user.login.success", wantActor: true},
		{name: "user wrong password", email: "user@corp.test", password: "nope", status: http.StatusUnauthorized, event: "user.login.failed", wantActor: true},
		{name: "unknown email", email: "ghost@corp.test", password: testPassword, status: http.StatusUnauthorized, event: "user.login.failed"},
		{name: "mailbox success", email: "info@example.com", password: testPassword, status: http.StatusOK, event: "mailbox.login.success", wantActor: true},
		{name: "unknown mailbox", email: "nobody@example.com", password: testPassword, status: http.StatusUnauthorized, event: "mailbox.login.failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec, payload := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": tt.email, "password": tt.password})
			expectStatus(t, rec, tt.status)
			if tt.status == http.StatusOK {
				token, _ := payload["token"].(string)
				if len(token) != 32 {
					t.Fatalf("token = %q, want 32 hex chars", token)
				}
				check, _ := f.do(t, http.MethodGet, "/api/me", token, nil)
				expectStatus(t, check, http.StatusOK)
			} else {
				expectError(t, payload, "Invalid credentials")
			}

			last := f.lastEvent(t)
			if last.EventType != tt.event {
				t.Fatalf("event = %q, want %q", last.EventType, tt.event)
			}
			if (last.ActorID != nil) != tt.wantActor {
				t.Fatalf("actor id = %v, want set=%v", last.ActorID, tt.wantActor)
			}
			if last.NewValue["email"] != tt.email {
				t.Fatalf("new_value = %v", last.NewValue)
			}
			if last.IPAddress == nil || last.UserAgent == nil || *last.UserAgent != "api-test" {
				t.Fatalf("request info not recorded: %+v", last)
			}
		})
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	f := newFixture(t)
	rec, payload := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "user@corp.test"})
	expectStatus(t, rec, http.StatusBadRequest)
	expectError(t, payload, "Email and password are required")
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newFixture(t)
	f.user.Active = false
	if err := f.store.UpdateUser(context.Background(), &f.user); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	rec, payload := f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": f.user.Email, "password": testPassword})
	expectStatus(t, rec, http.StatusForbidden)
	expectError(t, payload, "Account is not active")
	if last := f.lastEvent(t); last.EventType != "user.login.failed" || last.Status != audit.StatusFailure {
		t.Fatalf("last event = %+v", last)
	}

	// Existing sessions stop working once the owner is deactivated.
	rec, _ = f.do(t, http.MethodGet, "/api/me", f.userToken, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodPost, "/api/auth/logout", f.mailboxToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if last := f.lastEvent(t); last.EventType != "mailbox.logout" {
		t.Fatalf("event = %q", last.EventType)
	}
	rec, _ = f.do(t, http.MethodGet, "/api/me", f.mailboxToken, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
}

// vanishingTokens reports every token as already deleted, as if another
// request revoked it between the gate and the handler.
type vanishingTokens struct {
	directory.Repository
}

func (vanishingTokens) DeleteToken(context.Context, auth.Kind, string) (bool, error) {
	return false, nil
}

func TestLogoutRevokedConcurrently(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Repo = vanishingTokens{Repository: o.Repo} })
	before := len(f.events(t))

	rec, payload := f.do(t, http.MethodPost, "/api/auth/logout", f.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if payload["message"] != "Token not found" {
		t.Fatalf("message = %v", payload["message"])
	}
	if after := len(f.events(t)); after != before {
		t.Fatalf("audit events = %d, want %d", after, before)
	}
}

func TestLogoutAllCountsSessions(t *testing.T) {
	f := newFixture(t)
	second, err := auth.NewTokenStore(f.store).Issue(context.Background(), f.user.Principal())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rec, payload := f.do(t, http.MethodPost, "/api/auth/logout-all", f.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if payload["sessions_count"] != float64(2) {
		t.Fatalf("sessions_count = %v, want 2", payload["sessions_count"])
	}
	rec, _ = f.do(t, http.MethodGet, "/api/me", second, nil)
	expectStatus(t, rec, http.StatusUnauthorized)
	// The admin's session is untouched.
	rec, _ = f.do(t, http.MethodGet, "/api/me", f.adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
}

func TestDomainLifecycle(t *testing.T) {
	f := newFixture(t)

	rec, payload := f.do(t, http.MethodPost, "/api/domains", f.adminToken, map[string]any{"name": "New-Domain.IO"})
	expectStatus(t, rec, http.StatusCreated)
	created := payload["domain"].(map[string]any)
	if created["name"] != "new-domain.io" || created["active"] != true {
		t.Fatalf("created = %v", created)
	}
	id := int64(created["id"].(float64))

	rec, payload = f.do(t, http.MethodPost, "/api/domains", f.adminToken, map[string]any{"name": "new-domain.io"})
	expectStatus(t, rec, http.StatusConflict)
	expectError(t, payload, "Domain with this name already exists")

	rec, payload = f.do(t, http.MethodPost, "/api/domains", f.adminToken, map[string]any{"name": "not a domain"})
	expectStatus(t, rec, http.StatusBadRequest)
	expectError(t, payload, "Validation failed")

	before := len(f.events(t))
	rec, _ = f.do(t, http.MethodPut, fmt.Sprintf("/api/domains/%d", id), f.adminToken, map[string]any{"active": false})
	expectStatus(t, rec, http.StatusOK)
	got := f.eventTypes(t)[before:]
	if !slices.Equal(got, []string{"domain.updated", "domain.deactivated"}) {
		t.Fatalf("update events = %v", got)
	}

	rec, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/api/domains/%d", id), f.adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	last := f.lastEvent(t)
	if last.EventType != "domain.deleted" || last.OldValue["name"] != "new-domain.io" {
		t.Fatalf("delete event = %+v", last)
	}

	rec, payload = f.do(t, http.MethodDelete, fmt.Sprintf("/api/domains/%d", id), f.adminToken, nil)
	expectStatus(t, rec, http.StatusNotFound)
	expectError(t, payload, "Domain not found")
}

func TestDomainScopedAccess(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name    string
		path    string
		token   string
		status  int
		message string
	}{
		{name: "assigned domain", path: fmt.Sprintf("/api/domains/%d/mailboxes", f.domain.ID), token: f.userToken, status: http.StatusOK},
		{name: "unassigned domain", path: fmt.Sprintf("/api/domains/%d/mailboxes", f.otherDomain.ID), token: f.userToken, status: http.StatusForbidden, message: "Access denied"},
		{name: "missing domain for user", path: "/api/domains/9999/aliases", token: f.userToken, status: http.StatusForbidden, message: "Access denied"},
		{name: "missing domain for admin", path: "/api/domains/9999/aliases", token: f.adminToken, status: http.StatusNotFound, message: "Domain not found"},
		{name: "mailbox principal", path: fmt.Sprintf("/api/domains/%d/aliases", f.domain.ID), token: f.mailboxToken, status: http.StatusForbidden, message: "Access denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, payload := f.do(t, http.MethodGet, tt.path, tt.token, nil)
			expectStatus(t, rec, tt.status)
			if tt.message != "" {
				expectError(t, payload, tt.message)
			}
		})
	}
}

func TestMailboxOutsideDomainIsNotFound(t *testing.T) {
	f := newFixture(t)
	path := fmt.Sprintf("/api/domains/%d/mailboxes/%d", f.domain.ID, f.foreign.ID)
	rec, payload := f.do(t, http.MethodPut, path, f.adminToken, map[string]any{"active": false})
	expectStatus(t, rec, http.StatusNotFound)
	expectError(t, payload, "Mailbox not found")
}

func TestMailboxManagement(t *testing.T) {
	f := newFixture(t)
	base := fmt.Sprintf("/api/domains/%d/mailboxes", f.domain.ID)

	rec, payload := f.do(t, http.MethodPost, base, f.userToken, map[string]any{"name": "info", "password": "long-enough"})
	expectStatus(t, rec, http.StatusConflict)
	expectError(t, payload, "Mailbox with this name already exists in this domain")

	rec, payload = f.do(t, http.MethodPost, base, f.userToken, map[string]any{"name": "support", "password": "short"})
	expectStatus(t, rec, http.StatusBadRequest)
	details, _ := payload["details"].(map[string]any)
	if _, ok := details["password"]; !ok {
		t.Fatalf("details = %v, want password entry", payload["details"])
	}

	rec, payload = f.do(t, http.MethodPost, base, f.userToken, map[string]any{"name": "support", "password": "long-enough"})
	expectStatus(t, rec, http.StatusCreated)
	id := int64(payload["mailbox"].(map[string]any)["id"].(float64))

	before := len(f.events(t))
	rec, _ = f.do(t, http.MethodPut, fmt.Sprintf("%s/%d", base, id), f.userToken, map[string]any{"active": false, "footer_text": "--\nSupport"})
	expectStatus(t, rec, http.StatusOK)
	got := f.eventTypes(t)[before:]
	if !slices.Equal(got, []string{"mailbox.updated", "mailbox.deactivated"}) {
		t.Fatalf("update events = %v", got)
	}

	rec, payload = f.do(t, http.MethodPost, fmt.Sprintf("%s/%d/logout-all", base, f.mailbox.ID), f.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if payload["tokens_removed"] != float64(1) {
		t.Fatalf("tokens_removed = %v", payload["tokens_removed"])
	}
	rec, _ = f.do(t, http.MethodGet, "/api/me", f.mailboxToken, nil)
	expectStatus(t, rec, http.StatusUnauthorized)

	rec, _ = f.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", base, id), f.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if last := f.lastEvent(t); last.EventType != "mailbox.deleted" || last.OldValue["name"] != "support" {
		t.Fatalf("delete event = %+v", last)
	}
}

func TestAliasLifecycle(t *testing.T) {
	f := newFixture(t)
	base := fmt.Sprintf("/api/domains/%d/aliases", f.domain.ID)

	rec, payload := f.do(t, http.MethodPost, base, f.userToken, map[string]any{"name": "hello", "to": "info@example.com"})
	expectStatus(t, rec, http.StatusCreated)
	alias := payload["alias"].(map[string]any)
	if alias["active"] != true {
		t.Fatalf("alias = %v, want active by default", alias)
	}
	id := int64(alias["id"].(float64))

	rec, _ = f.do(t, http.MethodPut, fmt.Sprintf("%s/%d", base, id), f.userToken, map[string]any{"to": "not-an-email"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/api/domains/%d/aliases/%d", f.otherDomain.ID, id), f.adminToken, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec, _ = f.do(t, http.MethodDelete, fmt.Sprintf("%s/%d", base, id), f.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	last := f.lastEvent(t)
	if last.EventType != "alias.deleted" || last.OldValue["domain_id"] != f.domain.ID {
		t.Fatalf("delete event = %+v", last)
	}
}

func TestUserAdministration(t *testing.T) {
	f := newFixture(t)

	rec, payload := f.do(t, http.MethodPost, "/api/users", f.adminToken, map[string]any{
		"email": "new@corp.test", "password": "long-enough", "firstname": "Nia", "lastname": "New", "role": "user",
	})
	expectStatus(t, rec, http.StatusCreated)
	id := int64(payload["user"].(map[string]any)["id"].(float64))

	rec, payload = f.do(t, http.MethodPost, "/api/users", f.adminToken, map[string]any{
		"email": "new@corp.test", "password": "long-enough", "firstname": "Nia", "lastname": "New", "role": "user",
	})
	expectStatus(t, rec, http.StatusConflict)
	expectError(t, payload, "User with this email already exists")

	assign := fmt.Sprintf("/api/users/%d/domains/%d", id, f.otherDomain.ID)
	rec, _ = f.do(t, http.MethodPost, assign, f.adminToken, nil)
	expectStatus(t, rec, http.StatusCreated)
	rec, payload = f.do(t, http.MethodPost, assign, f.adminToken, nil)
	expectStatus(t, rec, http.StatusConflict)
	expectError(t, payload, "User already assigned to this domain")

	rec, _ = f.do(t, http.MethodDelete, assign, f.adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	rec, payload = f.do(t, http.MethodDelete, assign, f.adminToken, nil)
	expectStatus(t, rec, http.StatusNotFound)
	expectError(t, payload, "User is not assigned to this domain")

	rec, _ = f.do(t, http.MethodPut, fmt.Sprintf("/api/users/%d/password", f.user.ID), f.adminToken, map[string]any{"password": "another-pass"})
	expectStatus(t, rec, http.StatusOK)
	if last := f.lastEvent(t); last.EventType != "user.password_changed_by_admin" {
		t.Fatalf("event = %q", last.EventType)
	}
}

func TestProfile(t *testing.T) {
	f := newFixture(t)

	rec, payload := f.do(t, http.MethodGet, "/api/me", f.mailboxToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if payload["type"] != "mailbox" || payload["email"] != "info@example.com" || payload["domain"] != "example.com" {
		t.Fatalf("mailbox profile = %v", payload)
	}

	rec, payload = f.do(t, http.MethodGet, "/api/me", f.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if payload["type"] != "user" || payload["role"] != "user" || payload["firstname"] != "Uma" {
		t.Fatalf("user profile = %v", payload)
	}
}

func TestOwnDomains(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		token  string
		status int
		total  float64
	}{
		{name: "admin sees all", token: f.adminToken, status: http.StatusOK, total: 2},
		{name: "user sees assigned", token: f.userToken, status: http.StatusOK, total: 1},
		{name: "mailbox rejected", token: f.mailboxToken, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, payload := f.do(t, http.MethodGet, "/api/me/domains", tt.token, nil)
			expectStatus(t, rec, tt.status)
			if tt.status == http.StatusOK && payload["total"] != tt.total {
				t.Fatalf("total = %v, want %v", payload["total"], tt.total)
			}
		})
	}
}

func TestChangeOwnPassword(t *testing.T) {
	f := newFixture(t)

	rec, payload := f.do(t, http.MethodPut, "/api/me/password", f.mailboxToken, map[string]any{"new_password": "brand-new-pass"})
	expectStatus(t, rec, http.StatusBadRequest)
	expectError(t, payload, `Field "current_password" is required`)

	rec, payload = f.do(t, http.MethodPut, "/api/me/password", f.mailboxToken, map[string]any{"current_password": "wrong", "new_password": "brand-new-pass"})
	expectStatus(t, rec, http.StatusUnauthorized)
	expectError(t, payload, "Current password is incorrect")

	rec, _ = f.do(t, http.MethodPut, "/api/me/password", f.mailboxToken, map[string]any{"current_password": testPassword, "new_password": "brand-new-pass"})
	expectStatus(t, rec, http.StatusOK)
	if last := f.lastEvent(t); last.EventType != "mailbox.password_changed" {
		t.Fatalf("event = %q", last.EventType)
	}

	rec, _ = f.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "info@example.com", "password": "brand-new-pass"})
	expectStatus(t, rec, http.StatusOK)
}

func TestFooter(t *testing.T) {
	f := newFixture(t)

	rec, payload := f.do(t, http.MethodGet, "/api/mailbox/footer", f.userToken, nil)
	expectStatus(t, rec, http.StatusForbidden)
	expectError(t, payload, "This endpoint is only for mailboxes")

	rec, payload = f.do(t, http.MethodPut, "/api/mailbox/footer", f.mailboxToken, map[string]any{"footer_text": "Regards"})
	expectStatus(t, rec, http.StatusOK)
	if payload["footer_text"] != "Regards" {
		t.Fatalf("footer = %v", payload)
	}
	last := f.lastEvent(t)
	if last.EventType != "mailbox.footer_updated" || last.NewValue["footer_text"] == nil {
		t.Fatalf("event = %+v", last)
	}

	rec, payload = f.do(t, http.MethodGet, "/api/mailbox/footer", f.mailboxToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if payload["footer_text"] != "Regards" {
		t.Fatalf("footer = %v", payload)
	}
}

func TestAutoresponderFlow(t *testing.T) {
	f := newFixture(t)

	rec, payload := f.do(t, http.MethodGet, "/api/mailbox/autoresponder", f.mailboxToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if payload["autoresponder"] != nil || payload["message"] != "No autoresponder configured" {
		t.Fatalf("empty autoresponder = %v", payload)
	}

	rec, payload = f.do(t, http.MethodPut, "/api/mailbox/autoresponder", f.mailboxToken, map[string]any{
		"subject": "Away", "body": "Back soon", "start_date": "next week",
	})
	expectStatus(t, rec, http.StatusBadRequest)
	expectError(t, payload, "Invalid start_date format")

	rec, payload = f.do(t, http.MethodPut, "/api/mailbox/autoresponder", f.mailboxToken, map[string]any{
		"subject": "Away", "body": "Back soon", "start_date": "2026-05-10", "end_date": "2026-05-01",
	})
	expectStatus(t, rec, http.StatusBadRequest)

	rec, payload = f.do(t, http.MethodPut, "/api/mailbox/autoresponder", f.mailboxToken, map[string]any{
		"subject": "Away", "body": "Back soon", "active": true, "start_date": "2026-05-01", "end_date": "2026-05-10 18:00:00",
	})
	expectStatus(t, rec, http.StatusOK)
	ar := payload["autoresponder"].(map[string]any)
	if ar["start_date"] != "2026-05-01 00:00:00" || ar["end_date"] != "2026-05-10 18:00:00" {
		t.Fatalf("dates = %v / %v", ar["start_date"], ar["end_date"])
	}
	created := f.lastEvent(t)
	if created.EventType != "autoresponder.created" || created.EntityID == nil || *created.EntityID != f.mailbox.ID {
		t.Fatalf("created event = %+v", created)
	}

	rec, _ = f.do(t, http.MethodPut, "/api/mailbox/autoresponder", f.mailboxToken, map[string]any{"subject": "Away", "body": "Still away"})
	expectStatus(t, rec, http.StatusOK)
	updated := f.lastEvent(t)
	if updated.EventType != "autoresponder.updated" || updated.OldValue["body"] != "Back soon" || updated.NewValue["start_date"] == nil {
		t.Fatalf("updated event = %+v", updated)
	}

	rec, payload = f.do(t, http.MethodGet, fmt.Sprintf("/api/domains/%d/mailboxes", f.domain.ID), f.adminToken, nil)
	expectStatus(t, rec, http.StatusOK)
	var flagged bool
	for _, item := range payload["mailboxes"].([]any) {
		m := item.(map[string]any)
		if m["name"] == "info" {
			flagged = m["has_active_autoresponder"] == true
		}
	}
	if !flagged {
		t.Fatal("mailbox listing does not flag the active autoresponder")
	}

	rec, _ = f.do(t, http.MethodDelete, "/api/mailbox/autoresponder", f.mailboxToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if last := f.lastEvent(t); last.EventType != "autoresponder.deleted" {
		t.Fatalf("event = %q", last.EventType)
	}
	rec, payload = f.do(t, http.MethodDelete, "/api/mailbox/autoresponder", f.mailboxToken, nil)
	expectStatus(t, rec, http.StatusNotFound)
	expectError(t, payload, "No autoresponder to delete")
}

func TestAuditLogScoping(t *testing.T) {
	f := newFixture(t)
	// One event inside the user's domain, one outside it.
	f.do(t, http.MethodPut, fmt.Sprintf("/api/domains/%d/mailboxes/%d", f.domain.ID, f.mailbox.ID), f.adminToken, map[string]any{"footer_text": "a"})
	f.do(t, http.MethodPut, fmt.Sprintf("/api/domains/%d/mailboxes/%d", f.otherDomain.ID, f.foreign.ID), f.adminToken, map[string]any{"footer_text": "b"})

	tests := []struct {
		name    string
		query   string
		token   string
		status  int
		message string
		total   float64
	}{
		{name: "admin sees everything", token: f.adminToken, status: http.StatusOK, total: 2},
		{name: "admin ignores domain filter", query: fmt.Sprintf("?domain_id=%d", f.domain.ID), token: f.adminToken, status: http.StatusOK, total: 2},
		{name: "user scoped to domain", query: fmt.Sprintf("?domain_id=%d", f.domain.ID), token: f.userToken, status: http.StatusOK, total: 1},
		{name: "user without domain", token: f.userToken, status: http.StatusBadRequest, message: `Parameter "domain_id" is required for non-admin users`},
		{name: "user on foreign domain", query: fmt.Sprintf("?domain_id=%d", f.otherDomain.ID), token: f.userToken, status: http.StatusForbidden, message: "Access denied to this domain"},
		{name: "user with malformed domain", query: "?domain_id=abc", token: f.userToken, status: http.StatusBadRequest},
		{name: "user with zero domain", query: "?domain_id=0", token: f.userToken, status: http.StatusBadRequest, message: `Parameter "domain_id" is required for non-admin users`},
		{name: "user with negative domain", query: "?domain_id=-4", token: f.userToken, status: http.StatusBadRequest, message: `Parameter "domain_id" is required for non-admin users`},
		{name: "mailbox rejected", token: f.mailboxToken, status: http.StatusForbidden, message: "Access denied"},
		{name: "mailbox with malformed domain", query: "?domain_id=abc", token: f.mailboxToken, status: http.StatusForbidden, message: "Access denied"},
		{name: "mailbox with domain", query: fmt.Sprintf("?domain_id=%d", f.domain.ID), token: f.mailboxToken, status: http.StatusForbidden, message: "Access denied"},
		{name: "admin far past last page", query: "?page=184467440737095518", token: f.adminToken, status: http.StatusOK, total: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, payload := f.do(t, http.MethodGet, "/api/audit-logs"+tt.query, tt.token, nil)
			expectStatus(t, rec, tt.status)
			if tt.message != "" {
				expectError(t, payload, tt.message)
			}
			if tt.status != http.StatusOK {
				return
			}
			pagination := payload["pagination"].(map[string]any)
			if pagination["total_items"] != tt.total || pagination["page_size"] != float64(audit.PageSize) {
				t.Fatalf("pagination = %v, want total %v", pagination, tt.total)
			}
			if tt.query == "?page=184467440737095518" {
				if logs := payload["logs"].([]any); len(logs) != 0 {
					t.Fatalf("logs past the last page = %d, want 0", len(logs))
				}
			}
		})
	}

	rec, payload := f.do(t, http.MethodGet, fmt.Sprintf("/api/audit-logs?domain_id=%d", f.domain.ID), f.userToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if payload["domain_name"] != "example.com" {
		t.Fatalf("domain_name = %v", payload["domain_name"])
	}
}

type failingEvents struct {
	audit.Repository
}

func (failingEvents) Insert(context.Context, *audit.Event) error {
	return errors.New("audit store unavailable")
}

func TestAuditFailureFailsRequest(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Events = failingEvents{Repository: o.Events} })

	rec, payload := f.do(t, http.MethodPost, "/api/domains", f.adminToken, map[string]any{"name": "audited.net"})
	expectStatus(t, rec, http.StatusInternalServerError)
	expectError(t, payload, "Internal server error")

	// The mutation itself is not rolled back.
	if _, err := f.store.FindDomainByName(context.Background(), "audited.net"); err != nil {
		t.Fatalf("FindDomainByName: %v", err)
	}
}
