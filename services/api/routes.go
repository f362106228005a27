package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"mailadmin/services/auth"
)

// routeGroup registers routes that share a default policy. A route's own
// policy, when declared, replaces the group's.
type routeGroup struct {
	r      chi.Router
	gate   *auth.Gate
	policy auth.Policy
}

func (a *API) group(r chi.Router, policy auth.Policy) routeGroup {
	return routeGroup{r: r, gate: a.gate, policy: policy}
}

func (g routeGroup) handle(method, pattern string, route auth.Policy, h http.HandlerFunc, mw ...func(http.Handler) http.Handler) {
	mw = append(mw, g.gate.Enforce(auth.Resolve(route, g.policy)))
	g.r.With(mw...).Method(method, pattern, h)
}

var inherit auth.Policy

func (a *API) routes(r chi.Router, opts RouterOptions) {
	admin := auth.RequireRole(auth.RoleAdministrator)
	authenticated := auth.Authenticated()

	loginLimit := opts.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}

	public := a.group(r, auth.Open())
	public.handle(http.MethodGet, "/api/status", inherit, a.handleStatus)

	sessions := a.group(r, authenticated)
	sessions.handle(http.MethodPost, "/api/auth/login", auth.Open(), a.handleLogin, httprate.LimitByIP(loginLimit, time.Minute))
	sessions.handle(http.MethodPost, "/api/auth/logout", inherit, a.handleLogout)
	sessions.handle(http.MethodPost, "/api/auth/logout-all", inherit, a.handleLogoutAll)

	domains := a.group(r, admin)
	domains.handle(http.MethodGet, "/api/domains", inherit, a.handleListDomains)
	domains.handle(http.MethodPost, "/api/domains", inherit, a.handleCreateDomain)
	domains.handle(http.MethodPut, "/api/domains/{domainID}", inherit, a.handleUpdateDomain)
	domains.handle(http.MethodDelete, "/api/domains/{domainID}", inherit, a.handleDeleteDomain)
	domains.handle(http.MethodGet, "/api/domains/{domainID}/managers", authenticated, a.handleDomainManagers)

	users := a.group(r, admin)
	users.handle(http.MethodGet, "/api/users", inherit, a.handleListUsers)
	users.handle(http.MethodPost, "/api/users", inherit, a.handleCreateUser)
	users.handle(http.MethodGet, "/api/users/{userID}", inherit, a.handleGetUser)
	users.handle(http.MethodPut, "/api/users/{userID}", inherit, a.handleUpdateUser)
	users.handle(http.MethodPut, "/api/users/{userID}/password", inherit, a.handleSetUserPassword)
	users.handle(http.MethodPost, "/api/users/{userID}/logout-all", inherit, a.handleLogoutUser)
	users.handle(http.MethodPost, "/api/users/{userID}/domains/{domainID}", inherit, a.handleAssignDomain)
	users.handle(http.MethodDelete, "/api/users/{userID}/domains/{domainID}", inherit, a.handleUnassignDomain)

	mailboxes := a.group(r, authenticated)
	mailboxes.handle(http.MethodGet, "/api/domains/{domainID}/mailboxes", inherit, a.handleListMailboxes)
	mailboxes.handle(http.MethodPost, "/api/domains/{domainID}/mailboxes", inherit, a.handleCreateMailbox)
	mailboxes.handle(http.MethodPut, "/api/domains/{domainID}/mailboxes/{id}", inherit, a.handleUpdateMailbox)
	mailboxes.handle(http.MethodPut, "/api/domains/{domainID}/mailboxes/{id}/password", inherit, a.handleSetMailboxPassword)
	mailboxes.handle(http.MethodDelete, "/api/domains/{domainID}/mailboxes/{id}", inherit, a.handleDeleteMailbox)
	mailboxes.handle(http.MethodPost, "/api/domains/{domainID}/mailboxes/{id}/logout-all", inherit, a.handleLogoutMailbox)

	aliases := a.group(r, authenticated)
	aliases.handle(http.MethodGet, "/api/domains/{domainID}/aliases", inherit, a.handleListAliases)
	aliases.handle(http.MethodPost, "/api/domains/{domainID}/aliases", inherit, a.handleCreateAlias)
	aliases.handle(http.MethodPut, "/api/domains/{domainID}/aliases/{id}", inherit, a.handleUpdateAlias)
	aliases.handle(http.MethodDelete, "/api/domains/{domainID}/aliases/{id}", inherit, a.handleDeleteAlias)

	profile := a.group(r, authenticated)
	profile.handle(http.MethodGet, "/api/me", inherit, a.handleProfile)
	profile.handle(http.MethodPut, "/api/me/password", inherit, a.handleChangeOwnPassword)
	profile.handle(http.MethodGet, "/api/me/domains", inherit, a.handleOwnDomains)

	self := a.group(r, authenticated)
	self.handle(http.MethodGet, "/api/mailbox/footer", inherit, a.handleGetFooter)
	self.handle(http.MethodPut, "/api/mailbox/footer", inherit, a.handleUpdateFooter)
	self.handle(http.MethodGet, "/api/mailbox/autoresponder", inherit, a.handleGetAutoresponder)
	self.handle(http.MethodPut, "/api/mailbox/autoresponder", inherit, a.handlePutAutoresponder)
	self.handle(http.MethodDelete, "/api/mailbox/autoresponder", inherit, a.handleDeleteAutoresponder)

	logs := a.group(r, authenticated)
	logs.handle(http.MethodGet, "/api/audit-logs", inherit, a.handleListAuditLogs)
}
