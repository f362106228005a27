package auth

import "fmt"

// PolicyKind tags a route policy.
type PolicyKind int

const (
	policyUnset PolicyKind = iota
	PolicyOpen
	PolicyAuthenticated
	PolicyRoleRequired
)

// Policy is the authorization requirement attached to a route when it is
// registered. The zero value means "not declared".
type Policy struct {
	kind PolicyKind
	role Role
}

// Open lets every request through without looking at credentials.
func Open() Policy { return Policy{kind: PolicyOpen} }

// Authenticated admits any active principal.
func Authenticated() Policy { return Policy{kind: PolicyAuthenticated} }

// RequireRole admits only user principals holding exactly role.
func RequireRole(role Role) Policy { return Policy{kind: PolicyRoleRequired, role: role} }

// Kind returns the policy tag.
func (p Policy) Kind() PolicyKind { return p.kind }

// Role returns the required role for PolicyRoleRequired.
func (p Policy) Role() Role { return p.role }

// Declared reports whether the policy was set explicitly.
func (p Policy) Declared() bool { return p.kind != policyUnset }

func (p Policy) String() string {
	switch p.kind {
	case PolicyOpen:
		return "open"
	case PolicyAuthenticated:
		return "authenticated"
	case PolicyRoleRequired:
		return fmt.Sprintf("role(%s)", p.role)
	default:
		return "unset"
	}
}

// Resolve picks the effective policy for a route: the route's own declaration
// wins over the group's, and a route with neither is Open.
func Resolve(route, group Policy) Policy {
	if route.Declared() {
		return route
	}
	if group.Declared() {
		return group
	}
	return Open()
}
