package audit

import "slices"

// unmatchableID stands in for an empty id set; no entity is stored with id 0.
const unmatchableID int64 = 0

// Scope matches events of one entity type whose entity id is in IDs.
type Scope struct {
	EntityType EntityType
	IDs        []int64
}

// Filter selects events matching any of its scopes. A filter without scopes
// selects every event.
type Filter struct {
	Scopes []Scope
}

// Global reports whether the filter selects every event.
func (f Filter) Global() bool {
	return len(f.Scopes) == 0
}

// Matches reports whether e is selected by f.
func (f Filter) Matches(e Event) bool {
	if f.Global() {
		return true
	}
	if e.EntityID == nil {
		return false
	}
	for _, s := range f.Scopes {
		if s.EntityType == e.EntityType && slices.Contains(s.IDs, *e.EntityID) {
			return true
		}
	}
	return false
}

// DomainScope lists the ids of everything that belongs to one domain.
type DomainScope struct {
	DomainID   int64
	DomainName string
	AliasIDs   []int64
	MailboxIDs []int64
	UserIDs    []int64
}

// ScopeFilter builds the visibility filter for a domain. Autoresponder events
// are keyed by the owning mailbox id. Empty id sets never match anything.
func ScopeFilter(d DomainScope) Filter {
	return Filter{Scopes: []Scope{
		{EntityType: EntityDomain, IDs: []int64{d.DomainID}},
		{EntityType: EntityAlias, IDs: orUnmatchable(d.AliasIDs)},
		{EntityType: EntityMailbox, IDs: orUnmatchable(d.MailboxIDs)},
		{EntityType: EntityUserDomain, IDs: []int64{d.DomainID}},
		{EntityType: EntityUser, IDs: orUnmatchable(d.UserIDs)},
		{EntityType: EntityAutoresponder, IDs: orUnmatchable(d.MailboxIDs)},
	}}
}

func orUnmatchable(ids []int64) []int64 {
	if len(ids) == 0 {
		return []int64{unmatchableID}
	}
	return slices.Clone(ids)
}
