package auth

// IsAdministrator reports whether p is a user holding the administrator role.
func IsAdministrator(p Principal) bool {
	u, ok := p.(User)
	return ok && u.Role == RoleAdministrator
}

// CanAccessDomain reports whether p may act on the domain. Mailboxes never
// can; administrators always can; other users need an assignment.
func CanAccessDomain(p Principal, domainID int64) bool {
	switch v := p.(type) {
	case User:
		if v.Role == RoleAdministrator {
			return true
		}
		return v.AssignedTo(domainID)
	default:
		return false
	}
}

// CanManageMailbox reports whether p may manage the mailbox. A mailbox may only
// manage itself; users need access to the mailbox's domain.
func CanManageMailbox(p Principal, mailboxID, mailboxDomainID int64) bool {
	switch v := p.(type) {
	case Mailbox:
		return v.ID == mailboxID
	case User:
		return CanAccessDomain(v, mailboxDomainID)
	default:
		return false
	}
}
