package audit

import (
	"context"
	"fmt"

	"mailadmin/services/auth"
)

// PageSize is the fixed number of events per page.
const PageSize = 50

// DomainLookup resolves the entities that belong to a domain.
type DomainLookup interface {
	// DomainScope returns the domain's member ids; found is false when the
	// domain does not exist.
	DomainScope(ctx context.Context, domainID int64) (scope DomainScope, found bool, err error)
}

// Pagination describes the slice of results returned.
type Pagination struct {
	Page       int
	PageSize   int
	TotalItems int64
	TotalPages int
}

// Result is one page of events. Domain is set for domain-scoped queries.
type Result struct {
	Events     []Event
	Pagination Pagination
	Domain     *DomainScope
}

// QueryEngine answers paginated audit queries scoped to the caller.
type QueryEngine struct {
	repo    Repository
	domains DomainLookup
}

// NewQueryEngine returns a QueryEngine reading from repo.
func NewQueryEngine(repo Repository, domains DomainLookup) *QueryEngine {
	return &QueryEngine{repo: repo, domains: domains}
}

// List returns a page of events visible to p. Administrators see everything and
// domainID is ignored. Everyone else must name a domain they are assigned to.
func (q *QueryEngine) List(ctx context.Context, p auth.Principal, page int, domainID *int64) (Result, error) {
	page = max(1, page)

	if auth.IsAdministrator(p) {
		return q.page(ctx, Filter{}, page)
	}

	if _, ok := p.(auth.User); !ok {
		return Result{}, newError(ErrAccessDenied, "Access denied")
	}
	if domainID == nil {
		return Result{}, newError(ErrValidation, `Parameter "domain_id" is required for non-admin users`)
	}
	if !auth.CanAccessDomain(p, *domainID) {
		return Result{}, newError(ErrAccessDenied, "Access denied to this domain")
	}

	scope, found, err := q.domains.DomainScope(ctx, *domainID)
	if err != nil {
		return Result{}, fmt.Errorf("load domain %d scope: %w", *domainID, err)
	}
	if !found {
		return Result{}, newError(ErrNotFound, "Domain not found")
	}

	res, err := q.page(ctx, ScopeFilter(scope), page)
	if err != nil {
		return Result{}, err
	}
	res.Domain = &scope
	return res, nil
}

func (q *QueryEngine) page(ctx context.Context, f Filter, page int) (Result, error) {
	total, err := q.repo.Count(ctx, f)
	if err != nil {
		return Result{}, fmt.Errorf("count audit events: %w", err)
	}
	// Pages past the end are empty; skipping the lookup keeps the offset
	// bounded by total.
	events := []Event{}
	if page <= TotalPages(total) {
		events, err = q.repo.Find(ctx, f, (page-1)*PageSize, PageSize)
		if err != nil {
			return Result{}, fmt.Errorf("find audit events: %w", err)
		}
		if events == nil {
			events = []Event{}
		}
	}
	return Result{
		Events: events,
		Pagination: Pagination{
			Page:       page,
			PageSize:   PageSize,
			TotalItems: total,
			TotalPages: TotalPages(total),
		},
	}, nil
}

// TotalPages is ceil(total / PageSize), zero when there are no items.
func TotalPages(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + PageSize - 1) / PageSize)
}
