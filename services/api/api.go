package api

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"mailadmin/services/audit"
	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

// Version is reported by the status endpoint.
const Version = "1.0.0"

// Options carries the dependencies of the HTTP layer.
type Options struct {
	Repo   directory.Repository
	Events audit.Repository
	// Publisher is optional; when set, appended audit events are fanned out.
	Publisher audit.Publisher
	Logger    zerolog.Logger
}

type pinger interface {
	Ping(ctx context.Context) error
}

// API serves the mail administration endpoints.
type API struct {
	repo     directory.Repository
	ready    []pinger
	tokens   *auth.TokenStore
	gate     *auth.Gate
	ledger   *audit.Ledger
	audits   *audit.QueryEngine
	validate *validator.Validate
	log      zerolog.Logger
	now      func() time.Time
}

// New wires the token store, auth gate and audit ledger over the repositories.
func New(opts Options) (*API, error) {
	if opts.Repo == nil {
		return nil, errors.New("repository is required")
	}
	if opts.Events == nil {
		return nil, errors.New("audit repository is required")
	}

	var ledgerOpts []audit.LedgerOption
	if opts.Publisher != nil {
		ledgerOpts = append(ledgerOpts, audit.WithPublisher(opts.Publisher))
	}

	// The directory repository is always checked; the audit repository
	// only when it exposes its own connection.
	ready := []pinger{opts.Repo}
	if p, ok := opts.Events.(pinger); ok {
		ready = append(ready, p)
	}

	tokens := auth.NewTokenStore(opts.Repo)
	return &API{
		repo:     opts.Repo,
		ready:    ready,
		tokens:   tokens,
		gate:     auth.NewGate(tokens, opts.Logger),
		ledger:   audit.NewLedger(opts.Events, opts.Logger, ledgerOpts...),
		audits:   audit.NewQueryEngine(opts.Events, opts.Repo),
		validate: newValidator(),
		log:      opts.Logger,
		now:      time.Now,
	}, nil
}
