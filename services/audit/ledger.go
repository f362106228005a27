package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mailadmin/pkg/metrics"
	"mailadmin/services/auth"
)

// Repository stores and queries audit events.
type Repository interface {
	// Insert writes e and fills in its ID.
	Insert(ctx context.Context, e *Event) error
	// Count returns the number of events matching f.
	Count(ctx context.Context, f Filter) (int64, error)
	// Find returns events matching f, newest first.
	Find(ctx context.Context, f Filter, offset, limit int) ([]Event, error)
	// ListAfter returns up to limit events with id > afterID, oldest first.
	ListAfter(ctx context.Context, afterID int64, limit int) ([]Event, error)
}

// Publisher fans appended events out to other consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Entry describes one event to append.
type Entry struct {
	EventType  string
	EntityType EntityType
	EntityID   *int64
	// Actor is the principal that acted; nil records the system.
	Actor auth.Principal
	// Request is nil for background events.
	Request  *RequestInfo
	OldValue map[string]any
	NewValue map[string]any
	// Status defaults to StatusSuccess.
	Status Status
}

// Ledger is the append-only write path for audit events.
type Ledger struct {
	repo      Repository
	publisher Publisher
	log       zerolog.Logger
	now       func() time.Time
}

// LedgerOption customises a Ledger.
type LedgerOption func(*Ledger)

// WithPublisher fans every stored event out through p.
func WithPublisher(p Publisher) LedgerOption {
	return func(l *Ledger) { l.publisher = p }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// NewLedger returns a Ledger writing to repo.
func NewLedger(repo Repository, log zerolog.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{repo: repo, log: log, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append writes exactly one event. Storage failures are returned unchanged in
// meaning; the caller decides how to fail the request.
func (l *Ledger) Append(ctx context.Context, entry Entry) error {
	_, err := l.append(ctx, ActorOf(entry.Actor), entry)
	return err
}

// LogLogin records an authentication attempt as "<kind>.login.success" or
// "<kind>.login.failed". actorID is nil when the identifier matched nobody.
func (l *Ledger) LogLogin(ctx context.Context, identifier string, success bool, kind auth.Kind, actorID *int64, req *RequestInfo) error {
	outcome, status := "failed", StatusFailure
	if success {
		outcome, status = "success", StatusSuccess
	}
	actorType := ActorUser
	if kind == auth.KindMailbox {
		actorType = ActorMailbox
	}
	_, err := l.append(ctx, Actor{Type: actorType, ID: actorID}, Entry{
		EventType:  fmt.Sprintf("%s.login.%s", kind, outcome),
		EntityType: EntityType(kind),
		EntityID:   actorID,
		Request:    req,
		NewValue:   map[string]any{"email": identifier},
		Status:     status,
	})
	return err
}

func (l *Ledger) append(ctx context.Context, actor Actor, entry Entry) (Event, error) {
	if entry.EventType == "" {
		return Event{}, errors.New("audit: event type is required")
	}
	if !entry.EntityType.Valid() {
		return Event{}, fmt.Errorf("audit: unknown entity type %q", entry.EntityType)
	}
	status := entry.Status
	if status == "" {
		status = StatusSuccess
	}

	event := Event{
		ActorType:  actor.Type,
		ActorID:    actor.ID,
		EventType:  entry.EventType,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		OldValue:   entry.OldValue,
		NewValue:   entry.NewValue,
		Status:     status,
		CreatedAt:  l.now().UTC().Truncate(time.Microsecond),
	}
	if entry.Request != nil {
		event.IPAddress = optional(entry.Request.IPAddress)
		event.UserAgent = optional(entry.Request.UserAgent)
	}

	if err := l.repo.Insert(ctx, &event); err != nil {
		metrics.AuditAppendErrors.Inc()
		l.log.Error().Err(err).Str("event_type", event.EventType).Msg("append audit event")
		return Event{}, fmt.Errorf("append audit event %s: %w", event.EventType, err)
	}
	metrics.AuditEvents.WithLabelValues(string(event.EntityType), string(event.Status)).Inc()

	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, event); err != nil {
			metrics.AuditPublishErrors.Inc()
			l.log.Warn().Err(err).Int64("audit_id", event.ID).Msg("publish audit event")
		}
	}
	return event, nil
}
