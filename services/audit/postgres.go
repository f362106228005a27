package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailadmin/pkg/db"
)

const eventColumns = `id, actor_type, actor_id, event_type, entity_type, entity_id,
old_value, new_value, ip_address, user_agent, status, created_at`

// PostgresRepository stores events in the audit_logs table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a repository over pool.
func NewPostgresRepository(pool *pgxpool.Pool) (*PostgresRepository, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &PostgresRepository{pool: pool}, nil
}

type eventRow struct {
	ID         int64     `db:"id"`
	ActorType  string    `db:"actor_type"`
	ActorID    *int64    `db:"actor_id"`
	EventType  string    `db:"event_type"`
	EntityType string    `db:"entity_type"`
	EntityID   *int64    `db:"entity_id"`
	OldValue   []byte    `db:"old_value"`
	NewValue   []byte    `db:"new_value"`
	IPAddress  *string   `db:"ip_address"`
	UserAgent  *string   `db:"user_agent"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r eventRow) toEvent() (Event, error) {
	e := Event{
		ID:         r.ID,
		ActorType:  ActorType(r.ActorType),
		ActorID:    r.ActorID,
		EventType:  r.EventType,
		EntityType: EntityType(r.EntityType),
		EntityID:   r.EntityID,
		IPAddress:  r.IPAddress,
		UserAgent:  r.UserAgent,
		Status:     Status(r.Status),
		CreatedAt:  r.CreatedAt,
	}
	var err error
	if e.OldValue, err = decodeSnapshot(r.OldValue); err != nil {
		return Event{}, fmt.Errorf("decode old_value of event %d: %w", r.ID, err)
	}
	if e.NewValue, err = decodeSnapshot(r.NewValue); err != nil {
		return Event{}, fmt.Errorf("decode new_value of event %d: %w", r.ID, err)
	}
	return e, nil
}

// Insert writes e and sets its ID.
// Ping checks the pool backing the audit trail.
func (p *PostgresRepository) Ping(ctx context.Context) error {
	return db.Ping(ctx, p.pool)
}

func (p *PostgresRepository) Insert(ctx context.Context, e *Event) error {
	oldValue, err := encodeSnapshot(e.OldValue)
	if err != nil {
		return err
	}
	newValue, err := encodeSnapshot(e.NewValue)
	if err != nil {
		return err
	}

	return db.Get(ctx, p.pool, &e.ID, `
INSERT INTO audit_logs (actor_type, actor_id, event_type, entity_type, entity_id,
	old_value, new_value, ip_address, user_agent, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9, $10, $11)
RETURNING id
`, string(e.ActorType), e.ActorID, e.EventType, string(e.EntityType), e.EntityID,
		oldValue, newValue, e.IPAddress, e.UserAgent, string(e.Status), e.CreatedAt)
}

// Count returns the number of events matching f.
func (p *PostgresRepository) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := whereClause(f)
	var total int64
	err := db.Get(ctx, p.pool, &total, `SELECT COUNT(*) FROM audit_logs`+where, args...)
	return total, err
}

// Find returns events matching f ordered newest first.
func (p *PostgresRepository) Find(ctx context.Context, f Filter, offset, limit int) ([]Event, error) {
	where, args := whereClause(f)
	n := len(args)
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s FROM audit_logs%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		eventColumns, where, n+1, n+2)
	return p.selectEvents(ctx, query, args...)
}

// ListAfter returns events with id > afterID in id order.
func (p *PostgresRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM audit_logs WHERE id > $1 ORDER BY id ASC LIMIT $2`
	return p.selectEvents(ctx, query, afterID, limit)
}

func (p *PostgresRepository) selectEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	var rows []eventRow
	if err := db.Select(ctx, p.pool, &rows, query, args...); err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// whereClause renders f as an OR of (entity_type, entity_id = ANY(ids)) pairs.
func whereClause(f Filter) (string, []any) {
	if f.Global() {
		return "", nil
	}
	clauses := make([]string, 0, len(f.Scopes))
	args := make([]any, 0, 2*len(f.Scopes))
	for _, s := range f.Scopes {
		ids := s.IDs
		if len(ids) == 0 {
			ids = []int64{unmatchableID}
		}
		args = append(args, string(s.EntityType), ids)
		clauses = append(clauses, fmt.Sprintf("(entity_type = $%d AND entity_id = ANY($%d::bigint[]))", len(args)-1, len(args)))
	}
	return " WHERE " + strings.Join(clauses, " OR "), args
}

func encodeSnapshot(v map[string]any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode audit snapshot: %w", err)
	}
	s := string(data)
	return &s, nil
}

func decodeSnapshot(raw []byte) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
