package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// AuditRepository is the append-only event store. There is no update
// or delete: once appended, an event and its position in the
// per-ticket sequence never change.
type AuditRepository interface {
	Append(ctx context.Context, event *domain.AuditEvent) (int64, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEvent, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds the Postgres-backed audit store. Ordering
// comes from the bigserial sequence assigned on insert.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Append(ctx context.Context, event *domain.AuditEvent) (int64, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	const query = `
        INSERT INTO audit_events (id, ticket_id, action, actor, meta, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING seq`
	if err := r.pool.QueryRow(ctx, query,
		event.ID,
		event.TicketID,
		event.Action,
		event.Actor,
		event.Meta,
		event.Timestamp,
	).Scan(&event.Seq); err != nil {
		return 0, err
	}
	return event.Seq, nil
}

func (r *auditRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AuditEvent, error) {
	const query = `
        SELECT id, seq, ticket_id, action, actor, meta, created_at
        FROM audit_events WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEvent
	for rows.Next() {
		var event domain.AuditEvent
		if err := rows.Scan(
			&event.ID,
			&event.Seq,
			&event.TicketID,
			&event.Action,
			&event.Actor,
			&event.Meta,
			&event.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
