package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fincaops/incident-service/internal/domain"
)

// TicketEventRepository persists the append-only audit trail.
type TicketEventRepository interface {
	Create(ctx context.Context, event *domain.TicketEvent) error
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketEvent, error)
}

type ticketEventRepository struct {
	pool *pgxpool.Pool
}

// NewTicketEventRepository instantiates repository.
func NewTicketEventRepository(pool *pgxpool.Pool) TicketEventRepository {
	return &ticketEventRepository{pool: pool}
}

func (r *ticketEventRepository) Create(ctx context.Context, event *domain.TicketEvent) error {
	const query = `
        INSERT INTO ticket_events (ticket_id, event_type, from_status, to_status, trigger, description, payload, actor)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at`
	var payload []byte
	if event.Payload != nil {
		encoded, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}
		payload = encoded
	}
	return r.pool.QueryRow(ctx, query,
		event.TicketID,
		event.Type,
		event.FromStatus,
		event.ToStatus,
		event.Trigger,
		event.Description,
		payload,
		event.Actor,
	).Scan(&event.ID, &event.CreatedAt)
}

func (r *ticketEventRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, ticket_id, event_type, from_status, to_status, trigger, description, payload, actor, created_at
        FROM ticket_events WHERE ticket_id=$1
        ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTicketEvents(rows)
}

func scanTicketEvents(rows pgx.Rows) ([]domain.TicketEvent, error) {
	var result []domain.TicketEvent
	for rows.Next() {
		var event domain.TicketEvent
		var payload []byte
		if err := rows.Scan(
			&event.ID,
			&event.TicketID,
			&event.Type,
			&event.FromStatus,
			&event.ToStatus,
			&event.Trigger,
			&event.Description,
			&payload,
			&event.Actor,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event.Payload); err != nil {
				return nil, err
			}
		}
		result = append(result, event)
	}
	return result, rows.Err()
}
