package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fincaops/incident-service/internal/domain"
	"github.com/fincaops/incident-service/pkg/util"
)

const ticketColumns = `id, code, reporter_id, channel, category, urgency, summary, description,
               address, unit, status, escalated_from, follow_up_of_id, assigned_provider,
               needs_review, created_at, updated_at, last_activity_at, closed_at`

// TicketFilter captures listing parameters.
type TicketFilter struct {
	ReporterID    *string
	Statuses      []domain.TicketStatus
	Urgencies     []domain.Urgency
	ActivitySince *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCode(ctx context.Context, code string) (*domain.Ticket, error)
	ListOpenByReporter(ctx context.Context, reporterID string, activitySince time.Time) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (code, reporter_id, channel, category, urgency, summary, description,
            address, unit, status, escalated_from, follow_up_of_id, assigned_provider, needs_review, last_activity_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Code,
		ticket.ReporterID,
		ticket.Channel,
		ticket.Category,
		ticket.Urgency,
		ticket.Summary,
		ticket.Description,
		ticket.Address,
		ticket.Unit,
		ticket.Status,
		ticket.EscalatedFrom,
		ticket.FollowUpOfID,
		ticket.AssignedProvider,
		ticket.NeedsReview,
		ticket.LastActivityAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: the generated code collided; the caller retries with a fresh one.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return util.NewConflict("ticket code already exists", map[string]any{"code": ticket.Code})
		}
		return err
	}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET category=$1, urgency=$2, summary=$3, description=$4, address=$5, unit=$6,
            status=$7, escalated_from=$8, assigned_provider=$9, needs_review=$10,
            last_activity_at=$11, closed_at=$12, updated_at=NOW()
        WHERE id=$13`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Category,
		ticket.Urgency,
		ticket.Summary,
		ticket.Description,
		ticket.Address,
		ticket.Unit,
		ticket.Status,
		ticket.EscalatedFrom,
		ticket.AssignedProvider,
		ticket.NeedsReview,
		ticket.LastActivityAt,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByCode(ctx context.Context, code string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE code=$1`
	return r.fetchSingle(ctx, query, code)
}

// ListOpenByReporter returns the reporter's non-terminal tickets with
// activity inside the continuation window, most recent first.
func (r *ticketRepository) ListOpenByReporter(ctx context.Context, reporterID string, activitySince time.Time) ([]domain.Ticket, error) {
	filter := TicketFilter{
		ReporterID:    &reporterID,
		ActivitySince: &activitySince,
	}
	return r.ListWithFilter(ctx, filter)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	} else {
		args = append(args, domain.TicketStatusClosed)
		clauses = append(clauses, fmt.Sprintf("status <> $%d", len(args)))
	}
	if len(filter.Urgencies) > 0 {
		placeholders := make([]string, len(filter.Urgencies))
		for i, urgency := range filter.Urgencies {
			args = append(args, urgency)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("urgency IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.ActivitySince != nil {
		args = append(args, *filter.ActivitySince)
		clauses = append(clauses, fmt.Sprintf("last_activity_at >= $%d", len(args)))
	}
	if filter.CreatedBefore != nil {
		args = append(args, *filter.CreatedBefore)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY last_activity_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ID,
		&ticket.Code,
		&ticket.ReporterID,
		&ticket.Channel,
		&ticket.Category,
		&ticket.Urgency,
		&ticket.Summary,
		&ticket.Description,
		&ticket.Address,
		&ticket.Unit,
		&ticket.Status,
		&ticket.EscalatedFrom,
		&ticket.FollowUpOfID,
		&ticket.AssignedProvider,
		&ticket.NeedsReview,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.LastActivityAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Code,
			&ticket.ReporterID,
			&ticket.Channel,
			&ticket.Category,
			&ticket.Urgency,
			&ticket.Summary,
			&ticket.Description,
			&ticket.Address,
			&ticket.Unit,
			&ticket.Status,
			&ticket.EscalatedFrom,
			&ticket.FollowUpOfID,
			&ticket.AssignedProvider,
			&ticket.NeedsReview,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.LastActivityAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
