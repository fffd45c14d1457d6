package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fincaops/incident-service/internal/domain"
	"github.com/fincaops/incident-service/pkg/util"
)

// ReporterRepository encapsulates reporter persistence.
type ReporterRepository interface {
	Create(ctx context.Context, reporter *domain.Reporter) error
	Update(ctx context.Context, reporter *domain.Reporter) error
	GetByID(ctx context.Context, id string) (*domain.Reporter, error)
	GetByHandle(ctx context.Context, channel domain.Channel, handle string) (*domain.Reporter, error)
}

type reporterRepository struct {
	pool *pgxpool.Pool
}

// NewReporterRepository instantiates repository.
func NewReporterRepository(pool *pgxpool.Pool) ReporterRepository {
	return &reporterRepository{pool: pool}
}

func (r *reporterRepository) Create(ctx context.Context, reporter *domain.Reporter) error {
	const query = `
        INSERT INTO reporters (channel, handle, name, address, unit, preferred_contact, needs_review)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		reporter.Channel,
		reporter.Handle,
		reporter.Name,
		reporter.Address,
		reporter.Unit,
		reporter.PreferredContact,
		reporter.NeedsReview,
	).Scan(&reporter.ID, &reporter.CreatedAt, &reporter.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation on (channel, handle); the caller re-fetches.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return util.NewConflict("reporter already exists", map[string]any{
				"channel": reporter.Channel,
				"handle":  reporter.Handle,
			})
		}
		return err
	}
	return nil
}

func (r *reporterRepository) Update(ctx context.Context, reporter *domain.Reporter) error {
	const query = `
        UPDATE reporters SET name=$1, address=$2, unit=$3, preferred_contact=$4,
            needs_review=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		reporter.Name,
		reporter.Address,
		reporter.Unit,
		reporter.PreferredContact,
		reporter.NeedsReview,
		reporter.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return util.NewNotFound("reporter", map[string]any{"id": reporter.ID})
	}
	return nil
}

func (r *reporterRepository) GetByID(ctx context.Context, id string) (*domain.Reporter, error) {
	const query = `
        SELECT id, channel, handle, name, address, unit, preferred_contact, needs_review, created_at, updated_at
        FROM reporters WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *reporterRepository) GetByHandle(ctx context.Context, channel domain.Channel, handle string) (*domain.Reporter, error) {
	const query = `
        SELECT id, channel, handle, name, address, unit, preferred_contact, needs_review, created_at, updated_at
        FROM reporters WHERE channel=$1 AND handle=$2`
	return r.fetchSingle(ctx, query, channel, handle)
}

func (r *reporterRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Reporter, error) {
	var reporter domain.Reporter
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&reporter.ID,
		&reporter.Channel,
		&reporter.Handle,
		&reporter.Name,
		&reporter.Address,
		&reporter.Unit,
		&reporter.PreferredContact,
		&reporter.NeedsReview,
		&reporter.CreatedAt,
		&reporter.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &reporter, nil
}
