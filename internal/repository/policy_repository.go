package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/triage-service/internal/domain"
)

// PolicyRepository stores the single versioned triage policy record.
type PolicyRepository interface {
	Get(ctx context.Context) (domain.TriagePolicy, error)
	Save(ctx context.Context, policy domain.TriagePolicy) (domain.TriagePolicy, error)
}

type policyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository builds the Postgres-backed policy store. The
// single row is seeded by migrations.
func NewPolicyRepository(pool *pgxpool.Pool) PolicyRepository {
	return &policyRepository{pool: pool}
}

func (r *policyRepository) Get(ctx context.Context) (domain.TriagePolicy, error) {
	const query = `
        SELECT auto_close_enabled, confidence_threshold, sla_hours, version, updated_at
        FROM triage_policy WHERE id=1`
	var policy domain.TriagePolicy
	if err := r.pool.QueryRow(ctx, query).Scan(
		&policy.AutoCloseEnabled,
		&policy.ConfidenceThreshold,
		&policy.SLAHours,
		&policy.Version,
		&policy.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TriagePolicy{}, ErrNotFound
		}
		return domain.TriagePolicy{}, err
	}
	return policy, nil
}

func (r *policyRepository) Save(ctx context.Context, policy domain.TriagePolicy) (domain.TriagePolicy, error) {
	const query = `
        UPDATE triage_policy
        SET auto_close_enabled=$1, confidence_threshold=$2, sla_hours=$3,
            version=version+1, updated_at=NOW()
        WHERE id=1
        RETURNING auto_close_enabled, confidence_threshold, sla_hours, version, updated_at`
	var saved domain.TriagePolicy
	if err := r.pool.QueryRow(ctx, query,
		policy.AutoCloseEnabled,
		policy.ConfidenceThreshold,
		policy.SLAHours,
	).Scan(
		&saved.AutoCloseEnabled,
		&saved.ConfidenceThreshold,
		&saved.SLAHours,
		&saved.Version,
		&saved.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TriagePolicy{}, ErrNotFound
		}
		return domain.TriagePolicy{}, err
	}
	return saved, nil
}
