package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const getPrincipalSQL = `
SELECT id, roles, permissions, subscription_tier, status, created_at, updated_at
FROM principals
WHERE id = $1`

// PostgresRepository reads principals from Postgres.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Principal, error) {
	var p Principal
	err := r.db.QueryRow(ctx, getPrincipalSQL, id).Scan(
		&p.ID,
		&p.Roles,
		&p.Permissions,
		&p.SubscriptionTier,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return &p, nil
}
