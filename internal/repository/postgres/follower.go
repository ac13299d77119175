package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FollowerStore struct {
	pool *pgxpool.Pool
}

func NewFollowerStore(pool *pgxpool.Pool) *FollowerStore {
	return &FollowerStore{pool: pool}
}

func (s *FollowerStore) ListFollowerIDs(ctx context.Context, followedID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT follower_id
		FROM followers
		WHERE followed_id = $1`

	rows, err := s.pool.Query(ctx, query, followedID)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follower: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followers: %w", err)
	}

	return ids, nil
}
