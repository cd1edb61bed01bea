// internal/database/rating.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RatingStore adapts the shared pgx pool to the rating.Store interface.
type RatingStore struct{}

// ReadRatings fetches both players' ratings in a single query.
func (RatingStore) ReadRatings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	q := `SELECT id, elo FROM users WHERE id = ANY($1)`
	rows, err := DB.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("query ratings: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]int, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var elo int
		if err := rows.Scan(&id, &elo); err != nil {
			return nil, err
		}
		out[id] = elo
	}
	return out, rows.Err()
}

// WriteRating stores a user's new rating.
func (RatingStore) WriteRating(ctx context.Context, id uuid.UUID, elo int) error {
	q := `UPDATE users SET elo = $1 WHERE id = $2`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, elo, id)
		return err
	})
}

// RecordMatch appends the match history row. The winner is stored twice,
// once as participant and once as the result, matching the legacy schema.
func (RatingStore) RecordMatch(ctx context.Context, winnerID, loserID uuid.UUID) error {
	q := `INSERT INTO matches (player1_id, player2_id, winner_id) VALUES ($1, $2, $3)`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, winnerID, loserID, winnerID)
		return err
	})
}
