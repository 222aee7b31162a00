package snapshot

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ozonscout/internal/model"
)

// PGStore persists the snapshot series in Postgres. Same append-only
// contract as the in-memory store; ordering comes from observed_at.
type PGStore struct {
	Pool *pgxpool.Pool
}

func (s *PGStore) Append(ctx context.Context, snap model.StockSnapshot) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO stock_snapshots (product_id, observed_at, stock_remaining, review_count)
		VALUES ($1, $2, $3, $4)
	`, snap.ProductID, snap.ObservedAt, snap.StockRemaining, snap.ReviewCount)
	return err
}

func (s *PGStore) Query(ctx context.Context, productID string, since time.Time) ([]model.StockSnapshot, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT product_id, observed_at, stock_remaining, review_count
		FROM stock_snapshots
		WHERE product_id = $1 AND observed_at >= $2
		ORDER BY observed_at
	`, productID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []model.StockSnapshot
	for rows.Next() {
		var snap model.StockSnapshot
		if err := rows.Scan(&snap.ProductID, &snap.ObservedAt, &snap.StockRemaining, &snap.ReviewCount); err != nil {
			return nil, err
		}
		series = append(series, snap)
	}
	return series, rows.Err()
}
