package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// RoundStore persists round snapshots, including per-choice wager totals.
type RoundStore struct {
	pool *pgxpool.Pool
}

// NewRoundStore creates a RoundStore backed by the given client.
func NewRoundStore(client *Client) *RoundStore {
	return &RoundStore{pool: client.Pool()}
}

// Upsert inserts or replaces one round snapshot.
func (s *RoundStore) Upsert(ctx context.Context, round domain.Round) error {
	wagers, err := json.Marshal(round.Wagers)
	if err != nil {
		return fmt.Errorf("postgres: marshal wagers for round %d: %w", round.ID, err)
	}

	const q = `
		INSERT INTO rounds (
			id, name, description, choices, start_time, end_time,
			amount_per_claim, seed_pool, wagers, winner, status, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			choices = EXCLUDED.choices,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			amount_per_claim = EXCLUDED.amount_per_claim,
			seed_pool = EXCLUDED.seed_pool,
			wagers = EXCLUDED.wagers,
			winner = EXCLUDED.winner,
			status = EXCLUDED.status,
			updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, q,
		round.ID, round.Name, round.Description, round.Choices,
		round.StartTime, round.EndTime, round.AmountPerClaim, round.SeedPool,
		wagers, round.Winner, string(round.Status), round.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: upsert round %d: %w", round.ID, err)
	}
	return nil
}

// List returns every stored round ordered by id.
func (s *RoundStore) List(ctx context.Context) ([]domain.Round, error) {
	const q = `
		SELECT id, name, description, choices, start_time, end_time,
		       amount_per_claim, seed_pool, wagers, winner, status, created_at
		FROM rounds
		ORDER BY id`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		var (
			r      domain.Round
			wagers []byte
			status string
		)
		if err := rows.Scan(
			&r.ID, &r.Name, &r.Description, &r.Choices, &r.StartTime, &r.EndTime,
			&r.AmountPerClaim, &r.SeedPool, &wagers, &r.Winner, &status, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		r.Status = domain.RoundStatus(status)
		if len(wagers) > 0 {
			if err := json.Unmarshal(wagers, &r.Wagers); err != nil {
				return nil, fmt.Errorf("postgres: decode wagers for round %d: %w", r.ID, err)
			}
		}
		if r.Wagers == nil {
			r.Wagers = make(map[string]int64)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rounds: %w", err)
	}
	return rounds, nil
}
