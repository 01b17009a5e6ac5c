package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// JournalStore persists the append-only settlement journal.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a JournalStore backed by the given client.
func NewJournalStore(client *Client) *JournalStore {
	return &JournalStore{pool: client.Pool()}
}

// Append writes one journal entry. Entries are never updated or deleted.
func (s *JournalStore) Append(ctx context.Context, entry domain.JournalEntry) error {
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal journal detail: %w", err)
	}

	const q = `
		INSERT INTO journal (id, event, account, round_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, q,
		entry.ID, entry.Event, entry.Account, entry.RoundID, detail, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: append journal entry: %w", err)
	}
	return nil
}

// ListRecent returns the latest entries, newest first.
func (s *JournalStore) ListRecent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, event, account, round_id, detail, created_at
		FROM journal
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent journal: %w", err)
	}
	defer rows.Close()
	return scanJournal(rows)
}

// ListByRound returns every entry recorded for one round, oldest first.
func (s *JournalStore) ListByRound(ctx context.Context, roundID int64) ([]domain.JournalEntry, error) {
	const q = `
		SELECT id, event, account, round_id, detail, created_at
		FROM journal
		WHERE round_id = $1
		ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, roundID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal for round %d: %w", roundID, err)
	}
	defer rows.Close()
	return scanJournal(rows)
}

func scanJournal(rows pgx.Rows) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	for rows.Next() {
		var (
			e      domain.JournalEntry
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.Event, &e.Account, &e.RoundID, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan journal entry: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: decode journal detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate journal: %w", err)
	}
	return entries, nil
}
