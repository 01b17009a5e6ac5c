package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// AccountStore persists ledger account snapshots.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates an AccountStore backed by the given client.
func NewAccountStore(client *Client) *AccountStore {
	return &AccountStore{pool: client.Pool()}
}

// Upsert inserts or replaces one account snapshot.
func (s *AccountStore) Upsert(ctx context.Context, account domain.Account) error {
	allowances, err := json.Marshal(account.Allowances)
	if err != nil {
		return fmt.Errorf("postgres: marshal allowances for %s: %w", account.Address, err)
	}

	const q = `
		INSERT INTO accounts (address, balance, airdrop_claimed, allowances, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (address) DO UPDATE SET
			balance = EXCLUDED.balance,
			airdrop_claimed = EXCLUDED.airdrop_claimed,
			allowances = EXCLUDED.allowances,
			updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, q,
		account.Address, account.Balance, account.AirdropClaimed, allowances,
	); err != nil {
		return fmt.Errorf("postgres: upsert account %s: %w", account.Address, err)
	}
	return nil
}

// List returns every stored account snapshot.
func (s *AccountStore) List(ctx context.Context) ([]domain.Account, error) {
	const q = `
		SELECT address, balance, airdrop_claimed, allowances
		FROM accounts
		ORDER BY address`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var (
			acct       domain.Account
			allowances []byte
		)
		if err := rows.Scan(&acct.Address, &acct.Balance, &acct.AirdropClaimed, &allowances); err != nil {
			return nil, fmt.Errorf("postgres: scan account: %w", err)
		}
		if len(allowances) > 0 {
			if err := json.Unmarshal(allowances, &acct.Allowances); err != nil {
				return nil, fmt.Errorf("postgres: decode allowances for %s: %w", acct.Address, err)
			}
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate accounts: %w", err)
	}
	return accounts, nil
}
