package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// ClaimStore persists claims and their open listings.
type ClaimStore struct {
	pool *pgxpool.Pool
}

// NewClaimStore creates a ClaimStore backed by the given client.
func NewClaimStore(client *Client) *ClaimStore {
	return &ClaimStore{pool: client.Pool()}
}

const upsertClaimSQL = `
	INSERT INTO claims (id, owner, round_id, choice, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (id) DO UPDATE SET
		owner = EXCLUDED.owner,
		status = EXCLUDED.status,
		updated_at = NOW()`

// Upsert inserts or replaces one claim.
func (s *ClaimStore) Upsert(ctx context.Context, claim domain.Claim) error {
	if _, err := s.pool.Exec(ctx, upsertClaimSQL,
		claim.ID, claim.Owner, claim.RoundID, claim.Choice, string(claim.Status), claim.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: upsert claim %d: %w", claim.ID, err)
	}
	return nil
}

// UpsertBatch writes a set of claims in one batch round trip. Used for the
// multi-claim rows a single wager mints and for settlement sweeps.
func (s *ClaimStore) UpsertBatch(ctx context.Context, claims []domain.Claim) error {
	if len(claims) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range claims {
		batch.Queue(upsertClaimSQL, c.ID, c.Owner, c.RoundID, c.Choice, string(c.Status), c.CreatedAt)
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range claims {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: batch upsert claims: %w", err)
		}
	}
	return nil
}

// List returns every stored claim ordered by id.
func (s *ClaimStore) List(ctx context.Context) ([]domain.Claim, error) {
	const q = `
		SELECT id, owner, round_id, choice, status, created_at
		FROM claims
		ORDER BY id`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list claims: %w", err)
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var (
			c      domain.Claim
			status string
		)
		if err := rows.Scan(&c.ID, &c.Owner, &c.RoundID, &c.Choice, &status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan claim: %w", err)
		}
		c.Status = domain.ClaimStatus(status)
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate claims: %w", err)
	}
	return claims, nil
}

// PutListing inserts or replaces the open listing for one claim.
func (s *ClaimStore) PutListing(ctx context.Context, listing domain.Listing) error {
	const q = `
		INSERT INTO listings (claim_id, seller, price, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (claim_id) DO UPDATE SET
			seller = EXCLUDED.seller,
			price = EXCLUDED.price,
			created_at = EXCLUDED.created_at`
	if _, err := s.pool.Exec(ctx, q,
		listing.ClaimID, listing.Seller, listing.Price, listing.CreatedAt,
	); err != nil {
		return fmt.Errorf("postgres: put listing %d: %w", listing.ClaimID, err)
	}
	return nil
}

// DeleteListing removes the listing for claimID, if any.
func (s *ClaimStore) DeleteListing(ctx context.Context, claimID int64) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM listings WHERE claim_id = $1", claimID); err != nil {
		return fmt.Errorf("postgres: delete listing %d: %w", claimID, err)
	}
	return nil
}

// ListListings returns every open listing ordered by claim id.
func (s *ClaimStore) ListListings(ctx context.Context) ([]domain.Listing, error) {
	const q = `
		SELECT claim_id, seller, price, created_at
		FROM listings
		ORDER BY claim_id`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(&l.ClaimID, &l.Seller, &l.Price, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate listings: %w", err)
	}
	return listings, nil
}
