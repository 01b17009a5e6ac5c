package domain

import "time"

// ClaimStatus represents the lifecycle state of a single ticket.
type ClaimStatus string

const (
	ClaimStatusActive  ClaimStatus = "active"
	ClaimStatusListed  ClaimStatus = "listed"
	ClaimStatusSettled ClaimStatus = "settled"
)

// Claim is a uniquely owned ticket backing one outcome of one round. RoundID
// and Choice are immutable after minting; only Owner and Status change.
type Claim struct {
	ID        int64       `json:"id"`
	Owner     string      `json:"owner"`
	RoundID   int64       `json:"round_id"`
	Choice    string      `json:"choice"`
	Status    ClaimStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Listing is an open resale offer for exactly one claim. Seller equals the
// claim owner at listing time and at most one listing per claim exists.
type Listing struct {
	ClaimID   int64     `json:"claim_id"`
	Seller    string    `json:"seller"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// SaleItem is an open listing enriched with its claim's round metadata, for
// marketplace display.
type SaleItem struct {
	Claim Claim `json:"claim"`
	Price int64 `json:"price"`
}
