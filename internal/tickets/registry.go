// Package tickets implements the unique-claim registry and its resale
// marketplace: minting, ownership transfer, and list/delist/buy.
//
// Like the points ledger, the Registry is not goroutine-safe; the service
// layer serializes every mutating operation.
package tickets

import (
	"fmt"
	"sort"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// PaymentLedger is the slice of the points ledger the marketplace needs to
// move payment on a purchase.
type PaymentLedger interface {
	TransferFrom(spender, from, to string, amount int64) error
}

// Registry owns every claim and listing record. Claim ids are assigned
// monotonically and each claim has exactly one owner at all times; the
// owner index is updated in the same step as the owner field.
type Registry struct {
	clock    domain.Clock
	claims   map[int64]*domain.Claim
	byOwner  map[string]map[int64]struct{}
	listings map[int64]domain.Listing
	nextID   int64
}

// NewRegistry creates an empty registry using the given clock for claim
// creation timestamps.
func NewRegistry(clock domain.Clock) *Registry {
	return &Registry{
		clock:    clock,
		claims:   make(map[int64]*domain.Claim),
		byOwner:  make(map[string]map[int64]struct{}),
		listings: make(map[int64]domain.Listing),
	}
}

// Mint creates count new Active claims owned by `to` for the given round and
// choice and returns their ids. Payment is the caller's responsibility.
func (r *Registry) Mint(to string, roundID int64, choice string, count int) ([]int64, error) {
	if count <= 0 {
		return nil, fmt.Errorf("tickets: mint count %d: %w", count, domain.ErrInvalidParameters)
	}
	now := r.clock.Now()
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id := r.nextID
		r.nextID++
		r.claims[id] = &domain.Claim{
			ID:        id,
			Owner:     to,
			RoundID:   roundID,
			Choice:    choice,
			Status:    domain.ClaimStatusActive,
			CreatedAt: now,
		}
		r.indexOwner(to, id)
		ids = append(ids, id)
	}
	return ids, nil
}

// List opens a resale offer for claimID at the given price. The seller must
// own the claim, the claim must be Active, and no listing may already exist.
func (r *Registry) List(seller string, claimID, price int64) (domain.Listing, error) {
	claim, ok := r.claims[claimID]
	if !ok {
		return domain.Listing{}, fmt.Errorf("tickets: list claim %d: %w", claimID, domain.ErrNotFound)
	}
	if claim.Owner != seller {
		return domain.Listing{}, fmt.Errorf("tickets: list claim %d by %s: %w", claimID, seller, domain.ErrNotOwner)
	}
	if claim.Status == domain.ClaimStatusSettled {
		return domain.Listing{}, fmt.Errorf("tickets: list claim %d: %w", claimID, domain.ErrClaimSettled)
	}
	if _, exists := r.listings[claimID]; exists || claim.Status == domain.ClaimStatusListed {
		return domain.Listing{}, fmt.Errorf("tickets: list claim %d: %w", claimID, domain.ErrAlreadyListed)
	}
	if price <= 0 {
		return domain.Listing{}, fmt.Errorf("tickets: list claim %d at %d: %w", claimID, price, domain.ErrInvalidParameters)
	}

	listing := domain.Listing{
		ClaimID:   claimID,
		Seller:    seller,
		Price:     price,
		CreatedAt: r.clock.Now(),
	}
	r.listings[claimID] = listing
	claim.Status = domain.ClaimStatusListed
	return listing, nil
}

// Delist withdraws the open listing for claimID. Only the seller may delist.
func (r *Registry) Delist(seller string, claimID int64) error {
	claim, ok := r.claims[claimID]
	if !ok {
		return fmt.Errorf("tickets: delist claim %d: %w", claimID, domain.ErrNotFound)
	}
	if _, exists := r.listings[claimID]; !exists {
		return fmt.Errorf("tickets: delist claim %d: %w", claimID, domain.ErrNoListing)
	}
	if claim.Owner != seller {
		return fmt.Errorf("tickets: delist claim %d by %s: %w", claimID, seller, domain.ErrNotOwner)
	}
	delete(r.listings, claimID)
	claim.Status = domain.ClaimStatusActive
	return nil
}

// Buy purchases the listed claim for the buyer. Payment moves through the
// given ledger (the buyer must have approved the engine as spender); only
// after payment succeeds does ownership transfer and the listing close. A
// payment failure leaves the registry untouched.
func (r *Registry) Buy(buyer string, claimID int64, ledger PaymentLedger) (domain.Listing, error) {
	listing, ok := r.listings[claimID]
	if !ok {
		return domain.Listing{}, fmt.Errorf("tickets: buy claim %d: %w", claimID, domain.ErrNoListing)
	}
	claim := r.claims[claimID]

	if err := ledger.TransferFrom(buyer, buyer, listing.Seller, listing.Price); err != nil {
		return domain.Listing{}, err
	}

	delete(r.listings, claimID)
	r.unindexOwner(claim.Owner, claimID)
	claim.Owner = buyer
	claim.Status = domain.ClaimStatusActive
	r.indexOwner(buyer, claimID)
	return listing, nil
}

// OwnerOf returns the current owner of claimID.
func (r *Registry) OwnerOf(claimID int64) (string, error) {
	claim, ok := r.claims[claimID]
	if !ok {
		return "", fmt.Errorf("tickets: owner of claim %d: %w", claimID, domain.ErrNotFound)
	}
	return claim.Owner, nil
}

// Claim returns a copy of the claim record.
func (r *Registry) Claim(claimID int64) (domain.Claim, error) {
	claim, ok := r.claims[claimID]
	if !ok {
		return domain.Claim{}, fmt.Errorf("tickets: claim %d: %w", claimID, domain.ErrNotFound)
	}
	return *claim, nil
}

// ClaimsOf returns every claim owned by the account, ordered by id.
func (r *Registry) ClaimsOf(owner string) []domain.Claim {
	ids := r.byOwner[owner]
	out := make([]domain.Claim, 0, len(ids))
	for id := range ids {
		out = append(out, *r.claims[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClaimsByRound returns every claim minted for the round, ordered by id.
func (r *Registry) ClaimsByRound(roundID int64) []domain.Claim {
	var out []domain.Claim
	for _, claim := range r.claims {
		if claim.RoundID == roundID {
			out = append(out, *claim)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListingOf returns the open listing for claimID, if any.
func (r *Registry) ListingOf(claimID int64) (domain.Listing, bool) {
	listing, ok := r.listings[claimID]
	return listing, ok
}

// OpenListings returns every open listing enriched with its claim metadata,
// ordered by claim id. This backs the marketplace display.
func (r *Registry) OpenListings() []domain.SaleItem {
	out := make([]domain.SaleItem, 0, len(r.listings))
	for claimID, listing := range r.listings {
		out = append(out, domain.SaleItem{
			Claim: *r.claims[claimID],
			Price: listing.Price,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Claim.ID < out[j].Claim.ID })
	return out
}

// SettleRound marks every claim of the round Settled and drops any open
// listings for them. Called by the round engine under draw and refund.
// Returns the ids of listings that were force-closed.
func (r *Registry) SettleRound(roundID int64) []int64 {
	var delisted []int64
	for id, claim := range r.claims {
		if claim.RoundID != roundID {
			continue
		}
		if _, exists := r.listings[id]; exists {
			delete(r.listings, id)
			delisted = append(delisted, id)
		}
		claim.Status = domain.ClaimStatusSettled
	}
	sort.Slice(delisted, func(i, j int) bool { return delisted[i] < delisted[j] })
	return delisted
}

// Snapshot returns copies of every claim and open listing for persistence.
func (r *Registry) Snapshot() ([]domain.Claim, []domain.Listing) {
	claims := make([]domain.Claim, 0, len(r.claims))
	for _, claim := range r.claims {
		claims = append(claims, *claim)
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].ID < claims[j].ID })

	listings := make([]domain.Listing, 0, len(r.listings))
	for _, listing := range r.listings {
		listings = append(listings, listing)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ClaimID < listings[j].ClaimID })
	return claims, listings
}

// Restore replaces the registry state with the given snapshots. Called once
// at startup.
func (r *Registry) Restore(claims []domain.Claim, listings []domain.Listing) {
	r.claims = make(map[int64]*domain.Claim, len(claims))
	r.byOwner = make(map[string]map[int64]struct{})
	r.listings = make(map[int64]domain.Listing, len(listings))
	r.nextID = 0
	for _, claim := range claims {
		c := claim
		r.claims[c.ID] = &c
		r.indexOwner(c.Owner, c.ID)
		if c.ID >= r.nextID {
			r.nextID = c.ID + 1
		}
	}
	for _, listing := range listings {
		r.listings[listing.ClaimID] = listing
	}
}

func (r *Registry) indexOwner(owner string, claimID int64) {
	ids := r.byOwner[owner]
	if ids == nil {
		ids = make(map[int64]struct{})
		r.byOwner[owner] = ids
	}
	ids[claimID] = struct{}{}
}

func (r *Registry) unindexOwner(owner string, claimID int64) {
	if ids := r.byOwner[owner]; ids != nil {
		delete(ids, claimID)
		if len(ids) == 0 {
			delete(r.byOwner, owner)
		}
	}
}
