package tickets

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/easybet/internal/domain"
)

const (
	alice = "0x0000000000000000000000000000000000000A11"
	bob   = "0x0000000000000000000000000000000000000B0B"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

// fakeLedger records transfer calls and can be told to fail.
type fakeLedger struct {
	calls []int64
	err   error
}

func (f *fakeLedger) TransferFrom(spender, from, to string, amount int64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, amount)
	return nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(&fakeClock{now: time.Unix(1_700_000_000, 0)})
}

func TestMintAssignsMonotonicIDs(t *testing.T) {
	r := newTestRegistry(t)

	ids, err := r.Mint(alice, 0, "A", 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, ids)

	ids, err = r.Mint(bob, 0, "B", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, ids)

	_, err = r.Mint(alice, 0, "A", 0)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	owner, err := r.OwnerOf(2)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)
	assert.Len(t, r.ClaimsOf(alice), 3)
	assert.Len(t, r.ClaimsByRound(0), 4)
}

func TestListDelist(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Mint(alice, 0, "A", 1)
	require.NoError(t, err)

	_, err = r.List(bob, 0, 100)
	require.ErrorIs(t, err, domain.ErrNotOwner)

	_, err = r.List(alice, 0, 0)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	listing, err := r.List(alice, 0, 150)
	require.NoError(t, err)
	assert.Equal(t, int64(150), listing.Price)

	claim, err := r.Claim(0)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimStatusListed, claim.Status)

	_, err = r.List(alice, 0, 200)
	require.ErrorIs(t, err, domain.ErrAlreadyListed)

	require.ErrorIs(t, r.Delist(bob, 0), domain.ErrNotOwner)
	require.NoError(t, r.Delist(alice, 0))
	require.ErrorIs(t, r.Delist(alice, 0), domain.ErrNoListing)

	claim, err = r.Claim(0)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimStatusActive, claim.Status)
}

func TestBuyTransfersOwnershipAfterPayment(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Mint(alice, 0, "A", 1)
	require.NoError(t, err)
	_, err = r.List(alice, 0, 180)
	require.NoError(t, err)

	ledger := &fakeLedger{}
	listing, err := r.Buy(bob, 0, ledger)
	require.NoError(t, err)
	assert.Equal(t, alice, listing.Seller)
	assert.Equal(t, []int64{180}, ledger.calls)

	owner, err := r.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, bob, owner)

	claim, err := r.Claim(0)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimStatusActive, claim.Status, "purchased claim is active under the new owner")

	assert.Empty(t, r.ClaimsOf(alice))
	assert.Len(t, r.ClaimsOf(bob), 1)
	assert.Empty(t, r.OpenListings())
}

func TestBuyPaymentFailureLeavesOwnership(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Mint(alice, 0, "A", 1)
	require.NoError(t, err)
	_, err = r.List(alice, 0, 180)
	require.NoError(t, err)

	payErr := errors.New("insufficient balance")
	_, err = r.Buy(bob, 0, &fakeLedger{err: payErr})
	require.ErrorIs(t, err, payErr)

	owner, err := r.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, alice, owner, "failed payment must not move ownership")

	_, stillListed := r.ListingOf(0)
	assert.True(t, stillListed)
}

func TestBuyWithoutListing(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Mint(alice, 0, "A", 1)
	require.NoError(t, err)

	_, err = r.Buy(bob, 0, &fakeLedger{})
	require.ErrorIs(t, err, domain.ErrNoListing)
}

func TestSettleRoundClosesListings(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Mint(alice, 0, "A", 2)
	require.NoError(t, err)
	_, err = r.Mint(bob, 1, "X", 1)
	require.NoError(t, err)
	_, err = r.List(alice, 1, 90)
	require.NoError(t, err)

	delisted := r.SettleRound(0)
	assert.Equal(t, []int64{1}, delisted)

	for _, claim := range r.ClaimsByRound(0) {
		assert.Equal(t, domain.ClaimStatusSettled, claim.Status)
	}
	// The other round is untouched.
	other, err := r.Claim(2)
	require.NoError(t, err)
	assert.Equal(t, domain.ClaimStatusActive, other.Status)

	// Settled claims cannot be relisted.
	_, err = r.List(alice, 0, 50)
	require.ErrorIs(t, err, domain.ErrClaimSettled)
}

func TestSnapshotRestoreKeepsIDSequence(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Mint(alice, 0, "A", 2)
	require.NoError(t, err)
	_, err = r.List(alice, 0, 120)
	require.NoError(t, err)

	claims, listings := r.Snapshot()
	require.Len(t, claims, 2)
	require.Len(t, listings, 1)

	restored := newTestRegistry(t)
	restored.Restore(claims, listings)

	ids, err := restored.Mint(bob, 0, "B", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids, "id sequence resumes after restore")

	_, ok := restored.ListingOf(0)
	assert.True(t, ok)
	assert.Len(t, restored.ClaimsOf(alice), 2)
}
