package rounds

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/easybet/internal/domain"
	"github.com/alanyoungcy/easybet/internal/points"
	"github.com/alanyoungcy/easybet/internal/tickets"
)

const (
	authority = "0x00000000000000000000000000000000000000AA"
	escrow    = "0x00000000000000000000000000000000000000EE"
	p1        = "0x0000000000000000000000000000000000000001"
	p2        = "0x0000000000000000000000000000000000000002"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	clock    *fakeClock
	ledger   *points.Ledger
	registry *tickets.Registry
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	ledger := points.NewLedger(authority)
	registry := tickets.NewRegistry(clock)
	engine := NewEngine(authority, escrow, ledger, registry, clock)
	return &fixture{clock: clock, ledger: ledger, registry: registry, engine: engine}
}

// fund grants the airdrop and approves the escrow as spender.
func (f *fixture) fund(t *testing.T, player string) {
	t.Helper()
	require.NoError(t, f.ledger.Grant(player))
	require.NoError(t, f.ledger.Approve(player, escrow, points.GrantAmount))
}

// openRound creates a round whose window contains the current fake time.
func (f *fixture) openRound(t *testing.T, choices []string, amountPerClaim, seedPool int64) domain.Round {
	t.Helper()
	round, err := f.engine.CreateRound(authority, "test round", "",
		choices, f.clock.now.Add(-time.Hour), f.clock.now.Add(time.Hour), amountPerClaim, seedPool)
	require.NoError(t, err)
	return round
}

func TestCreateRoundValidation(t *testing.T) {
	f := newFixture(t)
	start := f.clock.now
	end := start.Add(time.Hour)

	_, err := f.engine.CreateRound(p1, "r", "", []string{"A", "B"}, start, end, 100, 0)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = f.engine.CreateRound(authority, "r", "", nil, start, end, 100, 0)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	_, err = f.engine.CreateRound(authority, "r", "", []string{"A", "A"}, start, end, 100, 0)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	_, err = f.engine.CreateRound(authority, "r", "", []string{"A", "B"}, end, start, 100, 0)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	_, err = f.engine.CreateRound(authority, "r", "", []string{"A", "B"}, start, end, 0, 0)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	round, err := f.engine.CreateRound(authority, "r", "desc", []string{"A", "B"}, start, end, 100, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(0), round.ID)
	assert.Equal(t, domain.RoundStatusOpen, round.Status)
	assert.Equal(t, map[string]int64{"A": 0, "B": 0}, round.Wagers)
}

func TestStatusDerivation(t *testing.T) {
	f := newFixture(t)
	start := f.clock.now.Add(time.Hour)
	end := start.Add(time.Hour)

	round, err := f.engine.CreateRound(authority, "r", "", []string{"A", "B"}, start, end, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusPending, round.Status)

	_, err = f.engine.RecomputeStatus(99)
	require.ErrorIs(t, err, domain.ErrInvalidRound)

	f.clock.Advance(90 * time.Minute)
	status, err := f.engine.RecomputeStatus(round.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusOpen, status)

	f.clock.Advance(time.Hour)
	f.engine.RecomputeAll()
	got, err := f.engine.Round(round.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusClosed, got.Status)

	// Readers see the derived status even without an explicit recompute.
	all := f.engine.Rounds()
	require.Len(t, all, 1)
	assert.Equal(t, domain.RoundStatusClosed, all[0].Status)
}

func TestWager(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	round := f.openRound(t, []string{"A", "B"}, 100, 0)

	_, _, err := f.engine.Wager(p1, 99, "A", 1)
	require.ErrorIs(t, err, domain.ErrInvalidRound)

	_, _, err = f.engine.Wager(p1, round.ID, "C", 1)
	require.ErrorIs(t, err, domain.ErrInvalidChoice)

	_, _, err = f.engine.Wager(p1, round.ID, "A", 0)
	require.ErrorIs(t, err, domain.ErrInvalidParameters)

	cost, ids, err := f.engine.Wager(p1, round.ID, "A", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(200), cost)
	assert.Equal(t, []int64{0, 1}, ids)
	assert.Equal(t, points.GrantAmount-200, f.ledger.BalanceOf(p1))
	assert.Equal(t, int64(200), f.ledger.BalanceOf(escrow))

	got, err := f.engine.Round(round.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Wagers["A"])
	assert.Len(t, f.registry.ClaimsOf(p1), 2)
}

func TestWagerRequiresApproval(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Grant(p1)) // funded, but escrow not approved
	round := f.openRound(t, []string{"A", "B"}, 100, 0)

	_, _, err := f.engine.Wager(p1, round.ID, "A", 1)
	require.ErrorIs(t, err, domain.ErrInsufficientAllowance)

	// Payment failed, so nothing was staked and nothing was minted.
	got, err := f.engine.Round(round.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Wagers["A"])
	assert.Empty(t, f.registry.ClaimsOf(p1))
}

func TestWagerInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ledger.Approve(p1, escrow, 1_000_000)) // approved but broke
	round := f.openRound(t, []string{"A", "B"}, 100, 0)

	_, _, err := f.engine.Wager(p1, round.ID, "A", 1)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestWagerOutsideWindow(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	start := f.clock.now.Add(time.Hour)
	round, err := f.engine.CreateRound(authority, "r", "", []string{"A", "B"}, start, start.Add(time.Hour), 100, 0)
	require.NoError(t, err)

	_, _, err = f.engine.Wager(p1, round.ID, "A", 1)
	require.ErrorIs(t, err, domain.ErrRoundNotOpen)

	f.clock.Advance(3 * time.Hour)
	_, _, err = f.engine.Wager(p1, round.ID, "A", 1)
	require.ErrorIs(t, err, domain.ErrRoundNotOpen)
}

func TestDrawBasicSettlement(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	f.fund(t, p2)
	round := f.openRound(t, []string{"A", "B"}, 100, 0)

	_, _, err := f.engine.Wager(p1, round.ID, "A", 2)
	require.NoError(t, err)
	_, _, err = f.engine.Wager(p2, round.ID, "B", 1)
	require.NoError(t, err)

	settlement, err := f.engine.Draw(authority, round.ID, "A")
	require.NoError(t, err)

	assert.Equal(t, int64(300), settlement.Pool)
	assert.Equal(t, int64(150), settlement.PerClaim)
	assert.Equal(t, int64(0), settlement.Remainder)
	assert.Equal(t, int64(300), settlement.Payouts[p1])

	// P1 staked 200 and won the whole 300 pool; P2's stake is gone.
	assert.Equal(t, points.GrantAmount+100, f.ledger.BalanceOf(p1))
	assert.Equal(t, points.GrantAmount-100, f.ledger.BalanceOf(p2))
	assert.Equal(t, int64(0), f.ledger.BalanceOf(escrow))

	got, err := f.engine.Round(round.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusSettled, got.Status)
	assert.Equal(t, "A", got.Winner)
	for _, claim := range f.registry.ClaimsByRound(round.ID) {
		assert.Equal(t, domain.ClaimStatusSettled, claim.Status)
	}
}

func TestDrawRemainderGoesToAuthority(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	f.fund(t, p2)
	round := f.openRound(t, []string{"A", "B"}, 100, 0)

	_, _, err := f.engine.Wager(p1, round.ID, "A", 3) // 300
	require.NoError(t, err)
	_, _, err = f.engine.Wager(p2, round.ID, "B", 1) // 100
	require.NoError(t, err)

	settlement, err := f.engine.Draw(authority, round.ID, "A")
	require.NoError(t, err)

	// Pool 400 over 3 winning claims: 133 each, remainder 1 to the authority.
	assert.Equal(t, int64(133), settlement.PerClaim)
	assert.Equal(t, int64(1), settlement.Remainder)
	assert.Equal(t, int64(399), settlement.Payouts[p1])
	assert.Equal(t, int64(1), f.ledger.BalanceOf(authority))
	assert.Equal(t, int64(0), f.ledger.BalanceOf(escrow))

	// Conservation: every staked point was redistributed.
	total := f.ledger.BalanceOf(p1) + f.ledger.BalanceOf(p2) + f.ledger.BalanceOf(authority)
	assert.Equal(t, 2*points.GrantAmount, total)
}

func TestDrawSeedPoolCreatesDeclaredValue(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	round := f.openRound(t, []string{"A", "B"}, 100, 500)

	_, _, err := f.engine.Wager(p1, round.ID, "A", 1)
	require.NoError(t, err)

	settlement, err := f.engine.Draw(authority, round.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, int64(600), settlement.Pool)
	assert.Equal(t, points.GrantAmount+500, f.ledger.BalanceOf(p1))
	assert.Equal(t, points.GrantAmount+500, f.ledger.TotalSupply(), "seed pool is the only created value")
}

func TestDrawGuards(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	round := f.openRound(t, []string{"A", "B"}, 100, 0)
	_, _, err := f.engine.Wager(p1, round.ID, "A", 1)
	require.NoError(t, err)

	_, err = f.engine.Draw(p1, round.ID, "A")
	require.ErrorIs(t, err, domain.ErrNotAuthorized)

	_, err = f.engine.Draw(authority, round.ID, "C")
	require.ErrorIs(t, err, domain.ErrInvalidChoice)

	_, err = f.engine.Draw(authority, round.ID, "B")
	require.ErrorIs(t, err, domain.ErrNoWinningClaims)

	pending, err := f.engine.CreateRound(authority, "r2", "", []string{"X"},
		f.clock.now.Add(time.Hour), f.clock.now.Add(2*time.Hour), 100, 0)
	require.NoError(t, err)
	_, err = f.engine.Draw(authority, pending.ID, "X")
	require.ErrorIs(t, err, domain.ErrRoundNotOpen)

	_, err = f.engine.Draw(authority, round.ID, "A")
	require.NoError(t, err)

	_, err = f.engine.Draw(authority, round.ID, "A")
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
	_, err = f.engine.Refund(authority, round.ID)
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
	_, _, err = f.engine.Wager(p1, round.ID, "A", 1)
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
}

func TestDrawAfterClose(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	round := f.openRound(t, []string{"A", "B"}, 100, 0)
	_, _, err := f.engine.Wager(p1, round.ID, "A", 1)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour) // past endTime

	_, err = f.engine.Draw(authority, round.ID, "A")
	require.NoError(t, err)
}

func TestRefundRestoresStakes(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	f.fund(t, p2)
	round := f.openRound(t, []string{"A", "B"}, 100, 0)

	_, _, err := f.engine.Wager(p1, round.ID, "A", 2)
	require.NoError(t, err)
	_, _, err = f.engine.Wager(p2, round.ID, "B", 1)
	require.NoError(t, err)

	_, err = f.engine.Refund(p1, round.ID)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)

	settlement, err := f.engine.Refund(authority, round.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(200), settlement.Payouts[p1])
	assert.Equal(t, int64(100), settlement.Payouts[p2])

	assert.Equal(t, points.GrantAmount, f.ledger.BalanceOf(p1))
	assert.Equal(t, points.GrantAmount, f.ledger.BalanceOf(p2))
	assert.Equal(t, int64(0), f.ledger.BalanceOf(escrow))

	got, err := f.engine.Round(round.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStatusSettled, got.Status)
}

// escrowSpender lets the registry draw on the buyer's escrow allowance, the
// same shape the service layer uses.
type escrowSpender struct{ ledger *points.Ledger }

func (e escrowSpender) TransferFrom(spender, from, to string, amount int64) error {
	return e.ledger.TransferFrom(escrow, from, to, amount)
}

func TestResoldClaimPaysCurrentOwner(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	f.fund(t, p2)
	round := f.openRound(t, []string{"A", "B"}, 100, 0)

	_, ids, err := f.engine.Wager(p1, round.ID, "A", 2)
	require.NoError(t, err)
	_, _, err = f.engine.Wager(p2, round.ID, "B", 1)
	require.NoError(t, err)

	// P1 resells one winning ticket to P2 for its face value.
	_, err = f.registry.List(p1, ids[0], 200)
	require.NoError(t, err)
	_, err = f.registry.Buy(p2, ids[0], escrowSpender{f.ledger})
	require.NoError(t, err)

	// The trade restored P1 to its pre-wager balance.
	assert.Equal(t, points.GrantAmount, f.ledger.BalanceOf(p1))
	assert.Equal(t, points.GrantAmount-300, f.ledger.BalanceOf(p2))

	settlement, err := f.engine.Draw(authority, round.ID, "A")
	require.NoError(t, err)

	// Pool 300 over 2 winning claims, now held one each by P1 and P2.
	assert.Equal(t, int64(150), settlement.Payouts[p1])
	assert.Equal(t, int64(150), settlement.Payouts[p2])
	assert.Equal(t, points.GrantAmount+150, f.ledger.BalanceOf(p1))
	assert.Equal(t, points.GrantAmount-150, f.ledger.BalanceOf(p2))
}

func TestRestoreToleratesIDGaps(t *testing.T) {
	f := newFixture(t)

	// A lost upsert can leave holes in the persisted id sequence; only round 1
	// survived here.
	survivor := domain.Round{
		ID:             1,
		Name:           "survivor",
		Choices:        []string{"A", "B"},
		StartTime:      f.clock.now.Add(-time.Hour),
		EndTime:        f.clock.now.Add(time.Hour),
		AmountPerClaim: 100,
		Wagers:         map[string]int64{"A": 0, "B": 0},
	}
	f.engine.Restore([]domain.Round{survivor})

	got, err := f.engine.Round(1)
	require.NoError(t, err)
	assert.Equal(t, "survivor", got.Name)
	assert.Equal(t, domain.RoundStatusOpen, got.Status)

	_, err = f.engine.Round(0)
	require.ErrorIs(t, err, domain.ErrInvalidRound)

	// New ids resume past the highest restored id, never colliding with it.
	created, err := f.engine.CreateRound(authority, "next", "", []string{"X"},
		f.clock.now, f.clock.now.Add(time.Hour), 100, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)

	all := f.engine.Rounds()
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(2), all[1].ID)
}

func TestRefundFollowsCurrentOwnership(t *testing.T) {
	f := newFixture(t)
	f.fund(t, p1)
	f.fund(t, p2)
	round := f.openRound(t, []string{"A", "B"}, 100, 0)

	_, ids, err := f.engine.Wager(p1, round.ID, "A", 2)
	require.NoError(t, err)

	_, err = f.registry.List(p1, ids[1], 50)
	require.NoError(t, err)
	_, err = f.registry.Buy(p2, ids[1], escrowSpender{f.ledger})
	require.NoError(t, err)

	settlement, err := f.engine.Refund(authority, round.ID)
	require.NoError(t, err)

	// Refund follows current ownership, not purchase history.
	assert.Equal(t, int64(100), settlement.Payouts[p1])
	assert.Equal(t, int64(100), settlement.Payouts[p2])
}
