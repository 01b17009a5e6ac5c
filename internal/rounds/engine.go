// Package rounds implements the betting round state machine: creation, lazy
// time-derived status, wager acceptance, and win/refund settlement.
//
// Status is never advanced by a background clock. Every status-dependent
// operation derives Pending/Open/Closed from the injected Clock first; only
// Settled is a sticky, persisted fact.
package rounds

import (
	"fmt"
	"sort"
	"time"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// Ledger is the slice of the points ledger the engine needs: allowance-gated
// stake collection plus direct escrow debit/credit for settlement payouts.
type Ledger interface {
	TransferFrom(spender, from, to string, amount int64) error
	Debit(from string, amount int64) error
	Credit(to string, amount int64)
}

// TicketRegistry is the slice of the claim registry the engine needs.
type TicketRegistry interface {
	Mint(to string, roundID int64, choice string, count int) ([]int64, error)
	ClaimsByRound(roundID int64) []domain.Claim
	SettleRound(roundID int64) []int64
}

// Engine owns every round record. Wager stakes are held on the escrow
// account until the round settles; the integer-division remainder of a draw
// accrues to the authority account.
//
// Not goroutine-safe; the service layer serializes mutations.
type Engine struct {
	authority string
	escrow    string
	ledger    Ledger
	tickets   TicketRegistry
	clock     domain.Clock
	rounds    map[int64]*domain.Round
	nextID    int64
}

// NewEngine creates a round engine. authority is the only account allowed to
// create rounds and trigger settlement; escrow is the engine-owned account
// that holds staked points between wager and settlement.
func NewEngine(authority, escrow string, ledger Ledger, tickets TicketRegistry, clock domain.Clock) *Engine {
	return &Engine{
		authority: authority,
		escrow:    escrow,
		ledger:    ledger,
		tickets:   tickets,
		clock:     clock,
		rounds:    make(map[int64]*domain.Round),
	}
}

// Authority returns the privileged account identity.
func (e *Engine) Authority() string { return e.authority }

// Escrow returns the account that buyers must approve before wagering.
func (e *Engine) Escrow() string { return e.escrow }

// CreateRound allocates a new round. Only the authority may create rounds;
// choices must be non-empty and distinct, startTime must precede endTime, and
// amountPerClaim must be positive.
func (e *Engine) CreateRound(caller, name, description string, choices []string, startTime, endTime time.Time, amountPerClaim, seedPool int64) (domain.Round, error) {
	if caller != e.authority {
		return domain.Round{}, fmt.Errorf("rounds: create by %s: %w", caller, domain.ErrNotAuthorized)
	}
	if len(choices) == 0 {
		return domain.Round{}, fmt.Errorf("rounds: create: empty choices: %w", domain.ErrInvalidParameters)
	}
	seen := make(map[string]bool, len(choices))
	for _, c := range choices {
		if c == "" || seen[c] {
			return domain.Round{}, fmt.Errorf("rounds: create: duplicate or empty choice %q: %w", c, domain.ErrInvalidParameters)
		}
		seen[c] = true
	}
	if !startTime.Before(endTime) {
		return domain.Round{}, fmt.Errorf("rounds: create: start %s not before end %s: %w", startTime, endTime, domain.ErrInvalidParameters)
	}
	if amountPerClaim <= 0 {
		return domain.Round{}, fmt.Errorf("rounds: create: amount per claim %d: %w", amountPerClaim, domain.ErrInvalidParameters)
	}
	if seedPool < 0 {
		return domain.Round{}, fmt.Errorf("rounds: create: seed pool %d: %w", seedPool, domain.ErrInvalidParameters)
	}

	now := e.clock.Now()
	round := &domain.Round{
		ID:             e.nextID,
		Name:           name,
		Description:    description,
		Choices:        append([]string(nil), choices...),
		StartTime:      startTime,
		EndTime:        endTime,
		AmountPerClaim: amountPerClaim,
		SeedPool:       seedPool,
		Wagers:         make(map[string]int64, len(choices)),
		CreatedAt:      now,
	}
	for _, c := range choices {
		round.Wagers[c] = 0
	}
	round.Status = round.DeriveStatus(now)
	e.rounds[round.ID] = round
	e.nextID++
	return round.Clone(), nil
}

// Wager stakes count claims on one choice of an open round. The stake moves
// from the player to the escrow account via TransferFrom (the player must
// have approved the escrow as spender beforehand); the claims are minted in
// the same step. Payment and mint happen both or neither.
func (e *Engine) Wager(player string, roundID int64, choice string, count int) (int64, []int64, error) {
	round, err := e.refresh(roundID)
	if err != nil {
		return 0, nil, err
	}
	if round.Status != domain.RoundStatusOpen {
		if round.Status == domain.RoundStatusSettled {
			return 0, nil, fmt.Errorf("rounds: wager on round %d: %w", roundID, domain.ErrAlreadySettled)
		}
		return 0, nil, fmt.Errorf("rounds: wager on %s round %d: %w", round.Status, roundID, domain.ErrRoundNotOpen)
	}
	if !round.HasChoice(choice) {
		return 0, nil, fmt.Errorf("rounds: wager on round %d choice %q: %w", roundID, choice, domain.ErrInvalidChoice)
	}
	if count <= 0 {
		return 0, nil, fmt.Errorf("rounds: wager count %d: %w", count, domain.ErrInvalidParameters)
	}

	// The engine's escrow account is the approved spender: players approve it
	// once and every stake draws on that allowance.
	cost := int64(count) * round.AmountPerClaim
	if err := e.ledger.TransferFrom(e.escrow, player, e.escrow, cost); err != nil {
		return 0, nil, err
	}

	round.Wagers[choice] += cost
	ids, err := e.tickets.Mint(player, roundID, choice, count)
	if err != nil {
		// Inputs were validated above; a mint failure here would be a defect,
		// not a modeled failure mode.
		panic(fmt.Sprintf("rounds: mint after paid wager: %v", err))
	}
	return cost, ids, nil
}

// Draw settles the round in favor of winningChoice. The pool (seed plus all
// wagers) is split evenly across winning claims, floor division; each winning
// claim pays out to its current owner, and the remainder accrues to the
// authority account. Allowed while the round is Open or Closed.
func (e *Engine) Draw(caller string, roundID int64, winningChoice string) (domain.Settlement, error) {
	if caller != e.authority {
		return domain.Settlement{}, fmt.Errorf("rounds: draw by %s: %w", caller, domain.ErrNotAuthorized)
	}
	round, err := e.refresh(roundID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if round.Status == domain.RoundStatusSettled {
		return domain.Settlement{}, fmt.Errorf("rounds: draw round %d: %w", roundID, domain.ErrAlreadySettled)
	}
	if round.Status == domain.RoundStatusPending {
		return domain.Settlement{}, fmt.Errorf("rounds: draw pending round %d: %w", roundID, domain.ErrRoundNotOpen)
	}
	if !round.HasChoice(winningChoice) {
		return domain.Settlement{}, fmt.Errorf("rounds: draw round %d choice %q: %w", roundID, winningChoice, domain.ErrInvalidChoice)
	}

	var winners []domain.Claim
	for _, claim := range e.tickets.ClaimsByRound(roundID) {
		if claim.Choice == winningChoice {
			winners = append(winners, claim)
		}
	}
	if len(winners) == 0 {
		return domain.Settlement{}, fmt.Errorf("rounds: draw round %d choice %q: %w", roundID, winningChoice, domain.ErrNoWinningClaims)
	}

	pool := round.Pool()
	perClaim := pool / int64(len(winners))
	remainder := pool - perClaim*int64(len(winners))

	// Release the staked points from escrow; the seed-pool share is created
	// at settlement, matching the platform contribution semantics.
	if total := round.WagersTotal(); total > 0 {
		if err := e.ledger.Debit(e.escrow, total); err != nil {
			return domain.Settlement{}, fmt.Errorf("rounds: draw round %d: release escrow: %w", roundID, err)
		}
	}

	payouts := make(map[string]int64, len(winners))
	for _, claim := range winners {
		payouts[claim.Owner] += perClaim
	}
	for owner, amount := range payouts {
		e.ledger.Credit(owner, amount)
	}
	if remainder > 0 {
		e.ledger.Credit(e.authority, remainder)
		payouts[e.authority] += remainder
	}

	round.Winner = winningChoice
	round.Status = domain.RoundStatusSettled
	e.tickets.SettleRound(roundID)

	return domain.Settlement{
		RoundID:   roundID,
		Kind:      "draw",
		Winner:    winningChoice,
		Pool:      pool,
		PerClaim:  perClaim,
		Remainder: remainder,
		Payouts:   payouts,
		SettledAt: e.clock.Now(),
	}, nil
}

// Refund voids the round: every claim, regardless of choice, returns exactly
// amountPerClaim to its current holder. Resold claims refund to the buyer,
// not the original purchaser. Allowed while the round is Open or Closed.
func (e *Engine) Refund(caller string, roundID int64) (domain.Settlement, error) {
	if caller != e.authority {
		return domain.Settlement{}, fmt.Errorf("rounds: refund by %s: %w", caller, domain.ErrNotAuthorized)
	}
	round, err := e.refresh(roundID)
	if err != nil {
		return domain.Settlement{}, err
	}
	if round.Status == domain.RoundStatusSettled {
		return domain.Settlement{}, fmt.Errorf("rounds: refund round %d: %w", roundID, domain.ErrAlreadySettled)
	}
	if round.Status == domain.RoundStatusPending {
		return domain.Settlement{}, fmt.Errorf("rounds: refund pending round %d: %w", roundID, domain.ErrRoundNotOpen)
	}

	claims := e.tickets.ClaimsByRound(roundID)
	if total := round.WagersTotal(); total > 0 {
		if err := e.ledger.Debit(e.escrow, total); err != nil {
			return domain.Settlement{}, fmt.Errorf("rounds: refund round %d: release escrow: %w", roundID, err)
		}
	}

	payouts := make(map[string]int64, len(claims))
	for _, claim := range claims {
		payouts[claim.Owner] += round.AmountPerClaim
	}
	for owner, amount := range payouts {
		e.ledger.Credit(owner, amount)
	}

	round.Status = domain.RoundStatusSettled
	e.tickets.SettleRound(roundID)

	return domain.Settlement{
		RoundID:   roundID,
		Kind:      "refund",
		Pool:      round.WagersTotal(),
		Payouts:   payouts,
		SettledAt: e.clock.Now(),
	}, nil
}

// RecomputeStatus re-derives and persists the round's status against the
// current time. Settled is never overridden. Callable by anyone.
func (e *Engine) RecomputeStatus(roundID int64) (domain.RoundStatus, error) {
	round, err := e.refresh(roundID)
	if err != nil {
		return "", err
	}
	return round.Status, nil
}

// RecomputeAll re-derives the status of every round.
func (e *Engine) RecomputeAll() {
	now := e.clock.Now()
	for _, round := range e.rounds {
		round.Status = round.DeriveStatus(now)
	}
}

// Round returns a snapshot of one round with live-derived status.
func (e *Engine) Round(roundID int64) (domain.Round, error) {
	round, ok := e.rounds[roundID]
	if !ok {
		return domain.Round{}, fmt.Errorf("rounds: round %d: %w", roundID, domain.ErrInvalidRound)
	}
	out := round.Clone()
	out.Status = out.DeriveStatus(e.clock.Now())
	return out, nil
}

// Rounds returns a snapshot of every round, ordered by id. The presented
// status applies the same derivation writers use, so readers and writers
// never disagree.
func (e *Engine) Rounds() []domain.Round {
	now := e.clock.Now()
	out := make([]domain.Round, 0, len(e.rounds))
	for _, round := range e.rounds {
		snap := round.Clone()
		snap.Status = snap.DeriveStatus(now)
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore replaces the engine's rounds with the given snapshots. Called once
// at startup. Persistence is best-effort, so the restored id sequence may
// have gaps; id allocation resumes past the highest restored id.
func (e *Engine) Restore(rounds []domain.Round) {
	e.rounds = make(map[int64]*domain.Round, len(rounds))
	e.nextID = 0
	for _, round := range rounds {
		snap := round.Clone()
		e.rounds[snap.ID] = &snap
		if snap.ID >= e.nextID {
			e.nextID = snap.ID + 1
		}
	}
}

// refresh validates the round id and persists a freshly derived status.
func (e *Engine) refresh(roundID int64) (*domain.Round, error) {
	round, ok := e.rounds[roundID]
	if !ok {
		return nil, fmt.Errorf("rounds: round %d: %w", roundID, domain.ErrInvalidRound)
	}
	round.Status = round.DeriveStatus(e.clock.Now())
	return round, nil
}
