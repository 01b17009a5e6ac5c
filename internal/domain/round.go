package domain

import "time"

// RoundStatus represents the lifecycle state of a betting round.
type RoundStatus string

const (
	RoundStatusPending RoundStatus = "pending"
	RoundStatusOpen    RoundStatus = "open"
	RoundStatusClosed  RoundStatus = "closed"
	RoundStatusSettled RoundStatus = "settled"
)

// Round is one time-boxed betting event with a fixed set of mutually
// exclusive outcomes. Wagers maps each choice to the total points staked on
// it, so StartTime/EndTime plus Wagers fully determine the pool available at
// settlement.
type Round struct {
	ID             int64            `json:"id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Choices        []string         `json:"choices"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	AmountPerClaim int64            `json:"amount_per_claim"`
	SeedPool       int64            `json:"seed_pool"`
	Wagers         map[string]int64 `json:"wagers"`
	Winner         string           `json:"winner,omitempty"`
	Status         RoundStatus      `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
}

// DeriveStatus computes the round status as a pure function of the round and
// the given time. Settled is sticky; Pending/Open/Closed are never persisted
// as authoritative truth.
func (r Round) DeriveStatus(now time.Time) RoundStatus {
	if r.Status == RoundStatusSettled {
		return RoundStatusSettled
	}
	switch {
	case now.Before(r.StartTime):
		return RoundStatusPending
	case now.Before(r.EndTime):
		return RoundStatusOpen
	default:
		return RoundStatusClosed
	}
}

// HasChoice reports whether choice is one of the round's outcomes.
func (r Round) HasChoice(choice string) bool {
	for _, c := range r.Choices {
		if c == choice {
			return true
		}
	}
	return false
}

// WagersTotal returns the total points staked across all choices.
func (r Round) WagersTotal() int64 {
	var total int64
	for _, amount := range r.Wagers {
		total += amount
	}
	return total
}

// Pool returns the total value available for winner distribution: the seed
// pool plus every wager across every choice.
func (r Round) Pool() int64 {
	return r.SeedPool + r.WagersTotal()
}

// Clone returns a deep copy so snapshots handed to readers never share
// mutable state with the engine's record.
func (r Round) Clone() Round {
	out := r
	out.Choices = append([]string(nil), r.Choices...)
	out.Wagers = make(map[string]int64, len(r.Wagers))
	for choice, amount := range r.Wagers {
		out.Wagers[choice] = amount
	}
	return out
}

// Settlement describes the outcome of a draw or refund: who got paid and how
// the pool was split. PerClaim and Remainder are zero for refunds.
type Settlement struct {
	RoundID   int64            `json:"round_id"`
	Kind      string           `json:"kind"` // "draw" or "refund"
	Winner    string           `json:"winner,omitempty"`
	Pool      int64            `json:"pool"`
	PerClaim  int64            `json:"per_claim"`
	Remainder int64            `json:"remainder"`
	Payouts   map[string]int64 `json:"payouts"` // account -> total credited
	SettledAt time.Time        `json:"settled_at"`
}
