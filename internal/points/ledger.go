// Package points implements the fungible points ledger: balances, one-time
// airdrop grants, admin issuance, and allowance-gated transfers.
//
// The Ledger is not goroutine-safe. The service layer serializes every
// mutating operation across the whole engine (see internal/service), so the
// ledger itself carries no locking.
package points

import (
	"fmt"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// GrantAmount is the fixed one-time airdrop credited by Grant.
const GrantAmount int64 = 10_000

// Ledger is the fungible balance store. Every mutating method either applies
// all of its sub-updates or none of them; validation happens before any write.
type Ledger struct {
	admin      string
	balances   map[string]int64
	allowances map[string]map[string]int64 // owner -> spender -> amount
	granted    map[string]bool
}

// NewLedger creates an empty ledger administered by admin. Only the admin may
// call Issue.
func NewLedger(admin string) *Ledger {
	return &Ledger{
		admin:      admin,
		balances:   make(map[string]int64),
		allowances: make(map[string]map[string]int64),
		granted:    make(map[string]bool),
	}
}

// Grant credits the one-time airdrop to account. A second call for the same
// account fails with ErrAlreadyGranted. The flag is set before the credit so
// a reentrant call can never observe an unclaimed state mid-grant.
func (l *Ledger) Grant(account string) error {
	if l.granted[account] {
		return fmt.Errorf("points: grant %s: %w", account, domain.ErrAlreadyGranted)
	}
	l.granted[account] = true
	l.balances[account] += GrantAmount
	return nil
}

// Issue credits amount to the given account. Only the ledger admin may issue.
func (l *Ledger) Issue(caller, to string, amount int64) error {
	if caller != l.admin {
		return fmt.Errorf("points: issue by %s: %w", caller, domain.ErrNotAuthorized)
	}
	if amount <= 0 {
		return fmt.Errorf("points: issue amount %d: %w", amount, domain.ErrInvalidParameters)
	}
	l.balances[to] += amount
	return nil
}

// Approve sets the allowance owner grants spender to exactly amount. This is
// an absolute set, not an increment.
func (l *Ledger) Approve(owner, spender string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("points: approve amount %d: %w", amount, domain.ErrInvalidParameters)
	}
	m := l.allowances[owner]
	if m == nil {
		m = make(map[string]int64)
		l.allowances[owner] = m
	}
	m[spender] = amount
	return nil
}

// Allowance returns the amount spender may currently move out of owner's
// balance.
func (l *Ledger) Allowance(owner, spender string) int64 {
	return l.allowances[owner][spender]
}

// TransferFrom moves amount from `from` to `to` on behalf of spender. It
// requires a sufficient allowance and a sufficient balance; both the
// allowance and the balance are decremented in the same step.
func (l *Ledger) TransferFrom(spender, from, to string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("points: transfer amount %d: %w", amount, domain.ErrInvalidParameters)
	}
	if l.allowances[from][spender] < amount {
		return fmt.Errorf("points: transfer %d from %s by %s: %w", amount, from, spender, domain.ErrInsufficientAllowance)
	}
	if l.balances[from] < amount {
		return fmt.Errorf("points: transfer %d from %s: %w", amount, from, domain.ErrInsufficientBalance)
	}
	l.allowances[from][spender] -= amount
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

// Debit removes amount from the account's balance without touching any
// allowance. Used by the round engine to pay out of its own escrow account.
func (l *Ledger) Debit(from string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("points: debit amount %d: %w", amount, domain.ErrInvalidParameters)
	}
	if l.balances[from] < amount {
		return fmt.Errorf("points: debit %d from %s: %w", amount, from, domain.ErrInsufficientBalance)
	}
	l.balances[from] -= amount
	return nil
}

// Credit adds amount directly to the account's balance. Used by the round
// engine for settlement payouts, where the source is pooled stake (plus the
// platform seed) rather than another user account.
func (l *Ledger) Credit(to string, amount int64) {
	if amount <= 0 {
		return
	}
	l.balances[to] += amount
}

// BalanceOf returns the account's balance. Unknown accounts have balance 0.
func (l *Ledger) BalanceOf(account string) int64 {
	return l.balances[account]
}

// HasClaimed reports whether the account already took its one-time grant.
func (l *Ledger) HasClaimed(account string) bool {
	return l.granted[account]
}

// TotalSupply returns the sum of every balance. Settlement redistributes but
// never changes this except for grants, issuance, and seed-pool payouts.
func (l *Ledger) TotalSupply() int64 {
	var total int64
	for _, b := range l.balances {
		total += b
	}
	return total
}

// Account returns a persistence snapshot of one account.
func (l *Ledger) Account(address string) domain.Account {
	acct := domain.Account{
		Address:        address,
		Balance:        l.balances[address],
		AirdropClaimed: l.granted[address],
	}
	if m := l.allowances[address]; len(m) > 0 {
		acct.Allowances = make(map[string]int64, len(m))
		for spender, amount := range m {
			acct.Allowances[spender] = amount
		}
	}
	return acct
}

// Accounts returns a snapshot of every account that holds a balance, an
// allowance, or a grant flag.
func (l *Ledger) Accounts() []domain.Account {
	seen := make(map[string]bool, len(l.balances))
	for addr := range l.balances {
		seen[addr] = true
	}
	for addr := range l.allowances {
		seen[addr] = true
	}
	for addr := range l.granted {
		seen[addr] = true
	}
	out := make([]domain.Account, 0, len(seen))
	for addr := range seen {
		out = append(out, l.Account(addr))
	}
	return out
}

// Restore replaces the ledger state with the given snapshots. Called once at
// startup before the ledger is exposed to callers.
func (l *Ledger) Restore(accounts []domain.Account) {
	l.balances = make(map[string]int64, len(accounts))
	l.allowances = make(map[string]map[string]int64)
	l.granted = make(map[string]bool)
	for _, acct := range accounts {
		if acct.Balance != 0 {
			l.balances[acct.Address] = acct.Balance
		}
		if acct.AirdropClaimed {
			l.granted[acct.Address] = true
		}
		if len(acct.Allowances) > 0 {
			m := make(map[string]int64, len(acct.Allowances))
			for spender, amount := range acct.Allowances {
				m[spender] = amount
			}
			l.allowances[acct.Address] = m
		}
	}
}
