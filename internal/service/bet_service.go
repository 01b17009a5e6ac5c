// Package service wires the points ledger, the ticket registry, and the
// round engine behind a single authority identity and a single sequencer.
//
// Every mutating operation takes the service-wide write lock, so no two
// mutations ever interleave and no reader ever observes a half-applied
// composite (a wager's payment without its mint, a purchase's payment
// without its ownership move). Persistence, journaling, and event publishing
// happen after the in-memory commit and are best-effort: a store failure is
// logged, never unwound.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/easybet/internal/domain"
	"github.com/alanyoungcy/easybet/internal/points"
	"github.com/alanyoungcy/easybet/internal/rounds"
	"github.com/alanyoungcy/easybet/internal/tickets"
)

// Notifier is the slice of the notification dispatcher the service uses.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Deps bundles the optional infrastructure dependencies. Any nil field is
// skipped; the engine is fully functional with in-memory state only.
type Deps struct {
	Accounts  domain.AccountStore
	Rounds    domain.RoundStore
	Claims    domain.ClaimStore
	Journal   domain.JournalStore
	Bus       domain.SignalBus
	Snapshots domain.SnapshotCache
	Notifier  Notifier
}

// CreateRoundParams carries the arguments for round creation.
type CreateRoundParams struct {
	Name           string
	Description    string
	Choices        []string
	StartTime      time.Time
	EndTime        time.Time
	AmountPerClaim int64
	SeedPool       int64
}

// WagerReceipt reports the outcome of an accepted wager.
type WagerReceipt struct {
	RoundID  int64   `json:"round_id"`
	Choice   string  `json:"choice"`
	Cost     int64   `json:"cost"`
	ClaimIDs []int64 `json:"claim_ids"`
}

// BetService is the orchestrator: one authority, one sequencer, one public
// mutation surface over the three core components.
type BetService struct {
	mu     sync.RWMutex
	clock  domain.Clock
	logger *slog.Logger

	authority string
	escrow    string

	ledger  *points.Ledger
	tickets *tickets.Registry
	engine  *rounds.Engine

	deps Deps
}

// NewBetService constructs the engine. The authority account creates rounds
// and triggers settlement; the escrow account holds stakes between wager and
// settlement and must differ from the authority so remainder accounting stays
// legible.
func NewBetService(authority, escrow string, clock domain.Clock, deps Deps, logger *slog.Logger) (*BetService, error) {
	if authority == "" || escrow == "" {
		return nil, fmt.Errorf("service: authority and escrow accounts are required: %w", domain.ErrInvalidParameters)
	}
	if authority == escrow {
		return nil, fmt.Errorf("service: authority and escrow must differ: %w", domain.ErrInvalidParameters)
	}
	if clock == nil {
		clock = domain.RealClock{}
	}

	ledger := points.NewLedger(authority)
	registry := tickets.NewRegistry(clock)
	engine := rounds.NewEngine(authority, escrow, ledger, registry, clock)

	return &BetService{
		clock:     clock,
		logger:    logger.With(slog.String("component", "bet_service")),
		authority: authority,
		escrow:    escrow,
		ledger:    ledger,
		tickets:   registry,
		engine:    engine,
		deps:      deps,
	}, nil
}

// Authority returns the privileged account identity for capability checks.
func (s *BetService) Authority() string { return s.authority }

// Escrow returns the account players must approve before wagering or buying.
func (s *BetService) Escrow() string { return s.escrow }

// Load restores in-memory state from the persistence layer. Call once at
// startup, before serving requests.
func (s *BetService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deps.Accounts != nil {
		accounts, err := s.deps.Accounts.List(ctx)
		if err != nil {
			return fmt.Errorf("service: load accounts: %w", err)
		}
		s.ledger.Restore(accounts)
	}
	if s.deps.Claims != nil {
		claims, err := s.deps.Claims.List(ctx)
		if err != nil {
			return fmt.Errorf("service: load claims: %w", err)
		}
		listings, err := s.deps.Claims.ListListings(ctx)
		if err != nil {
			return fmt.Errorf("service: load listings: %w", err)
		}
		s.tickets.Restore(claims, listings)
	}
	if s.deps.Rounds != nil {
		rs, err := s.deps.Rounds.List(ctx)
		if err != nil {
			return fmt.Errorf("service: load rounds: %w", err)
		}
		s.engine.Restore(rs)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Points ledger operations
// ---------------------------------------------------------------------------

// Grant credits the one-time airdrop to account.
func (s *BetService) Grant(ctx context.Context, account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Grant(account); err != nil {
		return err
	}
	s.persistAccounts(ctx, account)
	s.journal(ctx, domain.JournalEntry{
		Event:   domain.EventGrant,
		Account: account,
		Detail:  map[string]any{"amount": points.GrantAmount},
	})
	s.invalidate(ctx, account)
	return nil
}

// Issue mints amount to the given account. Authority only.
func (s *BetService) Issue(ctx context.Context, caller, to string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Issue(caller, to, amount); err != nil {
		return err
	}
	s.persistAccounts(ctx, to)
	s.journal(ctx, domain.JournalEntry{
		Event:   domain.EventIssue,
		Account: to,
		Detail:  map[string]any{"amount": amount, "issued_by": caller},
	})
	s.invalidate(ctx, to)
	return nil
}

// Approve sets the allowance owner grants spender.
func (s *BetService) Approve(ctx context.Context, owner, spender string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Approve(owner, spender, amount); err != nil {
		return err
	}
	s.persistAccounts(ctx, owner)
	return nil
}

// BalanceOf returns the account's points balance.
func (s *BetService) BalanceOf(account string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.BalanceOf(account)
}

// Allowance returns what spender may move out of owner's balance.
func (s *BetService) Allowance(owner, spender string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Allowance(owner, spender)
}

// TotalSupply returns the sum of all balances, for diagnostics.
func (s *BetService) TotalSupply() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.TotalSupply()
}

// ---------------------------------------------------------------------------
// Round operations
// ---------------------------------------------------------------------------

// CreateRound creates a new betting round. Authority only.
func (s *BetService) CreateRound(ctx context.Context, caller string, p CreateRoundParams) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, err := s.engine.CreateRound(caller, p.Name, p.Description, p.Choices, p.StartTime, p.EndTime, p.AmountPerClaim, p.SeedPool)
	if err != nil {
		return domain.Round{}, err
	}

	s.persistRound(ctx, round)
	s.journal(ctx, domain.JournalEntry{
		Event:   domain.EventRoundCreated,
		Account: caller,
		RoundID: &round.ID,
		Detail: map[string]any{
			"name":             round.Name,
			"choices":          round.Choices,
			"amount_per_claim": round.AmountPerClaim,
			"seed_pool":        round.SeedPool,
		},
	})
	s.publish(ctx, domain.ChannelRounds, domain.EventRoundCreated, map[string]any{
		"round_id": round.ID,
		"name":     round.Name,
		"status":   round.Status,
	})
	s.notify(ctx, domain.EventRoundCreated, "New round",
		fmt.Sprintf("Round #%d %q is open for wagers at %d points per ticket.", round.ID, round.Name, round.AmountPerClaim))
	return round, nil
}

// Rounds returns every round with live-derived status.
func (s *BetService) Rounds() []domain.Round {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Rounds()
}

// Round returns one round with live-derived status.
func (s *BetService) Round(roundID int64) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine.Round(roundID)
}

// Wager stakes count tickets on a choice of an open round.
func (s *BetService) Wager(ctx context.Context, player string, roundID int64, choice string, count int) (WagerReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cost, ids, err := s.engine.Wager(player, roundID, choice, count)
	if err != nil {
		return WagerReceipt{}, err
	}

	round, _ := s.engine.Round(roundID)
	s.persistRound(ctx, round)
	s.persistAccounts(ctx, player, s.escrow)
	s.persistOwnedClaims(ctx, player, ids...)
	s.journal(ctx, domain.JournalEntry{
		Event:   domain.EventWager,
		Account: player,
		RoundID: &roundID,
		Detail:  map[string]any{"choice": choice, "count": count, "cost": cost, "claim_ids": ids},
	})
	s.publish(ctx, domain.ChannelRounds, domain.EventWager, map[string]any{
		"round_id": roundID,
		"player":   player,
		"choice":   choice,
		"cost":     cost,
	})
	s.invalidate(ctx, player)
	return WagerReceipt{RoundID: roundID, Choice: choice, Cost: cost, ClaimIDs: ids}, nil
}

// Draw settles the round in favor of the winning choice. Authority only.
func (s *BetService) Draw(ctx context.Context, caller string, roundID int64, winningChoice string) (domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settlement, err := s.engine.Draw(caller, roundID, winningChoice)
	if err != nil {
		return domain.Settlement{}, err
	}
	s.finishSettlement(ctx, roundID, settlement)
	s.notify(ctx, domain.EventDraw, "Round settled",
		fmt.Sprintf("Round #%d drawn for %q: pool %d split across winners.", roundID, winningChoice, settlement.Pool))
	return settlement, nil
}

// Refund voids the round and returns every stake to its current holder.
// Authority only.
func (s *BetService) Refund(ctx context.Context, caller string, roundID int64) (domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settlement, err := s.engine.Refund(caller, roundID)
	if err != nil {
		return domain.Settlement{}, err
	}
	s.finishSettlement(ctx, roundID, settlement)
	s.notify(ctx, domain.EventRefund, "Round refunded",
		fmt.Sprintf("Round #%d voided; %d points returned to ticket holders.", roundID, settlement.Pool))
	return settlement, nil
}

// RecomputeStatus re-derives one round's status against the current time.
func (s *BetService) RecomputeStatus(roundID int64) (domain.RoundStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RecomputeStatus(roundID)
}

// RecomputeAll re-derives every round's status.
func (s *BetService) RecomputeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.RecomputeAll()
}

// ---------------------------------------------------------------------------
// Marketplace operations
// ---------------------------------------------------------------------------

// ListTicket opens a resale offer for one claim.
func (s *BetService) ListTicket(ctx context.Context, seller string, claimID, price int64) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.tickets.List(seller, claimID, price)
	if err != nil {
		return domain.Listing{}, err
	}

	s.persistClaim(ctx, claimID)
	s.persistListing(ctx, listing)
	s.journal(ctx, domain.JournalEntry{
		Event:   domain.EventListed,
		Account: seller,
		Detail:  map[string]any{"claim_id": claimID, "price": price},
	})
	s.publish(ctx, domain.ChannelTrades, domain.EventListed, map[string]any{
		"claim_id": claimID,
		"seller":   seller,
		"price":    price,
	})
	s.invalidate(ctx, seller)
	return listing, nil
}

// DelistTicket withdraws a resale offer.
func (s *BetService) DelistTicket(ctx context.Context, seller string, claimID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.tickets.Delist(seller, claimID); err != nil {
		return err
	}

	s.persistClaim(ctx, claimID)
	s.deleteListing(ctx, claimID)
	s.journal(ctx, domain.JournalEntry{
		Event:   domain.EventDelisted,
		Account: seller,
		Detail:  map[string]any{"claim_id": claimID},
	})
	s.publish(ctx, domain.ChannelTrades, domain.EventDelisted, map[string]any{
		"claim_id": claimID,
		"seller":   seller,
	})
	s.invalidate(ctx, seller)
	return nil
}

// BuyTicket purchases a listed claim. The buyer must have approved the
// escrow account as spender for at least the listing price.
func (s *BetService) BuyTicket(ctx context.Context, buyer string, claimID int64) (domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, err := s.tickets.Buy(buyer, claimID, buyerLedger{s.ledger, s.escrow})
	if err != nil {
		return domain.Listing{}, err
	}

	s.persistClaim(ctx, claimID)
	s.deleteListing(ctx, claimID)
	s.persistAccounts(ctx, buyer, listing.Seller)
	s.journal(ctx, domain.JournalEntry{
		Event:   domain.EventTrade,
		Account: buyer,
		Detail:  map[string]any{"claim_id": claimID, "seller": listing.Seller, "price": listing.Price},
	})
	s.publish(ctx, domain.ChannelTrades, domain.EventTrade, map[string]any{
		"claim_id": claimID,
		"buyer":    buyer,
		"seller":   listing.Seller,
		"price":    listing.Price,
	})
	s.invalidate(ctx, buyer, listing.Seller)
	return listing, nil
}

// TicketsOnSale returns every open listing with its claim metadata.
func (s *BetService) TicketsOnSale() []domain.SaleItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tickets.OpenListings()
}

// OwnerOf returns the current owner of a claim.
func (s *BetService) OwnerOf(claimID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tickets.OwnerOf(claimID)
}

// ClaimsByRound returns every claim minted for the round.
func (s *BetService) ClaimsByRound(roundID int64) []domain.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tickets.ClaimsByRound(roundID)
}

// JournalByRound returns the persisted journal slice for one round, if a
// journal store is configured.
func (s *BetService) JournalByRound(ctx context.Context, roundID int64) ([]domain.JournalEntry, error) {
	if s.deps.Journal == nil {
		return nil, nil
	}
	return s.deps.Journal.ListByRound(ctx, roundID)
}

// RecentJournal returns the newest persisted journal entries across all
// rounds, if a journal store is configured.
func (s *BetService) RecentJournal(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if s.deps.Journal == nil {
		return nil, nil
	}
	return s.deps.Journal.ListRecent(ctx, limit)
}

// ---------------------------------------------------------------------------
// Aggregated reads
// ---------------------------------------------------------------------------

// UserCompleteInfo returns the aggregated per-account snapshot: balance,
// grant flag, and every owned claim with its listing state. Unknown accounts
// return a zero balance and empty collections, not an error.
func (s *BetService) UserCompleteInfo(ctx context.Context, account string) (domain.UserInfo, error) {
	if s.deps.Snapshots != nil {
		if data, err := s.deps.Snapshots.Get(ctx, account); err == nil {
			var info domain.UserInfo
			if json.Unmarshal(data, &info) == nil {
				return info, nil
			}
		}
	}

	s.mu.RLock()
	info := domain.UserInfo{
		Account:        account,
		Balance:        s.ledger.BalanceOf(account),
		AirdropClaimed: s.ledger.HasClaimed(account),
		Claims:         []domain.OwnedClaim{},
	}
	for _, claim := range s.tickets.ClaimsOf(account) {
		owned := domain.OwnedClaim{Claim: claim}
		if listing, ok := s.tickets.ListingOf(claim.ID); ok {
			owned.Listed = true
			owned.Price = listing.Price
		}
		info.Claims = append(info.Claims, owned)
	}
	s.mu.RUnlock()

	if s.deps.Snapshots != nil {
		if data, err := json.Marshal(info); err == nil {
			if err := s.deps.Snapshots.Set(ctx, account, data); err != nil {
				s.logger.DebugContext(ctx, "snapshot cache set failed",
					slog.String("account", account),
					slog.String("error", err.Error()),
				)
			}
		}
	}
	return info, nil
}

// ---------------------------------------------------------------------------
// Write-behind helpers (best-effort, post-commit)
// ---------------------------------------------------------------------------

func (s *BetService) finishSettlement(ctx context.Context, roundID int64, settlement domain.Settlement) {
	round, _ := s.engine.Round(roundID)
	s.persistRound(ctx, round)

	affected := make([]string, 0, len(settlement.Payouts)+1)
	affected = append(affected, s.escrow)
	for owner := range settlement.Payouts {
		affected = append(affected, owner)
	}
	s.persistAccounts(ctx, affected...)

	if s.deps.Claims != nil {
		claims := s.tickets.ClaimsByRound(roundID)
		if err := s.deps.Claims.UpsertBatch(ctx, claims); err != nil {
			s.logger.ErrorContext(ctx, "persist settled claims failed",
				slog.Int64("round_id", roundID),
				slog.String("error", err.Error()),
			)
		}
		for _, claim := range claims {
			s.deleteListing(ctx, claim.ID)
		}
	}

	s.journal(ctx, domain.JournalEntry{
		Event:   settlement.Kind,
		Account: s.authority,
		RoundID: &roundID,
		Detail: map[string]any{
			"winner":    settlement.Winner,
			"pool":      settlement.Pool,
			"per_claim": settlement.PerClaim,
			"remainder": settlement.Remainder,
			"payouts":   settlement.Payouts,
		},
	})
	s.publish(ctx, domain.ChannelSettlements, settlement.Kind, map[string]any{
		"round_id": roundID,
		"winner":   settlement.Winner,
		"pool":     settlement.Pool,
	})
	s.invalidate(ctx, affected...)
}

func (s *BetService) persistAccounts(ctx context.Context, addresses ...string) {
	if s.deps.Accounts == nil {
		return
	}
	for _, addr := range addresses {
		if err := s.deps.Accounts.Upsert(ctx, s.ledger.Account(addr)); err != nil {
			s.logger.ErrorContext(ctx, "persist account failed",
				slog.String("account", addr),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (s *BetService) persistRound(ctx context.Context, round domain.Round) {
	if s.deps.Rounds == nil {
		return
	}
	if err := s.deps.Rounds.Upsert(ctx, round); err != nil {
		s.logger.ErrorContext(ctx, "persist round failed",
			slog.Int64("round_id", round.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BetService) persistClaim(ctx context.Context, claimID int64) {
	if s.deps.Claims == nil {
		return
	}
	claim, err := s.tickets.Claim(claimID)
	if err != nil {
		return
	}
	if err := s.deps.Claims.Upsert(ctx, claim); err != nil {
		s.logger.ErrorContext(ctx, "persist claim failed",
			slog.Int64("claim_id", claimID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BetService) persistOwnedClaims(ctx context.Context, owner string, claimIDs ...int64) {
	if s.deps.Claims == nil {
		return
	}
	claims := make([]domain.Claim, 0, len(claimIDs))
	for _, id := range claimIDs {
		if claim, err := s.tickets.Claim(id); err == nil {
			claims = append(claims, claim)
		}
	}
	if err := s.deps.Claims.UpsertBatch(ctx, claims); err != nil {
		s.logger.ErrorContext(ctx, "persist claims failed",
			slog.String("owner", owner),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BetService) persistListing(ctx context.Context, listing domain.Listing) {
	if s.deps.Claims == nil {
		return
	}
	if err := s.deps.Claims.PutListing(ctx, listing); err != nil {
		s.logger.ErrorContext(ctx, "persist listing failed",
			slog.Int64("claim_id", listing.ClaimID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BetService) deleteListing(ctx context.Context, claimID int64) {
	if s.deps.Claims == nil {
		return
	}
	if err := s.deps.Claims.DeleteListing(ctx, claimID); err != nil {
		s.logger.ErrorContext(ctx, "delete listing failed",
			slog.Int64("claim_id", claimID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BetService) journal(ctx context.Context, entry domain.JournalEntry) {
	if s.deps.Journal == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.clock.Now()
	if err := s.deps.Journal.Append(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "journal append failed",
			slog.String("event", entry.Event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BetService) publish(ctx context.Context, channel, eventType string, data map[string]any) {
	if s.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(domain.Event{
		ID:   uuid.NewString(),
		Type: eventType,
		At:   s.clock.Now(),
		Data: data,
	})
	if err != nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, channel, payload); err != nil {
		s.logger.DebugContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (s *BetService) invalidate(ctx context.Context, accounts ...string) {
	if s.deps.Snapshots == nil {
		return
	}
	if err := s.deps.Snapshots.Invalidate(ctx, accounts...); err != nil {
		s.logger.DebugContext(ctx, "snapshot invalidate failed",
			slog.String("error", err.Error()),
		)
	}
}

func (s *BetService) notify(ctx context.Context, event, title, message string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.DebugContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// buyerLedger presents the points ledger to the ticket registry with the
// escrow account as the approved spender, matching the wager flow: players
// approve the escrow once and both wagers and purchases draw on it.
type buyerLedger struct {
	ledger *points.Ledger
	escrow string
}

func (b buyerLedger) TransferFrom(spender, from, to string, amount int64) error {
	return b.ledger.TransferFrom(b.escrow, from, to, amount)
}
