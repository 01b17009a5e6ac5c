package domain

import "time"

// Journal event types.
const (
	EventGrant        = "grant"
	EventIssue        = "issue"
	EventRoundCreated = "round_created"
	EventWager        = "wager"
	EventListed       = "ticket_listed"
	EventDelisted     = "ticket_delisted"
	EventTrade        = "ticket_trade"
	EventDraw         = "draw"
	EventRefund       = "refund"
)

// JournalEntry is one row of the append-only settlement journal. Detail holds
// event-specific fields (amounts, choices, payouts) as a JSON document.
type JournalEntry struct {
	ID        string         `json:"id"` // uuid
	Event     string         `json:"event"`
	Account   string         `json:"account,omitempty"`
	RoundID   *int64         `json:"round_id,omitempty"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}
