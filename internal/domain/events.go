package domain

import "time"

// Pub/sub channels carried over the SignalBus and fanned out by the ws hub.
const (
	ChannelRounds      = "ch:round"
	ChannelTrades      = "ch:trade"
	ChannelSettlements = "ch:settle"
)

// Event is the JSON envelope published on the SignalBus.
type Event struct {
	ID   string         `json:"id"` // uuid
	Type string         `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data,omitempty"`
}
