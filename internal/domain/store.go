package domain

import (
	"context"
	"io"
	"time"
)

// AccountStore persists ledger account snapshots.
type AccountStore interface {
	Upsert(ctx context.Context, account Account) error
	List(ctx context.Context) ([]Account, error)
}

// RoundStore persists round snapshots, including per-choice wager totals.
type RoundStore interface {
	Upsert(ctx context.Context, round Round) error
	List(ctx context.Context) ([]Round, error)
}

// ClaimStore persists claims and their open listings.
type ClaimStore interface {
	Upsert(ctx context.Context, claim Claim) error
	UpsertBatch(ctx context.Context, claims []Claim) error
	List(ctx context.Context) ([]Claim, error)
	PutListing(ctx context.Context, listing Listing) error
	DeleteListing(ctx context.Context, claimID int64) error
	ListListings(ctx context.Context) ([]Listing, error)
}

// JournalStore persists the append-only settlement journal.
type JournalStore interface {
	Append(ctx context.Context, entry JournalEntry) error
	ListRecent(ctx context.Context, limit int) ([]JournalEntry, error)
	ListByRound(ctx context.Context, roundID int64) ([]JournalEntry, error)
}

// SignalBus provides pub/sub messaging between the engine and the WebSocket
// hub (and any other interested process).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter limits the number of operations per key within a time window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SnapshotCache caches serialized UserInfo snapshots keyed by account.
type SnapshotCache interface {
	Get(ctx context.Context, account string) ([]byte, error)
	Set(ctx context.Context, account string, data []byte) error
	Invalidate(ctx context.Context, accounts ...string) error
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports a settled round (round, claims, journal slice) to blob
// storage and returns the object path it wrote.
type Archiver interface {
	ArchiveRound(ctx context.Context, roundID int64) (string, error)
}
