package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// RoundSource is the narrow slice of the engine the archiver reads from. The
// bet service satisfies it directly.
type RoundSource interface {
	Round(roundID int64) (domain.Round, error)
	ClaimsByRound(roundID int64) []domain.Claim
	JournalByRound(ctx context.Context, roundID int64) ([]domain.JournalEntry, error)
}

// RoundArchiver implements domain.Archiver by exporting a settled round, its
// claims, and its journal slice as a JSONL document in object storage.
//
// Deletion of the archived records from the primary store is intentionally
// not performed here; the export is an audit artifact, not a space reclaim.
type RoundArchiver struct {
	writer domain.BlobWriter
	source RoundSource
}

// NewRoundArchiver creates a RoundArchiver writing through the given blob
// writer.
func NewRoundArchiver(writer domain.BlobWriter, source RoundSource) *RoundArchiver {
	return &RoundArchiver{
		writer: writer,
		source: source,
	}
}

// archiveRecord is one line of the exported JSONL document. Kind tags the
// payload so a reader can demultiplex round, claim, and journal lines.
type archiveRecord struct {
	Kind    string `json:"kind"` // "round", "claim", or "journal"
	Payload any    `json:"payload"`
}

// ArchiveRound exports one settled round to archive/rounds/round-{id}.jsonl
// and returns the object path. Rounds that are not yet settled are rejected
// so the export is always final.
func (a *RoundArchiver) ArchiveRound(ctx context.Context, roundID int64) (string, error) {
	round, err := a.source.Round(roundID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive round %d: %w", roundID, err)
	}
	if round.Status != domain.RoundStatusSettled {
		return "", fmt.Errorf("s3blob: archive round %d: round not settled: %w", roundID, domain.ErrRoundNotOpen)
	}

	records := []archiveRecord{{Kind: "round", Payload: round}}
	for _, claim := range a.source.ClaimsByRound(roundID) {
		records = append(records, archiveRecord{Kind: "claim", Payload: claim})
	}

	entries, err := a.source.JournalByRound(ctx, roundID)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive round %d journal: %w", roundID, err)
	}
	for _, entry := range entries {
		records = append(records, archiveRecord{Kind: "journal", Payload: entry})
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive round %d marshal: %w", roundID, err)
	}

	path := ArchivePath(roundID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive round %d upload: %w", roundID, err)
	}
	return path, nil
}

// ArchivePath builds the object key for a round export.
//
//	archive/rounds/round-000042.jsonl
func ArchivePath(roundID int64) string {
	return fmt.Sprintf("archive/rounds/round-%06d.jsonl", roundID)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*RoundArchiver)(nil)
