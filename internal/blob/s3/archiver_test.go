package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/easybet/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemWriter() *memWriter {
	return &memWriter{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *memWriter) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = buf
	m.types[path] = contentType
	return nil
}

type memSource struct {
	round   domain.Round
	claims  []domain.Claim
	entries []domain.JournalEntry
}

func (m *memSource) Round(roundID int64) (domain.Round, error) { return m.round, nil }
func (m *memSource) ClaimsByRound(roundID int64) []domain.Claim {
	return m.claims
}
func (m *memSource) JournalByRound(ctx context.Context, roundID int64) ([]domain.JournalEntry, error) {
	return m.entries, nil
}

func TestArchiveRoundWritesJSONL(t *testing.T) {
	source := &memSource{
		round: domain.Round{ID: 3, Name: "derby", Status: domain.RoundStatusSettled},
		claims: []domain.Claim{
			{ID: 1, RoundID: 3, Choice: "red"},
			{ID: 2, RoundID: 3, Choice: "blue"},
		},
		entries: []domain.JournalEntry{
			{ID: "e1", Event: domain.EventDraw},
		},
	}
	writer := newMemWriter()

	a := NewRoundArchiver(writer, source)
	path, err := a.ArchiveRound(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "archive/rounds/round-000003.jsonl", path)
	assert.Equal(t, "application/x-ndjson", writer.types[path])

	lines := bytes.Split(bytes.TrimSpace(writer.objects[path]), []byte("\n"))
	require.Len(t, lines, 4) // 1 round + 2 claims + 1 journal entry

	var first archiveRecord
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "round", first.Kind)
}

func TestArchiveRoundRejectsUnsettled(t *testing.T) {
	source := &memSource{
		round: domain.Round{ID: 9, Status: domain.RoundStatusOpen},
	}
	writer := newMemWriter()

	a := NewRoundArchiver(writer, source)
	_, err := a.ArchiveRound(context.Background(), 9)
	require.Error(t, err)
	assert.Empty(t, writer.objects)
}
