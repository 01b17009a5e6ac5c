package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/easybet/internal/domain"
)

type fakeSource struct {
	rounds     []domain.Round
	recomputes int
}

func (f *fakeSource) Rounds() []domain.Round { return f.rounds }
func (f *fakeSource) RecomputeAll()          { f.recomputes++ }

type fakeArchiver struct {
	archived []int64
	failFor  map[int64]error
}

func (f *fakeArchiver) ArchiveRound(ctx context.Context, roundID int64) (string, error) {
	if err := f.failFor[roundID]; err != nil {
		return "", err
	}
	f.archived = append(f.archived, roundID)
	return "archive/rounds/test.jsonl", nil
}

type fakeChecker struct {
	existing map[string]bool
}

func (f *fakeChecker) Exists(ctx context.Context, path string) (bool, error) {
	return f.existing[path], nil
}

func TestSweepArchivesOnlySettledRounds(t *testing.T) {
	source := &fakeSource{rounds: []domain.Round{
		{ID: 0, Status: domain.RoundStatusOpen},
		{ID: 1, Status: domain.RoundStatusSettled},
		{ID: 2, Status: domain.RoundStatusClosed},
		{ID: 3, Status: domain.RoundStatusSettled},
	}}
	sink := &fakeArchiver{}

	a := NewArchiver(source, sink, nil, nil, time.Hour, slog.Default())
	a.sweep(context.Background())

	assert.Equal(t, []int64{1, 3}, sink.archived)
	assert.Equal(t, 1, source.recomputes)
}

func TestSweepArchivesEachRoundOnce(t *testing.T) {
	source := &fakeSource{rounds: []domain.Round{
		{ID: 7, Status: domain.RoundStatusSettled},
	}}
	sink := &fakeArchiver{}

	a := NewArchiver(source, sink, nil, nil, time.Hour, slog.Default())
	a.sweep(context.Background())
	a.sweep(context.Background())

	assert.Equal(t, []int64{7}, sink.archived)
}

func TestSweepRetriesFailedRounds(t *testing.T) {
	source := &fakeSource{rounds: []domain.Round{
		{ID: 4, Status: domain.RoundStatusSettled},
	}}
	sink := &fakeArchiver{failFor: map[int64]error{4: errors.New("upload failed")}}

	a := NewArchiver(source, sink, nil, nil, time.Hour, slog.Default())
	a.sweep(context.Background())
	require.Empty(t, sink.archived)

	// Failure clears; the next sweep picks the round up again.
	delete(sink.failFor, 4)
	a.sweep(context.Background())
	assert.Equal(t, []int64{4}, sink.archived)
}

func TestSweepSkipsAlreadyExportedRounds(t *testing.T) {
	source := &fakeSource{rounds: []domain.Round{
		{ID: 5, Status: domain.RoundStatusSettled},
	}}
	sink := &fakeArchiver{}
	checker := &fakeChecker{existing: map[string]bool{"archive/rounds/5": true}}
	pathFor := func(roundID int64) string { return "archive/rounds/5" }

	a := NewArchiver(source, sink, checker, pathFor, time.Hour, slog.Default())
	a.sweep(context.Background())

	assert.Empty(t, sink.archived)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	source := &fakeSource{}
	sink := &fakeArchiver{}

	ctx, cancel := context.WithCancel(context.Background())
	a := NewArchiver(source, sink, nil, nil, 10*time.Millisecond, slog.Default())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("archiver did not stop after cancel")
	}
}
