// Package pipeline contains the background loops that run alongside the API
// server: the settled-round archive sweep.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/easybet/internal/domain"
)

// RoundLister is the slice of the engine the sweep reads from. The bet
// service satisfies it directly.
type RoundLister interface {
	Rounds() []domain.Round
	RecomputeAll()
}

// ExistenceChecker reports whether an archive object has already been
// written, so restarts do not re-export settled rounds. May be nil.
type ExistenceChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// PathFunc maps a round id to its archive object key.
type PathFunc func(roundID int64) string

// Archiver periodically exports newly settled rounds to blob storage.
type Archiver struct {
	source   RoundLister
	archiver domain.Archiver
	checker  ExistenceChecker
	pathFor  PathFunc
	interval time.Duration
	logger   *slog.Logger

	done map[int64]bool // round ids archived this process lifetime
}

// NewArchiver creates an Archiver sweeping at the given interval. A
// non-positive interval falls back to one hour.
func NewArchiver(source RoundLister, archiver domain.Archiver, checker ExistenceChecker, pathFor PathFunc, interval time.Duration, logger *slog.Logger) *Archiver {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Archiver{
		source:   source,
		archiver: archiver,
		checker:  checker,
		pathFor:  pathFor,
		interval: interval,
		logger:   logger.With(slog.String("component", "archive_pipeline")),
		done:     make(map[int64]bool),
	}
}

// Run sweeps until the context is cancelled. Each sweep re-derives round
// statuses against the current time and exports any settled round that has
// not been archived yet.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archive pipeline started",
		slog.Duration("interval", a.interval),
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	// One sweep immediately so a restart catches up without waiting a full
	// interval.
	a.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archive pipeline stopped")
			return ctx.Err()
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

// sweep runs one archive pass. Failures are logged and retried on the next
// sweep; a single round's failure does not block the rest.
func (a *Archiver) sweep(ctx context.Context) {
	a.source.RecomputeAll()

	var archived int
	for _, round := range a.source.Rounds() {
		if round.Status != domain.RoundStatusSettled || a.done[round.ID] {
			continue
		}

		if a.checker != nil && a.pathFor != nil {
			exists, err := a.checker.Exists(ctx, a.pathFor(round.ID))
			if err == nil && exists {
				a.done[round.ID] = true
				continue
			}
		}

		path, err := a.archiver.ArchiveRound(ctx, round.ID)
		if err != nil {
			a.logger.Error("round archive failed",
				slog.Int64("round_id", round.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		a.done[round.ID] = true
		archived++
		a.logger.Info("round archived",
			slog.Int64("round_id", round.ID),
			slog.String("path", path),
		)
	}

	if archived > 0 {
		a.logger.Info("archive sweep complete", slog.Int("rounds_archived", archived))
	}
}
