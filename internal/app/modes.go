package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/easybet/internal/blob/s3"
	"github.com/alanyoungcy/easybet/internal/pipeline"
	"github.com/alanyoungcy/easybet/internal/server"
	"github.com/alanyoungcy/easybet/internal/server/handler"
	"github.com/alanyoungcy/easybet/internal/server/ws"
	"github.com/alanyoungcy/easybet/internal/service"
)

// ServerMode runs the HTTP + WebSocket API, and, when configured, the
// settled-round archive pipeline. With readOnly set, mutation endpoints are
// not registered; the process serves reads and the live event feed only.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies, svc *service.BetService, readOnly bool) error {
	g, ctx := errgroup.WithContext(ctx)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.logger),
		Points:  handler.NewPointsHandler(svc, a.logger),
		Rounds:  handler.NewRoundHandler(svc, a.logger),
		Tickets: handler.NewTicketHandler(svc, a.logger),
		Users:   handler.NewUserHandler(svc, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateLimitWindow.Duration,
		ReadOnly:    readOnly,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if a.cfg.Pipeline.Enabled && deps.BlobWriter != nil && !readOnly {
		archiver := s3blob.NewRoundArchiver(deps.BlobWriter, svc)
		var checker pipeline.ExistenceChecker
		if deps.BlobReader != nil {
			checker = deps.BlobReader
		}
		sweep := pipeline.NewArchiver(
			svc, archiver, checker, s3blob.ArchivePath,
			a.cfg.Pipeline.ArchiveInterval.Duration, a.logger,
		)
		g.Go(func() error {
			if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else if a.cfg.Pipeline.Enabled {
		a.logger.WarnContext(ctx, "archive pipeline enabled but blob storage is not; skipping",
			slog.Bool("readonly", readOnly),
		)
	}

	return g.Wait()
}
