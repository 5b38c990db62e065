package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/battleoracle/internal/pipeline"
	"github.com/alanyoungcy/battleoracle/internal/server"
	"github.com/alanyoungcy/battleoracle/internal/server/handler"
	"github.com/alanyoungcy/battleoracle/internal/server/ws"
	"github.com/alanyoungcy/battleoracle/internal/service"
)

// Services are the domain services built over a set of Dependencies.
type Services struct {
	Deps       *Dependencies
	Monitor    *pipeline.Monitor
	Settlement *service.SettlementService
	Discovery  *service.DiscoveryService
	Markets    *service.MarketService
	// Archiver is nil when the archive is disabled.
	Archiver *pipeline.Archiver
}

func (a *App) buildServices(deps *Dependencies) *Services {
	discovery := service.NewDiscoveryService(deps.Twitch, deps.GameStore, a.cfg.Discovery.CacheTTL.Duration, a.logger)
	if len(a.cfg.Discovery.Queries) > 0 {
		discovery.WithQueries(a.cfg.Discovery.Queries)
	}

	mc := a.cfg.Monitor
	monitor := pipeline.NewMonitor(
		deps.Twitch,
		discovery,
		deps.SessionStore,
		deps.MarketStore,
		deps.DetectionStore,
		deps.SettlementStore,
		pipeline.MonitorConfig{
			PageSize:                mc.PageSize,
			MaxPages:                mc.MaxPages,
			Concurrency:             mc.Concurrency,
			CallTimeout:             mc.CallTimeout.Duration,
			LockTTL:                 mc.LockTTL.Duration,
			SkipDetectOnTitleChange: !mc.DetectOnTitleChange,
			EmbedParent:             a.cfg.Market.EmbedParent,
			Odds:                    a.cfg.Market.DefaultOdds,
			Liquidity:               a.cfg.Market.InitialLiquidity,
		},
		a.logger,
	).WithMetrics(deps.Metrics)
	if deps.LockManager != nil {
		monitor.WithLocks(deps.LockManager)
	}
	if deps.SignalBus != nil {
		monitor.WithSignalBus(deps.SignalBus)
	}
	if deps.Notifier.Enabled() {
		monitor.WithNotifier(deps.Notifier)
	}

	settlement := service.NewSettlementService(deps.SettlementStore, deps.MarketStore, deps.AuditStore, a.logger).
		WithMetrics(deps.Metrics)
	if deps.MarketCache != nil {
		settlement.WithCache(deps.MarketCache)
	}
	if deps.SignalBus != nil {
		settlement.WithSignalBus(deps.SignalBus)
	}

	svc := &Services{
		Deps:       deps,
		Monitor:    monitor,
		Settlement: settlement,
		Discovery:  discovery,
		Markets:    service.NewMarketService(deps.MarketStore, deps.MarketCache, a.logger),
	}
	if deps.Archiver != nil {
		svc.Archiver = pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	}
	return svc
}

// MonitorMode polls streams on an interval and serves the HTTP API.
func (a *App) MonitorMode(ctx context.Context, svc *Services) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.initDiscovery(ctx, svc)

	trigger := make(chan struct{}, 1)
	g.Go(func() error {
		return quiet(ctx, svc.Monitor.RunLoop(ctx, a.cfg.Monitor.Interval.Duration, trigger))
	})
	a.startNotifierCleanup(ctx, g, svc)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, svc, trigger)
	}
	return g.Wait()
}

// ServerMode serves the HTTP API only. Monitor cycles and settlement runs
// happen when a scheduler calls /api/oracle.
func (a *App) ServerMode(ctx context.Context, svc *Services) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startNotifierCleanup(ctx, g, svc)
	a.startHTTPServer(ctx, g, svc, nil)
	return g.Wait()
}

// FullMode runs the monitor loop, the settlement loop, the archive cron and
// the HTTP server.
func (a *App) FullMode(ctx context.Context, svc *Services) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.initDiscovery(ctx, svc)

	trigger := make(chan struct{}, 1)
	orch := pipeline.NewOrchestrator(
		svc.Monitor,
		svc.Settlement,
		svc.Archiver,
		trigger,
		pipeline.OrchestratorConfig{
			MonitorInterval: a.cfg.Monitor.Interval.Duration,
			SettleInterval:  a.cfg.Monitor.SettleInterval.Duration,
			ArchiveCron:     a.cfg.Archive.Cron,
		},
		a.logger,
	)
	g.Go(func() error { return orch.Run(ctx) })
	a.startNotifierCleanup(ctx, g, svc)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, svc, trigger)
	}
	return g.Wait()
}

func (a *App) initDiscovery(ctx context.Context, svc *Services) {
	if !a.cfg.Discovery.OnStartup {
		return
	}
	if err := svc.Discovery.Initialize(ctx); err != nil {
		a.logger.WarnContext(ctx, "initial game discovery failed", slog.String("error", err.Error()))
	}
}

func (a *App) startNotifierCleanup(ctx context.Context, g *errgroup.Group, svc *Services) {
	if !svc.Deps.Notifier.Enabled() {
		return
	}
	g.Go(func() error {
		return quiet(ctx, svc.Deps.Notifier.RunCleanup(ctx, time.Minute))
	})
}

// startHTTPServer adds the HTTP server goroutines to the given errgroup. The
// server is shut down gracefully when the context is cancelled. trigger is
// optional; when non-nil, POST /api/monitor/trigger requests one cycle.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, svc *Services, trigger chan<- struct{}) {
	deps := svc.Deps

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
		g.Go(func() error { return quiet(ctx, hub.Run(ctx)) })
	}

	handlers := server.Handlers{
		Oracle:      handler.NewOracleHandler(svc.Monitor, svc.Settlement, a.logger),
		Health:      handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:      handler.NewStatusHandler(a.cfg.Mode, a.startedAt),
		Trigger:     handler.NewTriggerHandler(trigger, a.logger),
		Markets:     handler.NewMarketHandler(svc.Markets, a.logger),
		Detections:  handler.NewDetectionHandler(deps.DetectionStore, a.logger),
		Settlements: handler.NewSettlementHandler(svc.Settlement, a.logger),
		Games:       handler.NewGameHandler(svc.Discovery, a.logger),
		Audit:       handler.NewAuditHandler(deps.AuditStore, a.logger),
	}
	if deps.SignalBus != nil {
		handlers.Events = handler.NewEventsHandler(deps.SignalBus, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, server.Deps{
		Hub:     hub,
		Limiter: deps.RateLimiter,
		Metrics: deps.Metrics,
	}, a.logger)

	if a.cfg.Server.APIKey == "" {
		a.logger.WarnContext(ctx, "server.api_key is empty; admin routes are unauthenticated")
	}

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// quiet turns the error of a loop stopped by cancellation into nil.
func quiet(ctx context.Context, err error) error {
	if err == nil || ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}
