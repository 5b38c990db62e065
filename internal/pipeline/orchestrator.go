package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/battleoracle/internal/service"
)

// Settler applies pending auto-settle proposals.
type Settler interface {
	SettlePending(ctx context.Context) (service.SettleReport, error)
}

// OrchestratorConfig sets the schedules of the background loops.
type OrchestratorConfig struct {
	MonitorInterval time.Duration
	SettleInterval  time.Duration
	ArchiveCron     string
}

// Orchestrator runs the monitor loop, the settlement loop and the archive
// cron side by side. The settler and archiver are optional.
type Orchestrator struct {
	monitor  *Monitor
	settler  Settler
	archiver *Archiver
	trigger  <-chan struct{}
	cfg      OrchestratorConfig
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. trigger, when non-nil, forces an
// immediate monitor cycle.
func NewOrchestrator(
	monitor *Monitor,
	settler Settler,
	archiver *Archiver,
	trigger <-chan struct{},
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 30 * time.Second
	}
	if cfg.SettleInterval <= 0 {
		cfg.SettleInterval = time.Minute
	}
	return &Orchestrator{
		monitor:  monitor,
		settler:  settler,
		archiver: archiver,
		trigger:  trigger,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// Run blocks until ctx is cancelled or a loop fails. Cancellation is a clean
// shutdown and returns nil.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("monitor_interval", o.cfg.MonitorInterval),
		slog.Duration("settle_interval", o.cfg.SettleInterval),
		slog.String("archive_cron", o.cfg.ArchiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.monitor.RunLoop(ctx, o.cfg.MonitorInterval, o.trigger)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("monitor: %w", err)
	})

	if o.settler != nil {
		g.Go(func() error {
			err := o.runSettleLoop(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("settler: %w", err)
		})
	}

	if o.archiver != nil && o.cfg.ArchiveCron != "" {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.cfg.ArchiveCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

func (o *Orchestrator) runSettleLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.SettleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := o.settler.SettlePending(ctx)
			if err != nil {
				o.logger.Error("settlement run failed", slog.String("error", err.Error()))
				continue
			}
			if report.Settled > 0 || report.Failed > 0 {
				o.logger.Info("settlement run",
					slog.Int("settled", report.Settled),
					slog.Int("failed", report.Failed),
				)
			}
		}
	}
}
