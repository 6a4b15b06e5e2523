package latesttrip

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-co-op/gocron/v2"

	"fleetops/internal/logging"
)

// Sweeper periodically queues a batch reconciliation of every vehicle so
// pointers left stale by abandoned jobs heal without a new trip write.
type Sweeper struct {
	engine    *Engine
	scheduler gocron.Scheduler
	job       gocron.Job
	logger    *slog.Logger
}

// NewSweeper schedules the sweep with a 5-field cron expression.
func NewSweeper(e *Engine, cronExpr string, logger *slog.Logger) (*Sweeper, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create sweep scheduler: %w", err)
	}
	sw := &Sweeper{
		engine:    e,
		scheduler: s,
		logger:    logging.Default(logger).With("component", "latest-trip-sweep"),
	}
	j, err := s.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(sw.sweep),
		gocron.WithName("latest-trip-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("create sweep job %q: %w", cronExpr, err)
	}
	sw.job = j
	return sw, nil
}

func (s *Sweeper) Start() {
	s.scheduler.Start()
	s.logger.Info("sweep scheduled", "job", s.job.ID().String())
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.engine.cfg.OpTimeout)
	defer cancel()

	n, queued, err := s.engine.ReconcileAll(ctx, "periodic sweep")
	switch {
	case err != nil:
		s.logger.Warn("sweep failed", "error", err)
	case !queued:
		s.logger.Warn("sweep skipped, reconcile queue full", "vehicles", n)
	default:
		s.logger.Info("sweep queued", "vehicles", n)
	}
}
