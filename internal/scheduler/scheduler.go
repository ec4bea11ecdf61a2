package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"invitetree/graph/internal/service"
)

// Scheduler drives the two background jobs on cron cadences: the token
// expiry sweep and the health-scoring batch. Both jobs are idempotent,
// so overlapping or repeated invocation (here or from an external
// orchestrator calling the services directly) is safe.
type Scheduler struct {
	cron   *cron.Cron
	tokens service.TokenService
	health service.HealthService
	logger *zap.Logger
}

func New(tokens service.TokenService, health service.HealthService, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		tokens: tokens,
		health: health,
		logger: logger,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(sweepSpec, healthSpec string) error {
	if _, err := s.cron.AddFunc(sweepSpec, s.runSweep); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(healthSpec, s.runHealthBatch); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("sweep_spec", sweepSpec),
		zap.String("health_spec", healthSpec))
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	count, err := s.tokens.SweepExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("token sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		s.logger.Info("expired tokens swept", zap.Int("count", count))
	}
}

func (s *Scheduler) runHealthBatch() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	count, err := s.health.RunBatch(ctx)
	if err != nil {
		s.logger.Error("health batch failed", zap.Error(err))
		return
	}
	s.logger.Info("health batch completed", zap.Int("nodes_scored", count))
}
