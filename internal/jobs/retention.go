package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ucgmax/webhook-receiver/internal/database"
	"github.com/ucgmax/webhook-receiver/internal/metrics"
	"go.uber.org/zap"
)

// RetentionSweeper deletes alerts older than the configured retention
type RetentionSweeper struct {
	store   *database.AlertStore
	days    int
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewRetentionSweeper creates a sweeper keeping retentionDays of alerts.
// retentionDays <= 0 keeps everything.
func NewRetentionSweeper(store *database.AlertStore, retentionDays int, logger *zap.Logger) *RetentionSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionSweeper{
		store:   store,
		days:    retentionDays,
		timeout: 5 * time.Minute,
		logger:  logger,
		now:     time.Now,
	}
}

// Cleanup deletes alerts whose received_at is before now minus retentionDays
// and returns how many were removed.
func (s *RetentionSweeper) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.store.DeleteReceivedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention cleanup failed: %w", err)
	}
	return deleted, nil
}

// Run performs one sweep with the configured retention and records the outcome
func (s *RetentionSweeper) Run(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	deleted, err := s.Cleanup(ctx, s.days)
	if s.days > 0 {
		metrics.RecordRetention(deleted, err)
	}
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Error(err))
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("retention sweep removed alerts",
			zap.Int64("deleted", deleted), zap.Int("retention_days", s.days))
	}
	return deleted, nil
}

// Start runs a sweep every interval until stop is closed
func (s *RetentionSweeper) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.Run(context.Background())
		case <-stop:
			s.logger.Info("retention sweeper stopped")
			return
		}
	}
}

// Schedule runs sweeps on a cron schedule (standard five fields or descriptors
// such as "@hourly"). The returned cron is already started; Stop it on shutdown.
func (s *RetentionSweeper) Schedule(schedule string) (*cron.Cron, error) {
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	c := cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(spec, cron.FuncJob(func() {
		_, _ = s.Run(context.Background())
	}))
	c.Start()

	s.logger.Info("retention sweep scheduled",
		zap.String("schedule", schedule),
		zap.Int("retention_days", s.days),
		zap.Time("next_run", spec.Next(s.now().UTC())))
	return c, nil
}

// Launch starts periodic sweeps. A plain duration such as "90m" runs the
// ticker loop; anything else is parsed as a cron schedule. The returned func
// stops sweeping and waits for a sweep in progress to finish.
func (s *RetentionSweeper) Launch(schedule string) (func(), error) {
	if interval, err := time.ParseDuration(schedule); err == nil {
		if interval <= 0 {
			return nil, fmt.Errorf("invalid retention schedule %q: interval must be positive", schedule)
		}
		stop := make(chan struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			s.Start(interval, stop)
		}()
		s.logger.Info("retention sweep scheduled",
			zap.Duration("interval", interval), zap.Int("retention_days", s.days))
		return func() {
			close(stop)
			<-done
		}, nil
	}

	c, err := s.Schedule(schedule)
	if err != nil {
		return nil, err
	}
	return func() { <-c.Stop().Done() }, nil
}
