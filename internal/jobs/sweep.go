package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/lifecycle"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Sweeper interface {
	SweepAbandoned(ctx context.Context) (*lifecycle.SweepResult, error)
}

type SweepConfig struct {
	Schedule string // cron spec, e.g. "*/10 * * * *"
	Enabled  bool
	Timeout  time.Duration // bound on a single run
}

// AbandonSweepJob periodically finalizes interviews whose client never ended them.
type AbandonSweepJob struct {
	sweeper Sweeper
	config  SweepConfig
	cron    *cron.Cron
	logger  *zap.Logger

	mu      sync.Mutex
	running bool
}

func NewAbandonSweepJob(sweeper Sweeper, config SweepConfig, logger *zap.Logger) *AbandonSweepJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	return &AbandonSweepJob{
		sweeper: sweeper,
		config:  config,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start schedules the sweep. A disabled job is a no-op.
func (j *AbandonSweepJob) Start() error {
	if !j.config.Enabled {
		j.logger.Info("abandon sweep is disabled, skipping scheduler")
		return nil
	}

	_, err := j.cron.AddFunc(j.config.Schedule, func() {
		if _, err := j.Run(context.Background()); err != nil {
			j.logger.Error("abandon sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule abandon sweep: %w", err)
	}

	j.cron.Start()
	j.logger.Info("abandon sweep started", zap.String("schedule", j.config.Schedule))
	return nil
}

// Stop halts scheduling and waits for a running sweep to return.
func (j *AbandonSweepJob) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// Run performs one sweep. Overlapping runs are skipped rather than queued.
func (j *AbandonSweepJob) Run(ctx context.Context) (*lifecycle.SweepResult, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.logger.Warn("previous abandon sweep still running, skipping")
		return &lifecycle.SweepResult{}, nil
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	res, err := j.sweeper.SweepAbandoned(ctx)
	if err != nil {
		return nil, err
	}
	j.logger.Info("abandon sweep completed",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Duration("took", time.Since(start)))
	return res, nil
}
