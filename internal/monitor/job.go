// Package monitor wraps the screening pipeline in a scheduled job that
// fires at the session checkpoints of the A-share trading day.
package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zlin/ashare-quant/internal/pipeline"
	"github.com/zlin/ashare-quant/pkg/logger"
)

// Schedule fires at 09:30, 11:30 and 14:30 on weekdays: the open, the
// morning close and an hour before the afternoon close.
const Schedule = "0 30 9,11,14 * * MON-FRI"

// Runner runs one screening pass.
type Runner interface {
	Run(ctx context.Context, cfg pipeline.RunConfig) (*pipeline.Result, error)
}

// StrategyJob runs the screen on the monitoring schedule. Overlapping
// triggers are skipped rather than queued: a run still in flight when
// the next checkpoint fires means the market data has not changed
// enough to warrant a second pass.
type StrategyJob struct {
	runner   Runner
	useCache bool
	logger   *logger.Logger
	running  atomic.Bool
	now      func() time.Time
}

// NewStrategyJob creates the monitoring job.
func NewStrategyJob(runner Runner, useCache bool, log *logger.Logger) *StrategyJob {
	return &StrategyJob{
		runner:   runner,
		useCache: useCache,
		logger:   log,
		now:      time.Now,
	}
}

// Name implements scheduler.Job.
func (j *StrategyJob) Name() string { return "strategy-monitor" }

// Schedule implements scheduler.Job.
func (j *StrategyJob) Schedule() string { return Schedule }

// Run executes one screening pass for today. Returns nil on a skipped
// overlap; the skip is logged, not an error.
func (j *StrategyJob) Run(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		j.logger.Warn("Previous screening run still in flight, skipping this trigger")
		return nil
	}
	defer j.running.Store(false)

	date := j.now().Truncate(24 * time.Hour)
	_, err := j.runner.Run(ctx, pipeline.RunConfig{
		Date:     date,
		UseCache: j.useCache,
	})
	return err
}
