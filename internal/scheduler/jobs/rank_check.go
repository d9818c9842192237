// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/keyrank/internal/pipeline"
	"github.com/wonny/keyrank/internal/trackerconfig"
	"github.com/wonny/keyrank/pkg/logger"
)

// Runner executes one daily pipeline run.
type Runner interface {
	Run(ctx context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error)
}

// RankCheckJob runs the daily tracking pipeline at the policy run time
// ⭐ SSOT: 일일 순위 확인 스케줄은 이 Job에서만
type RankCheckJob struct {
	runner     Runner
	policyHash string
	tz         *time.Location
	schedule   string
	logger     *logger.Logger
}

// NewRankCheckJob creates a new rank check job from the policy schedule.
func NewRankCheckJob(runner Runner, cfg *trackerconfig.Config, policyHash string, log *logger.Logger) (*RankCheckJob, error) {
	tz, err := time.LoadLocation(cfg.Meta.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid policy timezone %q: %w", cfg.Meta.Timezone, err)
	}

	runAt, err := time.Parse("15:04", cfg.Schedule.RunTimeLocal)
	if err != nil {
		return nil, fmt.Errorf("invalid run time %q: %w", cfg.Schedule.RunTimeLocal, err)
	}

	return &RankCheckJob{
		runner:     runner,
		policyHash: policyHash,
		tz:         tz,
		schedule:   fmt.Sprintf("0 %d %d * * *", runAt.Minute(), runAt.Hour()),
		logger:     log.Component("jobs.rank_check"),
	}, nil
}

// Name returns the job name
func (j *RankCheckJob) Name() string {
	return "daily_rank_check"
}

// Schedule returns the cron schedule built from run_time_local.
func (j *RankCheckJob) Schedule() string {
	return j.schedule
}

// Run executes one daily tracking run for today in the policy timezone.
func (j *RankCheckJob) Run(ctx context.Context) error {
	day := pipeline.DayBoundary(time.Now(), j.tz)

	result, err := j.runner.Run(ctx, pipeline.RunConfig{
		Day:        day,
		PolicyHash: j.policyHash,
	})
	if err != nil {
		return fmt.Errorf("daily rank check: %w", err)
	}

	fields := map[string]interface{}{
		"run_id":      result.RunID,
		"day":         day.Format("2006-01-02"),
		"evaluated":   result.Evaluated,
		"transitions": len(result.Transitions),
		"alerts":      len(result.Alerts),
	}
	if result.Batch != nil {
		fields["calls_used"] = result.Batch.CallsUsed
		fields["incomplete"] = result.Batch.Incomplete
	}
	j.logger.WithFields(fields).Info("daily rank check finished")

	if result.Batch != nil && result.Batch.Incomplete {
		j.logger.WithFields(map[string]interface{}{
			"run_id":  result.RunID,
			"skipped": result.Batch.Skipped,
		}).Warn("daily batch stopped early, call budget exhausted")
	}

	return nil
}
