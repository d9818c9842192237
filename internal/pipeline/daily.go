// Package pipeline coordinates the daily tracking run: collect ranks,
// evaluate lifecycles, detect rank moves, recompute contribution.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/keyrank/internal/contracts"
	"github.com/wonny/keyrank/internal/metrics"
)

// Collector resolves and persists ranks for tracked pairs.
type Collector interface {
	Collect(ctx context.Context, pairs []contracts.TrackedPair) (*contracts.BatchReport, error)
}

// Evaluator folds one day's snapshots into candidate lifecycles.
type Evaluator interface {
	EvaluateAll(candidates []contracts.KeywordCandidate, byKeyword map[string]contracts.RankSnapshot, now time.Time) ([]contracts.KeywordCandidate, []contracts.LifecycleTransition)
}

// AlertAnalyzer detects day-over-day rank moves for one product.
type AlertAnalyzer interface {
	Analyze(ctx context.Context, productID string, day time.Time) ([]contracts.RankAlert, error)
}

// ContributionAnalyzer ranks surviving keywords by visibility contribution.
type ContributionAnalyzer interface {
	Analyze(candidates []contracts.KeywordCandidate) []contracts.ContributionEntry
}

// Daily orchestrates the four tracking stages in order
// ⭐ SSOT: 일일 파이프라인 조율은 여기서만
type Daily struct {
	candidates   contracts.CandidateRepository
	snapshots    contracts.SnapshotRepository
	collector    Collector
	evaluator    Evaluator
	alerts       AlertAnalyzer
	contribution ContributionAnalyzer
	log          zerolog.Logger
}

// NewDaily creates a new daily pipeline
func NewDaily(
	candidates contracts.CandidateRepository,
	snapshots contracts.SnapshotRepository,
	collector Collector,
	evaluator Evaluator,
	alerts AlertAnalyzer,
	contribution ContributionAnalyzer,
	log zerolog.Logger,
) *Daily {
	return &Daily{
		candidates:   candidates,
		snapshots:    snapshots,
		collector:    collector,
		evaluator:    evaluator,
		alerts:       alerts,
		contribution: contribution,
		log:          log.With().Str("component", "pipeline.daily").Logger(),
	}
}

// RunConfig holds the parameters of one pipeline run.
type RunConfig struct {
	RunID      string    // 비어 있으면 생성
	Day        time.Time // 정책 타임존 자정 (DayBoundary로 계산)
	PolicyHash string    // 어떤 정책으로 돌았는지 로그에 남긴다
	// SkipCollect reruns the downstream stages over already persisted
	// snapshots without touching the API budget.
	SkipCollect bool
}

// RunResult holds the outcome of one pipeline run.
type RunResult struct {
	RunID           string
	Day             time.Time
	Batch           *contracts.BatchReport
	Evaluated       int
	Transitions     []contracts.LifecycleTransition
	Alerts          []contracts.RankAlert
	Contribution    []contracts.ContributionEntry
	CompletedStages []string
	Success         bool
	Error           error
	Duration        time.Duration
}

// DayBoundary returns midnight of now's date in the policy timezone,
// the key every per-day read uses.
func DayBoundary(now time.Time, tz *time.Location) time.Time {
	y, m, d := now.In(tz).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, tz)
}

// GenerateRunID generates a unique run ID
func GenerateRunID(now time.Time) string {
	return fmt.Sprintf("run_%s", now.Format("20060102_150405"))
}

// Run executes collect → evaluate → alerts → contribution for one day.
// 단계 실패는 런을 멈추지만, 쌍 단위 실패는 수집 보고서 안에 머문다.
func (d *Daily) Run(ctx context.Context, config RunConfig) (*RunResult, error) {
	startTime := time.Now()
	defer func() { metrics.ObserveBatchDuration(time.Since(startTime)) }()

	if config.RunID == "" {
		config.RunID = GenerateRunID(startTime)
	}

	result := &RunResult{
		RunID:           config.RunID,
		Day:             config.Day,
		CompletedStages: make([]string, 0, 4),
	}

	d.log.Info().
		Str("run_id", config.RunID).
		Str("day", config.Day.Format("2006-01-02")).
		Str("policy_hash", config.PolicyHash).
		Bool("skip_collect", config.SkipCollect).
		Msg("daily pipeline started")

	candidates, err := d.candidates.ListRankDriven(ctx)
	if err != nil {
		result.Error = fmt.Errorf("load candidates failed: %w", err)
		return result, result.Error
	}
	if len(candidates) == 0 {
		d.log.Info().Msg("no rank-driven candidates, nothing to track")
	}

	if config.SkipCollect {
		d.log.Info().Msg("collect stage skipped, reusing persisted snapshots")
	} else {
		report, err := d.runCollect(ctx, candidates)
		if err != nil {
			result.Error = fmt.Errorf("collect stage failed: %w", err)
			return result, result.Error
		}
		result.Batch = report
		result.CompletedStages = append(result.CompletedStages, "collect")
	}

	updated, transitions, err := d.runEvaluate(ctx, candidates, config.Day)
	if err != nil {
		result.Error = fmt.Errorf("evaluate stage failed: %w", err)
		return result, result.Error
	}
	result.Evaluated = len(updated)
	result.Transitions = transitions
	result.CompletedStages = append(result.CompletedStages, "evaluate")

	alerts, err := d.runAlerts(ctx, candidates, config.Day)
	if err != nil {
		result.Error = fmt.Errorf("alert stage failed: %w", err)
		return result, result.Error
	}
	result.Alerts = alerts
	result.CompletedStages = append(result.CompletedStages, "alerts")

	entries, err := d.runContribution(ctx, candidates, updated)
	if err != nil {
		result.Error = fmt.Errorf("contribution stage failed: %w", err)
		return result, result.Error
	}
	result.Contribution = entries
	result.CompletedStages = append(result.CompletedStages, "contribution")

	result.Success = true
	result.Duration = time.Since(startTime)

	event := d.log.Info().
		Str("run_id", config.RunID).
		Int("evaluated", result.Evaluated).
		Int("transitions", len(result.Transitions)).
		Int("alerts", len(result.Alerts)).
		Int("ranked", len(result.Contribution)).
		Dur("duration", result.Duration)
	if result.Batch != nil {
		event = event.
			Int("succeeded", result.Batch.Succeeded).
			Int("failed", result.Batch.Failed).
			Int("calls_used", result.Batch.CallsUsed).
			Bool("incomplete", result.Batch.Incomplete)
	}
	event.Msg("daily pipeline completed")

	return result, nil
}

// runCollect resolves today's rank for every tracked pair.
func (d *Daily) runCollect(ctx context.Context, candidates []contracts.KeywordCandidate) (*contracts.BatchReport, error) {
	d.log.Info().Int("pairs", len(candidates)).Msg("collect stage started")

	pairs := make([]contracts.TrackedPair, 0, len(candidates))
	for _, c := range candidates {
		pairs = append(pairs, c.Pair())
	}

	report, err := d.collector.Collect(ctx, pairs)
	if err != nil {
		return nil, err
	}

	d.log.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("calls_used", report.CallsUsed).
		Bool("incomplete", report.Incomplete).
		Msg("collect stage completed")

	return report, nil
}

// runEvaluate applies the day's snapshots product by product and persists
// every updated candidate, transitions in the same transaction.
func (d *Daily) runEvaluate(ctx context.Context, candidates []contracts.KeywordCandidate, day time.Time) ([]contracts.KeywordCandidate, []contracts.LifecycleTransition, error) {
	d.log.Info().Msg("evaluate stage started")

	now := time.Now()
	allUpdated := make([]contracts.KeywordCandidate, 0, len(candidates))
	allTransitions := make([]contracts.LifecycleTransition, 0)

	for _, productID := range productOrder(candidates) {
		snaps, err := d.snapshots.LatestOnDay(ctx, productID, day)
		if err != nil {
			return nil, nil, fmt.Errorf("load snapshots for %s: %w", productID, err)
		}
		byKeyword := contracts.SnapshotsByKeyword(snaps)

		updated, transitions := d.evaluator.EvaluateAll(productCandidates(candidates, productID), byKeyword, now)

		byCandidate := make(map[int64]*contracts.LifecycleTransition, len(transitions))
		for i := range transitions {
			byCandidate[transitions[i].CandidateID] = &transitions[i]
		}

		for i := range updated {
			c := updated[i]
			if tr, ok := byCandidate[c.ID]; ok {
				if err := d.candidates.UpdateWithTransition(ctx, &c, tr); err != nil {
					return nil, nil, fmt.Errorf("persist transition for candidate %d: %w", c.ID, err)
				}
				metrics.ObserveTransition(string(tr.FromStatus), string(tr.ToStatus))
				allTransitions = append(allTransitions, *tr)
			} else {
				if err := d.candidates.Update(ctx, &c); err != nil {
					return nil, nil, fmt.Errorf("persist candidate %d: %w", c.ID, err)
				}
			}
			allUpdated = append(allUpdated, c)
		}
	}

	d.log.Info().
		Int("evaluated", len(allUpdated)).
		Int("transitions", len(allTransitions)).
		Msg("evaluate stage completed")

	return allUpdated, allTransitions, nil
}

// runAlerts detects day-over-day moves for every tracked product.
func (d *Daily) runAlerts(ctx context.Context, candidates []contracts.KeywordCandidate, day time.Time) ([]contracts.RankAlert, error) {
	d.log.Info().Msg("alert stage started")

	allAlerts := make([]contracts.RankAlert, 0)
	for _, productID := range productOrder(candidates) {
		alerts, err := d.alerts.Analyze(ctx, productID, day)
		if err != nil {
			return nil, fmt.Errorf("analyze alerts for %s: %w", productID, err)
		}
		for _, a := range alerts {
			metrics.ObserveAlert(string(a.AlertType))
		}
		allAlerts = append(allAlerts, alerts...)
	}

	d.log.Info().Int("alerts", len(allAlerts)).Msg("alert stage completed")

	return allAlerts, nil
}

// runContribution recomputes the visibility ranking over post-evaluation
// states and persists the scores. 당일 스냅샷이 결측이라 평가를 건너뛴
// 후보도 이전 상태 그대로 랭킹에는 남는다.
func (d *Daily) runContribution(ctx context.Context, candidates, updated []contracts.KeywordCandidate) ([]contracts.ContributionEntry, error) {
	d.log.Info().Msg("contribution stage started")

	byID := make(map[int64]contracts.KeywordCandidate, len(updated))
	for _, u := range updated {
		byID[u.ID] = u
	}
	final := make([]contracts.KeywordCandidate, len(candidates))
	copy(final, candidates)
	for i := range final {
		if u, ok := byID[final[i].ID]; ok {
			final[i] = u
		}
	}

	entries := d.contribution.Analyze(final)

	current := make(map[int64]contracts.KeywordCandidate, len(final))
	for _, c := range final {
		current[c.ID] = c
	}
	now := time.Now()
	for _, entry := range entries {
		c, ok := current[entry.CandidateID]
		if !ok {
			continue
		}
		c.ContributionScore = entry.NormalizedScore
		c.UpdatedAt = now
		if err := d.candidates.Update(ctx, &c); err != nil {
			return nil, fmt.Errorf("persist contribution score for candidate %d: %w", c.ID, err)
		}
	}

	d.log.Info().Int("ranked", len(entries)).Msg("contribution stage completed")

	return entries, nil
}

// productOrder returns the distinct product ids in deterministic order.
func productOrder(candidates []contracts.KeywordCandidate) []string {
	seen := make(map[string]bool, len(candidates))
	ids := make([]string, 0)
	for _, c := range candidates {
		if !seen[c.ProductID] {
			seen[c.ProductID] = true
			ids = append(ids, c.ProductID)
		}
	}
	sort.Strings(ids)
	return ids
}

func productCandidates(candidates []contracts.KeywordCandidate, productID string) []contracts.KeywordCandidate {
	subset := make([]contracts.KeywordCandidate, 0)
	for _, c := range candidates {
		if c.ProductID == productID {
			subset = append(subset, c)
		}
	}
	return subset
}
